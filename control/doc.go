// Package control
// Author: momentics <momentics@gmail.com>
//
// Configuration, runtime metrics and debug introspection layer of the
// datagram RDMA transport.
//
// Provides:
//   - Config loaded once at endpoint setup from OCPI_* environment variables
//     and an optional YAML file (viper)
//   - Prometheus counters and gauges registered on an injected registerer
//   - State export through named debug probes
//
// This package is cross-platform and build-tag-partitioned as needed.
package control
