// Package fake
// Author: momentics <momentics@gmail.com>
//
// Fake implementations for testing and development.
// Provides an in-memory Ethernet segment with controllable loss and
// duplication, and an instrumented memory region.
package fake
