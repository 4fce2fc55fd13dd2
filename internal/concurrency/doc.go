// File: internal/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Wakeup primitives for the per-connection transmit loops: coalescing
// signals and a re-armable deadline timer.
package concurrency
