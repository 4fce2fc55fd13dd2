// Package memory
// Author: momentics <momentics@gmail.com>
//
// Local shared-memory arena addressed by byte offset.
// Remote peers deposit payloads through Map and finish each transaction with a
// release-ordered doorbell store; readers poll doorbells with acquire loads.
// On unix systems the arena is an anonymous shared mapping, elsewhere heap memory.
package memory
