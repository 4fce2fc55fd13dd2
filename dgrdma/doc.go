// Package dgrdma
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Reliable datagram RDMA over raw Ethernet.
//
// A local Endpoint owns one raw socket, one shared memory region and one
// receiver goroutine. Each connection to a remote mailbox (XferServices) owns
// one transmit engine goroutine that fragments posted transactions into
// messages, coalesces messages into frames up to the MTU, and tracks frames
// until they are acknowledged. The receiver suppresses duplicate frames,
// forwards piggybacked ACKs to the right engine, writes message payloads into
// the region and finishes each transaction with a doorbell store.
//
// Frames carry a 10-byte FrameHeader followed by 8-byte aligned messages,
// each a 24-byte MsgHeader plus payload. See package protocol for layouts.
package dgrdma
