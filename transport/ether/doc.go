// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package ether implements the raw Ethernet frame socket used by the datagram
// RDMA transport: an AF_PACKET socket bound to one interface and one EtherType,
// scatter/gather sends and bounded-timeout receives of frames addressed to
// this host. Other hosts' frames and foreign EtherTypes are dropped silently.
package ether
