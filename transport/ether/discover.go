// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

package ether

import (
	"fmt"
	"net"

	"github.com/momentics/hioload-dgrdma/api"
)

// Link describes an interface usable for raw Ethernet transfers.
type Link struct {
	Name         string
	Index        int
	MTU          int
	HardwareAddr net.HardwareAddr
	Up           bool
}

// Lookup resolves an interface by name.
func Lookup(name string) (Link, error) {
	ifi, err := net.InterfaceByName(name)
	if err != nil {
		return Link{}, api.SetupError(fmt.Sprintf("no interface %q", name), err)
	}
	if len(ifi.HardwareAddr) != 6 {
		return Link{}, api.SetupError(fmt.Sprintf("interface %q has no Ethernet address", name), api.ErrNotSupported)
	}
	return linkOf(ifi), nil
}

// Discover lists interfaces with an Ethernet hardware address.
func Discover() ([]Link, error) {
	ifs, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	var out []Link
	for _, ifi := range ifs {
		if len(ifi.HardwareAddr) != 6 {
			continue
		}
		out = append(out, linkOf(&ifi))
	}
	return out, nil
}

func linkOf(ifi *net.Interface) Link {
	return Link{
		Name:         ifi.Name,
		Index:        ifi.Index,
		MTU:          ifi.MTU,
		HardwareAddr: ifi.HardwareAddr,
		Up:           ifi.Flags&net.FlagUp != 0,
	}
}
