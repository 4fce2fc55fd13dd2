// File: dgrdma/address.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Endpoint strings:
//
//	ocpi-ether-rdma:<ifname>/<mac>;<size>.<mailbox>.<maxcount>

package dgrdma

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/momentics/hioload-dgrdma/api"
)

// Scheme prefixes every endpoint string.
const Scheme = "ocpi-ether-rdma:"

// Address identifies one party on the medium.
type Address struct {
	Interface    string
	HardwareAddr net.HardwareAddr
	Size         uint32 // bytes of the party's addressable arena
	Mailbox      uint16
	MaxCount     uint16 // number of mailboxes sharing the medium
}

// ParseAddress parses an endpoint string.
func ParseAddress(s string) (Address, error) {
	rest, ok := strings.CutPrefix(s, Scheme)
	if !ok {
		return Address{}, badAddress(s, "missing "+Scheme+" prefix")
	}
	ifname, rest, ok := strings.Cut(rest, "/")
	if !ok || ifname == "" {
		return Address{}, badAddress(s, "missing interface")
	}
	macStr, rest, ok := strings.Cut(rest, ";")
	if !ok {
		return Address{}, badAddress(s, "missing size")
	}
	mac, err := net.ParseMAC(macStr)
	if err != nil || len(mac) != 6 {
		return Address{}, badAddress(s, "bad hardware address")
	}
	parts := strings.Split(rest, ".")
	if len(parts) != 3 {
		return Address{}, badAddress(s, "want <size>.<mailbox>.<maxcount>")
	}
	size, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		return Address{}, badAddress(s, "bad size")
	}
	mailbox, err := strconv.ParseUint(parts[1], 10, 16)
	if err != nil {
		return Address{}, badAddress(s, "bad mailbox")
	}
	maxCount, err := strconv.ParseUint(parts[2], 10, 16)
	if err != nil {
		return Address{}, badAddress(s, "bad mailbox count")
	}
	a := Address{
		Interface:    ifname,
		HardwareAddr: mac,
		Size:         uint32(size),
		Mailbox:      uint16(mailbox),
		MaxCount:     uint16(maxCount),
	}
	if err := a.Validate(); err != nil {
		return Address{}, err
	}
	return a, nil
}

// Validate checks that the mailbox lies inside the medium.
func (a Address) Validate() error {
	if a.MaxCount == 0 || a.Mailbox >= a.MaxCount {
		return fmt.Errorf("mailbox %d of %d: %w", a.Mailbox, a.MaxCount, api.ErrInvalidArgument)
	}
	if len(a.HardwareAddr) != 6 {
		return fmt.Errorf("hardware address %v: %w", a.HardwareAddr, api.ErrInvalidArgument)
	}
	return nil
}

// String formats the endpoint string.
func (a Address) String() string {
	return fmt.Sprintf("%s%s/%s;%d.%d.%d", Scheme, a.Interface, a.HardwareAddr, a.Size, a.Mailbox, a.MaxCount)
}

func badAddress(s, why string) error {
	return api.NewError(api.ErrCodeInvalidArgument, "bad endpoint "+strconv.Quote(s)+": "+why).Wrap(api.ErrInvalidArgument)
}
