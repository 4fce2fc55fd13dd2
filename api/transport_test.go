package api_test

import (
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/momentics/hioload-dgrdma/api"
)

func TestSocketInterfaceCompliance(t *testing.T) {
	var _ api.Socket = (*mockSocket)(nil)
}

func TestSetupErrorUnwraps(t *testing.T) {
	err := api.SetupError("open socket", api.ErrNotSupported).WithContext("iface", "eth9")
	if !errors.Is(err, api.ErrNotSupported) {
		t.Fatal("setup error does not unwrap to its cause")
	}
	if err.Code != api.ErrCodeSetup {
		t.Errorf("code = %v, want %v", err.Code, api.ErrCodeSetup)
	}
	wrapped := fmt.Errorf("endpoint: %w", err)
	var apiErr *api.Error
	if !errors.As(wrapped, &apiErr) {
		t.Fatal("errors.As failed on wrapped setup error")
	}
}

func TestStatusString(t *testing.T) {
	if api.Pending.String() != "pending" || api.CompleteSuccess.String() != "complete" {
		t.Error("unexpected status strings")
	}
}

// mockSocket implements api.Socket for interface checks.
type mockSocket struct{}

func (*mockSocket) Send(net.HardwareAddr, [][]byte) error { return nil }
func (*mockSocket) Receive([]byte, time.Duration) (int, net.HardwareAddr, error) {
	return 0, nil, api.ErrTimeout
}
func (*mockSocket) MTU() int                       { return 1500 }
func (*mockSocket) HardwareAddr() net.HardwareAddr { return nil }
func (*mockSocket) Interface() string              { return "mock0" }
func (*mockSocket) Close() error                   { return nil }
