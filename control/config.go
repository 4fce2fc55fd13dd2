// control/config.go
// Author: momentics <momentics@gmail.com>
//
// Transport configuration read once at endpoint and connection setup.
//
// Sources, highest precedence first:
//  1. OCPI_* environment variables (OCPI_ETHER_INTERFACE, OCPI_COALESCE_WAIT_US,
//     OCPI_ACK_TIMEOUT_MS, OCPI_RETRANSMIT, ...)
//  2. Optional YAML configuration file
//  3. Defaults

package control

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/momentics/hioload-dgrdma/api"
)

// Config holds the transport settings.
type Config struct {
	// Interface is the local network interface for the raw socket.
	Interface string `mapstructure:"ether_interface"`

	// CoalesceWaitUS delays a partially filled frame waiting for more messages.
	CoalesceWaitUS int `mapstructure:"coalesce_wait_us"`

	// AckTimeoutMS is the time before an unacknowledged frame counts as lost.
	AckTimeoutMS int `mapstructure:"ack_timeout_ms"`

	// Retransmit resends lost frames instead of dropping them.
	Retransmit bool `mapstructure:"retransmit"`

	// ReceiveTimeoutMS bounds one socket receive so shutdown is observed.
	ReceiveTimeoutMS int `mapstructure:"receive_timeout_ms"`

	// DedupWindow is the number of distinct frame sequence numbers remembered.
	DedupWindow int `mapstructure:"dedup_window"`

	// ArenaSize is the size of the local shared memory arena in bytes.
	ArenaSize uint32 `mapstructure:"arena_size"`

	// Mailbox identifies the local endpoint on the medium.
	Mailbox uint16 `mapstructure:"mailbox"`

	// MaxMailboxes is the number of peers sharing the medium.
	MaxMailboxes uint16 `mapstructure:"max_mailboxes"`

	// MTU overrides the interface MTU when non-zero.
	MTU int `mapstructure:"mtu"`

	// LogLevel is a zerolog level name.
	LogLevel string `mapstructure:"log_level"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() *Config {
	return &Config{
		CoalesceWaitUS:   0,
		AckTimeoutMS:     500,
		Retransmit:       false,
		ReceiveTimeoutMS: 100,
		DedupWindow:      256,
		ArenaSize:        1 << 20,
		Mailbox:          0,
		MaxMailboxes:     16,
		LogLevel:         "info",
	}
}

// CoalesceWait returns the coalesce delay.
func (c *Config) CoalesceWait() time.Duration {
	return time.Duration(c.CoalesceWaitUS) * time.Microsecond
}

// AckTimeout returns the acknowledgment deadline.
func (c *Config) AckTimeout() time.Duration {
	return time.Duration(c.AckTimeoutMS) * time.Millisecond
}

// ReceiveTimeout returns the receiver poll tick.
func (c *Config) ReceiveTimeout() time.Duration {
	return time.Duration(c.ReceiveTimeoutMS) * time.Millisecond
}

// Load reads configuration from the environment and, when configPath is
// non-empty, from that file.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("OCPI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("ether_interface", d.Interface)
	v.SetDefault("coalesce_wait_us", d.CoalesceWaitUS)
	v.SetDefault("ack_timeout_ms", d.AckTimeoutMS)
	v.SetDefault("retransmit", d.Retransmit)
	v.SetDefault("receive_timeout_ms", d.ReceiveTimeoutMS)
	v.SetDefault("dedup_window", d.DedupWindow)
	v.SetDefault("arena_size", d.ArenaSize)
	v.SetDefault("mailbox", d.Mailbox)
	v.SetDefault("max_mailboxes", d.MaxMailboxes)
	v.SetDefault("mtu", d.MTU)
	v.SetDefault("log_level", d.LogLevel)
}

// Validate rejects settings the transport cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.CoalesceWaitUS < 0:
		return invalid("coalesce_wait_us", c.CoalesceWaitUS)
	case c.AckTimeoutMS <= 0:
		return invalid("ack_timeout_ms", c.AckTimeoutMS)
	case c.ReceiveTimeoutMS <= 0:
		return invalid("receive_timeout_ms", c.ReceiveTimeoutMS)
	case c.DedupWindow <= 0:
		return invalid("dedup_window", c.DedupWindow)
	case c.ArenaSize == 0:
		return invalid("arena_size", c.ArenaSize)
	case c.MaxMailboxes == 0 || c.Mailbox >= c.MaxMailboxes:
		return invalid("mailbox", c.Mailbox)
	case c.MTU < 0 || c.MTU > 0xffff:
		return invalid("mtu", c.MTU)
	}
	return nil
}

// RequireInterface fails when no interface was configured.
func (c *Config) RequireInterface() error {
	if c.Interface == "" {
		return api.SetupError("OCPI_ETHER_INTERFACE is not set", api.ErrInvalidArgument)
	}
	return nil
}

func invalid(key string, value any) error {
	return api.NewError(api.ErrCodeInvalidArgument, "invalid configuration").
		WithContext(key, value).
		Wrap(api.ErrInvalidArgument)
}
