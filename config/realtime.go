package config

import (
	"fmt"
	"strings"
	"time"
)

// RelayMode selects how broadcasts reach viewers attached to other replicas.
type RelayMode string

const (
	// RelayModeNone delivers broadcasts to local connections only.
	RelayModeNone RelayMode = "none"
	// RelayModeRedis fans broadcasts out through Redis pub/sub.
	RelayModeRedis RelayMode = "redis"
)

// UnmarshalText implements encoding.TextUnmarshaler for RelayMode.
func (m *RelayMode) UnmarshalText(text []byte) error {
	v := RelayMode(strings.ToLower(strings.TrimSpace(string(text))))
	switch v {
	case RelayModeNone, RelayModeRedis:
		*m = v
		return nil
	case "":
		*m = RelayModeNone
		return nil
	default:
		return fmt.Errorf("invalid RelayMode: %q (valid options: none, redis)", v)
	}
}

// RealtimeConfig controls the notification channel.
type RealtimeConfig struct {
	Relay   RelayMode `env:"RELAY"   envDefault:"none"`
	Channel string    `env:"CHANNEL" envDefault:"console:job-events"`

	// WriteTimeout bounds a single frame write to a viewer.
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
}

// Sanitize applies guardrails to realtime configuration values.
func (r *RealtimeConfig) Sanitize() {
	if r.Relay == "" {
		r.Relay = RelayModeNone
	}
	if strings.TrimSpace(r.Channel) == "" {
		r.Channel = "console:job-events"
	}
	if r.WriteTimeout <= 0 {
		r.WriteTimeout = 10 * time.Second
	}
}
