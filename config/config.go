package config

import (
	"os"
	"strings"
)

// AppConfig is the root configuration for the console backend. It is composed
// from the per-domain structs declared alongside it and loaded from the
// environment with github.com/caarlos0/env.
//
//   - auth.go: actor authentication
//   - database.go: Postgres and Redis connections
//   - dispatch.go: worker transport and callback settings
//   - http.go: HTTP listener and public base URL
//   - realtime.go: WebSocket fanout and cross-instance relay
//   - services.go: service modes and the stale job reaper
//   - storage.go: object storage for diagram previews
type AppConfig struct {
	// IsDev enables development behaviour. Set DEV=true or NODE_ENV=development.
	IsDev bool `env:"DEV" envDefault:"false"`

	Auth AuthConfig

	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`

	HTTP HTTPConfig

	// Services is a comma-delimited list of enabled service modes.
	Services string `env:"SERVICES" envDefault:"http"`

	Dispatch DispatchConfig `envPrefix:"DISPATCH_"`

	Realtime RealtimeConfig `envPrefix:"REALTIME_"`

	Storage StorageConfig `envPrefix:"STORAGE_"`

	Reaper ReaperConfig

	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
func (c *AppConfig) Sanitize() {
	c.Postgres.Sanitize()
	c.HTTP.Sanitize()
	c.Dispatch.Sanitize()
	c.Realtime.Sanitize()
	c.Storage.Sanitize()
	c.Reaper.Sanitize()
	c.Observability.Sanitize()

	c.detectDevMode()
}

// detectDevMode falls back to NODE_ENV when DEV is unset.
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		nodeEnv := strings.ToLower(os.Getenv("NODE_ENV"))
		c.IsDev = nodeEnv == "development" || nodeEnv == "dev"
	}
}

// GetEnabledServices returns the enabled services based on the Services field.
func (c *AppConfig) GetEnabledServices() (map[ServiceMode]bool, error) {
	return ParseServices(c.Services)
}

// IsHTTPServerEnabled returns true if the HTTP server service is enabled.
func (c *AppConfig) IsHTTPServerEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModeHTTP]
}

// IsReaperEnabled returns true if the reaper service is enabled.
func (c *AppConfig) IsReaperEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModeReaper]
}
