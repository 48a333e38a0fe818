package config

import (
	"strings"
	"time"
)

// StorageConfig points at the object store holding rendered diagram previews.
// When Endpoint is empty preview references are passed to workers unchanged.
type StorageConfig struct {
	Endpoint  string        `env:"ENDPOINT"`
	AccessKey string        `env:"ACCESS_KEY"`
	SecretKey string        `env:"SECRET_KEY"`
	Bucket    string        `env:"BUCKET"     envDefault:"diagram-previews"`
	UseSSL    bool          `env:"USE_SSL"    envDefault:"true"`
	URLExpiry time.Duration `env:"URL_EXPIRY" envDefault:"1h"`
}

// Sanitize applies guardrails to storage configuration values.
func (s *StorageConfig) Sanitize() {
	s.Endpoint = strings.TrimSpace(s.Endpoint)
	if s.URLExpiry <= 0 {
		s.URLExpiry = time.Hour
	}
	// presigned URLs are capped at seven days by S3-compatible stores
	if s.URLExpiry > 7*24*time.Hour {
		s.URLExpiry = 7 * 24 * time.Hour
	}
}

// IsEnabled reports whether preview references should be presigned.
func (s *StorageConfig) IsEnabled() bool {
	return s.Endpoint != "" && s.Bucket != ""
}
