package config

import "time"

type BackendConfig interface {
	GetBackendBaseURL() string
	GetBackendTimeout() time.Duration
}

type Backend struct{}

var _ BackendConfig = Backend{}

// GetBackendBaseURL returns the base URL of the platform's REST API, e.g.
// "https://api.example.com".
func (Backend) GetBackendBaseURL() string {
	return GetEnv("BACKEND_BASE_URL", "http://localhost:4000")
}

func (Backend) GetBackendTimeout() time.Duration {
	d, err := time.ParseDuration(GetEnv("BACKEND_TIMEOUT", "15s"))
	if err != nil {
		return 15 * time.Second
	}
	return d
}
