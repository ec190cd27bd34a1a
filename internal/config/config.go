// Package config assembles the gateway's configuration from environment
// variables, with sensible development defaults.
package config

import "github.com/joho/godotenv"

type Config interface {
	EnvConfig
	BackendConfig
	CorsConfig
	SecurityConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetDataFolder() string
	GetEnv() string
}

type mainConfig struct {
	EnvVars
	Backend
	Cors
	Security
}

// New loads a .env file when one is present, then returns the env-backed
// configuration.
func New() Config {
	_ = godotenv.Load()
	return mainConfig{}
}
