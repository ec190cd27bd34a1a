package config

import "strconv"

type SecurityConfig interface {
	GetStoreSealSecret() string
	GetLoginRatePerMinute() float64
	GetLoginBurst() int
}

type Security struct{}

var _ SecurityConfig = Security{}

// GetStoreSealSecret returns the secret used to seal credential records at
// rest. Empty disables sealing; records are then stored as plain JSON.
func (Security) GetStoreSealSecret() string {
	return GetEnv("STORE_SEAL_SECRET", "")
}

func (Security) GetLoginRatePerMinute() float64 {
	v, err := strconv.ParseFloat(GetEnv("LOGIN_RATE_PER_MINUTE", "30"), 64)
	if err != nil || v <= 0 {
		return 30
	}
	return v
}

func (Security) GetLoginBurst() int {
	v, err := strconv.Atoi(GetEnv("LOGIN_BURST", "10"))
	if err != nil || v <= 0 {
		return 10
	}
	return v
}
