package config

import "time"

// Config holds runtime settings for the foliokeeper CLI.
type Config struct {
	// ServerURL is the API root, including the route prefix.
	ServerURL           string
	OnlineCheckInterval time.Duration
	RequestTimeout      time.Duration
	SessionDBPath       string
	LogLevel            string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080/api/v1"
	c.OnlineCheckInterval = 3 * time.Second
	c.RequestTimeout = 10 * time.Second
	c.SessionDBPath = "session.db"
	c.LogLevel = "warn"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
