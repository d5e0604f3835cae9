// Package config builds the runtime configuration for the casesync agent.
// Values are resolved defaults-first, then overlaid from an optional JSON
// file and finally from command-line flags.
package config

import "time"

// Config holds runtime settings for the casesync agent.
type Config struct {
	// RemoteEndpoint is the base URL of the primary case store API.
	RemoteEndpoint string
	// RealtimeEndpoint is the websocket URL of the push channel.
	RealtimeEndpoint string
	// LegacyEndpoint is the URL of the legacy sheet backend; empty disables
	// the best-effort mirror.
	LegacyEndpoint string
	// DatabaseDSN is the DSN of the local snapshot database.
	DatabaseDSN string
	// AccessToken is an optional pre-issued session token. When empty the
	// agent prompts for credentials at startup.
	AccessToken string
	// LogFormat selects the log backend: "text", "json" or "zerolog".
	LogFormat string

	// RevalidateInterval is the period of the background full refetch.
	RevalidateInterval time.Duration
	// GraceWindow is how long a locally created case survives merges while
	// still absent from the remote snapshot.
	GraceWindow time.Duration
	// Retention is how long soft-deleted cases stay in the recycle bin
	// before the purge removes them for good.
	Retention time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.RemoteEndpoint = "http://127.0.0.1:8090"
	c.RealtimeEndpoint = "ws://127.0.0.1:8090/realtime"
	c.LegacyEndpoint = ""
	c.DatabaseDSN = "casesync.db"
	c.LogFormat = "text"
	c.RevalidateInterval = 60 * time.Second
	c.GraceWindow = 5 * time.Minute
	c.Retention = 30 * 24 * time.Hour
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
