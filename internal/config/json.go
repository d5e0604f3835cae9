package config

import (
	"encoding/json"
	"os"

	"casesync/internal/flagx"
	"casesync/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Durations may
// be given as strings like "60s" or as integer nanoseconds.
type JsonConfig struct {
	RemoteEndpoint     string         `json:"remote_endpoint"`
	RealtimeEndpoint   string         `json:"realtime_endpoint"`
	LegacyEndpoint     string         `json:"legacy_endpoint"`
	DatabaseDSN        string         `json:"database_dsn"`
	AccessToken        string         `json:"access_token"`
	LogFormat          string         `json:"log_format"`
	RevalidateInterval timex.Duration `json:"revalidate_interval"`
	GraceWindow        timex.Duration `json:"grace_window"`
	Retention          timex.Duration `json:"retention"`
}

// parseJson overlays cfg with values loaded from the JSON file given via the
// -c/-config flags. Missing file path means no JSON is loaded. Read or
// unmarshal errors panic; the agent cannot start from a broken config.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.RemoteEndpoint != "" {
		cfg.RemoteEndpoint = jc.RemoteEndpoint
	}
	if jc.RealtimeEndpoint != "" {
		cfg.RealtimeEndpoint = jc.RealtimeEndpoint
	}
	if jc.LegacyEndpoint != "" {
		cfg.LegacyEndpoint = jc.LegacyEndpoint
	}
	if jc.DatabaseDSN != "" {
		cfg.DatabaseDSN = jc.DatabaseDSN
	}
	if jc.AccessToken != "" {
		cfg.AccessToken = jc.AccessToken
	}
	if jc.LogFormat != "" {
		cfg.LogFormat = jc.LogFormat
	}
	if jc.RevalidateInterval.Duration != 0 {
		cfg.RevalidateInterval = jc.RevalidateInterval.Duration
	}
	if jc.GraceWindow.Duration != 0 {
		cfg.GraceWindow = jc.GraceWindow.Duration
	}
	if jc.Retention.Duration != 0 {
		cfg.Retention = jc.Retention.Duration
	}
}
