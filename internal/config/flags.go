package config

import (
	"flag"
	"os"
	"time"

	"casesync/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   base URL of the remote case store
//	-w string   websocket URL of the realtime channel
//	-l string   URL of the legacy sheet backend
//	-d string   DSN of the local snapshot database
//	-t string   pre-issued access token
//	-i int      revalidation interval in seconds
//
// The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-w", "-l", "-d", "-t", "-i"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.RemoteEndpoint, "a", cfg.RemoteEndpoint, "base URL of the remote case store")
	fs.StringVar(&cfg.RealtimeEndpoint, "w", cfg.RealtimeEndpoint, "websocket URL of the realtime channel")
	fs.StringVar(&cfg.LegacyEndpoint, "l", cfg.LegacyEndpoint, "URL of the legacy sheet backend")
	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "DSN of the local snapshot database")
	fs.StringVar(&cfg.AccessToken, "t", cfg.AccessToken, "pre-issued access token")
	revalidateInterval := fs.Int("i", int(cfg.RevalidateInterval.Seconds()), "revalidation interval (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.RevalidateInterval = time.Duration(*revalidateInterval) * time.Second
}
