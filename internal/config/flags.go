package config

import (
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/gophstore/internal/flagx"
)

var ownedFlags = []string{
	"-d", "--d", "-data-dir", "--data-dir",
	"-s", "--s", "-strategy", "--strategy",
	"-t", "--t", "-cache-ttl", "--cache-ttl",
	"-l", "--l", "-log-level", "--log-level",
}

// parseFlags populates selected Config fields from command-line flags.
//
// args is filtered with flagx.FilterArgs first so flags that belong to CLI
// subcommands are left alone.
func parseFlags(cfg *Config, args []string) error {
	filtered := flagx.FilterArgs(args, ownedFlags)

	fs := flag.NewFlagSet("gophstore", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.DataDir, "d", cfg.DataDir, "data directory")
	fs.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "data directory")
	fs.StringVar(&cfg.StoreStrategy, "s", cfg.StoreStrategy, "unified store strategy")
	fs.StringVar(&cfg.StoreStrategy, "strategy", cfg.StoreStrategy, "unified store strategy")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")

	ttl := int(cfg.CacheTTL.Seconds())
	fs.IntVar(&ttl, "t", ttl, "cache ttl (in seconds)")
	fs.IntVar(&ttl, "cache-ttl", ttl, "cache ttl (in seconds)")

	if err := fs.Parse(filtered); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "t" || f.Name == "cache-ttl" {
			cfg.CacheTTL = time.Duration(ttl) * time.Second
		}
	})
	return nil
}
