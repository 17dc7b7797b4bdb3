// Package cli is the gophstore command line: one-shot subcommands for
// backups, search and housekeeping, and an interactive shell over every
// engine component.
//
// Global flags (-c, -d, -s, -t, -l) are read by the config loader; the
// engine is opened before a subcommand runs and closed after it.
package cli
