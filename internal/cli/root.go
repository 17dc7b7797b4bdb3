package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/gophstore/internal/config"
	"github.com/dmitrijs2005/gophstore/internal/engine"
	"github.com/dmitrijs2005/gophstore/internal/logging"
	"github.com/spf13/cobra"
)

// App carries what every subcommand shares.
type App struct {
	args []string
	cfg  *config.Config
	log  logging.Logger
	eng  *engine.Engine
}

func (a *App) open(ctx context.Context, stderr io.Writer) error {
	cfg, err := config.LoadConfig(a.args)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = logging.New(cfg.LogFormat, cfg.LogLevel, stderr)

	eng, err := engine.New(ctx, cfg, a.log)
	if err != nil {
		return fmt.Errorf("failed to open data directory %s: %w", cfg.DataDir, err)
	}
	a.eng = eng
	return nil
}

// Close releases the engine. It is safe to call more than once.
func (a *App) Close() error {
	if a.eng == nil {
		return nil
	}
	return a.eng.Close()
}

// NewRootCommand builds the command tree for args (without the program
// name). The same args feed the config loader. The caller closes the
// returned App.
func NewRootCommand(args []string) (*cobra.Command, *App) {
	app := &App{args: args}

	cmd := &cobra.Command{
		Use:           "gophstore",
		Short:         "Offline-first local data engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if !needsEngine(cmd) {
				return nil
			}
			return app.open(cmd.Context(), cmd.ErrOrStderr())
		},
	}
	cmd.SetArgs(args)

	// parsed by config.LoadConfig; declared so cobra accepts them
	pf := cmd.PersistentFlags()
	pf.StringP("config", "c", "", "JSON (or HuJSON) config file")
	pf.StringP("data-dir", "d", "", "data directory")
	pf.StringP("strategy", "s", "", "unified store strategy (memory|flat-durable|transactional-durable|multi)")
	pf.IntP("cache-ttl", "t", 0, "memory tier ttl in seconds")
	pf.StringP("log-level", "l", "", "log level (debug|info|warn|error)")

	cmd.AddCommand(newShellCommand(app))
	cmd.AddCommand(newExportCommand(app))
	cmd.AddCommand(newImportCommand(app))
	cmd.AddCommand(newSearchCommand(app))
	cmd.AddCommand(newCleanupCommand(app))

	return cmd, app
}

func needsEngine(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Name() == "help" || c.Name() == "completion" {
			return false
		}
	}
	return true
}

// Execute runs the command line and closes the engine even when the
// subcommand failed.
func Execute(ctx context.Context, args []string) error {
	cmd, app := NewRootCommand(args)
	return errors.Join(cmd.ExecuteContext(ctx), app.Close())
}
