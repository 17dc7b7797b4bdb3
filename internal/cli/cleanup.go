package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
)

type cleanupFlags struct {
	blobDays    int
	purgeSynced time.Duration
	reindex     bool
}

func newCleanupCommand(app *App) *cobra.Command {
	var f cleanupFlags

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Drop stale blobs and synced change records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.cleanup(cmd.Context(), cmd.OutOrStdout(), f)
		},
	}

	cmd.Flags().IntVar(&f.blobDays, "blob-days", 30, "delete blobs not accessed for this many days (0 keeps all)")
	cmd.Flags().DurationVar(&f.purgeSynced, "purge-synced", 30*24*time.Hour, "delete synced change records older than this (0 keeps all)")
	cmd.Flags().BoolVar(&f.reindex, "reindex", false, "rebuild the search index")
	return cmd
}

func (a *App) cleanup(ctx context.Context, w io.Writer, f cleanupFlags) error {
	if f.blobDays > 0 {
		n, err := a.eng.Blobs.Cleanup(ctx, f.blobDays)
		fmt.Fprintf(w, "blobs removed: %d\n", n)
		if err != nil {
			return err
		}
	}

	if f.purgeSynced > 0 {
		n, err := a.eng.Sync.PurgeSynced(ctx, f.purgeSynced)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "change records purged: %d\n", n)
	}

	if f.reindex {
		n, err := a.eng.Reindex(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "documents reindexed: %d\n", n)
	}
	return nil
}
