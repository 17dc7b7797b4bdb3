package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/gophstore/internal/snapshot"
	"github.com/spf13/cobra"
)

func (a *App) s3Backup(ctx context.Context) (*snapshot.S3Backup, error) {
	if a.cfg.S3Bucket == "" {
		return nil, errors.New("s3_bucket is not configured")
	}
	client, err := snapshot.NewS3Client(ctx, a.cfg)
	if err != nil {
		return nil, err
	}
	return snapshot.NewS3Backup(client, a.cfg.S3Bucket, a.log), nil
}

type exportFlags struct {
	collections []string
	blobs       bool
	internal    bool
	s3          bool
}

func newExportCommand(app *App) *cobra.Command {
	var f exportFlags

	cmd := &cobra.Command{
		Use:   "export <path|name>",
		Short: "Write a snapshot of the local database",
		Long: `Write a snapshot of the local database to a file.

Paths ending in .gz are compressed. With --s3 the argument is the backup
name in the configured bucket.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.export(cmd.Context(), cmd.OutOrStdout(), args[0], f)
		},
	}

	cmd.Flags().StringSliceVar(&f.collections, "collections", nil, "collections to export (default: all)")
	cmd.Flags().BoolVar(&f.blobs, "blobs", false, "include blobs")
	cmd.Flags().BoolVar(&f.internal, "internal", false, "include sync log, conflicts and search index")
	cmd.Flags().BoolVar(&f.s3, "s3", false, "upload to the configured S3 bucket")
	return cmd
}

func (a *App) export(ctx context.Context, w io.Writer, target string, f exportFlags) error {
	snap, err := a.eng.Snapshots.Export(ctx, snapshot.ExportOptions{
		Collections:     f.collections,
		IncludeInternal: f.internal,
		IncludeBlobs:    f.blobs,
	})
	if err != nil {
		return err
	}

	if f.s3 {
		b, err := a.s3Backup(ctx)
		if err != nil {
			return err
		}
		if target, err = b.Upload(ctx, snap, target); err != nil {
			return err
		}
	} else if err := snapshot.WriteFile(target, snap); err != nil {
		return err
	}

	fmt.Fprintf(w, "exported %d records from %d collections (%d blobs) to %s\n",
		snap.Metadata.TotalRecords, len(snap.Metadata.Stores), len(snap.Blobs), target)
	return nil
}

func newImportCommand(app *App) *cobra.Command {
	var (
		mode string
		s3   bool
	)

	cmd := &cobra.Command{
		Use:   "import <path|key>",
		Short: "Load a snapshot into the local database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := snapshot.ParseMode(mode)
			if err != nil {
				return err
			}
			return app.importSnapshot(cmd.Context(), cmd.OutOrStdout(), args[0], m, s3)
		},
	}

	cmd.Flags().StringVar(&mode, "mode", string(snapshot.ModeSkip), "existing records: skip|overwrite|merge")
	cmd.Flags().BoolVar(&s3, "s3", false, "download from the configured S3 bucket")
	return cmd
}

func (a *App) importSnapshot(ctx context.Context, w io.Writer, source string, mode snapshot.Mode, s3 bool) error {
	var (
		snap *snapshot.Snapshot
		err  error
	)
	if s3 {
		b, err := a.s3Backup(ctx)
		if err != nil {
			return err
		}
		snap, err = b.Download(ctx, source)
		if err != nil {
			return err
		}
	} else if snap, err = snapshot.ReadFile(source); err != nil {
		return err
	}

	res, err := a.eng.Snapshots.Import(ctx, snap, snapshot.ImportOptions{Mode: mode})
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "imported %d, skipped %d, blobs %d, errors %d\n",
		res.Imported, res.Skipped, res.Blobs, len(res.Errors))
	for _, e := range res.Errors {
		fmt.Fprintf(w, "  %v\n", e)
	}
	return nil
}
