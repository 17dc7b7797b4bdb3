package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/gophstore/internal/search"
	"github.com/spf13/cobra"
)

func newSearchCommand(app *App) *cobra.Command {
	var opts search.Options

	cmd := &cobra.Command{
		Use:   "search <query>...",
		Short: "Full-text search over indexed collections",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.search(cmd.Context(), cmd.OutOrStdout(), strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Collections, "collections", nil, "limit to collections")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum results (default from config)")
	cmd.Flags().Float64Var(&opts.MinScore, "min-score", 0, "drop results scoring below")
	return cmd
}

func (a *App) search(ctx context.Context, w io.Writer, query string, opts search.Options) error {
	results, err := a.eng.Search.Search(ctx, query, opts)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Fprintln(w, "no results")
		return nil
	}

	for _, r := range results {
		fmt.Fprintf(w, "%.3f  %s/%s\n", r.Score, r.Collection, r.DocID)
		for _, h := range r.Highlights {
			fmt.Fprintf(w, "       %s\n", h)
		}
	}
	return nil
}
