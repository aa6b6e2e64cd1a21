package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pagetune/pagetune-server/internal/domain"
)

func newInspectCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "List shelf documents with their saved progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := openRuntime(flags)
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx := cmd.Context()
			docs, err := rt.store.ListAllDocuments(ctx)
			if err != nil {
				return err
			}

			progress := make(map[string]*domain.ProgressCheckpoint, len(docs))
			for _, d := range docs {
				cp, err := rt.checkpoints.GetCheckpoint(ctx, d.ID)
				if err != nil {
					return err
				}
				progress[d.ID] = cp
			}

			writeShelf(cmd.OutOrStdout(), docs, progress)
			return nil
		},
	}
}

func writeShelf(w io.Writer, docs []*domain.Document, progress map[string]*domain.ProgressCheckpoint) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tKIND\tCHAPTERS\tPROGRESS\tMINUTES")
	for _, d := range docs {
		pct, minutes := "-", "-"
		if cp := progress[d.ID]; cp != nil {
			pct = fmt.Sprintf("%.1f%%", cp.Percentage)
			minutes = fmt.Sprint(cp.AccumulatedMinutes)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n", d.ID, d.Title, d.Kind, len(d.Chapters), pct, minutes)
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d documents\n", len(docs))
}
