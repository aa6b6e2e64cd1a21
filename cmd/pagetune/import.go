package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pagetune/pagetune-server/internal/library"
	"github.com/pagetune/pagetune-server/internal/service"
)

func newImportCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "import <manifest-or-dir>...",
		Short: "Import chapter manifests into the shelf",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(flags)
			if err != nil {
				return err
			}
			defer rt.Close()

			docs := service.NewDocumentService(rt.store, nil, nil, nil, rt.log.Logger)
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			for _, path := range args {
				info, err := os.Stat(path)
				if err != nil {
					return err
				}
				importer := library.NewImporter(path, docs, rt.log.Logger)
				if info.IsDir() {
					n, err := importer.ScanAll(ctx)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "%s: imported %d manifests\n", path, n)
					continue
				}
				if err := importer.ImportFile(ctx, path); err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				fmt.Fprintf(out, "%s: imported as %s\n", path, library.DocumentIDForPath(path))
			}
			return nil
		},
	}
}
