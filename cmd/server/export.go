package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"fibermap/internal/codec"
	"fibermap/internal/loader"
	"fibermap/internal/repository/sqlite"
	"fibermap/internal/service"
)

func newExportCmd() *cobra.Command {
	var (
		dbPath string
		format string
		out    string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the stored topology to stdout or a file",
		Long: `Export the stored topology as a JSON or YAML document.

With --out the document is written to that file and the format follows its
extension (.yaml or .yml for YAML, anything else JSON); --format is ignored.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := codec.ForFormat(format); err != nil {
				return err
			}

			repo, err := sqlite.New(dbPath)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer repo.Close()

			svc := service.NewNetworkService(repo, nil)
			if err := svc.Load(cmd.Context()); err != nil {
				return err
			}
			if out == "" {
				return svc.ExportTo(cmd.OutOrStdout(), format)
			}

			doc, err := svc.Export()
			if err != nil {
				return err
			}
			if err := loader.Save(out, doc); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d elements to %s\n", doc.Len(), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "./fibermap.db", "SQLite database path")
	cmd.Flags().StringVar(&format, "format", "json", "output format: json or yaml")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write to this file instead of stdout")
	return cmd
}
