package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iWorld-y/research_report/app/researcher/pkg/config"
	"github.com/iWorld-y/research_report/app/researcher/pkg/export"
)

func newExportCmd(load func() (*config.Config, error)) *cobra.Command {
	var in, name, formats string
	cmd := &cobra.Command{
		Use:     "export",
		Short:   "Convert an existing Markdown report to pdf / docx",
		Example: `  researcher export --in outputs/report.md --format pdf,docx`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if in == "" {
				return errors.New("--in is required")
			}
			fs, err := export.ParseFormats(formats)
			if err != nil {
				return err
			}
			text, err := os.ReadFile(in)
			if err != nil {
				return fmt.Errorf("read %s: %w", in, err)
			}
			if name == "" {
				name = strings.TrimSuffix(filepath.Base(in), filepath.Ext(in))
			}

			cfg, err := load()
			if err != nil {
				return err
			}
			exp, err := newExporter(cfg.Output)
			if err != nil {
				return err
			}
			defer exp.Close()

			paths, err := exp.Write(cmd.Context(), string(text), name, fs...)
			if err != nil {
				return err
			}

			var failed []string
			for _, f := range fs {
				if paths[f] == "" {
					failed = append(failed, string(f))
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-4s %s\n", f, paths[f])
			}
			if len(failed) > 0 {
				return fmt.Errorf("conversion failed: %s", strings.Join(failed, ", "))
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&in, "in", "i", "", "Markdown file to convert")
	f.StringVarP(&name, "name", "n", "", "output file name without extension (default input file name)")
	f.StringVarP(&formats, "format", "f", "pdf", "comma separated export formats")
	return cmd
}
