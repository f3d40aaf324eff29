package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mmcdole/trackr/internal/export"
	"github.com/spf13/cobra"
)

func newExportCmd(a *app) *cobra.Command {
	var (
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export your library",
		Long:  "Export every tracked book with its status and progress as YAML, TOML or JSON.",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.session()
			if err != nil {
				return err
			}
			if err := sess.Tracked.FetchMyLibraryBooks(cmd.Context(), nil); err != nil {
				return fmt.Errorf("load library: %w", err)
			}
			doc := export.NewDocument(sess.Tracked.GetTrackedBooks(), time.Now())

			var w io.Writer = os.Stdout
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			if err := export.Write(w, format, doc); err != nil {
				return err
			}
			if w != os.Stdout {
				fmt.Printf("✓ Exported %d books to %s\n", doc.Total, output)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", export.FormatYAML, "Export format: "+strings.Join(export.Formats, ", "))
	cmd.Flags().StringVarP(&output, "output", "o", "-", "Output file (default: stdout)")
	return cmd
}
