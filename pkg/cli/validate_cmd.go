package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"lake-loader/internal/app"
)

type sourceView struct {
	Bucket     string   `json:"bucket"`
	Prefix     string   `json:"prefix"`
	Partitions []string `json:"partitions"`
	TablePath  string   `json:"tablepath"`
}

func newValidateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the source configuration and list the configured sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			load, err := app.SourceLoader(opts.cfg)
			if err != nil {
				return err
			}
			snap, err := load()
			if err != nil {
				return err
			}

			views := make([]sourceView, 0, len(snap.Sources))
			for _, s := range snap.Sources {
				v := sourceView{Bucket: s.Bucket, Partitions: s.Partitions, TablePath: s.TablePath}
				if s.Prefix != nil {
					v.Prefix = s.Prefix.String()
				}
				views = append(views, v)
			}

			out := cmd.OutOrStdout()
			if getOutputFormat(cmd) == "json" {
				return printJSON(out, map[string]interface{}{"valid": true, "sources": views})
			}
			rows := make([][]string, 0, len(views))
			for _, v := range views {
				rows = append(rows, []string{v.Bucket, v.Prefix, strings.Join(v.Partitions, ","), v.TablePath})
			}
			if err := printTable(out, []string{"BUCKET", "PREFIX", "PARTITIONS", "TABLE"}, rows); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(out, "\nconfiguration is valid (%d sources)\n", len(views))
			return nil
		},
	}
}
