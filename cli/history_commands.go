package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"lecturemate/export"
	"lecturemate/service"
)

const defaultHistoryLimit = 5

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent summaries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd, func(svc *service.Service) error {
				entries, err := svc.History().Recent(cmd.Context(), limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(entries) == 0 {
					fmt.Fprintln(out, "履歴がありません")
					return nil
				}
				for _, e := range entries {
					fmt.Fprintf(out, "%s  [%s]\n", e.Label(), e.ID)
					for _, s := range e.Preview() {
						fmt.Fprintf(out, "   - %s\n", s)
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", defaultHistoryLimit, "Number of entries; 0 shows all")
	return cmd
}

func newExportCommand(ctx *commandContext) *cobra.Command {
	var (
		format string
		id     string
		outDir string
	)

	cmd := &cobra.Command{
		Use:   "export [category]",
		Short: "Write a stored summary as Markdown, HTML or PDF",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			var category string
			if len(args) == 1 {
				category = args[0]
			}
			if category == "" && id == "" {
				return fmt.Errorf("give a category or --id")
			}
			return ctx.withService(cmd, func(svc *service.Service) error {
				data, name, err := svc.Export(cmd.Context(), category, id, f)
				if err != nil {
					return err
				}
				return writeExport(cmd.OutOrStdout(), outDir, name, data)
			})
		},
	}

	cmd.Flags().StringVar(&format, "format", "md", "Report format: md, html or pdf")
	cmd.Flags().StringVar(&id, "id", "", "History entry ID instead of the latest summary")
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "Directory for the report")
	return cmd
}
