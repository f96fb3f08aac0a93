package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"lecturemate/service"
)

func newSourceCommands(ctx *commandContext) []*cobra.Command {
	var limit int
	searchCmd := &cobra.Command{
		Use:   "search <query...>",
		Short: "Search the web",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd, func(svc *service.Service) error {
				results, err := svc.Search(cmd.Context(), strings.Join(args, " "), limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, r := range results {
					fmt.Fprintf(out, "%d. %s\n   %s\n", r.Position, r.Title, r.Link)
					if r.Snippet != "" {
						fmt.Fprintf(out, "   %s\n", r.Snippet)
					}
				}
				return nil
			})
		},
	}
	searchCmd.Flags().IntVarP(&limit, "limit", "n", 5, "Maximum number of results")

	fetchCmd := &cobra.Command{
		Use:   "fetch <url>",
		Short: "Print a web page as Markdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd, func(svc *service.Service) error {
				content, err := svc.Fetch(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), content)
				return nil
			})
		},
	}

	rssCmd := &cobra.Command{
		Use:   "rss <url>",
		Short: "List the entries of a feed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd, func(svc *service.Service) error {
				entries, err := svc.RSS(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, e := range entries {
					fmt.Fprintf(out, "- %s\n  %s\n", e.Title, e.Link)
					if e.Summary != "" {
						fmt.Fprintf(out, "  %s\n", e.Summary)
					}
				}
				return nil
			})
		},
	}

	return []*cobra.Command{fetchCmd, searchCmd, rssCmd}
}
