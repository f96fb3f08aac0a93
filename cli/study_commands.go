package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"lecturemate/export"
	"lecturemate/ingest"
	"lecturemate/llm"
	"lecturemate/logging"
	"lecturemate/service"
	"lecturemate/tui/chat"
	"lecturemate/web"
)

func newAddCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add <category> <files...>",
		Short: "Store lecture files in a category",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			uploads, done, err := openUploads(args[1:])
			if err != nil {
				return err
			}
			defer done()

			return ctx.withService(cmd, func(svc *service.Service) error {
				res, err := svc.Ingest(cmd.Context(), args[0], uploads, ingest.Extras{})
				printIngest(cmd.OutOrStdout(), res)
				if errors.Is(err, llm.ErrEmptyCorpus) {
					return nil
				}
				return err
			})
		},
	}
}

func newExtractCommand(ctx *commandContext) *cobra.Command {
	var highlight []string

	cmd := &cobra.Command{
		Use:   "extract <category>",
		Short: "Print the text extracted from a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd, func(svc *service.Service) error {
				text, res, err := svc.ExtractedText(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				printIngest(cmd.ErrOrStderr(), res)
				if len(highlight) > 0 {
					text = export.Highlight(text, highlight)
				}
				fmt.Fprintln(out, strings.TrimLeft(text, "\n"))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&highlight, "highlight", nil, "Keywords to mark in bold")
	return cmd
}

func newAskCommand(ctx *commandContext) *cobra.Command {
	var backend backendFlags

	cmd := &cobra.Command{
		Use:   "ask <category> <question...>",
		Short: "Ask the tutor one question about a category",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args[1:], " ")
			return ctx.withService(cmd, func(svc *service.Service) error {
				answer, _, err := svc.Ask(cmd.Context(), args[0], question, backend.backend())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), answer)
				return nil
			})
		},
	}

	addBackendFlags(cmd, &backend)
	return cmd
}

func newChatCommand(ctx *commandContext) *cobra.Command {
	var (
		backend   backendFlags
		highlight []string
	)

	cmd := &cobra.Command{
		Use:   "chat <category>",
		Short: "Open an interactive tutor chat over a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd, func(svc *service.Service) error {
				runtime, err := svc.Chat(cmd.Context(), args[0], backend.backend())
				if err != nil {
					return err
				}
				defer runtime.Close()

				logging.Discard()
				return chat.Run(cmd.Context(), runtime, chat.Options{Category: args[0], Highlight: highlight})
			})
		},
	}

	addBackendFlags(cmd, &backend)
	cmd.Flags().StringSliceVar(&highlight, "highlight", nil, "Keywords to mark in answers")
	return cmd
}

func newRecommendCommand(ctx *commandContext) *cobra.Command {
	var (
		backend backendFlags
		summary string
	)

	cmd := &cobra.Command{
		Use:   "recommend [category]",
		Short: "Suggest further reading for the latest summary of a category",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && strings.TrimSpace(summary) == "" {
				return errors.New("give a category or --summary")
			}
			return ctx.withService(cmd, func(svc *service.Service) error {
				results, err := func() ([]web.SearchResult, error) {
					if strings.TrimSpace(summary) != "" {
						return svc.RecommendFor(cmd.Context(), summary, backend.backend())
					}
					return svc.Recommend(cmd.Context(), args[0], backend.backend())
				}()
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if len(results) == 0 {
					fmt.Fprintln(out, "おすすめの資料が見つかりませんでした。")
					return nil
				}
				for i, r := range results {
					fmt.Fprintf(out, "%d. %s\n   %s\n", i+1, r.Title, r.Link)
					if r.Snippet != "" {
						fmt.Fprintf(out, "   %s\n", r.Snippet)
					}
				}
				return nil
			})
		},
	}

	addBackendFlags(cmd, &backend)
	cmd.Flags().StringVar(&summary, "summary", "", "Recommend for this text instead of a stored summary")
	return cmd
}
