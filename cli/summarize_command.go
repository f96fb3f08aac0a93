package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"lecturemate/export"
	"lecturemate/ingest"
	"lecturemate/jobs"
	"lecturemate/llm"
	"lecturemate/logging"
	"lecturemate/pubsub"
	"lecturemate/service"
	"lecturemate/tui/component/renderer"
	"lecturemate/tui/progress"
)

func newSummarizeCommand(ctx *commandContext) *cobra.Command {
	var (
		backend  backendFlags
		extras   ingest.Extras
		format   string
		outDir   string
		plain    bool
		noExport bool
	)

	cmd := &cobra.Command{
		Use:   "summarize <category> [files...]",
		Short: "Add files to a category and summarize everything stored in it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			uploads, done, err := openUploads(args[1:])
			if err != nil {
				return err
			}
			defer done()

			return ctx.withService(cmd, func(svc *service.Service) error {
				out := cmd.OutOrStdout()
				task, res, err := svc.StartSummary(cmd.Context(), service.SummaryRequest{
					Category: args[0],
					Uploads:  uploads,
					Extras:   extras,
					Backend:  backend.backend(),
				})
				printIngest(out, res)
				if err != nil {
					return err
				}

				snap, err := followJob(cmd.Context(), out, task, svc.Jobs().Broker(), args[0], plain)
				if err != nil {
					return err
				}
				result, err := task.Result()
				if snap.Status == jobs.StatusCancelled || errors.Is(err, context.Canceled) {
					fmt.Fprintln(out, "⏹ キャンセルしました")
					return nil
				}
				if err != nil {
					return err
				}
				printSummary(out, result)

				if noExport {
					return nil
				}
				data, name, err := svc.Export(cmd.Context(), args[0], "", f)
				if err != nil {
					return fmt.Errorf("export: %w", err)
				}
				return writeExport(out, outDir, name, data)
			})
		},
	}

	addBackendFlags(cmd, &backend)
	cmd.Flags().StringVar(&extras.URL, "url", "", "Also read this web page")
	cmd.Flags().StringVar(&extras.RSS, "rss", "", "Also read the latest entries of this feed")
	cmd.Flags().StringVar(&extras.Search, "search", "", "Also read the top web search results for this query")
	cmd.Flags().StringVar(&format, "format", "md", "Report format: md, html or pdf")
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "Directory for the report")
	cmd.Flags().BoolVar(&noExport, "no-export", false, "Do not write a report file")
	cmd.Flags().BoolVar(&plain, "plain", false, "Print progress lines instead of the interactive view")
	return cmd
}

// followJob shows task progress until it ends.
func followJob(ctx context.Context, out io.Writer, task *jobs.Task, broker *pubsub.Broker[jobs.Event], title string, plain bool) (jobs.Snapshot, error) {
	if !plain && isTerminal(out) {
		logging.Discard()
		return progress.Run(ctx, task, broker, "📚 "+title)
	}

	sub := broker.Subscribe(ctx)
	stage := "-"
	report := func(s jobs.Snapshot) {
		if s.Stage == stage || s.Status != jobs.StatusRunning {
			return
		}
		stage = s.Stage
		fmt.Fprintf(out, "⏳ %s (残り約 %s)\n", progress.StageLabel(s.Stage), renderer.FormatDuration(s.Remaining))
	}
	report(task.Snapshot())

	for {
		select {
		case <-ctx.Done():
			task.Cancel()
			<-task.Done()
			return task.Snapshot(), nil
		case <-task.Done():
			return task.Snapshot(), nil
		case evt, ok := <-sub:
			if !ok {
				<-task.Done()
				return task.Snapshot(), nil
			}
			if evt.Payload.ID == task.ID {
				report(evt.Payload.Snapshot)
			}
		}
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func printIngest(out io.Writer, res ingest.Result) {
	for _, l := range res.Loaded {
		fmt.Fprintln(out, l.Message())
	}
	for _, p := range res.Problems {
		fmt.Fprintf(out, "❌ %s\n", p)
	}
	if res.Total > 0 || len(res.Problems) > 0 {
		fmt.Fprintln(out, res.Report())
	}
}

func printSummary(out io.Writer, res llm.SummaryResult) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, "## 📚 講義まとめ")
	fmt.Fprintln(out)
	fmt.Fprintln(out, strings.TrimSpace(res.Summary))
	fmt.Fprintln(out)
	fmt.Fprintln(out, "## 🎯 統合分析")
	fmt.Fprintln(out)
	fmt.Fprintln(out, strings.TrimSpace(res.Integration))
}

func writeExport(out io.Writer, dir, name string, data []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory %q: %w", dir, err)
	}
	target := filepath.Join(dir, name)
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	fmt.Fprintf(out, "💾 %s\n", target)
	return nil
}
