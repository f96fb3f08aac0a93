// Package progress 显示正在运行的总结任务及其预计耗时。
package progress

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"lecturemate/jobs"
	"lecturemate/pubsub"
	"lecturemate/tui/component/renderer"
)

const barWidth = 30

var stageLabels = map[string]string{
	"":            "準備中",
	"summary":     "要約を生成中",
	"waiting":     "レート制限回避のため待機中",
	"integration": "統合分析を生成中",
	"done":        "完了",
}

// StageLabel 返回任务阶段的显示文本
func StageLabel(stage string) string {
	if label, ok := stageLabels[stage]; ok {
		return label
	}
	return stage
}

// Model 渲染单个任务，直到任务结束
type Model struct {
	spinner spinner.Model
	styles  *renderer.MessageStyles

	task  *jobs.Task
	title string
	sub   <-chan pubsub.Event[jobs.Event]
	snap  jobs.Snapshot

	cancelling bool
	quitting   bool
}

// New 通过 broker 跟踪 task，title 显示在进度条上方
func New(ctx context.Context, task *jobs.Task, broker pubsub.Subscriber[jobs.Event], title string) Model {
	s := spinner.New()
	s.Spinner = spinner.Jump
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return Model{
		spinner: s,
		styles:  renderer.DefaultMessageStyles(),
		task:    task,
		title:   title,
		sub:     broker.Subscribe(ctx),
		snap:    task.Snapshot(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.wait())
}

func (m Model) wait() tea.Cmd {
	return func() tea.Msg {
		for {
			select {
			case evt, ok := <-m.sub:
				if !ok {
					return m.task.Snapshot()
				}
				if evt.Payload.ID == m.task.ID {
					return evt.Payload.Snapshot
				}
			case <-m.task.Done():
				return m.task.Snapshot()
			}
		}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "esc", "ctrl+c", "q":
			if !m.cancelling {
				m.cancelling = true
				m.task.Cancel()
			}
			return m, nil
		}

	case jobs.Snapshot:
		m.snap = msg
		if msg.Status != jobs.StatusRunning {
			m.quitting = true
			return m, tea.Quit
		}
		return m, m.wait()

	default:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) View() string {
	var sb strings.Builder
	sb.WriteString("\n  ")
	sb.WriteString(m.styles.Title.Render(m.title))
	sb.WriteString("\n\n")

	switch m.snap.Status {
	case jobs.StatusFinished:
		sb.WriteString("  " + m.styles.Success.Render("✅ 処理完了") + "\n")
	case jobs.StatusFailed:
		sb.WriteString("  " + m.styles.Error.Render("❌ "+m.snap.Error) + "\n")
	case jobs.StatusCancelled:
		sb.WriteString("  " + m.styles.Error.Render("⏹ キャンセルしました") + "\n")
	default:
		stage := StageLabel(m.snap.Stage)
		if m.cancelling {
			stage = "キャンセル中..."
		}
		fmt.Fprintf(&sb, "  %s %s\n\n", m.spinner.View(), m.styles.Stage.Render(stage))
		fmt.Fprintf(&sb, "  %s %3d%%\n", m.styles.Bar.Render(renderer.Bar(m.snap.Percent, barWidth)), m.snap.Percent)
		fmt.Fprintf(&sb, "  ⏱ 経過 %s / 予想 %s (残り約 %s)\n",
			renderer.FormatDuration(m.snap.Elapsed),
			renderer.FormatDuration(m.snap.Estimate),
			renderer.FormatDuration(m.snap.Remaining))
		sb.WriteString("\n  " + m.styles.System.Render("q / Esc でキャンセル") + "\n")
	}
	if m.quitting {
		sb.WriteString("\n")
	}
	return sb.String()
}

// Run 显示任务直到结束，并返回最终快照
func Run(ctx context.Context, task *jobs.Task, broker pubsub.Subscriber[jobs.Event], title string) (jobs.Snapshot, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	final, err := tea.NewProgram(New(ctx, task, broker, title), tea.WithContext(ctx)).Run()
	if err != nil {
		return task.Snapshot(), err
	}
	if m, ok := final.(Model); ok {
		return m.snap, nil
	}
	return task.Snapshot(), nil
}
