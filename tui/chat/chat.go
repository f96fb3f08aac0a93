// Package chat 实现全屏的答疑聊天界面。
package chat

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/cloudwego/eino/schema"

	"lecturemate/llm/agent"
	"lecturemate/pubsub"
	"lecturemate/tui/component"
	"lecturemate/tui/component/renderer"
)

// Options 聊天界面的配置
type Options struct {
	Category  string
	Highlight []string
}

type runErrMsg struct{ err error }

// Model 聊天界面：对话列表、状态栏和输入框
type Model struct {
	list   component.ListModel
	edit   component.EditModel
	status component.StatusModel

	runtime *agent.Runtime
	sub     <-chan pubsub.Event[*schema.Message]

	width  int
	height int
	err    error
}

// InitialModel 创建聊天界面并订阅 runtime 的消息，直到 ctx 结束
func InitialModel(ctx context.Context, runtime *agent.Runtime, opts Options) Model {
	sub := runtime.Broker().Subscribe(ctx)

	header := fmt.Sprintf("📂 %s: 資料が読み込まれていません", opts.Category)
	if runtime.HasCorpus() {
		header = fmt.Sprintf("📂 %s: %d件の資料 (%s)", opts.Category, len(runtime.Sources()), renderer.SourceList(runtime.Sources(), 3))
	}

	return Model{
		list:    component.NewListModel(header, opts.Highlight),
		edit:    component.NewEditModel(),
		status:  component.NewStatusModel(""),
		runtime: runtime,
		sub:     sub,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.list.Init(),
		m.edit.Init(),
		m.status.Init(),
		m.waitForMessage(),
	)
}

func (m Model) waitForMessage() tea.Cmd {
	return func() tea.Msg {
		event, ok := <-m.sub
		if !ok {
			return nil
		}
		return event
	}
}

func (m Model) ask(question string) tea.Cmd {
	return func() tea.Msg {
		if err := m.runtime.Run(question); err != nil {
			return runErrMsg{err: err}
		}
		return nil
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()

	case component.EditorSubmitMsg:
		m.err = nil
		cmds = append(cmds, m.ask(msg.Value))

	case runErrMsg:
		m.err = msg.err
		m.status.SetText("⚠️ " + msg.err.Error())

	case pubsub.Event[*schema.Message]:
		cmds = append(cmds, m.waitForMessage())

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd

	m.list, cmd = m.list.Update(msg)
	cmds = append(cmds, cmd)

	m.edit, cmd = m.edit.Update(msg)
	cmds = append(cmds, cmd)

	m.status, cmd = m.status.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *Model) layout() {
	statusHeight := lipgloss.Height(m.status.View())
	editHeight := m.edit.Height()

	m.list.SetSize(m.width, m.height-statusHeight-editHeight)
	m.edit.SetWidth(m.width)
	m.status.SetWidth(m.width)
}

func (m Model) View() string {
	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.list.View(),
		m.status.View(),
		m.edit.View(),
	)
}

// Run 启动聊天界面，直到用户退出
func Run(ctx context.Context, runtime *agent.Runtime, opts Options) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(InitialModel(ctx, runtime, opts), tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
