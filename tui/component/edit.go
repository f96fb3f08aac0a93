package component

import (
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// QuestionCharLimit 单个问题的最大字符数
const QuestionCharLimit = 2000

// EditorSubmitMsg 自定义消息：用户提交问题
type EditorSubmitMsg struct {
	Value string
}

// EditModel 封装问题输入框组件，上下键可调出之前的问题
type EditModel struct {
	textarea textarea.Model
	width    int

	history []string
	cursor  int
}

func NewEditModel() EditModel {
	ta := textarea.New()
	ta.Placeholder = "質問を入力... (Esc で終了)"
	ta.Focus()

	ta.Prompt = "> "
	ta.CharLimit = QuestionCharLimit

	ta.SetWidth(30)
	ta.SetHeight(1)
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.ShowLineNumbers = false

	// 禁用换行，Enter 用于提交
	ta.KeyMap.InsertNewline.SetEnabled(false)

	return EditModel{
		textarea: ta,
		width:    30,
	}
}

func (m EditModel) Init() tea.Cmd {
	return textarea.Blink
}

func (m EditModel) Update(msg tea.Msg) (EditModel, tea.Cmd) {
	var cmd tea.Cmd

	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyEnter:
			value := strings.TrimSpace(m.textarea.Value())
			if value == "" {
				return m, nil
			}
			m.textarea.Reset()
			m.history = append(m.history, value)
			m.cursor = len(m.history)
			return m, func() tea.Msg {
				return EditorSubmitMsg{Value: value}
			}
		case tea.KeyUp:
			if m.cursor > 0 {
				m.cursor--
				m.textarea.SetValue(m.history[m.cursor])
			}
			return m, nil
		case tea.KeyDown:
			if m.cursor < len(m.history)-1 {
				m.cursor++
				m.textarea.SetValue(m.history[m.cursor])
			} else {
				m.cursor = len(m.history)
				m.textarea.Reset()
			}
			return m, nil
		}
	}

	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

func (m *EditModel) View() string {
	return m.textarea.View()
}

func (m *EditModel) SetWidth(width int) {
	m.width = width
	m.textarea.SetWidth(width)
}

func (m *EditModel) Focus() tea.Cmd {
	return m.textarea.Focus()
}

func (m *EditModel) Blur() {
	m.textarea.Blur()
}

func (m *EditModel) Height() int {
	return m.textarea.Height()
}
