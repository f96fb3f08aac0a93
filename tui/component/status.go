package component

import (
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/cloudwego/eino/schema"

	"lecturemate/pubsub"
)

const (
	idleText    = "Ready"
	workingText = "回答を生成中..."
)

// StatusModel 封装状态显示组件（spinner + 状态文本）
type StatusModel struct {
	spinner spinner.Model
	running bool
	text    string
	idle    string
	width   int
}

// NewStatusModel 创建新的状态组件，空闲时显示 idle
func NewStatusModel(idle string) StatusModel {
	s := spinner.New()
	s.Spinner = spinner.Jump
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	if idle == "" {
		idle = idleText
	}
	return StatusModel{
		spinner: s,
		text:    idle,
		idle:    idle,
	}
}

func (m StatusModel) Init() tea.Cmd {
	return nil
}

func (m StatusModel) Update(msg tea.Msg) (StatusModel, tea.Cmd) {
	if evt, ok := msg.(pubsub.Event[*schema.Message]); ok && evt.Payload != nil {
		switch evt.Payload.Role {
		case schema.User:
			// 用户提问，启动 spinner
			if !m.running {
				m.running = true
				m.text = workingText
				return m, m.spinner.Tick
			}
		case schema.Assistant:
			// 回答完成，停止 spinner
			m.running = false
			m.text = m.idle
			return m, nil
		}
	}

	// Spinner 动画帧更新
	if m.running {
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m StatusModel) View() string {
	style := lipgloss.NewStyle().Padding(1, 0)
	content := m.text
	if m.running {
		content = fmt.Sprintf("%s %s", m.spinner.View(), m.text)
	}
	if m.width > 0 {
		style = style.MaxWidth(m.width)
	}
	return style.Render(content)
}

// SetText 设置状态文本，直到下一个事件到来
func (m *StatusModel) SetText(text string) {
	m.text = text
}

// SetWidth 设置组件宽度
func (m *StatusModel) SetWidth(width int) {
	m.width = width
}

// IsRunning 返回 spinner 是否在运行
func (m StatusModel) IsRunning() bool {
	return m.running
}
