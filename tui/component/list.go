package component

import (
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/cloudwego/eino/schema"

	"lecturemate/pubsub"
	"lecturemate/tui/component/renderer"
)

// ListModel 封装消息列表组件（对话内容 + viewport）
type ListModel struct {
	viewport viewport.Model
	messages []*schema.Message
	width    int
	height   int
	ready    bool

	renderer *renderer.MessageRenderer
}

// NewListModel 创建消息列表组件，收到第一条消息前在欢迎语上方显示 header
func NewListModel(header string, highlight []string) ListModel {
	msgRenderer := renderer.NewMessageRenderer(nil)
	msgRenderer.SetHeader(header)
	msgRenderer.SetHighlight(highlight)

	vp := viewport.New(30, 30)
	vp.SetContent(msgRenderer.RenderMessages(nil))

	return ListModel{
		viewport: vp,
		messages: make([]*schema.Message, 0),
		renderer: msgRenderer,
		width:    30,
		height:   5,
		ready:    true,
	}
}

func (m ListModel) Init() tea.Cmd {
	return nil
}

func (m ListModel) Update(msg tea.Msg) (ListModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.MouseMsg:
		switch msg.Button {
		case tea.MouseButtonWheelUp:
			m.viewport.ScrollUp(3)
		case tea.MouseButtonWheelDown:
			m.viewport.ScrollDown(3)
		}
	case pubsub.Event[*schema.Message]:
		if msg.Type == pubsub.CreatedEvent && msg.Payload != nil {
			m.messages = append(m.messages, msg.Payload)
			m.updateViewportContent()
			m.viewport.GotoBottom()
		}
		return m, nil
	}

	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m ListModel) View() string {
	if !m.ready {
		return "Initializing..."
	}
	return m.viewport.View()
}

// Messages 返回当前已显示的消息
func (m ListModel) Messages() []*schema.Message { return m.messages }

func (m *ListModel) SetSize(width, height int) {
	m.width = width
	m.height = height

	if height < 1 {
		height = 1
	}

	m.viewport.Width = width
	m.viewport.Height = height
	m.ready = true

	m.renderer.SetViewportWidth(width)
	m.updateViewportContent()
	m.viewport.GotoBottom()
}

func (m *ListModel) updateViewportContent() {
	m.viewport.SetContent(m.renderer.RenderMessages(m.messages))
}
