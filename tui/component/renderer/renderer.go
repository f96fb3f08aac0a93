package renderer

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/cloudwego/eino/schema"

	"lecturemate/export"
)

const welcome = "講義資料について質問してください。\nType a question and press Enter to send."

// MessageRenderer 负责渲染聊天消息，除最后一条外都会缓存
type MessageRenderer struct {
	markdownRenderer *glamour.TermRenderer
	styles           *MessageStyles
	highlight        []string
	header           string
	renderedCache    []string
	viewportWidth    int
}

// NewMessageRenderer 创建渲染器，styles 为 nil 时使用默认样式
func NewMessageRenderer(styles *MessageStyles) *MessageRenderer {
	if styles == nil {
		styles = DefaultMessageStyles()
	}

	// 使用 dracula 主题，换行交给 viewport 处理
	markdownRenderer, _ := glamour.NewTermRenderer(
		glamour.WithStylePath("dracula"),
		glamour.WithWordWrap(0),
	)
	return &MessageRenderer{
		markdownRenderer: markdownRenderer,
		styles:           styles,
		renderedCache:    make([]string, 0),
	}
}

// SetHighlight 设置回答中需要加粗的关键词
func (r *MessageRenderer) SetHighlight(keywords []string) {
	r.highlight = keywords
	r.renderedCache = r.renderedCache[:0]
}

// SetHeader 设置欢迎语上方显示的文本
func (r *MessageRenderer) SetHeader(header string) {
	r.header = header
}

func (r *MessageRenderer) SetViewportWidth(width int) {
	r.viewportWidth = width
}

// RenderMessages 渲染整个对话
func (r *MessageRenderer) RenderMessages(messages []*schema.Message) string {
	if len(messages) == 0 {
		if r.header != "" {
			return r.styles.System.Render(r.header) + "\n\n" + welcome
		}
		return welcome
	}

	if len(messages) < len(r.renderedCache) {
		r.renderedCache = r.renderedCache[:0]
	}
	for i := len(r.renderedCache); i < len(messages)-1; i++ {
		r.renderedCache = append(r.renderedCache, r.RenderMessage(messages[i]))
	}

	var sb strings.Builder
	for _, cached := range r.renderedCache {
		if cached != "" {
			sb.WriteString(cached)
			sb.WriteString("\n\n")
		}
	}
	sb.WriteString(r.RenderMessage(messages[len(messages)-1]))

	content := sb.String()
	if r.viewportWidth > 0 {
		return lipgloss.NewStyle().Width(r.viewportWidth).Render(content)
	}
	return content
}

func (r *MessageRenderer) RenderMessage(msg *schema.Message) string {
	if msg == nil {
		return ""
	}
	switch msg.Role {
	case schema.User:
		return r.renderUserMessage(msg)
	case schema.Assistant:
		return r.renderAssistantMessage(msg)
	case schema.System:
		return r.renderSystemMessage(msg)
	}
	return ""
}

func (r *MessageRenderer) renderMarkdown(content string) string {
	if r.markdownRenderer == nil {
		return content
	}
	rendered, err := r.markdownRenderer.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimSpace(rendered)
}

func (r *MessageRenderer) renderUserMessage(msg *schema.Message) string {
	if msg.Content == "" {
		return ""
	}
	return r.styles.User.Render("You:") + " " + msg.Content
}

func (r *MessageRenderer) renderAssistantMessage(msg *schema.Message) string {
	if msg.Content == "" {
		return ""
	}
	content := msg.Content
	if len(r.highlight) > 0 {
		content = export.Highlight(content, r.highlight)
	}
	return r.styles.Assistant.Render("Tutor:") + "\n" + r.renderMarkdown(content)
}

func (r *MessageRenderer) renderSystemMessage(msg *schema.Message) string {
	if msg.Content == "" {
		return ""
	}
	return r.styles.System.Render("System: " + msg.Content)
}
