package renderer

import (
	"github.com/charmbracelet/lipgloss"
)

// MessageStyles 定义各角色消息的样式
type MessageStyles struct {
	User      lipgloss.Style
	Assistant lipgloss.Style
	System    lipgloss.Style

	// 进度视图
	Title   lipgloss.Style
	Stage   lipgloss.Style
	Bar     lipgloss.Style
	Success lipgloss.Style
	Error   lipgloss.Style
}

func DefaultMessageStyles() *MessageStyles {
	return &MessageStyles{
		User:      lipgloss.NewStyle().Foreground(lipgloss.Color("#7dcfff")).Bold(true),
		Assistant: lipgloss.NewStyle().Foreground(lipgloss.Color("#bb9af7")).Bold(true),
		System:    lipgloss.NewStyle().Foreground(lipgloss.Color("#565f89")).Italic(true),
		Title:     lipgloss.NewStyle().Foreground(lipgloss.Color("#e0af68")).Bold(true),
		Stage:     lipgloss.NewStyle().Foreground(lipgloss.Color("#9ece6a")),
		Bar:       lipgloss.NewStyle().Foreground(lipgloss.Color("205")),
		Success:   lipgloss.NewStyle().Foreground(lipgloss.Color("#9ece6a")).Bold(true),
		Error:     lipgloss.NewStyle().Foreground(lipgloss.Color("#f7768e")).Bold(true),
	}
}
