package renderer

import (
	"fmt"
	"strings"
	"time"
)

// Truncate 将 s 截断为 maxLen 个字符，并以省略号结尾
func Truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen < 1 {
		return ""
	}
	return string(runes[:maxLen-1]) + "…"
}

// FormatDuration 将 d 格式化为分和秒
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%d秒", int(d.Seconds()))
	}
	return fmt.Sprintf("%d分%02d秒", int(d.Minutes()), int(d.Seconds())%60)
}

// Bar 渲染宽度为 width 的文本进度条，pct 取值 [0,100]
func Bar(pct, width int) string {
	if width < 1 {
		return ""
	}
	pct = max(0, min(100, pct))
	filled := pct * width / 100
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// SourceList 最多列出 n 个来源，其余的只显示数量
func SourceList(sources []string, n int) string {
	if len(sources) == 0 {
		return ""
	}
	shown := sources
	if len(shown) > n {
		shown = shown[:n]
	}
	out := make([]string, 0, len(shown))
	for _, s := range shown {
		out = append(out, Truncate(s, 40))
	}
	text := strings.Join(out, ", ")
	if rest := len(sources) - len(shown); rest > 0 {
		text += fmt.Sprintf(" (+%d)", rest)
	}
	return text
}
