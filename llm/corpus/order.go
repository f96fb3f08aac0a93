package corpus

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/width"

	"lecturemate/llm"
)

// contentProbeLen is how many leading runes of content are searched when the
// filename carries no lecture number.
const contentProbeLen = 500

// lecturePatterns are tried in priority order; each captures the number in group 1.
var lecturePatterns = []*regexp.Regexp{
	regexp.MustCompile(`第(\d+)回`),
	regexp.MustCompile(`第(\d+)講`),
	regexp.MustCompile(`lecture[\s_-]*(\d+)`),
	regexp.MustCompile(`lec[\s_-]*(\d+)`),
	regexp.MustCompile(`class[\s_-]*(\d+)`),
	regexp.MustCompile(`week[\s_-]*(\d+)`),
	regexp.MustCompile(`(\d+)回目`),
	regexp.MustCompile(`(\d+)[\s_-]*(?:st|nd|rd|th)`),
	regexp.MustCompile(`^(\d+)[\s_\-.]`),
}

// InferOrder guesses the lecture number of a file from its name, falling back to
// the first 500 characters of its content. Full-width digits and spaces count
// like their ASCII forms. It returns llm.UnorderedLecture when nothing matches.
func InferOrder(filename, content string) int {
	if n, ok := matchLecture(strings.ToLower(width.Fold.String(filename))); ok {
		return n
	}
	if content != "" {
		if n, ok := matchLecture(width.Fold.String(head(content, contentProbeLen))); ok {
			return n
		}
	}
	return llm.UnorderedLecture
}

func matchLecture(s string) (int, bool) {
	for _, re := range lecturePatterns {
		m := re.FindStringSubmatch(s)
		if len(m) < 2 {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		return n, true
	}
	return 0, false
}

// head returns the first n runes of s.
func head(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// Order annotates items with their inferred lecture number and raw index, then
// sorts them by (Order, OriginalIndex). Items are never dropped.
func Order(items []llm.SourceItem) []llm.OrderedSourceItem {
	ordered := make([]llm.OrderedSourceItem, len(items))
	for i, item := range items {
		ordered[i] = llm.OrderedSourceItem{
			SourceItem:    item,
			Order:         InferOrder(item.Source, item.Content),
			OriginalIndex: i,
		}
	}
	SortOrdered(ordered)
	return ordered
}

// SortOrdered sorts in place by (Order, OriginalIndex).
func SortOrdered(items []llm.OrderedSourceItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Order != items[j].Order {
			return items[i].Order < items[j].Order
		}
		return items[i].OriginalIndex < items[j].OriginalIndex
	})
}

// Plain strips the ordering annotations.
func Plain(items []llm.OrderedSourceItem) []llm.SourceItem {
	out := make([]llm.SourceItem, len(items))
	for i, item := range items {
		out[i] = item.SourceItem
	}
	return out
}

// OrderLabel renders an inferred order for listings.
func OrderLabel(order int) string {
	if order == llm.UnorderedLecture {
		return "順序不明"
	}
	return "第" + strconv.Itoa(order) + "回"
}
