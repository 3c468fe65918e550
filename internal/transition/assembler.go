package transition

import "strings"

// skipSeparator 跳过标题处插入的内容
const skipSeparator = "\n\n"

// Outcome 单个边界的处理结果
type Outcome struct {
	Boundary Boundary
	Phrase   string // 规范化后的过渡语，Skip 时为空
}

// Assemble 按原顺序把片段和过渡语拼回全文
// outcomes 必须与文档边界一一对应
func Assemble(doc *Document, outcomes []Outcome) string {
	if len(doc.Fragments) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(doc.Fragments[0])
	for i, out := range outcomes {
		if i+1 >= len(doc.Fragments) {
			break
		}
		if out.Boundary.Skip {
			b.WriteString(skipSeparator)
		} else {
			b.WriteString(out.Phrase)
		}
		b.WriteString(doc.Fragments[i+1])
	}
	return b.String()
}

// Phrases 按顺序收集未跳过边界的过渡语
func Phrases(outcomes []Outcome) []string {
	phrases := make([]string, 0, len(outcomes))
	for _, out := range outcomes {
		if out.Boundary.Skip {
			continue
		}
		phrases = append(phrases, out.Phrase)
	}
	return phrases
}
