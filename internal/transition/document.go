package transition

import (
	"strings"
	"unicode"
)

const (
	// DefaultMarker 文档中的占位标记
	DefaultMarker = "TRANSITION"
	// DefaultSkipHeader 遇到该标题时不生成过渡语，直接换行
	DefaultSkipHeader = "A savoir également dans votre département"
	// ErrorSentinel 生成失败时的占位过渡语
	ErrorSentinel = "[ERROR]"
)

// Document 按标记切分后的文档
// Fragments 数量恒等于边界数量+1，切分后不再修改
type Document struct {
	Fragments []string // 标记之间的原文片段
	Marker    string   // 切分使用的标记
}

// Boundary 单个标记位置
type Boundary struct {
	Index        int    // 边界序号，从0开始
	LeftContext  string // 前一片段的最后一行
	RightContext string // 后一片段的第一行
	IsLast       bool   // 是否为最后一个需要生成的边界，跳过的边界不参与计算
	Skip         bool   // 是否命中跳过标题，不调用生成服务
}

// Segment 按字面标记切分文档，不做正则匹配或转义
func Segment(text, marker string) *Document {
	if marker == "" {
		marker = DefaultMarker
	}
	return &Document{
		Fragments: strings.Split(text, marker),
		Marker:    marker,
	}
}

// BoundaryCount 返回标记出现次数
func (d *Document) BoundaryCount() int {
	return len(d.Fragments) - 1
}

// HasBoundaries 文档中是否至少有一个标记
func (d *Document) HasBoundaries() bool {
	return d.BoundaryCount() > 0
}

// Boundaries 提取所有边界的上下文
// skipHeader 为空时不做跳过判断
func (d *Document) Boundaries(skipHeader string) []Boundary {
	count := d.BoundaryCount()
	if count <= 0 {
		return []Boundary{}
	}

	boundaries := make([]Boundary, count)
	last := -1
	for i := 0; i < count; i++ {
		left := TailLine(d.Fragments[i])
		boundaries[i] = Boundary{
			Index:        i,
			LeftContext:  left,
			RightContext: HeadLine(d.Fragments[i+1]),
			Skip:         skipHeader != "" && left == skipHeader,
		}
		if !boundaries[i].Skip {
			last = i
		}
	}
	if last >= 0 {
		boundaries[last].IsLast = true
	}
	return boundaries
}

// TailLine 去掉首尾空白后取最后一行
func TailLine(fragment string) string {
	lines := strings.Split(strings.TrimSpace(fragment), "\n")
	return lines[len(lines)-1]
}

// HeadLine 去掉开头空白后取第一行
func HeadLine(fragment string) string {
	trimmed := strings.TrimLeftFunc(fragment, unicode.IsSpace)
	head, _, _ := strings.Cut(trimmed, "\n")
	return head
}
