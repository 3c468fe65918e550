package transition

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSegmentCounts 标记数量与片段数量的关系
func TestSegmentCounts(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		count int
	}{
		{"no marker", "Aucun marqueur ici.", 0},
		{"one marker", "A.\nTRANSITION\nB.", 1},
		{"three markers", "A TRANSITION B TRANSITION C TRANSITION D", 3},
		{"adjacent markers", "TRANSITIONTRANSITION", 2},
		{"empty text", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := Segment(tt.text, DefaultMarker)
			assert.Equal(t, tt.count, doc.BoundaryCount())
			assert.Len(t, doc.Fragments, tt.count+1)
			assert.Len(t, doc.Boundaries(DefaultSkipHeader), tt.count)
			assert.Equal(t, tt.count > 0, doc.HasBoundaries())
		})
	}
}

// TestSegmentLiteralMarker 标记按字面匹配
func TestSegmentLiteralMarker(t *testing.T) {
	doc := Segment("a.b [X] c.d [X] e", "[X]")
	assert.Equal(t, 2, doc.BoundaryCount())
	assert.Equal(t, "a.b ", doc.Fragments[0])

	// 小写不算标记
	doc = Segment("transition Transition", DefaultMarker)
	assert.Equal(t, 0, doc.BoundaryCount())

	// 空标记回退到默认值
	doc = Segment("x TRANSITION y", "")
	assert.Equal(t, DefaultMarker, doc.Marker)
	assert.Equal(t, 1, doc.BoundaryCount())
}

// TestContextExtraction 上下文只取相邻的一行
func TestContextExtraction(t *testing.T) {
	text := "Titre\n\nPremier paragraphe.\nDernière phrase avant.  \n\nTRANSITION\n\n  Première phrase après.\nSuite du texte."
	doc := Segment(text, DefaultMarker)
	boundaries := doc.Boundaries(DefaultSkipHeader)
	require.Len(t, boundaries, 1)

	b := boundaries[0]
	assert.Equal(t, "Dernière phrase avant.", b.LeftContext)
	assert.Equal(t, "Première phrase après.", b.RightContext)
	assert.True(t, b.IsLast)
	assert.False(t, b.Skip)
}

// TestContextExtractionEdges 空片段和空白片段
func TestContextExtractionEdges(t *testing.T) {
	assert.Equal(t, "", TailLine(""))
	assert.Equal(t, "", TailLine(" \n\t "))
	assert.Equal(t, "", HeadLine(""))
	assert.Equal(t, "", HeadLine("\n\n"))
	assert.Equal(t, "  retrait", TailLine("ligne\n  retrait"))
	assert.Equal(t, "tête ", HeadLine("\n tête \nreste"))
}

// TestBoundaryIsLast 只有最后一个边界标记为 IsLast
func TestBoundaryIsLast(t *testing.T) {
	doc := Segment("a TRANSITION b TRANSITION c TRANSITION d", DefaultMarker)
	boundaries := doc.Boundaries("")
	require.Len(t, boundaries, 3)
	for i, b := range boundaries {
		assert.Equal(t, i, b.Index)
		assert.Equal(t, i == 2, b.IsLast)
	}
}

// TestBoundaryIsLastIgnoresSkipped 跳过的边界不参与最后边界的判断
func TestBoundaryIsLastIgnoresSkipped(t *testing.T) {
	text := "Intro.\nTRANSITION\nTout change.\n" + DefaultSkipHeader + "\nTRANSITION\nFin."
	boundaries := Segment(text, DefaultMarker).Boundaries(DefaultSkipHeader)
	require.Len(t, boundaries, 2)

	assert.True(t, boundaries[0].IsLast)
	assert.False(t, boundaries[0].Skip)
	assert.False(t, boundaries[1].IsLast)
	assert.True(t, boundaries[1].Skip)

	// 全部跳过时没有最后边界
	only := Segment(DefaultSkipHeader+"\nTRANSITION\nFin.", DefaultMarker).Boundaries(DefaultSkipHeader)
	require.Len(t, only, 1)
	assert.False(t, only[0].IsLast)
}

// TestBoundarySkipHeader 前文等于跳过标题时标记 Skip
func TestBoundarySkipHeader(t *testing.T) {
	text := "Intro.\n" + DefaultSkipHeader + "\nTRANSITION\nLe marché reprend."
	doc := Segment(text, DefaultMarker)

	boundaries := doc.Boundaries(DefaultSkipHeader)
	require.Len(t, boundaries, 1)
	assert.True(t, boundaries[0].Skip)

	// 关闭跳过
	boundaries = doc.Boundaries("")
	assert.False(t, boundaries[0].Skip)

	// 必须完全相等
	doc = Segment(strings.ToLower(DefaultSkipHeader)+"\nTRANSITION\nx", DefaultMarker)
	assert.False(t, doc.Boundaries(DefaultSkipHeader)[0].Skip)
}
