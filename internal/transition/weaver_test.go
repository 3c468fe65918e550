package transition

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedSource 按调用顺序返回预设结果
type scriptedSource struct {
	replies []string
	errs    []error
	calls   [][2]string
}

func (s *scriptedSource) Generate(_ context.Context, left, right string) (string, error) {
	i := len(s.calls)
	s.calls = append(s.calls, [2]string{left, right})
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	if err != nil {
		return "", err
	}
	if i < len(s.replies) {
		return s.replies[i], nil
	}
	return "", nil
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// TestWeaveEndToEnd 单个标记的完整流程
func TestWeaveEndToEnd(t *testing.T) {
	source := &scriptedSource{replies: []string{"Dans la foulée, la"}}
	w := NewWeaver(source, WithLogger(quietLogger()))

	res, err := w.Weave(context.Background(), "Les pompiers sont intervenus.\nTRANSITION\nLa mairie a réagi.")
	require.NoError(t, err)

	assert.Equal(t, []string{"Dans la foulée, la"}, res.Phrases)
	assert.Equal(t, "Les pompiers sont intervenus.\nDans la foulée, la\nLa mairie a réagi.", res.Text)
	assert.Equal(t, 1, res.Boundaries)
	assert.Empty(t, res.Failures)

	require.Len(t, source.calls, 1)
	assert.Equal(t, "Les pompiers sont intervenus.", source.calls[0][0])
	assert.Equal(t, "La mairie a réagi.", source.calls[0][1])
}

// TestWeaveNoMarker 没有标记时不调用生成服务
func TestWeaveNoMarker(t *testing.T) {
	source := &scriptedSource{}
	w := NewWeaver(source, WithLogger(quietLogger()))

	res, err := w.Weave(context.Background(), "Rien à remplacer.")
	assert.ErrorIs(t, err, ErrNoMarker)
	assert.Nil(t, res)
	assert.Empty(t, source.calls)
}

// TestWeaveDocumentRules 跨边界规则：Enfin、Par ailleurs、重复
func TestWeaveDocumentRules(t *testing.T) {
	source := &scriptedSource{replies: []string{
		"Enfin, Les pluies arrivent",
		"Par ailleurs, la préfecture alerte",
		"Par ailleurs, les routes ferment",
		"Enfin, Les pluies arrivent",
	}}
	w := NewWeaver(source, WithLogger(quietLogger()))

	text := "A.\nTRANSITION\nB.\nTRANSITION\nC.\nTRANSITION\nD.\nTRANSITION\nE."
	res, err := w.Weave(context.Background(), text)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"De plus, les pluies arrivent",
		"Par ailleurs, la préfecture alerte",
		"De plus, les routes ferment",
		"Enfin, les pluies arrivent",
	}, res.Phrases)
	assert.Equal(t, 4, res.Boundaries)
}

// TestWeaveRepeatedPhrase 相同过渡语第二次出现追加后缀
func TestWeaveRepeatedPhrase(t *testing.T) {
	source := &scriptedSource{replies: []string{"Dans le même temps", "dans le même temps"}}
	w := NewWeaver(source, WithLogger(quietLogger()))

	res, err := w.Weave(context.Background(), "A.\nTRANSITION\nB.\nTRANSITION\nC.")
	require.NoError(t, err)
	assert.Equal(t, []string{"Dans le même temps", "dans le même temps (suite)"}, res.Phrases)
}

// TestWeaveGenerationFailure 单个边界失败不影响其他边界
func TestWeaveGenerationFailure(t *testing.T) {
	source := &scriptedSource{
		replies: []string{"", "Ensuite"},
		errs:    []error{errors.New("quota exceeded"), nil},
	}
	w := NewWeaver(source, WithLogger(quietLogger()))

	res, err := w.Weave(context.Background(), "A.\nTRANSITION\nB.\nTRANSITION\nC.")
	require.NoError(t, err)

	assert.Equal(t, []string{ErrorSentinel, "Ensuite"}, res.Phrases)
	assert.Equal(t, "A.\n[ERROR]\nB.\nEnsuite\nC.", res.Text)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, 1, res.Failures[0].Index)
	assert.Contains(t, res.Failures[0].Error, "quota")
}

// TestWeaveSkipHeader 跳过标题：不调用生成服务，插入两个换行
func TestWeaveSkipHeader(t *testing.T) {
	text := "Intro.\nTRANSITION\nA savoir également dans votre département\nTRANSITION\nLe marché reprend."

	source := &scriptedSource{replies: []string{"Par ailleurs"}}
	w := NewWeaver(source, WithLogger(quietLogger()), WithCleanup(false))

	res, err := w.Weave(context.Background(), text)
	require.NoError(t, err)

	assert.Equal(t, []string{"Par ailleurs"}, res.Phrases)
	assert.Equal(t, 2, res.Boundaries)
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, source.calls, 1)
	assert.Equal(t, "Intro.\nPar ailleurs\nA savoir également dans votre département\n\n\n\nLe marché reprend.", res.Text)

	// 清理步骤会把连续空白合并
	source = &scriptedSource{replies: []string{"Par ailleurs"}}
	w = NewWeaver(source, WithLogger(quietLogger()))
	res, err = w.Weave(context.Background(), text)
	require.NoError(t, err)
	assert.Equal(t, "Intro.\nPar ailleurs\nA savoir également dans votre département Le marché reprend.", res.Text)
}

// TestWeaveEnfinBeforeSkippedBoundary 最后一个边界被跳过时，前一个生成的边界仍可使用 Enfin
func TestWeaveEnfinBeforeSkippedBoundary(t *testing.T) {
	text := "Intro.\nTRANSITION\nTout change.\nA savoir également dans votre département\nTRANSITION\nFin."

	source := &scriptedSource{replies: []string{"Enfin, tout change"}}
	w := NewWeaver(source, WithLogger(quietLogger()), WithCleanup(false))

	res, err := w.Weave(context.Background(), text)
	require.NoError(t, err)
	assert.Equal(t, []string{"Enfin, tout change"}, res.Phrases)
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, source.calls, 1)
}

// TestWeaveSkipKeepsRuleState 跳过的边界不读写规则状态
func TestWeaveSkipKeepsRuleState(t *testing.T) {
	text := "Un.\nTRANSITION\nDeux.\nA savoir également dans votre département\nTRANSITION\nTrois.\nTRANSITION\nQuatre."

	tests := []struct {
		name    string
		replies []string
		want    []string
	}{
		{
			"par ailleurs used once",
			[]string{"Par ailleurs, la suite", "Par ailleurs, la suite"},
			[]string{"Par ailleurs, la suite", "De plus, la suite"},
		},
		{
			"repeat still detected",
			[]string{"Ensuite", "Ensuite"},
			[]string{"Ensuite", "Ensuite (suite)"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := &scriptedSource{replies: tt.replies}
			w := NewWeaver(source, WithLogger(quietLogger()), WithCleanup(false))

			res, err := w.Weave(context.Background(), text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Phrases)
			assert.Equal(t, 3, res.Boundaries)
			assert.Equal(t, 1, res.Skipped)
			require.Len(t, source.calls, 2)
			assert.Equal(t, "Trois.", source.calls[1][0])
		})
	}
}

// TestWeaveCustomMarker 自定义标记和关闭跳过
func TestWeaveCustomMarker(t *testing.T) {
	source := &scriptedSource{replies: []string{"En parallèle"}}
	w := NewWeaver(source,
		WithLogger(quietLogger()),
		WithMarker("[[T]]"),
		WithSkipHeader(""),
	)
	assert.Equal(t, "[[T]]", w.Marker())

	res, err := w.Weave(context.Background(), "Un. [[T]] Deux.")
	require.NoError(t, err)
	assert.Equal(t, "Un. En parallèle Deux.", res.Text)

	_, err = w.Weave(context.Background(), "Un. TRANSITION Deux.")
	assert.ErrorIs(t, err, ErrNoMarker)
}

// TestWeaveCancelled 取消时丢弃部分结果
func TestWeaveCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	source := PhraseSourceFunc(func(ctx context.Context, left, right string) (string, error) {
		calls++
		cancel()
		return "", ctx.Err()
	})
	w := NewWeaver(source, WithLogger(quietLogger()))

	res, err := w.Weave(ctx, "A TRANSITION B TRANSITION C")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, res)
	assert.Equal(t, 1, calls)
}

// TestResultNumbered 带序号的过渡语
func TestResultNumbered(t *testing.T) {
	res := &Result{Phrases: []string{"Ensuite", "Enfin"}}
	assert.Equal(t, []string{"1. Ensuite", "2. Enfin"}, res.Numbered())
}

// TestAssemblePreservesFragments 未改写时等价于直接替换标记
func TestAssemblePreservesFragments(t *testing.T) {
	doc := Segment("a TRANSITION b TRANSITION c", DefaultMarker)
	bs := doc.Boundaries("")
	out := Assemble(doc, []Outcome{
		{Boundary: bs[0], Phrase: "X"},
		{Boundary: bs[1], Phrase: "Y"},
	})
	assert.Equal(t, "a X b Y c", out)
}
