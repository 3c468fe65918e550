package transition

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// ErrNoMarker 文档中没有标记，调用方应视为无需处理
var ErrNoMarker = errors.New("no transition marker found")

// NoMarkerWarning 没有标记时提示给用户的信息
func NoMarkerWarning(marker string) string {
	return fmt.Sprintf("No `%s` markers found. Please add at least one.", marker)
}

// PhraseSource 过渡语生成服务
// 根据前后文返回一条候选过渡语
type PhraseSource interface {
	Generate(ctx context.Context, left, right string) (string, error)
}

// PhraseSourceFunc 函数适配器
type PhraseSourceFunc func(ctx context.Context, left, right string) (string, error)

// Generate 实现 PhraseSource 接口
func (f PhraseSourceFunc) Generate(ctx context.Context, left, right string) (string, error) {
	return f(ctx, left, right)
}

// BoundaryFailure 单个边界生成失败的记录
type BoundaryFailure struct {
	Index int    `json:"index"` // 边界序号，从1开始
	Error string `json:"error"` // 错误描述
}

// Result 一次处理的结果
type Result struct {
	Phrases    []string          // 规范化后的过渡语，不含跳过的边界
	Text       string            // 重建并清理后的全文
	Boundaries int               // 标记数量
	Skipped    int               // 跳过的边界数量
	Failures   []BoundaryFailure // 生成失败的边界
}

// Numbered 返回带序号的过渡语列表
func (r *Result) Numbered() []string {
	out := make([]string, len(r.Phrases))
	for i, p := range r.Phrases {
		out[i] = fmt.Sprintf("%d. %s", i+1, p)
	}
	return out
}

// Weaver 过渡语插入流程
// 边界严格按文档顺序处理，规则状态在边界之间传递
type Weaver struct {
	source     PhraseSource
	rules      []Rule
	marker     string
	skipHeader string
	cleanup    bool
	logger     *logrus.Logger
}

// Option Weaver配置选项
type Option func(*Weaver)

// WithMarker 设置占位标记
func WithMarker(marker string) Option {
	return func(w *Weaver) {
		if marker != "" {
			w.marker = marker
		}
	}
}

// WithSkipHeader 设置跳过标题，空字符串表示关闭
func WithSkipHeader(header string) Option {
	return func(w *Weaver) {
		w.skipHeader = header
	}
}

// WithRules 替换规则列表
func WithRules(rules []Rule) Option {
	return func(w *Weaver) {
		w.rules = rules
	}
}

// WithCleanup 是否执行全文清理
func WithCleanup(enable bool) Option {
	return func(w *Weaver) {
		w.cleanup = enable
	}
}

// WithLogger 设置日志记录器
func WithLogger(logger *logrus.Logger) Option {
	return func(w *Weaver) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// NewWeaver 创建过渡语插入流程
func NewWeaver(source PhraseSource, opts ...Option) *Weaver {
	w := &Weaver{
		source:     source,
		rules:      DefaultRules(),
		marker:     DefaultMarker,
		skipHeader: DefaultSkipHeader,
		cleanup:    true,
		logger:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// With 返回应用了额外选项的副本，原实例不变
func (w *Weaver) With(opts ...Option) *Weaver {
	c := *w
	c.rules = append([]Rule(nil), w.rules...)
	for _, opt := range opts {
		opt(&c)
	}
	return &c
}

// Marker 返回当前使用的标记
func (w *Weaver) Marker() string {
	return w.marker
}

// Weave 处理整篇文档
// 没有标记时返回 ErrNoMarker；ctx 取消时丢弃已生成的部分并返回 ctx 错误
func (w *Weaver) Weave(ctx context.Context, text string) (*Result, error) {
	doc := Segment(text, w.marker)
	if !doc.HasBoundaries() {
		return nil, ErrNoMarker
	}

	boundaries := doc.Boundaries(w.skipHeader)
	outcomes := make([]Outcome, 0, len(boundaries))
	state := NewRuleState()
	result := &Result{Boundaries: len(boundaries)}

	for _, b := range boundaries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if b.Skip {
			result.Skipped++
			outcomes = append(outcomes, Outcome{Boundary: b})
			continue
		}

		candidate, err := w.source.Generate(ctx, b.LeftContext, b.RightContext)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			w.logger.WithFields(logrus.Fields{
				"boundary":     b.Index + 1,
				"left_context": b.LeftContext,
				"error":        err.Error(),
			}).Warn("Error generating transition")
			result.Failures = append(result.Failures, BoundaryFailure{
				Index: b.Index + 1,
				Error: err.Error(),
			})
			candidate = ErrorSentinel
		}

		var phrase string
		phrase, state = Normalize(candidate, b, state, w.rules)
		outcomes = append(outcomes, Outcome{Boundary: b, Phrase: phrase})
	}

	rebuilt := Assemble(doc, outcomes)
	if w.cleanup {
		rebuilt = Cleanup(rebuilt)
	}

	result.Phrases = Phrases(outcomes)
	result.Text = rebuilt

	w.logger.WithFields(logrus.Fields{
		"boundaries": result.Boundaries,
		"skipped":    result.Skipped,
		"failures":   len(result.Failures),
	}).Debug("Transitions woven")

	return result, nil
}
