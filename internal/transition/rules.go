package transition

import (
	"maps"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// KeywordParAilleurs 每篇文档只允许出现一次的连接词
	KeywordParAilleurs = "par ailleurs"
	// RepeatSuffix 重复过渡语追加的后缀
	RepeatSuffix = " (suite)"

	replacementConnective = "De plus"
)

// articles 参与重复冠词判断的法语定冠词，按顺序匹配
var articles = []string{"la", "le", "l'", "les"}

// RuleState 文档级规则状态
// 按文档顺序在边界之间传递，单次运行结束后丢弃
type RuleState struct {
	UsedKeywords    map[string]struct{} // 已使用的限用连接词
	UsedTransitions map[string]struct{} // 已输出过的过渡语（小写）
}

// NewRuleState 创建空的规则状态
func NewRuleState() RuleState {
	return RuleState{
		UsedKeywords:    make(map[string]struct{}),
		UsedTransitions: make(map[string]struct{}),
	}
}

// Clone 复制状态，保证规则函数不修改调用方持有的状态
func (s RuleState) Clone() RuleState {
	out := NewRuleState()
	if s.UsedKeywords != nil {
		out.UsedKeywords = maps.Clone(s.UsedKeywords)
	}
	if s.UsedTransitions != nil {
		out.UsedTransitions = maps.Clone(s.UsedTransitions)
	}
	return out
}

// HasKeyword 关键词是否已使用
func (s RuleState) HasKeyword(keyword string) bool {
	_, ok := s.UsedKeywords[keyword]
	return ok
}

// HasTransition 过渡语是否已输出
func (s RuleState) HasTransition(phrase string) bool {
	_, ok := s.UsedTransitions[strings.ToLower(phrase)]
	return ok
}

// Rule 单条改写规则
// Apply 必须对任意输入字符串都能返回结果，不允许panic
type Rule struct {
	Name  string
	Apply func(phrase string, b Boundary, st *RuleState) string
}

// DefaultRules 返回固定顺序的规则列表
func DefaultRules() []Rule {
	return []Rule{
		{Name: "article_elision", Apply: elideDuplicateArticle},
		{Name: "comma_case", Apply: lowerAfterFirstComma},
		{Name: "enfin_restriction", Apply: restrictEnfin},
		{Name: "single_use_keyword", Apply: limitParAilleurs},
		{Name: "repeat_guard", Apply: guardRepeat},
	}
}

// Normalize 对候选过渡语依次应用规则
// 输入状态不会被修改，返回新的状态
func Normalize(candidate string, b Boundary, state RuleState, rules []Rule) (string, RuleState) {
	next := state.Clone()
	phrase := candidate
	for _, rule := range rules {
		phrase = rule.Apply(phrase, b, &next)
	}
	return phrase, next
}

// elideDuplicateArticle 前文以冠词结尾且候选以同一冠词开头时去掉候选中的冠词
func elideDuplicateArticle(phrase string, b Boundary, _ *RuleState) string {
	left := strings.ToLower(b.LeftContext)
	for _, art := range articles {
		if !strings.HasSuffix(left, " "+art) {
			continue
		}
		if hasPrefixFold(phrase, art) {
			return strings.TrimLeftFunc(phrase[len(art):], unicode.IsSpace)
		}
		return phrase
	}
	return phrase
}

// lowerAfterFirstComma 第一个逗号之后的首字母改为小写
func lowerAfterFirstComma(phrase string, _ Boundary, _ *RuleState) string {
	head, tail, found := strings.Cut(phrase, ",")
	if !found {
		return phrase
	}
	tail = strings.TrimLeftFunc(tail, unicode.IsSpace)
	if tail != "" {
		r, size := utf8.DecodeRuneInString(tail)
		tail = string(unicode.ToLower(r)) + tail[size:]
	}
	return head + ", " + tail
}

// restrictEnfin "Enfin" 只保留给最后一个边界
func restrictEnfin(phrase string, b Boundary, _ *RuleState) string {
	if b.IsLast || !hasPrefixFold(phrase, "enfin") {
		return phrase
	}
	if strings.HasPrefix(phrase, "Enfin") {
		return replacementConnective + phrase[len("Enfin"):]
	}
	return phrase
}

// limitParAilleurs "Par ailleurs" 每篇文档最多出现一次
func limitParAilleurs(phrase string, _ Boundary, st *RuleState) string {
	if !strings.Contains(strings.ToLower(phrase), KeywordParAilleurs) {
		return phrase
	}
	if st.HasKeyword(KeywordParAilleurs) {
		return strings.Replace(phrase, "Par ailleurs", replacementConnective, 1)
	}
	st.UsedKeywords[KeywordParAilleurs] = struct{}{}
	return phrase
}

// guardRepeat 完全重复的过渡语追加后缀
func guardRepeat(phrase string, _ Boundary, st *RuleState) string {
	key := strings.ToLower(phrase)
	_, seen := st.UsedTransitions[key]
	st.UsedTransitions[key] = struct{}{}
	if seen {
		return phrase + RepeatSuffix
	}
	return phrase
}

// hasPrefixFold 忽略大小写的前缀判断，prefix 为ASCII
func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
