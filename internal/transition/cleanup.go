package transition

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// 逗号后的大写冠词，Le/La 是否为完整单词在 lowerCommaArticles 中判断
	commaArticleRe = regexp.MustCompile(`,([\s\p{Zs}]+)(Le|La|L')`)
	// "et de Les" 搭配错误，按子串匹配，空白按任意长度匹配
	etDeLesRe = regexp.MustCompile(`et[\s\p{Zs}]+de[\s\p{Zs}]+Les`)
	// 连续空白，包括不换行空格
	multiSpaceRe = regexp.MustCompile(`[\s\p{Zs}]{2,}`)
)

// CleanupStep 全文清理步骤
type CleanupStep struct {
	Name  string
	Apply func(text string) string
}

// DefaultCleanupSteps 返回固定顺序的全文清理步骤
func DefaultCleanupSteps() []CleanupStep {
	return []CleanupStep{
		{Name: "comma_article", Apply: lowerCommaArticles},
		{Name: "et_de_les", Apply: fixEtDeLes},
		{Name: "collapse_whitespace", Apply: collapseWhitespace},
	}
}

// Cleanup 对拼接后的全文执行清理，重复执行结果不变
func Cleanup(text string) string {
	for _, step := range DefaultCleanupSteps() {
		text = step.Apply(text)
	}
	return text
}

func lowerCommaArticles(text string) string {
	locs := commaArticleRe.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		return text
	}

	var sb strings.Builder
	prev := 0
	for _, loc := range locs {
		start, end := loc[4], loc[5]
		article := text[start:end]
		// RE2 的 \b 只认ASCII，"Laïcité" "Leçon" 之类需要按Unicode字母排除
		if article != "L'" && !wordEndsAt(text, end) {
			continue
		}
		sb.WriteString(text[prev:start])
		sb.WriteString(strings.ToLower(article))
		prev = end
	}
	sb.WriteString(text[prev:])
	return sb.String()
}

// wordEndsAt 位置 i 处是否为单词结尾
func wordEndsAt(text string, i int) bool {
	if i >= len(text) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(text[i:])
	return !unicode.IsLetter(r) && !unicode.IsNumber(r) && !unicode.Is(unicode.Mn, r) && r != '_'
}

func fixEtDeLes(text string) string {
	return etDeLesRe.ReplaceAllString(text, "et les")
}

func collapseWhitespace(text string) string {
	return multiSpaceRe.ReplaceAllString(text, " ")
}
