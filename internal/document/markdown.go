package document

import (
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/parser"
)

// MarkdownParser Markdown文档解析器
type MarkdownParser struct{}

// NewMarkdownParser 创建新的Markdown解析器
func NewMarkdownParser() Parser {
	return &MarkdownParser{}
}

// Parse 解析Markdown文件并提取文本内容
func (p *MarkdownParser) Parse(filePath string) (string, error) {
	return parseFile(p, filePath)
}

// ParseReader 从Reader解析Markdown内容
// 去掉标记语法，段落之间保留空行，段落内的换行保持不变
func (p *MarkdownParser) ParseReader(r io.Reader, filename string) (string, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read markdown content %s: %w", filename, err)
	}

	// 解析器不可复用，每次新建
	mdParser := parser.NewWithExtensions(parser.CommonExtensions)
	doc := mdParser.Parse([]byte(normalizeNewlines(string(content))))

	return extractText(doc), nil
}

// extractText 遍历语法树收集文本
func extractText(doc ast.Node) string {
	var sb strings.Builder

	ast.WalkFunc(doc, func(node ast.Node, entering bool) ast.WalkStatus {
		switch n := node.(type) {
		case *ast.Text:
			sb.WriteString(html.UnescapeString(string(n.Literal)))
		case *ast.Code:
			sb.Write(n.Literal)
		case *ast.CodeBlock:
			sb.Write(n.Literal)
			endBlock(&sb, true)
		case *ast.Softbreak, *ast.Hardbreak:
			sb.WriteString("\n")
		case *ast.ListItem:
			if entering {
				sb.WriteString("- ")
			} else {
				endLine(&sb)
			}
		case *ast.List:
			if !entering {
				endBlock(&sb, true)
			}
		case *ast.Paragraph:
			if !entering {
				_, inItem := n.GetParent().(*ast.ListItem)
				endBlock(&sb, !inItem)
			}
		case *ast.Heading:
			if !entering {
				endBlock(&sb, true)
			}
		}
		return ast.GoToNext
	})

	text := sb.String()
	for strings.Contains(text, "\n\n\n") {
		text = strings.ReplaceAll(text, "\n\n\n", "\n\n")
	}
	return strings.TrimSpace(text)
}

// endLine 确保以换行结尾
func endLine(sb *strings.Builder) {
	if s := sb.String(); s != "" && !strings.HasSuffix(s, "\n") {
		sb.WriteString("\n")
	}
}

// endBlock 结束一个块，blank 为 true 时追加空行
func endBlock(sb *strings.Builder, blank bool) {
	endLine(sb)
	if blank {
		sb.WriteString("\n")
	}
}
