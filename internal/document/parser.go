package document

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupportedType 不支持的文档类型
var ErrUnsupportedType = errors.New("unsupported document type")

// Parser 文档解析器接口
// 将不同格式的输入文档转换为保留行结构的纯文本，标记原样保留
type Parser interface {
	// Parse 解析文件，返回文本内容
	Parse(filePath string) (string, error)

	// ParseReader 从Reader解析文档，filename用于错误信息
	ParseReader(r io.Reader, filename string) (string, error)
}

// ContentType 表示文档的内容类型
type ContentType string

const (
	// Markdown 文档类型
	Markdown ContentType = "markdown"
	// PlainText 纯文本类型
	PlainText ContentType = "plaintext"
	// Unknown 未知类型
	Unknown ContentType = "unknown"
)

// ParserFactory 根据文件扩展名创建对应的解析器
func ParserFactory(filePath string) (Parser, error) {
	switch DetectContentType(filePath) {
	case Markdown:
		return NewMarkdownParser(), nil
	case PlainText:
		return NewPlainTextParser(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, filepath.Ext(filePath))
	}
}

// DetectContentType 根据文件扩展名检测内容类型
// 没有扩展名时按纯文本处理
func DetectContentType(filePath string) ContentType {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".md", ".markdown":
		return Markdown
	case ".txt", "":
		return PlainText
	default:
		return Unknown
	}
}

// parseFile 打开文件并交给 ParseReader
func parseFile(p Parser, filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", filePath, err)
	}
	defer file.Close()

	return p.ParseReader(file, filePath)
}

// normalizeNewlines 统一换行符为 \n
func normalizeNewlines(s string) string {
	if !strings.Contains(s, "\r") {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
