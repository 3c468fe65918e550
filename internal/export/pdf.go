// Package export 将处理结果导出为可分发的文档
package export

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// ErrEmptyReport 没有可导出的内容
var ErrEmptyReport = errors.New("report has no text")

// Report 导出内容
type Report struct {
	Title     string    // 标题，为空时使用默认标题
	Text      string    // 最终文本
	Phrases   []string  // 按边界顺序的过渡语
	Failures  []int     // 生成失败的边界序号，从1开始
	Model     string    // 生成模型
	CreatedAt time.Time // 处理时间
}

const defaultTitle = "Transitions"

// WritePDF 生成A4 PDF：标题、过渡语列表和最终文本
// 内置字体使用cp1252编码，法语字符可以正常显示
func WritePDF(w io.Writer, r Report) error {
	if strings.TrimSpace(r.Text) == "" {
		return ErrEmptyReport
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	title := r.Title
	if title == "" {
		title = defaultTitle
	}
	pdf.SetTitle(title, true)
	pdf.SetCreator("doc-transition", true)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.MultiCell(0, 9, tr(title), "", "L", false)

	var meta []string
	if r.Model != "" {
		meta = append(meta, r.Model)
	}
	if !r.CreatedAt.IsZero() {
		meta = append(meta, r.CreatedAt.Format("2006-01-02 15:04"))
	}
	if len(meta) > 0 {
		pdf.SetFont("Arial", "I", 9)
		pdf.MultiCell(0, 5, tr(strings.Join(meta, " | ")), "", "L", false)
	}
	pdf.Ln(4)

	if len(r.Phrases) > 0 {
		failed := make(map[int]bool, len(r.Failures))
		for _, n := range r.Failures {
			failed[n] = true
		}

		pdf.SetFont("Arial", "B", 12)
		pdf.MultiCell(0, 7, tr("Transitions générées"), "", "L", false)
		pdf.SetFont("Arial", "", 11)
		for i, phrase := range r.Phrases {
			line := fmt.Sprintf("%d. %s", i+1, phrase)
			if failed[i+1] {
				pdf.SetTextColor(180, 0, 0)
			}
			pdf.MultiCell(0, 6, tr(line), "", "L", false)
			pdf.SetTextColor(0, 0, 0)
		}
		pdf.Ln(4)
	}

	pdf.SetFont("Arial", "B", 12)
	pdf.MultiCell(0, 7, tr("Texte final"), "", "L", false)
	pdf.SetFont("Arial", "", 11)
	for _, para := range strings.Split(r.Text, "\n") {
		if strings.TrimSpace(para) == "" {
			pdf.Ln(3)
			continue
		}
		pdf.MultiCell(0, 6, tr(para), "", "L", false)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to render pdf: %w", err)
	}
	return nil
}

// PDF 返回PDF字节
func PDF(r Report) ([]byte, error) {
	var buf bytes.Buffer
	if err := WritePDF(&buf, r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
