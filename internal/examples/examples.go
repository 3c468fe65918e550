// Package examples 加载示例过渡语
// 文件格式为 JSON Lines，每行一个对象
package examples

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fyerfyer/doc-transition/pkg/storage"
)

const (
	// DefaultField 默认读取的字段名
	DefaultField = "transition"
	// DefaultLimit 默认最多返回的条数
	DefaultLimit = 10
)

// ErrMalformed 示例数据格式错误，整个文件作废
var ErrMalformed = errors.New("malformed example data")

// Load 从 JSON Lines 读取示例
// 空行忽略；任意一行格式错误时返回 ErrMalformed，不返回部分结果
func Load(r io.Reader, field string, limit int) ([]string, error) {
	if field == "" {
		field = DefaultField
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var out []string
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var obj map[string]json.RawMessage
		if err := json.Unmarshal([]byte(line), &obj); err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformed, lineNo, err)
		}
		raw, ok := obj[field]
		if !ok {
			return nil, fmt.Errorf("%w: line %d: missing field %q", ErrMalformed, lineNo, field)
		}
		var value string
		if err := json.Unmarshal(raw, &value); err != nil {
			return nil, fmt.Errorf("%w: line %d: field %q is not a string", ErrMalformed, lineNo, field)
		}

		if len(out) < limit {
			out = append(out, value)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read examples: %w", err)
	}

	return out, nil
}

// LoadFile 从本地文件加载示例
func LoadFile(path, field string, limit int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open examples file: %w", err)
	}
	defer f.Close()

	return Load(f, field, limit)
}

// LoadFromStorage 从文件存储加载示例
func LoadFromStorage(ctx context.Context, store storage.Storage, id, field string, limit int) ([]string, error) {
	rc, err := store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get examples %s: %w", id, err)
	}
	defer rc.Close()

	return Load(rc, field, limit)
}
