package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleText = "Le feu est éteint.\nTRANSITION\nLes routes rouvrent."

// newChatServer 模拟 OpenAI 接口，status 非200时返回错误
func newChatServer(t *testing.T, status int, reply string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"bad request","type":"invalid_request_error"}}`))
			return
		}
		_, _ = fmt.Fprintf(w, `{"id":"c1","object":"chat.completion","model":"gpt-4",`+
			`"choices":[{"index":0,"message":{"role":"assistant","content":%q},"finish_reason":"stop"}],`+
			`"usage":{"total_tokens":12}}`, reply)
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

// writeConfig 写入指向测试服务器的配置文件
func writeConfig(t *testing.T, endpoint string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := fmt.Sprintf(`llm:
  provider: openai
  api_key: test-key
  endpoint: %s/v1
  max_retries: 0
cache:
  enable: false
`, endpoint)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func runCLI(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	args = append([]string{"-env", filepath.Join(t.TempDir(), "missing.env")}, args...)
	err := run(context.Background(), args, strings.NewReader(stdin), &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

// TestRunFile 从文件读取并输出建议和全文
func TestRunFile(t *testing.T) {
	server, calls := newChatServer(t, http.StatusOK, "Ensuite")

	input := filepath.Join(t.TempDir(), "article.txt")
	require.NoError(t, os.WriteFile(input, []byte(sampleText), 0644))

	stdout, _, err := runCLI(t, "", "-config", writeConfig(t, server.URL), input)
	require.NoError(t, err)
	assert.Equal(t, "Suggestions:\n1. Ensuite\n\nLe feu est éteint.\nEnsuite\nLes routes rouvrent.\n", stdout)
	assert.Equal(t, int32(1), calls.Load())
}

// TestRunStdinCustomMarker 标准输入与自定义标记
func TestRunStdinCustomMarker(t *testing.T) {
	server, _ := newChatServer(t, http.StatusOK, "Ensuite")

	text := strings.ReplaceAll(sampleText, "TRANSITION", "@@")
	stdout, _, err := runCLI(t, text, "-config", writeConfig(t, server.URL), "-marker", "@@")
	require.NoError(t, err)
	assert.Contains(t, stdout, "1. Ensuite")
	assert.True(t, strings.HasSuffix(stdout, "Le feu est éteint.\nEnsuite\nLes routes rouvrent.\n"))
}

// TestRunNoMarker 没有标记时只输出提示，不调用模型
func TestRunNoMarker(t *testing.T) {
	server, calls := newChatServer(t, http.StatusOK, "Ensuite")

	stdout, _, err := runCLI(t, "Aucun marqueur ici.", "-config", writeConfig(t, server.URL))
	require.NoError(t, err)
	assert.Equal(t, "No `TRANSITION` markers found. Please add at least one.\n", stdout)
	assert.Zero(t, calls.Load())
}

// TestRunGenerationFailure 生成失败时输出错误占位并报告序号
func TestRunGenerationFailure(t *testing.T) {
	server, _ := newChatServer(t, http.StatusBadRequest, "")

	stdout, stderr, err := runCLI(t, sampleText, "-config", writeConfig(t, server.URL))
	require.NoError(t, err)
	assert.Contains(t, stderr, "Error generating transition #1")
	assert.Contains(t, stdout, "1. [ERROR]")
	assert.Contains(t, stdout, "Le feu est éteint.\n[ERROR]\nLes routes rouvrent.")
}

// TestRunErrors 参数和输入错误
func TestRunErrors(t *testing.T) {
	server, _ := newChatServer(t, http.StatusOK, "Ensuite")
	cfgPath := writeConfig(t, server.URL)

	_, _, err := runCLI(t, "", "-config", cfgPath, "a.txt", "b.txt")
	assert.Error(t, err)

	_, _, err = runCLI(t, "", "-config", cfgPath, filepath.Join(t.TempDir(), "article.pdf"))
	assert.Error(t, err)

	_, _, err = runCLI(t, sampleText, "-config", cfgPath, "-marker", "deux mots")
	assert.Error(t, err)

	_, _, err = runCLI(t, sampleText, "-config", cfgPath, "-log-level", "loud")
	assert.Error(t, err)
}
