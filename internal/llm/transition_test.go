package llm

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// TestTransitionGeneratorMessages 提示词结构
func TestTransitionGeneratorMessages(t *testing.T) {
	gen := NewTransitionGenerator(NewMockClient(t))

	msgs := gen.Messages("Les pompiers sont intervenus.", "La mairie a réagi.")
	require.Len(t, msgs, 2)
	assert.Equal(t, RoleSystem, msgs[0].Role)
	assert.Equal(t, DefaultSystemPrompt, msgs[0].Content)
	assert.Equal(t, RoleUser, msgs[1].Role)
	assert.Equal(t, "Les pompiers sont intervenus.\nTRANSITION\nLa mairie a réagi.", msgs[1].Content)
}

// TestTransitionGeneratorExamples 示例最多附带十条
func TestTransitionGeneratorExamples(t *testing.T) {
	examples := make([]string, 15)
	for i := range examples {
		examples[i] = fmt.Sprintf("exemple %02d", i)
	}
	gen := NewTransitionGenerator(NewMockClient(t), WithExamples(examples), WithPromptMarker("[[T]]"))

	msgs := gen.Messages("a", "b")
	system := msgs[0].Content
	assert.True(t, strings.HasPrefix(system, DefaultSystemPrompt))
	assert.Contains(t, system, "- exemple 09")
	assert.NotContains(t, system, "exemple 10")
	assert.Equal(t, "a\n[[T]]\nb", msgs[1].Content)
}

// TestTransitionGeneratorGenerate 回复清理与请求参数
func TestTransitionGeneratorGenerate(t *testing.T) {
	client := NewMockClient(t)
	client.On("Chat", mock.Anything, mock.Anything, mock.MatchedBy(func(opts []ChatOption) bool {
		o := &ChatOptions{}
		for _, opt := range opts {
			opt(o)
		}
		return o.MaxTokens != nil && *o.MaxTokens == 30 &&
			o.Temperature != nil && *o.Temperature == float32(0.2)
	})).Return(&Response{Text: "  « Dans la foulée, la »\n"}, nil).Once()

	gen := NewTransitionGenerator(client, WithReplyLimits(30, 0.2))
	phrase, err := gen.Generate(context.Background(), "l", "r")
	require.NoError(t, err)
	assert.Equal(t, "Dans la foulée, la", phrase)
}

// TestTransitionGeneratorErrors 空回复和调用失败都返回错误
func TestTransitionGeneratorErrors(t *testing.T) {
	client := NewMockClient(t)
	client.On("Chat", mock.Anything, mock.Anything, mock.Anything).Return(&Response{Text: ` "" `}, nil).Once()
	client.On("Chat", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, NewLLMError(ErrCodeRateLimited, ErrMsgRateLimited)).Once()

	gen := NewTransitionGenerator(client)

	_, err := gen.Generate(context.Background(), "l", "r")
	var llmErr LLMError
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, ErrCodeEmptyResponse, llmErr.Code)

	_, err = gen.Generate(context.Background(), "l", "r")
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, ErrCodeRateLimited, llmErr.Code)
}

// TestCleanReply 包裹引号只在成对时去除
func TestCleanReply(t *testing.T) {
	tests := map[string]string{
		`"Ensuite"`:           "Ensuite",
		"'Ensuite'":           "Ensuite",
		"“Ensuite”":           "Ensuite",
		"«Ensuite»":           "Ensuite",
		`"Ensuite`:            `"Ensuite`,
		"L'État agit":         "L'État agit",
		"  De son côté, le  ": "De son côté, le",
		`"`:                   `"`,
	}
	for in, want := range tests {
		assert.Equal(t, want, cleanReply(in), "input %q", in)
	}
}
