package llm

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockClient 用于测试的大模型客户端
type MockClient struct {
	mock.Mock
}

// NewMockClient 创建Mock客户端，测试结束时校验期望
func NewMockClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockClient {
	m := &MockClient{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Generate 实现 Client 接口
func (m *MockClient) Generate(ctx context.Context, prompt string, options ...ChatOption) (*Response, error) {
	args := m.Called(ctx, prompt, options)
	resp, _ := args.Get(0).(*Response)
	return resp, args.Error(1)
}

// Chat 实现 Client 接口
func (m *MockClient) Chat(ctx context.Context, messages []Message, options ...ChatOption) (*Response, error) {
	args := m.Called(ctx, messages, options)
	resp, _ := args.Get(0).(*Response)
	return resp, args.Error(1)
}

// Name 实现 Client 接口
func (m *MockClient) Name() string {
	args := m.Called()
	return args.String(0)
}
