package cache

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/doc-transition/internal/transition"
)

// 过渡语缓存键前缀
const phraseKeyPrefix = "phrase"

// CachedSource 为过渡语生成服务加一层缓存
// 缓存读写失败只记录日志，不影响生成
type CachedSource struct {
	inner  transition.PhraseSource
	cache  Cache
	model  string
	ttl    time.Duration
	logger *logrus.Logger
}

// NewCachedSource 创建带缓存的生成服务，model 参与缓存键
func NewCachedSource(inner transition.PhraseSource, c Cache, model string, ttl time.Duration, logger *logrus.Logger) *CachedSource {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &CachedSource{
		inner:  inner,
		cache:  c,
		model:  model,
		ttl:    ttl,
		logger: logger,
	}
}

// Key 返回前后文对应的缓存键
func (s *CachedSource) Key(left, right string) string {
	return GenerateCacheKey(phraseKeyPrefix, s.model, HashParts(left, right))
}

// Generate 实现 transition.PhraseSource 接口
func (s *CachedSource) Generate(ctx context.Context, left, right string) (string, error) {
	key := s.Key(left, right)

	phrase, found, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("Phrase cache lookup failed")
	} else if found {
		return phrase, nil
	}

	phrase, err = s.inner.Generate(ctx, left, right)
	if err != nil {
		return "", err
	}

	if err := s.cache.Set(ctx, key, phrase, s.ttl); err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("Phrase cache store failed")
	}
	return phrase, nil
}
