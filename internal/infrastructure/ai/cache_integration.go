package ai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/alchemorsel/recipe-studio/internal/ports/outbound"
	"go.uber.org/zap"
)

const cacheKeyPrefix = "ai:completion:"

// CachedProvider wraps a model provider and reuses replies to cacheable
// completions. Other requests pass straight through.
type CachedProvider struct {
	outbound.ModelProvider
	cache  outbound.CacheRepository
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedProvider creates a new caching provider wrapper
func NewCachedProvider(provider outbound.ModelProvider, cache outbound.CacheRepository, ttl time.Duration, logger *zap.Logger) *CachedProvider {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CachedProvider{
		ModelProvider: provider,
		cache:         cache,
		ttl:           ttl,
		logger:        logger.Named("cached-ai"),
	}
}

// Complete serves cacheable requests from the cache first
func (c *CachedProvider) Complete(ctx context.Context, req outbound.CompletionRequest) (string, error) {
	if !req.Cacheable {
		return c.ModelProvider.Complete(ctx, req)
	}

	key := completionKey(c.Name(), req)
	if data, err := c.cache.Get(ctx, key); err == nil {
		c.logger.Debug("Completion served from cache", zap.String("key", key))
		return string(data), nil
	} else if !errors.Is(err, outbound.ErrCacheMiss) {
		c.logger.Warn("Completion cache read failed", zap.Error(err))
	}

	reply, err := c.ModelProvider.Complete(ctx, req)
	if err != nil {
		return "", err
	}
	if err := c.cache.Set(ctx, key, []byte(reply), c.ttl); err != nil {
		c.logger.Warn("Failed to cache completion", zap.String("key", key), zap.Error(err))
	}
	return reply, nil
}

// Ping forwards to the wrapped provider when it supports health checks
func (c *CachedProvider) Ping(ctx context.Context) error {
	if p, ok := c.ModelProvider.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func completionKey(provider string, req outbound.CompletionRequest) string {
	h := sha256.New()
	for _, part := range []string{provider, req.System, req.Prompt, strings.Join(req.Images, "\x00")} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return cacheKeyPrefix + hex.EncodeToString(h.Sum(nil))
}
