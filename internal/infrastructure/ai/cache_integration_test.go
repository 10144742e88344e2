package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/alchemorsel/recipe-studio/internal/infrastructure/persistence/memory"
	"github.com/alchemorsel/recipe-studio/internal/ports/outbound"
	"github.com/alchemorsel/recipe-studio/test/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCachedProvider(t *testing.T) {
	ctx := context.Background()

	t.Run("Cacheable_ShouldCallProviderOnce", func(t *testing.T) {
		// Arrange
		provider := new(testutils.MockModelProvider)
		cache := memory.NewCacheRepository(0)
		defer cache.Close()
		req := outbound.CompletionRequest{Prompt: "nutrition for pancakes", JSON: true, Cacheable: true}
		provider.On("Complete", mock.Anything, req).Return(`{"estimatedCalories":300}`, nil).Once()
		cached := NewCachedProvider(provider, cache, 0, zap.NewNop())

		// Act
		first, err1 := cached.Complete(ctx, req)
		second, err2 := cached.Complete(ctx, req)

		// Assert
		require.NoError(t, err1)
		require.NoError(t, err2)
		assert.Equal(t, first, second)
		provider.AssertNumberOfCalls(t, "Complete", 1)
	})

	t.Run("NotCacheable_ShouldAlwaysCallProvider", func(t *testing.T) {
		provider := new(testutils.MockModelProvider)
		cache := memory.NewCacheRepository(0)
		defer cache.Close()
		req := outbound.CompletionRequest{Prompt: "a new recipe"}
		provider.On("Complete", mock.Anything, req).Return("reply", nil)
		cached := NewCachedProvider(provider, cache, 0, zap.NewNop())

		_, _ = cached.Complete(ctx, req)
		_, _ = cached.Complete(ctx, req)

		provider.AssertNumberOfCalls(t, "Complete", 2)
	})

	t.Run("ProviderError_ShouldNotBeCached", func(t *testing.T) {
		provider := new(testutils.MockModelProvider)
		cache := memory.NewCacheRepository(0)
		defer cache.Close()
		req := outbound.CompletionRequest{Prompt: "photo", Images: []string{"data:image/png;base64,AQID"}, Cacheable: true}
		provider.On("Complete", mock.Anything, req).Return("", errors.New("boom")).Once()
		provider.On("Complete", mock.Anything, req).Return(`{"detectedIngredients":[]}`, nil).Once()
		cached := NewCachedProvider(provider, cache, 0, zap.NewNop())

		_, err := cached.Complete(ctx, req)
		require.Error(t, err)
		reply, err := cached.Complete(ctx, req)

		require.NoError(t, err)
		assert.Equal(t, `{"detectedIngredients":[]}`, reply)
	})

	t.Run("Key_ShouldDependOnImages", func(t *testing.T) {
		a := completionKey("openai", outbound.CompletionRequest{Prompt: "p", Images: []string{"x"}})
		b := completionKey("openai", outbound.CompletionRequest{Prompt: "p", Images: []string{"y"}})
		assert.NotEqual(t, a, b)
	})
}

type fakePinger struct{ err error }

func (f fakePinger) Name() string                 { return "fake" }
func (f fakePinger) Ping(ctx context.Context) error { return f.err }

func TestHealthChecker(t *testing.T) {
	healthy := NewHealthChecker(fakePinger{}, 0, zap.NewNop())
	assert.NoError(t, healthy.Check(context.Background()))
	assert.True(t, healthy.CheckHealth(context.Background()).Healthy)

	down := NewHealthChecker(fakePinger{err: errors.New("connection refused")}, 0, zap.NewNop())
	err := down.Check(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}
