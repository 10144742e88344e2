// Package outbound defines the interfaces the application core depends on.
// Infrastructure packages implement them.
package outbound

import (
	"context"
	"errors"
	"time"

	"github.com/alchemorsel/recipe-studio/internal/domain/recipe"
	"github.com/alchemorsel/recipe-studio/internal/domain/user"
	"github.com/google/uuid"
)

// RecipeRepository is the remote persistence for recipes. Every mutating
// call filters by owner as well as primary key and returns
// recipe.ErrRecipeNotFound when no row matched.
type RecipeRepository interface {
	ListByOwner(ctx context.Context, owner uuid.UUID) ([]*recipe.Recipe, error)
	Create(ctx context.Context, draft *recipe.Recipe) (*recipe.Recipe, error)
	UpdateFavorite(ctx context.Context, id, owner uuid.UUID, favorite bool) error
	UpdateImage(ctx context.Context, id, owner uuid.UUID, imageURL string) error
	UpdateNutrition(ctx context.Context, id, owner uuid.UUID, info recipe.NutritionInfo) error
	Delete(ctx context.Context, id, owner uuid.UUID) error
}

// PreferencesRepository stores one preferences row per owner.
type PreferencesRepository interface {
	// Get returns nil, nil when the owner has no saved preferences.
	Get(ctx context.Context, owner uuid.UUID) (*user.Preferences, error)
	Upsert(ctx context.Context, prefs *user.Preferences) error
}

// ErrCacheMiss is returned by CacheRepository.Get for an absent key.
var ErrCacheMiss = errors.New("cache miss")

// CacheRepository defines the interface for caching operations
type CacheRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Increment(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

// MessageBus defines the interface for publishing messages
type MessageBus interface {
	Publish(ctx context.Context, topic string, message Message) error
	// Subscribe delivers topic messages to handler until unsubscribe is
	// called or ctx ends.
	Subscribe(ctx context.Context, topic string, handler MessageHandler) (unsubscribe func(), err error)
}

// Message represents a message to be published
type Message struct {
	ID        string
	Type      string
	Payload   []byte
	Metadata  map[string]string
	Timestamp time.Time
}

// MessageHandler handles incoming messages
type MessageHandler func(ctx context.Context, message Message) error

// ImageStorage persists generated images and returns a URL for them.
type ImageStorage interface {
	Upload(ctx context.Context, key, contentType string, data []byte) (string, error)
}
