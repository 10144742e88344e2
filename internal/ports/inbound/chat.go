package inbound

import (
	"context"
	"time"

	"github.com/alchemorsel/recipe-studio/internal/domain/chat"
	"github.com/google/uuid"
)

// ChatService keeps in-memory question and answer sessions about recipes.
type ChatService interface {
	Open(ctx context.Context, recipeID uuid.UUID) (*ChatSession, error)
	Ask(ctx context.Context, sessionID uuid.UUID, question string) (*chat.Message, error)
	Transcript(ctx context.Context, sessionID uuid.UUID) (*ChatSession, error)
	Close(ctx context.Context, sessionID uuid.UUID) error
}

// ChatSession describes a session and its transcript.
type ChatSession struct {
	ID         uuid.UUID      `json:"id"`
	RecipeID   uuid.UUID      `json:"recipeId"`
	Title      string         `json:"title"`
	Messages   []chat.Message `json:"messages"`
	InFlight   bool           `json:"inFlight"`
	LastActive time.Time      `json:"lastActive"`
}
