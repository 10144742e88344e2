package outbound

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// CompletionRequest is one prompt sent to a hosted model.
type CompletionRequest struct {
	System string
	Prompt string
	// Images are inline data URIs passed alongside the prompt.
	Images      []string
	Temperature float32
	MaxTokens   int
	// JSON asks the provider for a JSON-only reply.
	JSON bool
	// Cacheable marks analysis prompts whose reply may be reused for an
	// identical request.
	Cacheable bool
}

// ImageResult is the media returned by an image model.
type ImageResult struct {
	DataURI string
}

// ModelProvider is a hosted text, vision and image model.
type ModelProvider interface {
	Name() string
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	GenerateImage(ctx context.Context, prompt string) (*ImageResult, error)
}

// AuthEventType is the kind of identity transition.
type AuthEventType string

const (
	AuthSignedIn  AuthEventType = "signed_in"
	AuthSignedOut AuthEventType = "signed_out"
)

// AuthEvent reports that a user signed in or out.
type AuthEvent struct {
	Type   AuthEventType
	UserID uuid.UUID
	At     time.Time
}

// IdentityProvider resolves the current user and reports identity changes.
type IdentityProvider interface {
	CurrentUser(ctx context.Context) (uuid.UUID, bool)
	OnAuthChange(listener func(AuthEvent)) (unsubscribe func())
}
