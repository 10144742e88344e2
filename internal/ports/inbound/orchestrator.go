package inbound

import (
	"context"

	"github.com/alchemorsel/recipe-studio/internal/domain/generation"
	"github.com/alchemorsel/recipe-studio/internal/domain/recipe"
	"github.com/google/uuid"
)

// GenerationOrchestrator drives text generation, persistence and enrichment.
type GenerationOrchestrator interface {
	Generate(ctx context.Context, cmd GenerateCommand) (*GenerateResult, error)
	Reenrich(ctx context.Context, recipeID uuid.UUID, opts EnrichOptions) (*GenerateResult, error)
	Status(ctx context.Context, runID uuid.UUID) (*generation.View, error)
}

// EnrichOptions selects the enrichment stages to run.
type EnrichOptions struct {
	SkipNutrition bool `json:"skipNutrition,omitempty"`
	SkipImage     bool `json:"skipImage,omitempty"`
	// Await blocks until both enrichment stages finished.
	Await bool `json:"await,omitempty"`
}

// GenerateCommand is one user generation request.
type GenerateCommand struct {
	Request RecipeTextRequest
	EnrichOptions
}

// GenerateResult is the run and the recipe as it stood when Generate
// returned. Without Await the recipe may still receive nutrition and image
// updates afterwards.
type GenerateResult struct {
	Run    generation.View
	Recipe *recipe.Recipe
}
