package inbound

import (
	"context"

	"github.com/alchemorsel/recipe-studio/internal/domain/recipe"
	"github.com/alchemorsel/recipe-studio/internal/domain/user"
	"github.com/google/uuid"
)

// RecipeStore is the authoritative cache of the current user's recipes.
// Every mutation writes remotely first and applies to memory only after the
// remote write succeeded.
type RecipeStore interface {
	FetchAll(ctx context.Context) (*StoreSnapshot, error)
	Save(ctx context.Context, cmd SaveRecipeCommand) (*recipe.Recipe, error)
	ToggleFavorite(ctx context.Context, id uuid.UUID) (*recipe.Recipe, error)
	UpdateImage(ctx context.Context, id uuid.UUID, imageURL string) (*recipe.Recipe, error)
	UpdateNutrition(ctx context.Context, id uuid.UUID, info recipe.NutritionInfo) (*recipe.Recipe, error)
	Remove(ctx context.Context, id uuid.UUID) error

	Get(ctx context.Context, id uuid.UUID) (*recipe.Recipe, error)
	History(ctx context.Context) ([]*recipe.Recipe, error)
	Favorites(ctx context.Context) ([]*recipe.Recipe, error)

	Preferences(ctx context.Context) (*user.Preferences, error)
	SavePreferences(ctx context.Context, cmd SavePreferencesCommand) (*user.Preferences, error)
}

// StoreSnapshot is the owner's full state after a fetch.
type StoreSnapshot struct {
	Recipes     []*recipe.Recipe
	Preferences *user.Preferences
}

// SaveRecipeCommand creates one durable recipe.
type SaveRecipeCommand struct {
	Core      recipe.CoreFields
	UserInput recipe.UserInput
	Nutrition *recipe.NutritionInfo
}

// SavePreferencesCommand replaces the owner's preferences.
type SavePreferencesCommand struct {
	Cuisine             string `json:"cuisine" validate:"max=100"`
	MealType            string `json:"mealType" validate:"max=100"`
	DietaryRestrictions string `json:"dietaryRestrictions" validate:"max=500"`
	Language            string `json:"language" validate:"max=50"`
}
