package inbound

import (
	"time"

	"github.com/alchemorsel/recipe-studio/internal/domain/recipe"
	"github.com/google/uuid"
)

// RecipeDTO is the wire form of a recipe. Pending enrichments are null.
type RecipeDTO struct {
	ID           uuid.UUID             `json:"id"`
	Title        string                `json:"title"`
	Ingredients  []string              `json:"ingredients"`
	Instructions []string              `json:"instructions"`
	UserInput    recipe.UserInput      `json:"userInput"`
	ImageURL     *string               `json:"imageUrl"`
	Nutrition    *recipe.NutritionInfo `json:"nutritionInfo"`
	IsFavorite   bool                  `json:"isFavorite"`
	CreatedAt    time.Time             `json:"createdAt"`
}

// ToRecipeDTO converts a recipe to its wire form.
func ToRecipeDTO(r *recipe.Recipe) *RecipeDTO {
	if r == nil {
		return nil
	}
	s := r.Snapshot()
	return &RecipeDTO{
		ID:           s.ID,
		Title:        s.Title,
		Ingredients:  s.Ingredients,
		Instructions: s.Instructions,
		UserInput:    s.UserInput,
		ImageURL:     s.ImageURL,
		Nutrition:    s.Nutrition,
		IsFavorite:   s.IsFavorite,
		CreatedAt:    s.CreatedAt,
	}
}

// ToRecipeDTOs converts a list of recipes, keeping order.
func ToRecipeDTOs(recipes []*recipe.Recipe) []*RecipeDTO {
	out := make([]*RecipeDTO, 0, len(recipes))
	for _, r := range recipes {
		out = append(out, ToRecipeDTO(r))
	}
	return out
}

// RecipeChange is the payload published after a recipe mutation.
type RecipeChange struct {
	Type     string     `json:"type"`
	RecipeID uuid.UUID  `json:"recipe_id"`
	Recipe   *RecipeDTO `json:"recipe,omitempty"`
}
