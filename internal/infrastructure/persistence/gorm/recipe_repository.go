package gorm

import (
	"context"
	"fmt"
	"time"

	"github.com/alchemorsel/recipe-studio/internal/domain/recipe"
	"github.com/alchemorsel/recipe-studio/internal/ports/outbound"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RecipeRepository implements the recipe repository interface using GORM.
// Every statement is scoped to the owner.
type RecipeRepository struct {
	db *gorm.DB
}

// NewRecipeRepository creates a new recipe repository
func NewRecipeRepository(db *gorm.DB) *RecipeRepository {
	return &RecipeRepository{db: db}
}

var _ outbound.RecipeRepository = (*RecipeRepository)(nil)

// ListByOwner returns the owner's recipes, newest first
func (r *RecipeRepository) ListByOwner(ctx context.Context, owner uuid.UUID) ([]*recipe.Recipe, error) {
	var models []RecipeModel

	result := r.db.WithContext(ctx).
		Where("owner_id = ?", owner).
		Order("created_at DESC").
		Order("id").
		Find(&models)
	if result.Error != nil {
		return nil, fmt.Errorf("list recipes: %w", result.Error)
	}

	recipes := make([]*recipe.Recipe, 0, len(models))
	for i := range models {
		rec, err := ModelToRecipe(&models[i])
		if err != nil {
			return nil, err
		}
		recipes = append(recipes, rec)
	}
	return recipes, nil
}

// Create inserts a draft and returns it with its assigned ID and creation time
func (r *RecipeRepository) Create(ctx context.Context, draft *recipe.Recipe) (*recipe.Recipe, error) {
	model, err := RecipeToModel(draft)
	if err != nil {
		return nil, fmt.Errorf("create recipe: %w", err)
	}
	model.ID = uuid.New()
	model.CreatedAt = time.Now().UTC()

	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return nil, fmt.Errorf("create recipe: %w", err)
	}
	return ModelToRecipe(model)
}

// UpdateFavorite sets the favorite flag
func (r *RecipeRepository) UpdateFavorite(ctx context.Context, id, owner uuid.UUID, favorite bool) error {
	return r.update(ctx, id, owner, map[string]interface{}{"is_favorite": favorite})
}

// UpdateImage sets the image URL
func (r *RecipeRepository) UpdateImage(ctx context.Context, id, owner uuid.UUID, imageURL string) error {
	return r.update(ctx, id, owner, map[string]interface{}{"image_url": imageURL})
}

// UpdateNutrition sets the nutrition estimate
func (r *RecipeRepository) UpdateNutrition(ctx context.Context, id, owner uuid.UUID, info recipe.NutritionInfo) error {
	field, err := NutritionToField(&info)
	if err != nil {
		return fmt.Errorf("update nutrition: %w", err)
	}
	return r.update(ctx, id, owner, map[string]interface{}{"nutrition_info": field})
}

// Delete removes a recipe
func (r *RecipeRepository) Delete(ctx context.Context, id, owner uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, owner).
		Delete(&RecipeModel{})
	if result.Error != nil {
		return fmt.Errorf("delete recipe: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return recipe.ErrRecipeNotFound
	}
	return nil
}

func (r *RecipeRepository) update(ctx context.Context, id, owner uuid.UUID, columns map[string]interface{}) error {
	columns["updated_at"] = time.Now().UTC()

	result := r.db.WithContext(ctx).
		Model(&RecipeModel{}).
		Where("id = ? AND owner_id = ?", id, owner).
		Updates(columns)
	if result.Error != nil {
		return fmt.Errorf("update recipe: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return recipe.ErrRecipeNotFound
	}
	return nil
}
