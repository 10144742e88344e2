package gorm

import (
	"encoding/json"
	"fmt"

	"github.com/alchemorsel/recipe-studio/internal/domain/recipe"
	"github.com/alchemorsel/recipe-studio/internal/domain/user"
)

// RecipeToModel converts a domain recipe to a GORM model
func RecipeToModel(r *recipe.Recipe) (*RecipeModel, error) {
	s := r.Snapshot()
	nutrition, err := NutritionToField(s.Nutrition)
	if err != nil {
		return nil, err
	}

	return &RecipeModel{
		ID:            s.ID,
		OwnerID:       s.OwnerID,
		Title:         s.Title,
		Ingredients:   s.Ingredients,
		Instructions:  s.Instructions,
		UserInput:     userInputToModel(s.UserInput),
		ImageURL:      s.ImageURL,
		NutritionInfo: nutrition,
		IsFavorite:    s.IsFavorite,
		CreatedAt:     s.CreatedAt,
	}, nil
}

// ModelToRecipe converts a GORM model to a domain recipe
func ModelToRecipe(m *RecipeModel) (*recipe.Recipe, error) {
	var nutrition *recipe.NutritionInfo
	if m.NutritionInfo != nil && *m.NutritionInfo != nil {
		data, err := json.Marshal(*m.NutritionInfo)
		if err != nil {
			return nil, fmt.Errorf("recipe %s: %w", m.ID, err)
		}
		nutrition = &recipe.NutritionInfo{}
		if err := json.Unmarshal(data, nutrition); err != nil {
			return nil, fmt.Errorf("recipe %s: decode nutrition: %w", m.ID, err)
		}
	}

	return recipe.Rehydrate(recipe.Snapshot{
		ID:           m.ID,
		OwnerID:      m.OwnerID,
		Title:        m.Title,
		Ingredients:  []string(m.Ingredients),
		Instructions: []string(m.Instructions),
		UserInput: recipe.UserInput{
			Ingredients:           m.UserInput.Ingredients,
			Cuisine:               m.UserInput.Cuisine,
			MealType:              m.UserInput.MealType,
			DietaryRestrictions:   m.UserInput.DietaryRestrictions,
			Language:              m.UserInput.Language,
			SurpriseMe:            m.UserInput.SurpriseMe,
			MaxCookingTimeMinutes: m.UserInput.MaxCookingTimeMinutes,
		},
		ImageURL:   m.ImageURL,
		Nutrition:  nutrition,
		IsFavorite: m.IsFavorite,
		CreatedAt:  m.CreatedAt,
	}), nil
}

// NutritionToField encodes a nutrition estimate as a JSON column value
func NutritionToField(info *recipe.NutritionInfo) (*JSONField, error) {
	if info == nil {
		return nil, nil
	}
	data, err := json.Marshal(info)
	if err != nil {
		return nil, err
	}
	field := JSONField{}
	if err := json.Unmarshal(data, &field); err != nil {
		return nil, err
	}
	return &field, nil
}

func userInputToModel(in recipe.UserInput) UserInputModel {
	return UserInputModel{
		Ingredients:           in.Ingredients,
		Cuisine:               in.Cuisine,
		MealType:              in.MealType,
		DietaryRestrictions:   in.DietaryRestrictions,
		Language:              in.Language,
		SurpriseMe:            in.SurpriseMe,
		MaxCookingTimeMinutes: in.MaxCookingTimeMinutes,
	}
}

// PreferencesToModel converts domain preferences to a GORM model
func PreferencesToModel(p *user.Preferences) *PreferencesModel {
	return &PreferencesModel{
		OwnerID:             p.OwnerID,
		Cuisine:             p.Cuisine,
		MealType:            p.MealType,
		DietaryRestrictions: p.DietaryRestrictions,
		Language:            p.Language,
		UpdatedAt:           p.UpdatedAt,
	}
}

// ModelToPreferences converts a GORM model to domain preferences
func ModelToPreferences(m *PreferencesModel) *user.Preferences {
	return &user.Preferences{
		OwnerID:             m.OwnerID,
		Cuisine:             m.Cuisine,
		MealType:            m.MealType,
		DietaryRestrictions: m.DietaryRestrictions,
		Language:            m.Language,
		UpdatedAt:           m.UpdatedAt,
	}
}
