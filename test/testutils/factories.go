// Package testutils provides test data factories for consistent test data generation
package testutils

import (
	"fmt"
	"strings"
	"time"

	"github.com/alchemorsel/recipe-studio/internal/domain/recipe"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
)

// RecipeFactory provides methods to create test recipes
type RecipeFactory struct {
	faker *gofakeit.Faker
}

// NewRecipeFactory creates a new recipe factory with seeded faker
func NewRecipeFactory(seed int64) *RecipeFactory {
	return &RecipeFactory{
		faker: gofakeit.New(seed),
	}
}

// Core creates generated recipe text
func (f *RecipeFactory) Core() recipe.CoreFields {
	ingredients := make([]string, f.faker.Number(3, 6))
	for i := range ingredients {
		ingredients[i] = fmt.Sprintf("%d %s %s", f.faker.Number(1, 4), f.faker.RandomString([]string{"cup", "tbsp", "tsp", "g"}), f.faker.Vegetable())
	}
	instructions := make([]string, f.faker.Number(2, 5))
	for i := range instructions {
		instructions[i] = f.faker.Sentence(8)
	}
	return recipe.CoreFields{
		Title:        strings.TrimSuffix(f.faker.Sentence(3), "."),
		Ingredients:  ingredients,
		Instructions: instructions,
	}
}

// Input creates generation parameters
func (f *RecipeFactory) Input() recipe.UserInput {
	return recipe.UserInput{
		Ingredients: strings.Join([]string{f.faker.Vegetable(), f.faker.Vegetable(), f.faker.Fruit()}, ", "),
		Cuisine:     f.faker.RandomString([]string{"Italian", "Mexican", "Thai", "Indian"}),
		MealType:    f.faker.RandomString([]string{"breakfast", "lunch", "dinner"}),
	}
}

// Nutrition creates a nutrition estimate
func (f *RecipeFactory) Nutrition() recipe.NutritionInfo {
	return recipe.NutritionInfo{
		EstimatedCalories: float64(f.faker.Number(150, 900)),
		CaloriesBasis:     recipe.CaloriesPerServing,
		ProteinGrams:      float64(f.faker.Number(5, 60)),
		CarbsGrams:        float64(f.faker.Number(10, 120)),
		FatGrams:          float64(f.faker.Number(2, 50)),
		HealthTips:        []string{f.faker.Sentence(6), f.faker.Sentence(6)},
		Disclaimer:        recipe.DefaultNutritionDisclaimer,
	}
}

// Draft creates an unsaved recipe for owner
func (f *RecipeFactory) Draft(owner uuid.UUID) *recipe.Recipe {
	r, err := recipe.NewDraft(owner, f.Core(), f.Input(), nil)
	if err != nil {
		panic(err)
	}
	return r
}

// Persisted creates a stored recipe for owner
func (f *RecipeFactory) Persisted(owner uuid.UUID, createdAt time.Time) *recipe.Recipe {
	core := f.Core()
	return recipe.Rehydrate(recipe.Snapshot{
		ID:           uuid.New(),
		OwnerID:      owner,
		Title:        core.Title,
		Ingredients:  core.Ingredients,
		Instructions: core.Instructions,
		UserInput:    f.Input(),
		CreatedAt:    createdAt,
	})
}
