// Package inbound defines the use cases the service exposes to its
// transports, together with their commands and results.
package inbound

import (
	"context"

	"github.com/alchemorsel/recipe-studio/internal/domain/generation"
	"github.com/alchemorsel/recipe-studio/internal/domain/recipe"
)

// GenerationGateway turns typed requests into hosted model calls.
// Failures are *errors.AppError with CodeValidation or CodeGeneration.
type GenerationGateway interface {
	GenerateRecipeText(ctx context.Context, req RecipeTextRequest) (*recipe.CoreFields, error)
	GenerateImage(ctx context.Context, req ImageRequest) (*GeneratedImage, error)
	AnalyzeNutrition(ctx context.Context, req NutritionRequest) (*recipe.NutritionInfo, error)
	AnswerQuestion(ctx context.Context, req QuestionRequest) (*Answer, error)
	DetectIngredients(ctx context.Context, req DetectIngredientsRequest) (*DetectedIngredients, error)
	GenerateChallenge(ctx context.Context) (*generation.Challenge, error)
}

// RecipeTextRequest asks for a new recipe.
type RecipeTextRequest struct {
	Ingredients           string `json:"ingredients" validate:"required,notblank,max=2000"`
	Cuisine               string `json:"cuisine,omitempty" validate:"max=100"`
	MealType              string `json:"mealType,omitempty" validate:"max=100"`
	DietaryRestrictions   string `json:"dietaryRestrictions,omitempty" validate:"max=500"`
	Language              string `json:"language,omitempty" validate:"max=50"`
	SurpriseMe            bool   `json:"surpriseMe,omitempty"`
	MaxCookingTimeMinutes int    `json:"maxCookingTimeMinutes,omitempty" validate:"gte=0,lte=1440"`
}

// FromUserInput converts stored generation parameters into a request.
func FromUserInput(in recipe.UserInput) RecipeTextRequest {
	return RecipeTextRequest{
		Ingredients:           in.Ingredients,
		Cuisine:               in.Cuisine,
		MealType:              in.MealType,
		DietaryRestrictions:   in.DietaryRestrictions,
		Language:              in.Language,
		SurpriseMe:            in.SurpriseMe,
		MaxCookingTimeMinutes: in.MaxCookingTimeMinutes,
	}
}

// UserInput converts the request back into the stored form.
func (r RecipeTextRequest) UserInput() recipe.UserInput {
	return recipe.UserInput{
		Ingredients:           r.Ingredients,
		Cuisine:               r.Cuisine,
		MealType:              r.MealType,
		DietaryRestrictions:   r.DietaryRestrictions,
		Language:              r.Language,
		SurpriseMe:            r.SurpriseMe,
		MaxCookingTimeMinutes: r.MaxCookingTimeMinutes,
	}
}

// ImageRequest asks for an illustration of a recipe.
type ImageRequest struct {
	RecipeTitle string `json:"recipeTitle" validate:"required,notblank,max=300"`
}

// GeneratedImage is a self-contained data URI.
type GeneratedImage struct {
	DataURI string `json:"imageUrl"`
}

// NutritionRequest asks for a nutrition estimate.
type NutritionRequest struct {
	Title        string   `json:"title" validate:"required,notblank"`
	Ingredients  []string `json:"ingredients" validate:"min=1,dive,required"`
	Instructions []string `json:"instructions" validate:"min=1,dive,required"`
}

// QuestionRequest is one stateless question about a serialized recipe.
type QuestionRequest struct {
	Recipe   string `json:"recipe" validate:"required,notblank"`
	Question string `json:"question" validate:"required,notblank,max=2000"`
}

// Answer is the model's reply to a question.
type Answer struct {
	Text string `json:"answer"`
}

// DetectIngredientsRequest carries a photo as a data URI.
type DetectIngredientsRequest struct {
	PhotoDataURI string `json:"photoDataUri" validate:"required,datauri_image"`
}

// DetectedIngredients lists distinct ingredients. An empty list is a valid
// outcome.
type DetectedIngredients struct {
	Ingredients []string `json:"detectedIngredients"`
}
