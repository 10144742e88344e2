package gateway

import (
	"fmt"
	"strings"

	"github.com/alchemorsel/recipe-studio/internal/ports/inbound"
)

const systemPrompt = "You are a culinary assistant for home cooks. Reply with valid JSON only when JSON is requested."

// buildRecipePrompt creates the prompt for recipe text generation
func buildRecipePrompt(req inbound.RecipeTextRequest) string {
	var prompt strings.Builder

	prompt.WriteString("You are a recipe generation AI.\n")
	if lang := strings.TrimSpace(req.Language); lang != "" {
		prompt.WriteString(fmt.Sprintf("IMPORTANT: Write the entire recipe (title, ingredients and instructions) in %s.\n", lang))
	} else {
		prompt.WriteString("Write the recipe in English.\n")
	}

	if req.SurpriseMe {
		prompt.WriteString("\nCreate an unexpected, creative dish. Cuisine and meal type are open, pick something novel that still makes good use of the ingredients.\n")
	} else {
		prompt.WriteString("\nCreate a dish that fits the details below.\n")
	}

	prompt.WriteString(fmt.Sprintf("\nIngredients available: %s\n", strings.TrimSpace(req.Ingredients)))
	if !req.SurpriseMe {
		if req.Cuisine != "" {
			prompt.WriteString(fmt.Sprintf("Cuisine: %s\n", req.Cuisine))
		}
		if req.MealType != "" {
			prompt.WriteString(fmt.Sprintf("Meal type: %s\n", req.MealType))
		}
	}
	if req.DietaryRestrictions != "" {
		prompt.WriteString(fmt.Sprintf("Dietary restrictions (must be followed strictly): %s\n", req.DietaryRestrictions))
	}
	if req.MaxCookingTimeMinutes > 0 {
		prompt.WriteString(fmt.Sprintf("Aim for a total cooking time of about %d minutes or less.\n", req.MaxCookingTimeMinutes))
	}

	prompt.WriteString("\nRespond with a JSON object of the form:\n")
	prompt.WriteString(`{"title": "<recipe title>", "ingredients": ["<ingredient with quantity>"], "instructions": ["<one step>"]}`)
	prompt.WriteString("\nKeep title, ingredients and instructions in the same language.")

	return prompt.String()
}

func buildImagePrompt(title string) string {
	return fmt.Sprintf("Photorealistic image for a recipe card: '%s'. Vibrant, appetizing, well-lit, high-quality, food-focused and inviting.", strings.TrimSpace(title))
}

// buildNutritionPrompt creates the prompt for nutrition analysis
func buildNutritionPrompt(req inbound.NutritionRequest) string {
	var prompt strings.Builder

	prompt.WriteString("You are a nutritional analysis AI. Estimate the nutrition of the following recipe and give health tips.\n")
	prompt.WriteString("Your estimates should be reasonable for the ingredients provided.\n\n")
	prompt.WriteString(fmt.Sprintf("Recipe Title: %s\n", req.Title))

	prompt.WriteString("\nIngredients:\n")
	for _, ingredient := range req.Ingredients {
		prompt.WriteString(fmt.Sprintf("- %s\n", ingredient))
	}

	prompt.WriteString("\nInstructions:\n")
	for i, step := range req.Instructions {
		prompt.WriteString(fmt.Sprintf("%d. %s\n", i+1, step))
	}

	prompt.WriteString("\nFor calories, state whether the number is per serving (assume 2-4 servings based on the ingredients) or for the whole dish.\n")
	prompt.WriteString("Give 2 or 3 short, actionable health tips.\n")
	prompt.WriteString("Respond with a JSON object of the form:\n")
	prompt.WriteString(`{"estimatedCalories": 0, "caloriesBasis": "per_serving|total", "proteinGrams": 0, "carbsGrams": 0, "fatGrams": 0, "healthTips": ["<tip>"], "disclaimer": "<short disclaimer>"}`)

	return prompt.String()
}

func buildQuestionPrompt(req inbound.QuestionRequest) string {
	var prompt strings.Builder

	prompt.WriteString("You are a helpful AI assistant that answers questions about recipes.\n\n")
	prompt.WriteString("Here is the recipe:\n")
	prompt.WriteString(req.Recipe)
	prompt.WriteString("\n\nHere is the question:\n")
	prompt.WriteString(req.Question)
	prompt.WriteString("\n\nGive a concise and helpful answer in plain text.")

	return prompt.String()
}

const detectIngredientsPrompt = `You are an expert at identifying food ingredients from images.
Analyze the attached image and list all visible food ingredients.
Focus on common cooking ingredients. List each ingredient once, even if several are visible.
Use short names (for example "onion" rather than "a large red onion").
If no food ingredients are clearly identifiable, return an empty list.
Respond with a JSON object of the form: {"detectedIngredients": ["<ingredient>"]}`

const challengePrompt = `You generate exciting weekly cooking challenges for a community of home cooks.
Inspire creativity, learning and fun in the kitchen. Each challenge should be unique.

Consider themes like:
- Ingredient limitations (3-ingredient meals, single-color dishes, one seasonal ingredient)
- Technique focus (a specific sauce, fermentation, creative plating)
- Cuisine exploration (a region you have never cooked from, fusing two cuisines)
- Pantry raids (only what is already in the pantry)
- Creative twists on classics
- Time-based challenges (ready in under 20 minutes)
- Diet-specific challenges (a gourmet vegan main course)

The challenge must be achievable by an average home cook with standard equipment. Keep the tone enthusiastic.
Respond with a JSON object of the form:
{"title": "<title>", "description": "<detailed description>", "constraints": ["<2 to 4 clear constraints>"], "exampleDish": "<optional example>"}`
