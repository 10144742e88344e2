package recipe

import "errors"

var (
	ErrEmptyTitle            = errors.New("recipe title must not be empty")
	ErrNoIngredients         = errors.New("recipe must have at least one ingredient")
	ErrNoInstructions        = errors.New("recipe must have at least one instruction")
	ErrEmptyIngredientsInput = errors.New("ingredients must not be empty")
	ErrInvalidCookingTime    = errors.New("max cooking time must be a positive number of minutes")
	ErrMissingOwner          = errors.New("recipe must have an owner")

	ErrRecipeNotFound = errors.New("recipe not found")
	ErrNotRecipeOwner = errors.New("only the recipe owner can perform this action")
)
