package main

import (
	"bytes"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alchemorsel/recipe-studio/internal/domain/recipe"
	"github.com/alchemorsel/recipe-studio/internal/ports/inbound"
	apperrors "github.com/alchemorsel/recipe-studio/pkg/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveUser(t *testing.T) {
	id := uuid.New()

	t.Run("Flag_ShouldWinOverEnvironment", func(t *testing.T) {
		got, err := resolveUser(id.String(), uuid.New().String())
		require.NoError(t, err)
		assert.Equal(t, id, got)
	})

	t.Run("Environment_ShouldBeUsedWithoutFlag", func(t *testing.T) {
		got, err := resolveUser("", id.String())
		require.NoError(t, err)
		assert.Equal(t, id, got)
	})

	t.Run("Missing_ShouldBeUsageError", func(t *testing.T) {
		_, err := resolveUser("", "")
		var usage usageError
		assert.True(t, errors.As(err, &usage))
	})

	t.Run("Malformed_ShouldBeUsageError", func(t *testing.T) {
		_, err := resolveUser("not-a-uuid", "")
		var usage usageError
		assert.True(t, errors.As(err, &usage))
	})
}

func TestPhotoDataURI(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

	uri := photoDataURI(png)

	require.True(t, strings.HasPrefix(uri, "data:image/png;base64,"))
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, "data:image/png;base64,"))
	require.NoError(t, err)
	assert.Equal(t, png, decoded)
}

func TestDescribeError(t *testing.T) {
	assert.Equal(t, "you must be logged in: pass --user", describeError(apperrors.NewAuthFailure()))
	assert.Equal(t, "invalid ingredients: must not be blank",
		describeError(apperrors.NewValidationFailure("ingredients", "must not be blank")))
	assert.Equal(t, "plain", describeError(errors.New("plain")))
}

func TestPrintRecipe(t *testing.T) {
	jsonOutput = false
	image := "https://cdn.example.com/pancakes.png"
	dto := &inbound.RecipeDTO{
		ID:           uuid.New(),
		Title:        "Simple Pancakes",
		Ingredients:  []string{"1 egg", "1 cup flour", "1 cup milk"},
		Instructions: []string{"Whisk everything.", "Fry in a hot pan."},
		ImageURL:     &image,
		Nutrition: &recipe.NutritionInfo{
			EstimatedCalories: 320,
			CaloriesBasis:     recipe.CaloriesPerServing,
			ProteinGrams:      12,
			CarbsGrams:        45,
			FatGrams:          9,
			HealthTips:        []string{"Add berries for fiber."},
			Disclaimer:        "Estimated.",
		},
		IsFavorite: true,
		CreatedAt:  time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC),
	}

	var buf bytes.Buffer
	require.NoError(t, printRecipe(&buf, dto))

	out := buf.String()
	assert.Contains(t, out, "Simple Pancakes *")
	assert.Contains(t, out, "  2. Fry in a hot pan.")
	assert.Contains(t, out, "320 kcal per serving")
	assert.Contains(t, out, "Image: "+image)
}

func TestPrintRecipeList_Empty(t *testing.T) {
	jsonOutput = false
	var buf bytes.Buffer

	require.NoError(t, printRecipeList(&buf, nil))

	assert.Equal(t, "No recipes yet\n", buf.String())
}

func TestRootCommand_RegistersSubcommands(t *testing.T) {
	root := newRootCommand()

	for _, name := range []string{"generate", "list", "favorites", "toggle", "remove", "ask", "detect", "challenge", "prefs", "token", "enrich", "show"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
}
