package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/alchemorsel/recipe-studio/internal/domain/user"
	"github.com/alchemorsel/recipe-studio/internal/ports/inbound"
	apperrors "github.com/alchemorsel/recipe-studio/pkg/errors"
)

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printGenerateResult(w io.Writer, result *inbound.GenerateResult) error {
	if jsonOutput {
		return writeJSON(w, struct {
			Run    interface{}        `json:"run"`
			Recipe *inbound.RecipeDTO `json:"recipe"`
		}{result.Run, inbound.ToRecipeDTO(result.Recipe)})
	}
	if err := printRecipe(w, inbound.ToRecipeDTO(result.Recipe)); err != nil {
		return err
	}
	for _, n := range result.Run.Notices {
		fmt.Fprintf(w, "\nNote: %s skipped: %s\n", n.Stage, n.Message)
	}
	return nil
}

func printRecipe(w io.Writer, r *inbound.RecipeDTO) error {
	if jsonOutput {
		return writeJSON(w, r)
	}

	star := ""
	if r.IsFavorite {
		star = " *"
	}
	fmt.Fprintf(w, "%s%s\n", r.Title, star)
	fmt.Fprintf(w, "id %s, created %s\n\n", r.ID, r.CreatedAt.Format("Jan 2, 2006 at 3:04 PM"))

	fmt.Fprintln(w, "Ingredients:")
	for _, ing := range r.Ingredients {
		fmt.Fprintf(w, "  - %s\n", ing)
	}
	fmt.Fprintln(w, "\nInstructions:")
	for i, step := range r.Instructions {
		fmt.Fprintf(w, "  %d. %s\n", i+1, step)
	}

	if n := r.Nutrition; n != nil {
		fmt.Fprintf(w, "\nNutrition (estimated): %.0f kcal", n.EstimatedCalories)
		if n.CaloriesBasis != "" {
			fmt.Fprintf(w, " %s", strings.ReplaceAll(string(n.CaloriesBasis), "_", " "))
		}
		fmt.Fprintf(w, ", protein %.0fg, carbs %.0fg, fat %.0fg\n", n.ProteinGrams, n.CarbsGrams, n.FatGrams)
		for _, tip := range n.HealthTips {
			fmt.Fprintf(w, "  - %s\n", tip)
		}
		fmt.Fprintf(w, "%s\n", n.Disclaimer)
	}
	if r.ImageURL != nil {
		fmt.Fprintf(w, "\nImage: %s\n", abbreviate(*r.ImageURL, 80))
	}
	return nil
}

func printRecipeList(w io.Writer, recipes []*inbound.RecipeDTO) error {
	if jsonOutput {
		return writeJSON(w, recipes)
	}
	if len(recipes) == 0 {
		fmt.Fprintln(w, "No recipes yet")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tFAVORITE\tCREATED")
	for _, r := range recipes {
		fav := ""
		if r.IsFavorite {
			fav = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ID, abbreviate(r.Title, 48), fav, r.CreatedAt.Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func printPreferences(w io.Writer, prefs *user.Preferences) error {
	if prefs == nil {
		prefs = &user.Preferences{}
	}
	if jsonOutput {
		return writeJSON(w, prefs)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "cuisine\t%s\n", orDash(prefs.Cuisine))
	fmt.Fprintf(tw, "meal type\t%s\n", orDash(prefs.MealType))
	fmt.Fprintf(tw, "diet\t%s\n", orDash(prefs.DietaryRestrictions))
	fmt.Fprintf(tw, "language\t%s\n", orDash(prefs.Language))
	return tw.Flush()
}

// describeError renders application failures the way the API reports them
func describeError(err error) string {
	var usage usageError
	if errors.As(err, &usage) {
		return usage.Error()
	}
	appErr, ok := apperrors.As(err)
	if !ok {
		return err.Error()
	}
	switch appErr.Code {
	case apperrors.CodeAuth:
		return "you must be logged in: pass --user"
	case apperrors.CodeValidation:
		if field, ok := appErr.Metadata["field"]; ok {
			return fmt.Sprintf("invalid %v: %s", field, appErr.Details)
		}
	}
	msg := appErr.Message
	if appErr.Details != "" {
		msg += " (" + appErr.Details + ")"
	}
	return msg
}

func abbreviate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
