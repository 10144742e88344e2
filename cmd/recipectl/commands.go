package main

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/alchemorsel/recipe-studio/internal/ports/inbound"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newGenerateCommand() *cobra.Command {
	var (
		req    inbound.RecipeTextRequest
		opts   inbound.EnrichOptions
		noWait bool
	)
	cmd := &cobra.Command{
		Use:   "generate <ingredients>",
		Short: "Generate, save and enrich a recipe",
		Example: `  recipectl generate "egg, flour, milk" --meal-type breakfast
  recipectl generate "rice, tofu" --surprise --max-time 20`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := start(cmd, true)
			if err != nil {
				return err
			}
			defer s.close()

			req.Ingredients = strings.Join(args, " ")
			// the process exits after the command, so enrichment is awaited
			// unless explicitly declined
			opts.Await = !noWait

			result, err := s.Orchestrator.Generate(s.ctx, inbound.GenerateCommand{Request: req, EnrichOptions: opts})
			if err != nil {
				return err
			}
			return printGenerateResult(cmd.OutOrStdout(), result)
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.Cuisine, "cuisine", "", "cuisine, e.g. Italian")
	f.StringVar(&req.MealType, "meal-type", "", "meal type, e.g. breakfast")
	f.StringVar(&req.DietaryRestrictions, "diet", "", "dietary restrictions, e.g. vegan, gluten-free")
	f.StringVar(&req.Language, "language", "", "language of the recipe")
	f.BoolVar(&req.SurpriseMe, "surprise", false, "favor a novel dish over cuisine and meal type")
	f.IntVar(&req.MaxCookingTimeMinutes, "max-time", 0, "cooking time ceiling in minutes")
	f.BoolVar(&opts.SkipNutrition, "skip-nutrition", false, "do not estimate nutrition")
	f.BoolVar(&opts.SkipImage, "skip-image", false, "do not generate an image")
	f.BoolVar(&noWait, "no-wait", false, "return once the recipe is saved")
	return cmd
}

func newEnrichCommand() *cobra.Command {
	var opts inbound.EnrichOptions
	cmd := &cobra.Command{
		Use:   "enrich <recipe-id>",
		Short: "Run nutrition and image enrichment again for a saved recipe",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRecipeID(args[0])
			if err != nil {
				return err
			}
			s, err := start(cmd, true)
			if err != nil {
				return err
			}
			defer s.close()

			opts.Await = true
			result, err := s.Orchestrator.Reenrich(s.ctx, id, opts)
			if err != nil {
				return err
			}
			return printGenerateResult(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().BoolVar(&opts.SkipNutrition, "skip-nutrition", false, "do not estimate nutrition")
	cmd.Flags().BoolVar(&opts.SkipImage, "skip-image", false, "do not generate an image")
	return cmd
}

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"history"},
		Short:   "List saved recipes, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := start(cmd, true)
			if err != nil {
				return err
			}
			defer s.close()

			recipes, err := s.Store.History(s.ctx)
			if err != nil {
				return err
			}
			return printRecipeList(cmd.OutOrStdout(), inbound.ToRecipeDTOs(recipes))
		},
	}
}

func newFavoritesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "favorites",
		Short: "List favorite recipes, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := start(cmd, true)
			if err != nil {
				return err
			}
			defer s.close()

			recipes, err := s.Store.Favorites(s.ctx)
			if err != nil {
				return err
			}
			return printRecipeList(cmd.OutOrStdout(), inbound.ToRecipeDTOs(recipes))
		},
	}
}

func newShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <recipe-id>",
		Short: "Print one recipe",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRecipeID(args[0])
			if err != nil {
				return err
			}
			s, err := start(cmd, true)
			if err != nil {
				return err
			}
			defer s.close()

			r, err := s.Store.Get(s.ctx, id)
			if err != nil {
				return err
			}
			return printRecipe(cmd.OutOrStdout(), inbound.ToRecipeDTO(r))
		},
	}
}

func newToggleCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <recipe-id>",
		Short: "Flip the favorite flag of a recipe",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRecipeID(args[0])
			if err != nil {
				return err
			}
			s, err := start(cmd, true)
			if err != nil {
				return err
			}
			defer s.close()

			r, err := s.Store.ToggleFavorite(s.ctx, id)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), inbound.ToRecipeDTO(r))
			}
			state := "removed from"
			if r.IsFavorite() {
				state = "added to"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s favorites\n", r.Title(), state)
			return nil
		},
	}
}

func newRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <recipe-id>",
		Aliases: []string{"rm"},
		Short:   "Delete a recipe",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRecipeID(args[0])
			if err != nil {
				return err
			}
			s, err := start(cmd, true)
			if err != nil {
				return err
			}
			defer s.close()

			if err := s.Store.Remove(s.ctx, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", id)
			return nil
		},
	}
}

func newAskCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <recipe-id> <question>",
		Short: "Ask a question about a recipe",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRecipeID(args[0])
			if err != nil {
				return err
			}
			s, err := start(cmd, true)
			if err != nil {
				return err
			}
			defer s.close()

			sess, err := s.Chat.Open(s.ctx, id)
			if err != nil {
				return err
			}
			defer func() { _ = s.Chat.Close(s.ctx, sess.ID) }()

			answer, err := s.Chat.Ask(s.ctx, sess.ID, strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), answer)
			}
			fmt.Fprintln(cmd.OutOrStdout(), answer.Text)
			return nil
		},
	}
}

func newDetectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "detect <photo>",
		Short: "List the ingredients visible in a photo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			s, err := start(cmd, false)
			if err != nil {
				return err
			}
			defer s.close()

			detected, err := s.Gateway.DetectIngredients(s.ctx, inbound.DetectIngredientsRequest{
				PhotoDataURI: photoDataURI(data),
			})
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), detected)
			}
			if len(detected.Ingredients) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No ingredients found")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(detected.Ingredients, ", "))
			return nil
		},
	}
}

func newChallengeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "challenge",
		Short: "Suggest a cooking challenge",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := start(cmd, false)
			if err != nil {
				return err
			}
			defer s.close()

			challenge, err := s.Gateway.GenerateChallenge(s.ctx)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), challenge)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s\n\n%s\n\n", challenge.Title, challenge.Description)
			for _, c := range challenge.Constraints {
				fmt.Fprintf(out, "  - %s\n", c)
			}
			if challenge.ExampleDish != "" {
				fmt.Fprintf(out, "\nFor example: %s\n", challenge.ExampleDish)
			}
			return nil
		},
	}
}

func newPreferencesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "prefs",
		Aliases: []string{"preferences"},
		Short:   "Show or change saved generation preferences",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := start(cmd, true)
			if err != nil {
				return err
			}
			defer s.close()

			prefs, err := s.Store.Preferences(s.ctx)
			if err != nil {
				return err
			}
			return printPreferences(cmd.OutOrStdout(), prefs)
		},
	}

	var set inbound.SavePreferencesCommand
	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Replace saved preferences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := start(cmd, true)
			if err != nil {
				return err
			}
			defer s.close()

			prefs, err := s.Store.SavePreferences(s.ctx, set)
			if err != nil {
				return err
			}
			return printPreferences(cmd.OutOrStdout(), prefs)
		},
	}
	f := setCmd.Flags()
	f.StringVar(&set.Cuisine, "cuisine", "", "default cuisine")
	f.StringVar(&set.MealType, "meal-type", "", "default meal type")
	f.StringVar(&set.DietaryRestrictions, "diet", "", "default dietary restrictions")
	f.StringVar(&set.Language, "language", "", "default language")
	cmd.AddCommand(setCmd)
	return cmd
}

func newTokenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Issue an API bearer token for --user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := resolveUser(userFlag, os.Getenv(userEnv))
			if err != nil {
				return err
			}
			s, err := start(cmd, false)
			if err != nil {
				return err
			}
			defer s.close()

			token, claims, err := s.Identity.IssueToken(userID)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
					"token":      token,
					"user_id":    claims.UserID,
					"expires_at": claims.ExpiresAt.Time,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
}

func parseRecipeID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, usageError{fmt.Errorf("invalid recipe id %q", raw)}
	}
	return id, nil
}

// photoDataURI encodes an image file as a base64 data URI, sniffing the
// media type from its content.
func photoDataURI(data []byte) string {
	mimeType := http.DetectContentType(data)
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = mimeType[:i]
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
