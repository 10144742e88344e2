// Package main provides recipectl, a command line front end that runs the
// recipe studio services in-process against the configured database and
// model provider.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/alchemorsel/recipe-studio/internal/infrastructure/container"
	"github.com/alchemorsel/recipe-studio/internal/infrastructure/security"
	"github.com/alchemorsel/recipe-studio/internal/ports/inbound"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

// Exit codes
const (
	exitSuccess = 0
	exitFailure = 1
	exitUsage   = 2
)

// userEnv supplies --user when the flag is not given.
const userEnv = "RECIPE_STUDIO_USER"

var (
	configPath string
	userFlag   string
	jsonOutput bool
)

// services are the use cases a command may call. They are filled in by fx
// when a command starts the application.
type services struct {
	Store        inbound.RecipeStore
	Orchestrator inbound.GenerationOrchestrator
	Gateway      inbound.GenerationGateway
	Chat         inbound.ChatService
	Identity     *security.IdentityService
}

// session is a started application plus the identity commands act as.
type session struct {
	app *fx.App
	services
	ctx context.Context
}

func (s *session) close() {
	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.app.Stop(stopCtx); err != nil {
		fmt.Fprintf(os.Stderr, "shutdown: %v\n", err)
	}
}

// start builds the services. requireUser makes a missing --user a usage
// error.
func start(cmd *cobra.Command, requireUser bool) (*session, error) {
	if configPath != "" {
		if err := os.Setenv(container.ConfigPathEnv, configPath); err != nil {
			return nil, err
		}
	}
	if os.Getenv("RECIPE_STUDIO_LOGGING_LEVEL") == "" {
		_ = os.Setenv("RECIPE_STUDIO_LOGGING_LEVEL", "warn")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if requireUser {
		userID, err := resolveUser(userFlag, os.Getenv(userEnv))
		if err != nil {
			return nil, err
		}
		ctx = security.WithUser(ctx, userID)
	}

	s := &session{ctx: ctx}
	s.app = fx.New(
		fx.NopLogger,
		container.CoreModule,
		fx.Populate(&s.Store, &s.Orchestrator, &s.Gateway, &s.Chat, &s.Identity),
	)
	if err := s.app.Err(); err != nil {
		return nil, err
	}

	startCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := s.app.Start(startCtx); err != nil {
		return nil, fmt.Errorf("failed to start: %w", err)
	}
	return s, nil
}

// resolveUser parses the flag value, falling back to the environment.
func resolveUser(flagValue, envValue string) (uuid.UUID, error) {
	raw := flagValue
	if raw == "" {
		raw = envValue
	}
	if raw == "" {
		return uuid.Nil, usageError{fmt.Errorf("--user or %s is required", userEnv)}
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, usageError{fmt.Errorf("invalid user id %q: %w", raw, err)}
	}
	return id, nil
}

type usageError struct{ error }

func (e usageError) Unwrap() error { return e.error }

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "recipectl",
		Short:         "Generate and manage recipes from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ./config.yaml or ./configs/config.yaml)")
	root.PersistentFlags().StringVarP(&userFlag, "user", "u", "", "user id to act as (or "+userEnv+")")
	root.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print JSON instead of text")

	root.AddCommand(
		newGenerateCommand(),
		newEnrichCommand(),
		newListCommand(),
		newFavoritesCommand(),
		newShowCommand(),
		newToggleCommand(),
		newRemoveCommand(),
		newAskCommand(),
		newDetectCommand(),
		newChallengeCommand(),
		newPreferencesCommand(),
		newTokenCommand(),
	)
	return root
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", describeError(err))
		var usage usageError
		if errors.As(err, &usage) {
			os.Exit(exitUsage)
		}
		os.Exit(exitFailure)
	}
	os.Exit(exitSuccess)
}
