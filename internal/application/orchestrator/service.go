// Package orchestrator runs the generation pipeline: recipe text, then
// persistence, then nutrition and image enrichment in the background.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/alchemorsel/recipe-studio/internal/domain/generation"
	"github.com/alchemorsel/recipe-studio/internal/domain/recipe"
	"github.com/alchemorsel/recipe-studio/internal/infrastructure/monitoring"
	"github.com/alchemorsel/recipe-studio/internal/ports/inbound"
	"github.com/alchemorsel/recipe-studio/internal/ports/outbound"
	apperrors "github.com/alchemorsel/recipe-studio/pkg/errors"
	"github.com/alchemorsel/recipe-studio/pkg/validation"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Config controls enrichment behavior.
type Config struct {
	// AwaitEnrichment makes every Generate wait for enrichment.
	AwaitEnrichment   bool
	EnrichmentTimeout time.Duration
	RunTTL            time.Duration
	// ImagePrefix is the storage key prefix for uploaded images.
	ImagePrefix string
}

// Service implements inbound.GenerationOrchestrator.
type Service struct {
	gateway  inbound.GenerationGateway
	store    inbound.RecipeStore
	identity outbound.IdentityProvider
	cache    outbound.CacheRepository
	images   outbound.ImageStorage
	tracer   *monitoring.TracingProvider
	metrics  *monitoring.Metrics
	config   Config
	logger   *zap.Logger

	mu   sync.RWMutex
	runs map[uuid.UUID]*generation.Run

	inflight sync.WaitGroup
}

// NewService creates a new orchestrator. images, tracer and metrics may be
// nil; without images the generated data URI is stored as is.
func NewService(
	gateway inbound.GenerationGateway,
	store inbound.RecipeStore,
	identity outbound.IdentityProvider,
	cache outbound.CacheRepository,
	images outbound.ImageStorage,
	tracer *monitoring.TracingProvider,
	metrics *monitoring.Metrics,
	config Config,
	logger *zap.Logger,
) *Service {
	if config.EnrichmentTimeout <= 0 {
		config.EnrichmentTimeout = 2 * time.Minute
	}
	if config.RunTTL <= 0 {
		config.RunTTL = 24 * time.Hour
	}
	return &Service{
		gateway:  gateway,
		store:    store,
		identity: identity,
		cache:    cache,
		images:   images,
		tracer:   tracer,
		metrics:  metrics,
		config:   config,
		logger:   logger.Named("orchestrator"),
		runs:     make(map[uuid.UUID]*generation.Run),
	}
}

var _ inbound.GenerationOrchestrator = (*Service)(nil)

// Generate produces, saves and enriches one recipe. Without Await it
// returns once the recipe is saved and enrichment continues in the
// background.
func (s *Service) Generate(ctx context.Context, cmd inbound.GenerateCommand) (*inbound.GenerateResult, error) {
	owner, ok := s.identity.CurrentUser(ctx)
	if !ok {
		return nil, apperrors.NewAuthFailure()
	}

	ctx, span := s.tracer.StartSpan(ctx, "orchestrator.generate")
	defer span.End()

	input := cmd.Request.UserInput()
	if prefs, err := s.store.Preferences(ctx); err != nil {
		s.logger.Warn("Generating without saved preferences", zap.Error(err))
	} else {
		input = prefs.ApplyTo(input)
	}

	run := generation.NewRun(owner)
	s.register(run)
	span.SetAttributes(attribute.String("run.id", run.ID().String()))

	// Text
	s.advance(run, generation.StageGeneratingText)
	core, err := s.gateway.GenerateRecipeText(ctx, inbound.FromUserInput(input))
	s.metrics.ObserveStage(string(generation.StageGeneratingText), err)
	if err != nil {
		s.fail(ctx, run, err)
		return nil, err
	}

	// Persistence
	s.advance(run, generation.StagePersisting)
	saved, err := s.store.Save(ctx, inbound.SaveRecipeCommand{Core: *core, UserInput: input})
	s.metrics.ObserveStage(string(generation.StagePersisting), err)
	if err != nil {
		s.fail(ctx, run, err)
		return nil, withGeneratedText(err, core)
	}
	run.AttachRecipe(saved.ID())
	span.SetAttributes(attribute.String("recipe.id", saved.ID().String()))

	s.logger.Info("Recipe generated",
		zap.String("run_id", run.ID().String()),
		zap.String("recipe_id", saved.ID().String()),
		zap.String("title", saved.Title()),
	)

	// Enrichment
	s.advance(run, generation.StageEnrichingNutrition)
	done := s.enrich(ctx, run, saved, cmd.EnrichOptions)
	return s.result(ctx, run, saved, done, cmd.Await)
}

// Reenrich runs enrichment again for a saved recipe, skipping fields that
// are already present. It recovers enrichment that never finished.
func (s *Service) Reenrich(ctx context.Context, recipeID uuid.UUID, opts inbound.EnrichOptions) (*inbound.GenerateResult, error) {
	owner, ok := s.identity.CurrentUser(ctx)
	if !ok {
		return nil, apperrors.NewAuthFailure()
	}

	current, err := s.store.Get(ctx, recipeID)
	if err != nil {
		return nil, err
	}
	opts.SkipNutrition = opts.SkipNutrition || current.Nutrition().IsReady()
	opts.SkipImage = opts.SkipImage || current.Image().IsReady()

	run := generation.NewEnrichmentRun(owner, recipeID)
	s.register(run)

	s.logger.Info("Re-running enrichment",
		zap.String("run_id", run.ID().String()),
		zap.String("recipe_id", recipeID.String()),
		zap.Bool("nutrition", !opts.SkipNutrition),
		zap.Bool("image", !opts.SkipImage),
	)

	done := s.enrich(ctx, run, current, opts)
	return s.result(ctx, run, current, done, opts.Await)
}

// Status returns the state of a run owned by the caller.
func (s *Service) Status(ctx context.Context, runID uuid.UUID) (*generation.View, error) {
	owner, ok := s.identity.CurrentUser(ctx)
	if !ok {
		return nil, apperrors.NewAuthFailure()
	}

	s.mu.RLock()
	run, found := s.runs[runID]
	s.mu.RUnlock()
	if found {
		if run.OwnerID() != owner {
			return nil, apperrors.NewNotFoundError("Run")
		}
		v := run.View()
		return &v, nil
	}

	data, err := s.cache.Get(ctx, runKey(runID))
	if err != nil {
		if !errors.Is(err, outbound.ErrCacheMiss) {
			s.logger.Warn("Failed to read run from cache", zap.String("run_id", runID.String()), zap.Error(err))
		}
		return nil, apperrors.NewNotFoundError("Run")
	}
	var stored storedRun
	if err := json.Unmarshal(data, &stored); err != nil || stored.OwnerID != owner {
		return nil, apperrors.NewNotFoundError("Run")
	}
	return &stored.View, nil
}

// Wait blocks until all background enrichment has finished or ctx ends.
func (s *Service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) result(ctx context.Context, run *generation.Run, r *recipe.Recipe, done <-chan struct{}, await bool) (*inbound.GenerateResult, error) {
	if !await && !s.config.AwaitEnrichment {
		return &inbound.GenerateResult{Run: run.View(), Recipe: r}, nil
	}

	select {
	case <-done:
	case <-ctx.Done():
		return &inbound.GenerateResult{Run: run.View(), Recipe: r}, nil
	}

	final, err := s.store.Get(ctx, r.ID())
	if err != nil {
		s.logger.Warn("Failed to read enriched recipe", zap.String("recipe_id", r.ID().String()), zap.Error(err))
		final = r
	}
	return &inbound.GenerateResult{Run: run.View(), Recipe: final}, nil
}

// enrich starts the nutrition and image tasks on a context detached from
// the request. The returned channel closes when both finished and the run
// reached done.
func (s *Service) enrich(ctx context.Context, run *generation.Run, r *recipe.Recipe, opts inbound.EnrichOptions) <-chan struct{} {
	ectx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.EnrichmentTimeout)

	// Only the stages this run starts are bumped, so a skipped stage keeps
	// its in-flight result from an earlier run.
	var nutritionGen, imageGen int64
	if !opts.SkipNutrition {
		nutritionGen = s.nextGeneration(ectx, r.ID(), generation.StageEnrichingNutrition)
	}
	if !opts.SkipImage {
		imageGen = s.nextGeneration(ectx, r.ID(), generation.StageEnrichingImage)
	}
	done := make(chan struct{})

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer close(done)
		defer cancel()

		var nutritionDone sync.Once
		finishNutrition := func() {
			nutritionDone.Do(func() { s.advance(run, generation.StageEnrichingImage) })
		}

		var g errgroup.Group
		if opts.SkipNutrition {
			finishNutrition()
		} else {
			g.Go(func() error {
				defer finishNutrition()
				s.enrichNutrition(ectx, run, r, nutritionGen)
				return nil
			})
		}
		if !opts.SkipImage {
			g.Go(func() error {
				s.enrichImage(ectx, run, r, imageGen)
				return nil
			})
		}
		_ = g.Wait()

		finishNutrition()
		s.advance(run, generation.StageDone)
		s.mirror(ectx, run)
	}()

	return done
}

func (s *Service) enrichNutrition(ctx context.Context, run *generation.Run, r *recipe.Recipe, gen int64) {
	stage := generation.StageEnrichingNutrition
	ctx, span := s.tracer.StartSpan(ctx, "orchestrator.enrich_nutrition")

	info, err := s.gateway.AnalyzeNutrition(ctx, inbound.NutritionRequest{
		Title:        r.Title(),
		Ingredients:  r.Ingredients(),
		Instructions: r.Instructions(),
	})
	if err == nil {
		if !s.isCurrent(ctx, r.ID(), stage, gen) {
			s.dropStale(run, stage, r.ID())
			monitoring.EndSpan(span, nil)
			return
		}
		_, err = s.store.UpdateNutrition(ctx, r.ID(), *info)
	}
	s.metrics.ObserveStage(string(stage), err)
	monitoring.EndSpan(span, err)
	if err != nil {
		s.notice(run, stage, r.ID(), err)
	}
}

func (s *Service) enrichImage(ctx context.Context, run *generation.Run, r *recipe.Recipe, gen int64) {
	stage := generation.StageEnrichingImage
	ctx, span := s.tracer.StartSpan(ctx, "orchestrator.enrich_image")

	image, err := s.gateway.GenerateImage(ctx, inbound.ImageRequest{RecipeTitle: r.Title()})
	if err == nil {
		url := s.upload(ctx, r, image.DataURI)
		if !s.isCurrent(ctx, r.ID(), stage, gen) {
			s.dropStale(run, stage, r.ID())
			monitoring.EndSpan(span, nil)
			return
		}
		_, err = s.store.UpdateImage(ctx, r.ID(), url)
	}
	s.metrics.ObserveStage(string(stage), err)
	monitoring.EndSpan(span, err)
	if err != nil {
		s.notice(run, stage, r.ID(), err)
	}
}

// upload stores the image and returns its URL. It falls back to the data
// URI when storage is off or the upload fails.
func (s *Service) upload(ctx context.Context, r *recipe.Recipe, dataURI string) string {
	if s.images == nil {
		return dataURI
	}
	mimeType, data, err := validation.ParseDataURI(dataURI)
	if err != nil {
		s.logger.Warn("Keeping unparseable image inline", zap.String("recipe_id", r.ID().String()), zap.Error(err))
		return dataURI
	}

	key := fmt.Sprintf("%s%s/%s%s", s.config.ImagePrefix, r.OwnerID(), r.ID(), extension(mimeType))
	url, err := s.images.Upload(ctx, key, mimeType, data)
	if err != nil {
		s.logger.Warn("Image upload failed, keeping data URI",
			zap.String("recipe_id", r.ID().String()),
			zap.String("key", key),
			zap.Error(err),
		)
		return dataURI
	}
	return url
}

func (s *Service) nextGeneration(ctx context.Context, recipeID uuid.UUID, stage generation.Stage) int64 {
	key := generationKey(recipeID, stage)
	gen, err := s.cache.Increment(ctx, key)
	if err != nil {
		s.logger.Warn("Enrichment counter unavailable", zap.String("recipe_id", recipeID.String()), zap.Error(err))
		return 0
	}
	_ = s.cache.Expire(ctx, key, s.config.RunTTL)
	return gen
}

// isCurrent reports whether gen is still the latest run of stage for the
// recipe. When the counter cannot be read the result is written anyway.
func (s *Service) isCurrent(ctx context.Context, recipeID uuid.UUID, stage generation.Stage, gen int64) bool {
	if gen == 0 {
		return true
	}
	data, err := s.cache.Get(ctx, generationKey(recipeID, stage))
	if err != nil {
		return true
	}
	latest, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return true
	}
	return latest == gen
}

func (s *Service) dropStale(run *generation.Run, stage generation.Stage, recipeID uuid.UUID) {
	s.logger.Info("Dropping stale enrichment result",
		zap.String("run_id", run.ID().String()),
		zap.String("recipe_id", recipeID.String()),
		zap.String("stage", string(stage)),
	)
	run.AddNotice(stage, "superseded by a newer enrichment")
}

func (s *Service) notice(run *generation.Run, stage generation.Stage, recipeID uuid.UUID, err error) {
	s.logger.Warn("Enrichment failed",
		zap.String("run_id", run.ID().String()),
		zap.String("recipe_id", recipeID.String()),
		zap.String("stage", string(stage)),
		zap.Error(err),
	)
	msg := err.Error()
	if appErr, ok := apperrors.As(err); ok {
		msg = appErr.Message
		if appErr.Details != "" {
			msg = appErr.Details
		}
	}
	run.AddNotice(stage, msg)
}

func (s *Service) register(run *generation.Run) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-s.config.RunTTL)
	for id, existing := range s.runs {
		if v := existing.View(); v.Stage.Terminal() && v.UpdatedAt.Before(cutoff) {
			delete(s.runs, id)
		}
	}
	s.runs[run.ID()] = run
}

func (s *Service) advance(run *generation.Run, next generation.Stage) {
	if err := run.Advance(next); err != nil {
		s.logger.Error("Unexpected stage transition", zap.String("run_id", run.ID().String()), zap.Error(err))
	}
}

func (s *Service) fail(ctx context.Context, run *generation.Run, err error) {
	stage := run.Stage()
	if ferr := run.Fail(err.Error()); ferr != nil {
		s.logger.Error("Unexpected stage transition", zap.String("run_id", run.ID().String()), zap.Error(ferr))
	}
	s.logger.Warn("Generation failed",
		zap.String("run_id", run.ID().String()),
		zap.String("stage", string(stage)),
		zap.Error(err),
	)
	s.mirror(ctx, run)
}

// storedRun is the cache form of a finished run
type storedRun struct {
	OwnerID uuid.UUID       `json:"owner_id"`
	View    generation.View `json:"view"`
}

func (s *Service) mirror(ctx context.Context, run *generation.Run) {
	data, err := json.Marshal(storedRun{OwnerID: run.OwnerID(), View: run.View()})
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, runKey(run.ID()), data, s.config.RunTTL); err != nil {
		s.logger.Warn("Failed to mirror run", zap.String("run_id", run.ID().String()), zap.Error(err))
	}
}

// withGeneratedText keeps the generated text on a persistence failure so
// the caller can still show it.
func withGeneratedText(err error, core *recipe.CoreFields) error {
	appErr, ok := apperrors.As(err)
	if !ok {
		appErr = apperrors.NewPersistenceFailure("save recipe", err)
	}
	return appErr.
		WithMetadata("title", core.Title).
		WithMetadata("ingredients", core.Ingredients).
		WithMetadata("instructions", core.Instructions)
}

func runKey(id uuid.UUID) string {
	return "run:" + id.String()
}

func generationKey(recipeID uuid.UUID, stage generation.Stage) string {
	return "enrich:gen:" + recipeID.String() + ":" + stageSuffix(stage)
}

func stageSuffix(stage generation.Stage) string {
	if stage == generation.StageEnrichingImage {
		return "image"
	}
	return "nutrition"
}

func extension(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ""
	}
}
