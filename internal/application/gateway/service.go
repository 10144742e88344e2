// Package gateway turns typed generation requests into hosted model calls
// and validates what comes back.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alchemorsel/recipe-studio/internal/domain/generation"
	"github.com/alchemorsel/recipe-studio/internal/domain/recipe"
	"github.com/alchemorsel/recipe-studio/internal/infrastructure/monitoring"
	"github.com/alchemorsel/recipe-studio/internal/ports/inbound"
	"github.com/alchemorsel/recipe-studio/internal/ports/outbound"
	apperrors "github.com/alchemorsel/recipe-studio/pkg/errors"
	"github.com/alchemorsel/recipe-studio/pkg/validation"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Operation names used for spans, metrics and error metadata.
const (
	OpRecipeText = "generate_recipe_text"
	OpImage      = "generate_image"
	OpNutrition  = "analyze_nutrition"
	OpAnswer     = "answer_question"
	OpDetect     = "detect_ingredients"
	OpChallenge  = "generate_challenge"
)

var errNoMedia = errors.New("image model returned no media")

// Config controls provider calls.
type Config struct {
	RequestTimeout time.Duration
	Temperature    float32
	MaxTokens      int
}

// Service implements inbound.GenerationGateway on top of a ModelProvider.
// It never retries.
type Service struct {
	provider outbound.ModelProvider
	validate *validation.Validator
	tracer   *monitoring.TracingProvider
	metrics  *monitoring.Metrics
	config   Config
	logger   *zap.Logger
}

// NewService creates a new gateway service. tracer and metrics may be nil.
func NewService(
	provider outbound.ModelProvider,
	config Config,
	tracer *monitoring.TracingProvider,
	metrics *monitoring.Metrics,
	logger *zap.Logger,
) *Service {
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 60 * time.Second
	}
	return &Service{
		provider: provider,
		validate: validation.New(),
		tracer:   tracer,
		metrics:  metrics,
		config:   config,
		logger:   logger.Named("gateway"),
	}
}

var _ inbound.GenerationGateway = (*Service)(nil)

// GenerateRecipeText asks the model for a recipe matching req.
func (s *Service) GenerateRecipeText(ctx context.Context, req inbound.RecipeTextRequest) (*recipe.CoreFields, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}

	var reply recipeTextReply
	err := s.call(ctx, OpRecipeText, func(ctx context.Context) error {
		return s.completeJSON(ctx, OpRecipeText, outbound.CompletionRequest{
			System:      systemPrompt,
			Prompt:      buildRecipePrompt(req),
			Temperature: s.config.Temperature,
			MaxTokens:   s.config.MaxTokens,
			JSON:        true,
		}, &reply)
	})
	if err != nil {
		return nil, err
	}

	core := reply.core()
	s.logger.Debug("Recipe text generated",
		zap.String("title", core.Title),
		zap.Int("ingredients", len(core.Ingredients)),
		zap.Int("steps", len(core.Instructions)),
	)
	return core, nil
}

// GenerateImage asks the image model for an illustration of the recipe.
func (s *Service) GenerateImage(ctx context.Context, req inbound.ImageRequest) (*inbound.GeneratedImage, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}

	var image *inbound.GeneratedImage
	err := s.call(ctx, OpImage, func(ctx context.Context) error {
		result, err := s.provider.GenerateImage(ctx, buildImagePrompt(req.RecipeTitle))
		if err != nil {
			return apperrors.NewGenerationFailure(OpImage, err)
		}
		if result == nil || strings.TrimSpace(result.DataURI) == "" {
			return apperrors.NewGenerationFailure(OpImage, errNoMedia)
		}
		if _, _, err := validation.ParseDataURI(result.DataURI); err != nil {
			return apperrors.NewGenerationFailure(OpImage, err)
		}
		image = &inbound.GeneratedImage{DataURI: result.DataURI}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return image, nil
}

// AnalyzeNutrition estimates nutrition for a recipe.
func (s *Service) AnalyzeNutrition(ctx context.Context, req inbound.NutritionRequest) (*recipe.NutritionInfo, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}

	var reply nutritionReply
	err := s.call(ctx, OpNutrition, func(ctx context.Context) error {
		return s.completeJSON(ctx, OpNutrition, outbound.CompletionRequest{
			System:      systemPrompt,
			Prompt:      buildNutritionPrompt(req),
			Temperature: s.config.Temperature,
			MaxTokens:   s.config.MaxTokens,
			JSON:        true,
			Cacheable:   true,
		}, &reply)
	})
	if err != nil {
		return nil, err
	}
	return reply.info(), nil
}

// AnswerQuestion answers one question about a serialized recipe. It keeps
// no state between calls.
func (s *Service) AnswerQuestion(ctx context.Context, req inbound.QuestionRequest) (*inbound.Answer, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}

	var answer *inbound.Answer
	err := s.call(ctx, OpAnswer, func(ctx context.Context) error {
		text, err := s.provider.Complete(ctx, outbound.CompletionRequest{
			System:      systemPrompt,
			Prompt:      buildQuestionPrompt(req),
			Temperature: s.config.Temperature,
			MaxTokens:   s.config.MaxTokens,
		})
		if err != nil {
			return apperrors.NewGenerationFailure(OpAnswer, err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return apperrors.NewGenerationFailure(OpAnswer, errors.New("model returned an empty answer"))
		}
		answer = &inbound.Answer{Text: text}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return answer, nil
}

// DetectIngredients lists the food ingredients visible in a photo. A photo
// without recognizable food yields an empty list, not an error.
func (s *Service) DetectIngredients(ctx context.Context, req inbound.DetectIngredientsRequest) (*inbound.DetectedIngredients, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}

	var reply detectReply
	err := s.call(ctx, OpDetect, func(ctx context.Context) error {
		return s.completeJSON(ctx, OpDetect, outbound.CompletionRequest{
			System:      systemPrompt,
			Prompt:      detectIngredientsPrompt,
			Images:      []string{req.PhotoDataURI},
			Temperature: s.config.Temperature,
			MaxTokens:   s.config.MaxTokens,
			JSON:        true,
			Cacheable:   true,
		}, &reply)
	})
	if err != nil {
		return nil, err
	}
	return &inbound.DetectedIngredients{Ingredients: normalizeIngredients(reply.DetectedIngredients)}, nil
}

// GenerateChallenge asks the model for a themed cooking challenge.
func (s *Service) GenerateChallenge(ctx context.Context) (*generation.Challenge, error) {
	var challenge generation.Challenge
	err := s.call(ctx, OpChallenge, func(ctx context.Context) error {
		return s.completeJSON(ctx, OpChallenge, outbound.CompletionRequest{
			System:      systemPrompt,
			Prompt:      challengePrompt,
			Temperature: s.config.Temperature,
			MaxTokens:   s.config.MaxTokens,
			JSON:        true,
		}, &challenge)
	})
	if err != nil {
		return nil, err
	}
	challenge.Constraints = trimAll(challenge.Constraints)
	return &challenge, nil
}

// completeJSON runs a JSON completion and decodes and validates the reply
// into out. Any mismatch with the expected shape is a generation failure.
func (s *Service) completeJSON(ctx context.Context, op string, req outbound.CompletionRequest, out interface{}) error {
	text, err := s.provider.Complete(ctx, req)
	if err != nil {
		return apperrors.NewGenerationFailure(op, err)
	}
	if err := decodeFirstObject(text, out); err != nil {
		s.logger.Warn("Model reply is not valid JSON",
			zap.String("operation", op),
			zap.Int("reply_length", len(text)),
			zap.Error(err),
		)
		return apperrors.NewGenerationFailure(op, err)
	}
	if err := s.validate.Struct(out); err != nil {
		s.logger.Warn("Model reply failed schema validation",
			zap.String("operation", op),
			zap.Error(err),
		)
		return apperrors.NewGenerationFailure(op, err)
	}
	return nil
}

// call runs fn under the request timeout inside a span and records metrics.
func (s *Service) call(ctx context.Context, op string, fn func(ctx context.Context) error) (err error) {
	ctx, span := s.tracer.StartAISpan(ctx, s.provider.Name(), op)
	start := time.Now()
	defer func() {
		s.metrics.ObserveGatewayCall(op, err, time.Since(start))
		monitoring.EndSpan(span, err)
	}()

	ctx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	err = fn(ctx)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) && !apperrors.Is(err, apperrors.CodeGeneration) {
		err = apperrors.NewGenerationFailure(op, fmt.Errorf("request timed out after %s: %w", s.config.RequestTimeout, ctx.Err()))
	}
	if err != nil {
		span.SetAttributes(attribute.String("error.code", string(apperrors.GetCode(err))))
		s.logger.Error("Model call failed",
			zap.String("operation", op),
			zap.String("provider", s.provider.Name()),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
	}
	return err
}
