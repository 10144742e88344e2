package gateway

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alchemorsel/recipe-studio/internal/domain/recipe"
	"github.com/alchemorsel/recipe-studio/internal/infrastructure/monitoring"
	"github.com/alchemorsel/recipe-studio/internal/ports/inbound"
	"github.com/alchemorsel/recipe-studio/internal/ports/outbound"
	apperrors "github.com/alchemorsel/recipe-studio/pkg/errors"
	"github.com/alchemorsel/recipe-studio/pkg/validation"
	"github.com/alchemorsel/recipe-studio/test/testutils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

// GatewayTestSuite provides a test suite for the generation gateway
type GatewayTestSuite struct {
	suite.Suite
	provider *testutils.MockModelProvider
	service  *Service
	ctx      context.Context
}

func (suite *GatewayTestSuite) SetupTest() {
	suite.provider = new(testutils.MockModelProvider)
	suite.service = NewService(
		suite.provider,
		Config{RequestTimeout: time.Second},
		nil,
		monitoring.NewMetrics(prometheus.NewRegistry()),
		zap.NewNop(),
	)
	suite.ctx = context.Background()
}

func (suite *GatewayTestSuite) replyWith(text string) {
	suite.provider.On("Complete", mock.Anything, mock.AnythingOfType("outbound.CompletionRequest")).
		Return(text, nil).Once()
}

func (suite *GatewayTestSuite) TestGenerateRecipeText() {
	req := inbound.RecipeTextRequest{Ingredients: "eggs, spinach, feta", Cuisine: "Greek"}

	suite.Run("FencedJSON_ShouldReturnTrimmedFields", func() {
		suite.SetupTest()
		// Arrange
		suite.replyWith("```json\n{\"title\": \" Spinach Omelette \", \"ingredients\": [\"3 eggs\", \" 1 cup spinach\"], \"instructions\": [\"Whisk.\", \"Cook.\"]}\n```")

		// Act
		core, err := suite.service.GenerateRecipeText(suite.ctx, req)

		// Assert
		require.NoError(suite.T(), err)
		assert.Equal(suite.T(), "Spinach Omelette", core.Title)
		assert.Equal(suite.T(), []string{"3 eggs", "1 cup spinach"}, core.Ingredients)
		assert.Len(suite.T(), core.Instructions, 2)
		suite.provider.AssertExpectations(suite.T())
	})

	suite.Run("NonConformingOutput_ShouldBeGenerationFailure", func() {
		replies := map[string]string{
			"prose":             "Here is a lovely omelette recipe for you!",
			"missing title":     `{"ingredients": ["egg"], "instructions": ["cook"]}`,
			"no ingredients":    `{"title": "Omelette", "ingredients": [], "instructions": ["cook"]}`,
			"blank instruction": `{"title": "Omelette", "ingredients": ["egg"], "instructions": ["  "]}`,
			"wrong types":       `{"title": 42, "ingredients": "egg", "instructions": ["cook"]}`,
			"truncated":         `{"title": "Omelette", "ingredients": ["egg"`,
		}
		for name, reply := range replies {
			suite.SetupTest()
			suite.replyWith(reply)

			core, err := suite.service.GenerateRecipeText(suite.ctx, req)

			assert.Nil(suite.T(), core, name)
			testutils.ErrorCode(suite.T(), err, apperrors.CodeGeneration, name)
		}
	})

	suite.Run("BlankIngredients_ShouldFailValidationWithoutCallingProvider", func() {
		suite.SetupTest()

		_, err := suite.service.GenerateRecipeText(suite.ctx, inbound.RecipeTextRequest{Ingredients: "   "})

		appErr := testutils.ErrorCode(suite.T(), err, apperrors.CodeValidation)
		assert.Equal(suite.T(), "ingredients", appErr.Metadata["field"])
		suite.provider.AssertNotCalled(suite.T(), "Complete", mock.Anything, mock.Anything)
	})

	suite.Run("ProviderError_ShouldBeGenerationFailure", func() {
		suite.SetupTest()
		suite.provider.On("Complete", mock.Anything, mock.Anything).Return("", errors.New("upstream 500")).Once()

		_, err := suite.service.GenerateRecipeText(suite.ctx, req)

		appErr := testutils.ErrorCode(suite.T(), err, apperrors.CodeGeneration)
		assert.Contains(suite.T(), appErr.Details, "upstream 500")
		assert.Equal(suite.T(), OpRecipeText, appErr.Metadata["operation"])
	})

	suite.Run("Deadline_ShouldBeGenerationFailure", func() {
		suite.SetupTest()
		suite.service.config.RequestTimeout = 20 * time.Millisecond
		suite.provider.On("Complete", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				<-args.Get(0).(context.Context).Done()
			}).
			Return("", context.DeadlineExceeded).Once()

		_, err := suite.service.GenerateRecipeText(suite.ctx, req)

		testutils.ErrorCode(suite.T(), err, apperrors.CodeGeneration)
		assert.ErrorIs(suite.T(), err, context.DeadlineExceeded)
	})

	suite.Run("Prompt_ShouldCarryLanguageAndJSONMode", func() {
		suite.SetupTest()
		suite.provider.On("Complete", mock.Anything, mock.MatchedBy(func(r outbound.CompletionRequest) bool {
			return r.JSON && containsAll(r.Prompt, "Spanish", "eggs, spinach, feta", "Greek")
		})).Return(`{"title": "Tortilla", "ingredients": ["egg"], "instructions": ["cook"]}`, nil).Once()

		_, err := suite.service.GenerateRecipeText(suite.ctx, inbound.RecipeTextRequest{
			Ingredients: req.Ingredients, Cuisine: "Greek", Language: "Spanish",
		})

		require.NoError(suite.T(), err)
		suite.provider.AssertExpectations(suite.T())
	})
}

func (suite *GatewayTestSuite) TestAnalyzeNutrition() {
	req := inbound.NutritionRequest{
		Title:        "Omelette",
		Ingredients:  []string{"2 eggs"},
		Instructions: []string{"Cook."},
	}

	suite.Run("MissingDisclaimer_ShouldUseDefault", func() {
		suite.SetupTest()
		suite.replyWith(`{"estimatedCalories": 310, "caloriesBasis": "per serving", "proteinGrams": 20, "carbsGrams": 2, "fatGrams": 22, "healthTips": ["Add greens", "Use less butter"]}`)

		info, err := suite.service.AnalyzeNutrition(suite.ctx, req)

		require.NoError(suite.T(), err)
		assert.Equal(suite.T(), recipe.DefaultNutritionDisclaimer, info.Disclaimer)
		assert.Equal(suite.T(), recipe.CaloriesPerServing, info.CaloriesBasis)
		assert.Equal(suite.T(), 310.0, info.EstimatedCalories)
	})

	suite.Run("TooManyTips_ShouldTrimToThree", func() {
		suite.SetupTest()
		suite.replyWith(`{"estimatedCalories": 310, "proteinGrams": 20, "carbsGrams": 2, "fatGrams": 22, "healthTips": ["a", "b", "c", "d", "e"], "disclaimer": "Estimate only."}`)

		info, err := suite.service.AnalyzeNutrition(suite.ctx, req)

		require.NoError(suite.T(), err)
		assert.Equal(suite.T(), []string{"a", "b", "c"}, info.HealthTips)
		assert.Equal(suite.T(), "Estimate only.", info.Disclaimer)
	})

	suite.Run("InvalidNumbers_ShouldBeGenerationFailure", func() {
		replies := map[string]string{
			"negative calories": `{"estimatedCalories": -1, "proteinGrams": 1, "carbsGrams": 1, "fatGrams": 1, "healthTips": ["a"]}`,
			"missing protein":   `{"estimatedCalories": 100, "carbsGrams": 1, "fatGrams": 1, "healthTips": ["a"]}`,
			"no tips":           `{"estimatedCalories": 100, "proteinGrams": 1, "carbsGrams": 1, "fatGrams": 1, "healthTips": []}`,
		}
		for name, reply := range replies {
			suite.SetupTest()
			suite.replyWith(reply)

			_, err := suite.service.AnalyzeNutrition(suite.ctx, req)

			testutils.ErrorCode(suite.T(), err, apperrors.CodeGeneration, name)
		}
	})
}

func (suite *GatewayTestSuite) TestDetectIngredients() {
	photo := validation.EncodeDataURI("image/jpeg", []byte{0xff, 0xd8, 0xff})

	suite.Run("Duplicates_ShouldBeRemovedKeepingFirstSpelling", func() {
		suite.SetupTest()
		suite.provider.On("Complete", mock.Anything, mock.MatchedBy(func(r outbound.CompletionRequest) bool {
			return len(r.Images) == 1 && r.Images[0] == photo
		})).Return(`{"detectedIngredients": ["Tomato", "onion", "tomato", " Basil ", ""]}`, nil).Once()

		got, err := suite.service.DetectIngredients(suite.ctx, inbound.DetectIngredientsRequest{PhotoDataURI: photo})

		require.NoError(suite.T(), err)
		assert.Equal(suite.T(), []string{"Tomato", "onion", "Basil"}, got.Ingredients)
	})

	suite.Run("NothingFound_ShouldReturnEmptyList", func() {
		suite.SetupTest()
		suite.replyWith(`{}`)

		got, err := suite.service.DetectIngredients(suite.ctx, inbound.DetectIngredientsRequest{PhotoDataURI: photo})

		require.NoError(suite.T(), err)
		assert.NotNil(suite.T(), got.Ingredients)
		assert.Empty(suite.T(), got.Ingredients)
	})

	suite.Run("NotAnImage_ShouldFailValidation", func() {
		suite.SetupTest()

		_, err := suite.service.DetectIngredients(suite.ctx, inbound.DetectIngredientsRequest{
			PhotoDataURI: validation.EncodeDataURI("text/plain", []byte("hi")),
		})

		testutils.ErrorCode(suite.T(), err, apperrors.CodeValidation)
		suite.provider.AssertNotCalled(suite.T(), "Complete", mock.Anything, mock.Anything)
	})
}

func (suite *GatewayTestSuite) TestGenerateImage() {
	suite.Run("Media_ShouldBeReturnedAsDataURI", func() {
		suite.SetupTest()
		uri := validation.EncodeDataURI("image/png", []byte("png"))
		suite.provider.On("GenerateImage", mock.Anything, mock.MatchedBy(func(p string) bool {
			return containsAll(p, "Shakshuka")
		})).Return(&outbound.ImageResult{DataURI: uri}, nil).Once()

		img, err := suite.service.GenerateImage(suite.ctx, inbound.ImageRequest{RecipeTitle: "Shakshuka"})

		require.NoError(suite.T(), err)
		assert.Equal(suite.T(), uri, img.DataURI)
	})

	suite.Run("NoMedia_ShouldBeGenerationFailure", func() {
		suite.SetupTest()
		suite.provider.On("GenerateImage", mock.Anything, mock.Anything).Return(&outbound.ImageResult{}, nil).Once()

		_, err := suite.service.GenerateImage(suite.ctx, inbound.ImageRequest{RecipeTitle: "Shakshuka"})

		testutils.ErrorCode(suite.T(), err, apperrors.CodeGeneration)
	})
}

func (suite *GatewayTestSuite) TestAnswerQuestion() {
	suite.Run("Reply_ShouldBeTrimmed", func() {
		suite.SetupTest()
		suite.provider.On("Complete", mock.Anything, mock.MatchedBy(func(r outbound.CompletionRequest) bool {
			return !r.JSON && containsAll(r.Prompt, "Title: Soup", "Can I freeze it?")
		})).Return("  Yes, for up to three months.\n", nil).Once()

		answer, err := suite.service.AnswerQuestion(suite.ctx, inbound.QuestionRequest{
			Recipe:   "Title: Soup\nIngredients: water\nInstructions: boil",
			Question: "Can I freeze it?",
		})

		require.NoError(suite.T(), err)
		assert.Equal(suite.T(), "Yes, for up to three months.", answer.Text)
	})

	suite.Run("EmptyQuestion_ShouldFailValidation", func() {
		suite.SetupTest()

		_, err := suite.service.AnswerQuestion(suite.ctx, inbound.QuestionRequest{Recipe: "Title: Soup", Question: " "})

		testutils.ErrorCode(suite.T(), err, apperrors.CodeValidation)
	})
}

func (suite *GatewayTestSuite) TestGenerateChallenge() {
	suite.Run("TooFewConstraints_ShouldBeGenerationFailure", func() {
		suite.SetupTest()
		suite.replyWith(`{"title": "Green Week", "description": "Cook green.", "constraints": ["only green food"]}`)

		_, err := suite.service.GenerateChallenge(suite.ctx)

		testutils.ErrorCode(suite.T(), err, apperrors.CodeGeneration)
	})

	suite.Run("ValidChallenge_ShouldBeReturned", func() {
		suite.SetupTest()
		suite.replyWith(`{"title": "Green Week", "description": "Cook green.", "constraints": ["only green food", "under 30 minutes"], "exampleDish": "Pesto pasta"}`)

		c, err := suite.service.GenerateChallenge(suite.ctx)

		require.NoError(suite.T(), err)
		assert.Equal(suite.T(), "Green Week", c.Title)
		assert.Len(suite.T(), c.Constraints, 2)
		assert.Equal(suite.T(), "Pesto pasta", c.ExampleDish)
	})
}

func TestGatewayTestSuite(t *testing.T) {
	suite.Run(t, new(GatewayTestSuite))
}

func TestBuildRecipePrompt(t *testing.T) {
	surprise := buildRecipePrompt(inbound.RecipeTextRequest{
		Ingredients: "rice", Cuisine: "Thai", DietaryRestrictions: "vegan", SurpriseMe: true,
	})
	assert.NotContains(t, surprise, "Cuisine: Thai")
	assert.Contains(t, surprise, "vegan")
	assert.Contains(t, surprise, "English")

	regular := buildRecipePrompt(inbound.RecipeTextRequest{Ingredients: "rice", Cuisine: "Thai", MaxCookingTimeMinutes: 25})
	assert.Contains(t, regular, "Cuisine: Thai")
	assert.Contains(t, regular, "25 minutes")
}

func containsAll(s string, parts ...string) bool {
	for _, p := range parts {
		if !strings.Contains(s, p) {
			return false
		}
	}
	return true
}
