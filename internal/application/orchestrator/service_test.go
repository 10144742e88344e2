package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alchemorsel/recipe-studio/internal/application/store"
	"github.com/alchemorsel/recipe-studio/internal/domain/generation"
	"github.com/alchemorsel/recipe-studio/internal/domain/recipe"
	"github.com/alchemorsel/recipe-studio/internal/domain/user"
	"github.com/alchemorsel/recipe-studio/internal/infrastructure/persistence/memory"
	"github.com/alchemorsel/recipe-studio/internal/ports/inbound"
	"github.com/alchemorsel/recipe-studio/internal/ports/outbound"
	apperrors "github.com/alchemorsel/recipe-studio/pkg/errors"
	"github.com/alchemorsel/recipe-studio/pkg/validation"
	"github.com/alchemorsel/recipe-studio/test/testutils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

// OrchestratorTestSuite provides a test suite for the generation pipeline
type OrchestratorTestSuite struct {
	suite.Suite
	gateway  *testutils.MockGenerationGateway
	repo     *testutils.MockRecipeRepository
	prefs    *testutils.MockPreferencesRepository
	images   *testutils.MockImageStorage
	identity *testutils.FakeIdentity
	cache    *memory.CacheRepository
	store    *store.Service
	service  *Service
	owner    uuid.UUID
	ctx      context.Context
}

var (
	pancakes = &recipe.CoreFields{
		Title:        "Simple Pancakes",
		Ingredients:  []string{"1 egg", "1 cup flour", "1 cup milk"},
		Instructions: []string{"Whisk everything together.", "Fry ladlefuls in a hot pan."},
	}
	pancakeInput = inbound.RecipeTextRequest{Ingredients: "egg, flour, milk", MealType: "breakfast"}
	imageURI     = validation.EncodeDataURI("image/png", []byte("png-bytes"))
	nutrition    = &recipe.NutritionInfo{EstimatedCalories: 320, ProteinGrams: 12, CarbsGrams: 45, FatGrams: 9, HealthTips: []string{"Add fruit"}}
)

func (suite *OrchestratorTestSuite) SetupTest() {
	suite.gateway = new(testutils.MockGenerationGateway)
	suite.repo = testutils.NewMockRecipeRepository()
	suite.prefs = new(testutils.MockPreferencesRepository)
	suite.images = new(testutils.MockImageStorage)
	suite.identity = testutils.NewFakeIdentity()
	suite.cache = memory.NewCacheRepository(0)
	suite.store = store.NewService(suite.repo, suite.prefs, suite.identity, nil, nil, zap.NewNop())
	suite.service = suite.newService(nil)
	suite.owner = uuid.New()
	suite.ctx = testutils.WithUser(context.Background(), suite.owner)

	suite.repo.On("ListByOwner", mock.Anything, mock.Anything).Return(nil)
	suite.repo.On("UpdateFavorite", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	suite.repo.On("UpdateImage", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	suite.repo.On("UpdateNutrition", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
}

func (suite *OrchestratorTestSuite) TearDownTest() {
	_ = suite.cache.Close()
}

func (suite *OrchestratorTestSuite) newService(images *testutils.MockImageStorage) *Service {
	var storage outbound.ImageStorage
	if images != nil {
		storage = images
	}
	return NewService(suite.gateway, suite.store, suite.identity, suite.cache, storage, nil, nil,
		Config{EnrichmentTimeout: 5 * time.Second, RunTTL: time.Hour, ImagePrefix: "recipes/"}, zap.NewNop())
}

func (suite *OrchestratorTestSuite) expectSuccessfulPipeline() {
	suite.prefs.On("Get", mock.Anything, mock.Anything).Return(nil, nil)
	suite.repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	suite.gateway.On("GenerateRecipeText", mock.Anything, mock.Anything).Return(pancakes, nil)
}

func (suite *OrchestratorTestSuite) TestGenerate() {
	suite.Run("EndToEnd_ShouldSaveEnrichAndToggle", func() {
		suite.SetupTest()
		// Arrange
		suite.expectSuccessfulPipeline()
		suite.gateway.On("AnalyzeNutrition", mock.Anything, mock.Anything).Return(nutrition, nil)
		suite.gateway.On("GenerateImage", mock.Anything, inbound.ImageRequest{RecipeTitle: "Simple Pancakes"}).
			Return(&inbound.GeneratedImage{DataURI: imageURI}, nil)

		// Act
		result, err := suite.service.Generate(suite.ctx, inbound.GenerateCommand{
			Request:       pancakeInput,
			EnrichOptions: inbound.EnrichOptions{Await: true},
		})

		// Assert
		require.NoError(suite.T(), err)
		assert.Equal(suite.T(), generation.StageDone, result.Run.Stage)
		assert.Empty(suite.T(), result.Run.Notices)
		r := result.Recipe
		assert.Equal(suite.T(), "Simple Pancakes", r.Title())
		assert.False(suite.T(), r.IsFavorite())
		testutils.NewRecipeAssertions(suite.T()).Enriched(r, true, true)

		toggled, err := suite.store.ToggleFavorite(suite.ctx, r.ID())
		require.NoError(suite.T(), err)
		assert.True(suite.T(), toggled.IsFavorite())
		favorites, err := suite.store.Favorites(suite.ctx)
		require.NoError(suite.T(), err)
		require.Len(suite.T(), favorites, 1)
		assert.Equal(suite.T(), r.ID(), favorites[0].ID())
	})

	suite.Run("NutritionFailure_ShouldKeepBaseRecipeAndRecordNotice", func() {
		suite.SetupTest()
		suite.expectSuccessfulPipeline()
		suite.gateway.On("AnalyzeNutrition", mock.Anything, mock.Anything).
			Return(nil, apperrors.NewGenerationFailure("analyze_nutrition", errors.New("quota exceeded")))
		suite.gateway.On("GenerateImage", mock.Anything, mock.Anything).
			Return(&inbound.GeneratedImage{DataURI: imageURI}, nil)

		result, err := suite.service.Generate(suite.ctx, inbound.GenerateCommand{
			Request:       pancakeInput,
			EnrichOptions: inbound.EnrichOptions{Await: true},
		})

		require.NoError(suite.T(), err)
		assert.Equal(suite.T(), generation.StageDone, result.Run.Stage)
		require.Len(suite.T(), result.Run.Notices, 1)
		assert.Equal(suite.T(), generation.StageEnrichingNutrition, result.Run.Notices[0].Stage)
		assert.Contains(suite.T(), result.Run.Notices[0].Message, "quota exceeded")

		stored, ok := suite.repo.Stored(result.Recipe.ID())
		require.True(suite.T(), ok)
		assert.Equal(suite.T(), *pancakes, stored.Core())
		testutils.NewRecipeAssertions(suite.T()).Enriched(stored, false, true)
	})

	suite.Run("Background_ShouldReturnAfterSaveAndFinishLater", func() {
		suite.SetupTest()
		suite.expectSuccessfulPipeline()
		release := make(chan struct{})
		suite.gateway.On("AnalyzeNutrition", mock.Anything, mock.Anything).
			WaitUntil(time.After(20*time.Millisecond)).
			Return(nil, errors.New("provider down"))
		suite.gateway.On("GenerateImage", mock.Anything, mock.Anything).
			Run(func(mock.Arguments) { <-release }).
			Return(nil, errors.New("no media"))

		result, err := suite.service.Generate(suite.ctx, inbound.GenerateCommand{Request: pancakeInput})

		require.NoError(suite.T(), err)
		require.NotNil(suite.T(), result.Run.RecipeID)
		assert.False(suite.T(), result.Run.Stage.Terminal())
		testutils.NewRecipeAssertions(suite.T()).Enriched(result.Recipe, false, false)

		close(release)
		require.NoError(suite.T(), suite.service.Wait(context.Background()))
		view, err := suite.service.Status(suite.ctx, result.Run.ID)
		require.NoError(suite.T(), err)
		assert.Equal(suite.T(), generation.StageDone, view.Stage)
		assert.Len(suite.T(), view.Notices, 2)
	})

	suite.Run("TextFailure_ShouldPersistNothing", func() {
		suite.SetupTest()
		suite.prefs.On("Get", mock.Anything, mock.Anything).Return(nil, nil)
		suite.gateway.On("GenerateRecipeText", mock.Anything, mock.Anything).
			Return(nil, apperrors.NewGenerationFailure("generate_recipe_text", errors.New("bad output")))

		_, err := suite.service.Generate(suite.ctx, inbound.GenerateCommand{Request: pancakeInput})

		testutils.ErrorCode(suite.T(), err, apperrors.CodeGeneration)
		suite.repo.AssertNotCalled(suite.T(), "Create", mock.Anything, mock.Anything)
		suite.gateway.AssertNotCalled(suite.T(), "AnalyzeNutrition", mock.Anything, mock.Anything)
	})

	suite.Run("PersistenceFailure_ShouldReturnGeneratedText", func() {
		suite.SetupTest()
		suite.prefs.On("Get", mock.Anything, mock.Anything).Return(nil, nil)
		suite.repo.On("Create", mock.Anything, mock.Anything).Return(errors.New("disk full"))
		suite.gateway.On("GenerateRecipeText", mock.Anything, mock.Anything).Return(pancakes, nil)

		_, err := suite.service.Generate(suite.ctx, inbound.GenerateCommand{Request: pancakeInput})

		appErr := testutils.ErrorCode(suite.T(), err, apperrors.CodePersistence)
		assert.Equal(suite.T(), "Simple Pancakes", appErr.Metadata["title"])
		suite.gateway.AssertNotCalled(suite.T(), "GenerateImage", mock.Anything, mock.Anything)
	})

	suite.Run("SavedPreferences_ShouldFillUnsetFields", func() {
		suite.SetupTest()
		saved := &user.Preferences{OwnerID: suite.owner, Cuisine: "Thai", Language: "Hindi"}
		suite.prefs.On("Get", mock.Anything, mock.Anything).Return(saved, nil)
		suite.repo.On("Create", mock.Anything, mock.Anything).Return(nil)
		suite.gateway.On("GenerateRecipeText", mock.Anything, mock.MatchedBy(func(r inbound.RecipeTextRequest) bool {
			return r.Cuisine == "Thai" && r.Language == "Hindi" && r.MealType == "breakfast"
		})).Return(pancakes, nil)

		result, err := suite.service.Generate(suite.ctx, inbound.GenerateCommand{
			Request:       pancakeInput,
			EnrichOptions: inbound.EnrichOptions{SkipImage: true, SkipNutrition: true, Await: true},
		})

		require.NoError(suite.T(), err)
		assert.Equal(suite.T(), "Thai", result.Recipe.UserInput().Cuisine)
		assert.Equal(suite.T(), generation.StageDone, result.Run.Stage)
	})

	suite.Run("NoIdentity_ShouldBeAuthFailure", func() {
		suite.SetupTest()

		_, err := suite.service.Generate(context.Background(), inbound.GenerateCommand{Request: pancakeInput})

		testutils.ErrorCode(suite.T(), err, apperrors.CodeAuth)
		suite.gateway.AssertNotCalled(suite.T(), "GenerateRecipeText", mock.Anything, mock.Anything)
	})
}

func (suite *OrchestratorTestSuite) TestImageStorage() {
	suite.Run("Upload_ShouldStoreURL", func() {
		suite.SetupTest()
		suite.service = suite.newService(suite.images)
		suite.expectSuccessfulPipeline()
		suite.gateway.On("GenerateImage", mock.Anything, mock.Anything).Return(&inbound.GeneratedImage{DataURI: imageURI}, nil)
		suite.images.On("Upload", mock.Anything, mock.AnythingOfType("string"), "image/png", []byte("png-bytes")).
			Return("https://cdn.example.com/pancakes.png", nil)

		result, err := suite.service.Generate(suite.ctx, inbound.GenerateCommand{
			Request:       pancakeInput,
			EnrichOptions: inbound.EnrichOptions{SkipNutrition: true, Await: true},
		})

		require.NoError(suite.T(), err)
		url, ok := result.Recipe.Image().Value()
		require.True(suite.T(), ok)
		assert.Equal(suite.T(), "https://cdn.example.com/pancakes.png", url)
	})

	suite.Run("UploadFailure_ShouldKeepDataURI", func() {
		suite.SetupTest()
		suite.service = suite.newService(suite.images)
		suite.expectSuccessfulPipeline()
		suite.gateway.On("GenerateImage", mock.Anything, mock.Anything).Return(&inbound.GeneratedImage{DataURI: imageURI}, nil)
		suite.images.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("access denied"))

		result, err := suite.service.Generate(suite.ctx, inbound.GenerateCommand{
			Request:       pancakeInput,
			EnrichOptions: inbound.EnrichOptions{SkipNutrition: true, Await: true},
		})

		require.NoError(suite.T(), err)
		url, _ := result.Recipe.Image().Value()
		assert.Equal(suite.T(), imageURI, url)
		assert.Empty(suite.T(), result.Run.Notices)
	})
}

func (suite *OrchestratorTestSuite) TestStaleResults() {
	suite.Run("NewerEnrichment_ShouldDropOlderResult", func() {
		suite.SetupTest()
		suite.expectSuccessfulPipeline()
		release := make(chan struct{})
		suite.gateway.On("AnalyzeNutrition", mock.Anything, mock.Anything).
			Run(func(mock.Arguments) { <-release }).
			Return(nutrition, nil)

		result, err := suite.service.Generate(suite.ctx, inbound.GenerateCommand{
			Request:       pancakeInput,
			EnrichOptions: inbound.EnrichOptions{SkipImage: true},
		})
		require.NoError(suite.T(), err)

		// A newer enrichment for the same recipe has started.
		_, err = suite.cache.Increment(suite.ctx, generationKey(result.Recipe.ID(), generation.StageEnrichingNutrition))
		require.NoError(suite.T(), err)
		close(release)
		require.NoError(suite.T(), suite.service.Wait(context.Background()))

		stored, _ := suite.repo.Stored(result.Recipe.ID())
		assert.False(suite.T(), stored.Nutrition().IsReady())
		view, err := suite.service.Status(suite.ctx, result.Run.ID)
		require.NoError(suite.T(), err)
		require.Len(suite.T(), view.Notices, 1)
		assert.Contains(suite.T(), view.Notices[0].Message, "superseded")
	})

	suite.Run("ReenrichOfOtherStage_ShouldKeepInFlightImage", func() {
		suite.SetupTest()
		suite.expectSuccessfulPipeline()
		release := make(chan struct{})
		suite.gateway.On("GenerateImage", mock.Anything, mock.Anything).
			Run(func(mock.Arguments) { <-release }).
			Return(&inbound.GeneratedImage{DataURI: imageURI}, nil)
		suite.gateway.On("AnalyzeNutrition", mock.Anything, mock.Anything).Return(nutrition, nil)

		first, err := suite.service.Generate(suite.ctx, inbound.GenerateCommand{
			Request:       pancakeInput,
			EnrichOptions: inbound.EnrichOptions{SkipNutrition: true},
		})
		require.NoError(suite.T(), err)

		// Nutrition only, while the first image is still rendering
		second, err := suite.service.Reenrich(suite.ctx, first.Recipe.ID(),
			inbound.EnrichOptions{SkipImage: true, Await: true})
		require.NoError(suite.T(), err)
		assert.Empty(suite.T(), second.Run.Notices)

		close(release)
		require.NoError(suite.T(), suite.service.Wait(context.Background()))

		stored, _ := suite.repo.Stored(first.Recipe.ID())
		assert.True(suite.T(), stored.Image().IsReady())
		assert.True(suite.T(), stored.Nutrition().IsReady())
		view, err := suite.service.Status(suite.ctx, first.Run.ID)
		require.NoError(suite.T(), err)
		assert.Equal(suite.T(), generation.StageDone, view.Stage)
		assert.Empty(suite.T(), view.Notices)
	})
}

func (suite *OrchestratorTestSuite) TestReenrich() {
	suite.Run("MissingNutrition_ShouldOnlyRetryNutrition", func() {
		suite.SetupTest()
		suite.expectSuccessfulPipeline()
		suite.gateway.On("AnalyzeNutrition", mock.Anything, mock.Anything).Return(nil, errors.New("timeout")).Once()
		suite.gateway.On("AnalyzeNutrition", mock.Anything, mock.Anything).Return(nutrition, nil).Once()
		suite.gateway.On("GenerateImage", mock.Anything, mock.Anything).Return(&inbound.GeneratedImage{DataURI: imageURI}, nil)

		first, err := suite.service.Generate(suite.ctx, inbound.GenerateCommand{
			Request:       pancakeInput,
			EnrichOptions: inbound.EnrichOptions{Await: true},
		})
		require.NoError(suite.T(), err)
		require.False(suite.T(), first.Recipe.Nutrition().IsReady())

		second, err := suite.service.Reenrich(suite.ctx, first.Recipe.ID(), inbound.EnrichOptions{Await: true})

		require.NoError(suite.T(), err)
		assert.Equal(suite.T(), generation.StageDone, second.Run.Stage)
		testutils.NewRecipeAssertions(suite.T()).Enriched(second.Recipe, true, true)
		suite.gateway.AssertNumberOfCalls(suite.T(), "GenerateImage", 1)
		suite.gateway.AssertNumberOfCalls(suite.T(), "AnalyzeNutrition", 2)
	})

	suite.Run("UnknownRecipe_ShouldBeNotFound", func() {
		suite.SetupTest()
		suite.prefs.On("Get", mock.Anything, mock.Anything).Return(nil, nil)

		_, err := suite.service.Reenrich(suite.ctx, uuid.New(), inbound.EnrichOptions{})

		testutils.ErrorCode(suite.T(), err, apperrors.CodeRecipeNotFound)
	})
}

func (suite *OrchestratorTestSuite) TestStatus() {
	suite.Run("OtherOwner_ShouldBeNotFound", func() {
		suite.SetupTest()
		suite.expectSuccessfulPipeline()

		result, err := suite.service.Generate(suite.ctx, inbound.GenerateCommand{
			Request:       pancakeInput,
			EnrichOptions: inbound.EnrichOptions{SkipImage: true, SkipNutrition: true, Await: true},
		})
		require.NoError(suite.T(), err)

		_, err = suite.service.Status(testutils.WithUser(context.Background(), uuid.New()), result.Run.ID)

		testutils.ErrorCode(suite.T(), err, apperrors.CodeNotFound)
	})

	suite.Run("FinishedRun_ShouldBeReadableFromCache", func() {
		suite.SetupTest()
		suite.expectSuccessfulPipeline()
		result, err := suite.service.Generate(suite.ctx, inbound.GenerateCommand{
			Request:       pancakeInput,
			EnrichOptions: inbound.EnrichOptions{SkipImage: true, SkipNutrition: true, Await: true},
		})
		require.NoError(suite.T(), err)

		restarted := suite.newService(nil)
		view, err := restarted.Status(suite.ctx, result.Run.ID)

		require.NoError(suite.T(), err)
		assert.Equal(suite.T(), generation.StageDone, view.Stage)
		assert.Equal(suite.T(), result.Recipe.ID(), *view.RecipeID)
	})
}

func TestOrchestratorTestSuite(t *testing.T) {
	suite.Run(t, new(OrchestratorTestSuite))
}
