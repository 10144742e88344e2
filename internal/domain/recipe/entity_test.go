package recipe

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// RecipeTestSuite provides a test suite for the Recipe aggregate
type RecipeTestSuite struct {
	suite.Suite
	owner uuid.UUID
	core  CoreFields
}

func (suite *RecipeTestSuite) SetupTest() {
	suite.owner = uuid.New()
	suite.core = CoreFields{
		Title:        "Simple Pancakes",
		Ingredients:  []string{"1 egg", "1 cup flour", "1 cup milk"},
		Instructions: []string{"Whisk everything.", "Fry in a hot pan."},
	}
}

func (suite *RecipeTestSuite) TestNewDraft() {
	suite.Run("ValidFields_ShouldStartPending", func() {
		// Act
		r, err := NewDraft(suite.owner, suite.core, UserInput{Ingredients: "egg, flour, milk"}, nil)

		// Assert
		require.NoError(suite.T(), err)
		assert.Equal(suite.T(), uuid.Nil, r.ID())
		assert.False(suite.T(), r.IsFavorite())
		assert.False(suite.T(), r.Image().IsReady())
		assert.False(suite.T(), r.Nutrition().IsReady())
		assert.Empty(suite.T(), r.Events())
	})

	suite.Run("WithNutrition_ShouldBeReadyWithDefaultDisclaimer", func() {
		// Arrange
		info := &NutritionInfo{EstimatedCalories: 420, HealthTips: []string{"Add berries"}}

		// Act
		r, err := NewDraft(suite.owner, suite.core, UserInput{Ingredients: "egg"}, info)

		// Assert
		require.NoError(suite.T(), err)
		got, ok := r.Nutrition().Value()
		require.True(suite.T(), ok)
		assert.Equal(suite.T(), DefaultNutritionDisclaimer, got.Disclaimer)
	})

	suite.Run("MissingFields_ShouldFail", func() {
		cases := map[string]struct {
			core CoreFields
			want error
		}{
			"title":        {CoreFields{Ingredients: []string{"a"}, Instructions: []string{"b"}}, ErrEmptyTitle},
			"ingredients":  {CoreFields{Title: "t", Instructions: []string{"b"}}, ErrNoIngredients},
			"instructions": {CoreFields{Title: "t", Ingredients: []string{"a"}}, ErrNoInstructions},
		}
		for name, tc := range cases {
			_, err := NewDraft(suite.owner, tc.core, UserInput{Ingredients: "a"}, nil)
			assert.ErrorIs(suite.T(), err, tc.want, name)
		}
	})

	suite.Run("NoOwner_ShouldFail", func() {
		_, err := NewDraft(uuid.Nil, suite.core, UserInput{Ingredients: "a"}, nil)
		assert.ErrorIs(suite.T(), err, ErrMissingOwner)
	})
}

func (suite *RecipeTestSuite) TestMutations() {
	suite.Run("ToggleTwice_ShouldRestoreOriginalValue", func() {
		// Arrange
		r := suite.persisted(time.Now())

		// Act
		r.SetFavorite(!r.IsFavorite())
		r.SetFavorite(!r.IsFavorite())

		// Assert
		assert.False(suite.T(), r.IsFavorite())
		events := r.Events()
		require.Len(suite.T(), events, 2)
		assert.Equal(suite.T(), "recipe.favorite.toggled", events[0].EventName())
	})

	suite.Run("AttachImage_ShouldBeLastWriteWins", func() {
		r := suite.persisted(time.Now())

		r.AttachImage("https://img/1.png")
		r.AttachImage("https://img/2.png")

		url, ok := r.Image().Value()
		assert.True(suite.T(), ok)
		assert.Equal(suite.T(), "https://img/2.png", url)
	})

	suite.Run("Clone_ShouldNotShareState", func() {
		r := suite.persisted(time.Now())
		r.AttachImage("https://img/1.png")

		c := r.Clone()
		c.SetFavorite(true)

		assert.False(suite.T(), r.IsFavorite())
		assert.Len(suite.T(), c.PendingEvents(), 1)
		assert.Equal(suite.T(), r.Snapshot().ImageURL, c.Snapshot().ImageURL)
	})
}

func (suite *RecipeTestSuite) TestViews() {
	// Arrange
	base := time.Now()
	older := suite.persisted(base.Add(-2 * time.Hour))
	newest := suite.persisted(base)
	middle := suite.persisted(base.Add(-1 * time.Hour))
	middle.SetFavorite(true)
	older.SetFavorite(true)
	all := []*Recipe{older, newest, middle}

	// Act
	history := History(all)
	favorites := Favorites(all)

	// Assert
	assert.Equal(suite.T(), []uuid.UUID{newest.ID(), middle.ID(), older.ID()}, ids(history))
	assert.Equal(suite.T(), []uuid.UUID{middle.ID(), older.ID()}, ids(favorites))
	assert.Equal(suite.T(), older.ID(), all[0].ID(), "views must not reorder the source slice")
}

func (suite *RecipeTestSuite) persisted(createdAt time.Time) *Recipe {
	return Rehydrate(Snapshot{
		ID:           uuid.New(),
		OwnerID:      suite.owner,
		Title:        suite.core.Title,
		Ingredients:  suite.core.Ingredients,
		Instructions: suite.core.Instructions,
		UserInput:    UserInput{Ingredients: "egg, flour, milk"},
		CreatedAt:    createdAt,
	})
}

func ids(recipes []*Recipe) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(recipes))
	for _, r := range recipes {
		out = append(out, r.ID())
	}
	return out
}

func TestUserInputValidate(t *testing.T) {
	assert.NoError(t, UserInput{Ingredients: "egg"}.Validate())
	assert.ErrorIs(t, UserInput{Ingredients: "   "}.Validate(), ErrEmptyIngredientsInput)
	assert.ErrorIs(t, UserInput{Ingredients: "egg", MaxCookingTimeMinutes: -5}.Validate(), ErrInvalidCookingTime)
}

func TestEnrichmentFromPtr(t *testing.T) {
	assert.False(t, FromPtr[string](nil).IsReady())

	v := "x"
	e := FromPtr(&v)
	got, ok := e.Value()
	assert.True(t, ok)
	assert.Equal(t, "x", got)
}

func TestRecipeTestSuite(t *testing.T) {
	suite.Run(t, new(RecipeTestSuite))
}
