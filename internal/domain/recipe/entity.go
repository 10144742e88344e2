// Package recipe contains the recipe aggregate and the views derived from a
// collection of recipes.
package recipe

import (
	"sort"
	"time"

	"github.com/alchemorsel/recipe-studio/internal/domain/shared"
	"github.com/google/uuid"
)

// Recipe is one generated dish owned by a single user.
type Recipe struct {
	shared.AggregateRoot

	id      uuid.UUID
	ownerID uuid.UUID

	// Generated text, immutable after creation
	title        string
	ingredients  []string
	instructions []string
	userInput    UserInput

	// Set asynchronously after creation
	image     Enrichment[string]
	nutrition Enrichment[NutritionInfo]

	isFavorite bool
	createdAt  time.Time
}

// NewDraft builds a recipe that has not been persisted yet. The persistence
// layer assigns its ID and creation time.
func NewDraft(ownerID uuid.UUID, core CoreFields, input UserInput, nutrition *NutritionInfo) (*Recipe, error) {
	if ownerID == uuid.Nil {
		return nil, ErrMissingOwner
	}
	if err := core.Validate(); err != nil {
		return nil, err
	}

	r := &Recipe{
		ownerID:      ownerID,
		title:        core.Title,
		ingredients:  cloneStrings(core.Ingredients),
		instructions: cloneStrings(core.Instructions),
		userInput:    input,
		image:        Pending[string](),
		nutrition:    Pending[NutritionInfo](),
	}
	if nutrition != nil {
		r.nutrition = Ready(nutrition.WithDefaults())
	}
	return r, nil
}

// Snapshot is the flat form of a recipe used by persistence and transport.
type Snapshot struct {
	ID           uuid.UUID
	OwnerID      uuid.UUID
	Title        string
	Ingredients  []string
	Instructions []string
	UserInput    UserInput
	ImageURL     *string
	Nutrition    *NutritionInfo
	IsFavorite   bool
	CreatedAt    time.Time
}

// Rehydrate rebuilds a recipe from stored state without raising events.
func Rehydrate(s Snapshot) *Recipe {
	return &Recipe{
		id:           s.ID,
		ownerID:      s.OwnerID,
		title:        s.Title,
		ingredients:  cloneStrings(s.Ingredients),
		instructions: cloneStrings(s.Instructions),
		userInput:    s.UserInput,
		image:        FromPtr(s.ImageURL),
		nutrition:    FromPtr(s.Nutrition),
		isFavorite:   s.IsFavorite,
		createdAt:    s.CreatedAt,
	}
}

// Snapshot returns the flat form of the recipe.
func (r *Recipe) Snapshot() Snapshot {
	return Snapshot{
		ID:           r.id,
		OwnerID:      r.ownerID,
		Title:        r.title,
		Ingredients:  cloneStrings(r.ingredients),
		Instructions: cloneStrings(r.instructions),
		UserInput:    r.userInput,
		ImageURL:     r.image.Ptr(),
		Nutrition:    r.nutrition.Ptr(),
		IsFavorite:   r.isFavorite,
		CreatedAt:    r.createdAt,
	}
}

// Clone returns a deep copy without pending events.
func (r *Recipe) Clone() *Recipe {
	return Rehydrate(r.Snapshot())
}

func (r *Recipe) ID() uuid.UUID { return r.id }
func (r *Recipe) OwnerID() uuid.UUID { return r.ownerID }
func (r *Recipe) Title() string { return r.title }
func (r *Recipe) Ingredients() []string { return cloneStrings(r.ingredients) }
func (r *Recipe) Instructions() []string { return cloneStrings(r.instructions) }
func (r *Recipe) UserInput() UserInput { return r.userInput }
func (r *Recipe) Image() Enrichment[string] { return r.image }
func (r *Recipe) Nutrition() Enrichment[NutritionInfo] { return r.nutrition }
func (r *Recipe) IsFavorite() bool { return r.isFavorite }
func (r *Recipe) CreatedAt() time.Time { return r.createdAt }

// Core returns the generated text fields.
func (r *Recipe) Core() CoreFields {
	return CoreFields{
		Title:        r.title,
		Ingredients:  cloneStrings(r.ingredients),
		Instructions: cloneStrings(r.instructions),
	}
}

// OwnedBy reports whether owner may see and mutate the recipe.
func (r *Recipe) OwnedBy(owner uuid.UUID) bool {
	return r.ownerID == owner
}

// MarkSaved records that the recipe now has a durable identity.
func (r *Recipe) MarkSaved() {
	r.AddEvent(RecipeSavedEvent{
		RecipeID: r.id,
		OwnerID:  r.ownerID,
		Title:    r.title,
		SavedAt:  time.Now(),
	})
}

// SetFavorite sets the favorite flag.
func (r *Recipe) SetFavorite(favorite bool) {
	r.isFavorite = favorite
	r.AddEvent(RecipeFavoriteToggledEvent{
		RecipeID:   r.id,
		IsFavorite: favorite,
		ToggledAt:  time.Now(),
	})
}

// AttachImage sets the image URL. A second call overwrites the first.
func (r *Recipe) AttachImage(url string) {
	r.image = Ready(url)
	r.AddEvent(RecipeImageAttachedEvent{
		RecipeID:   r.id,
		ImageURL:   url,
		AttachedAt: time.Now(),
	})
}

// AttachNutrition sets the nutrition estimate. A second call overwrites the first.
func (r *Recipe) AttachNutrition(info NutritionInfo) {
	r.nutrition = Ready(info.WithDefaults())
	r.AddEvent(RecipeNutritionAttachedEvent{
		RecipeID:   r.id,
		AttachedAt: time.Now(),
	})
}

// MarkRemoved records the deletion of the recipe.
func (r *Recipe) MarkRemoved() {
	r.AddEvent(RecipeRemovedEvent{
		RecipeID:  r.id,
		OwnerID:   r.ownerID,
		RemovedAt: time.Now(),
	})
}

// History returns every recipe, newest first.
func History(recipes []*Recipe) []*Recipe {
	out := make([]*Recipe, len(recipes))
	copy(out, recipes)
	sortNewestFirst(out)
	return out
}

// Favorites returns the favorite recipes, newest first.
func Favorites(recipes []*Recipe) []*Recipe {
	out := make([]*Recipe, 0, len(recipes))
	for _, r := range recipes {
		if r.isFavorite {
			out = append(out, r)
		}
	}
	sortNewestFirst(out)
	return out
}

func sortNewestFirst(recipes []*Recipe) {
	sort.SliceStable(recipes, func(i, j int) bool {
		a, b := recipes[i], recipes[j]
		if !a.createdAt.Equal(b.createdAt) {
			return a.createdAt.After(b.createdAt)
		}
		return a.id.String() < b.id.String()
	})
}

func cloneStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
