// Package testutils provides mock implementations for testing
package testutils

import (
	"context"
	"sync"
	"time"

	"github.com/alchemorsel/recipe-studio/internal/domain/generation"
	"github.com/alchemorsel/recipe-studio/internal/domain/recipe"
	"github.com/alchemorsel/recipe-studio/internal/domain/user"
	"github.com/alchemorsel/recipe-studio/internal/ports/inbound"
	"github.com/alchemorsel/recipe-studio/internal/ports/outbound"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockModelProvider provides a mock implementation of ModelProvider
type MockModelProvider struct {
	mock.Mock
}

func (m *MockModelProvider) Name() string {
	return "mock"
}

// Complete returns the canned reply
func (m *MockModelProvider) Complete(ctx context.Context, req outbound.CompletionRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

// GenerateImage returns the canned image
func (m *MockModelProvider) GenerateImage(ctx context.Context, prompt string) (*outbound.ImageResult, error) {
	args := m.Called(ctx, prompt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*outbound.ImageResult), args.Error(1)
}

// MockRecipeRepository provides a mock implementation of RecipeRepository.
// Calls that the mock lets through are applied to an in-memory table so
// that later reads see them.
type MockRecipeRepository struct {
	mock.Mock
	mu      sync.RWMutex
	recipes map[uuid.UUID]recipe.Snapshot
	clock   time.Time
}

// NewMockRecipeRepository creates a new mock recipe repository
func NewMockRecipeRepository() *MockRecipeRepository {
	return &MockRecipeRepository{
		recipes: make(map[uuid.UUID]recipe.Snapshot),
		clock:   time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

// Seed stores a recipe directly, bypassing expectations
func (m *MockRecipeRepository) Seed(r *recipe.Recipe) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recipes[r.ID()] = r.Snapshot()
}

// Stored returns the stored copy of a recipe
func (m *MockRecipeRepository) Stored(id uuid.UUID) (*recipe.Recipe, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.recipes[id]
	if !ok {
		return nil, false
	}
	return recipe.Rehydrate(s), true
}

func (m *MockRecipeRepository) ListByOwner(ctx context.Context, owner uuid.UUID) ([]*recipe.Recipe, error) {
	args := m.Called(ctx, owner)
	if err := args.Error(0); err != nil {
		return nil, err
	}
	// a real driver gives up once the query's context ends
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*recipe.Recipe, 0, len(m.recipes))
	for _, s := range m.recipes {
		if s.OwnerID == owner {
			out = append(out, recipe.Rehydrate(s))
		}
	}
	return recipe.History(out), nil
}

func (m *MockRecipeRepository) Create(ctx context.Context, draft *recipe.Recipe) (*recipe.Recipe, error) {
	args := m.Called(ctx, draft)
	if err := args.Error(0); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	s := draft.Snapshot()
	s.ID = uuid.New()
	m.clock = m.clock.Add(time.Minute)
	s.CreatedAt = m.clock
	m.recipes[s.ID] = s
	return recipe.Rehydrate(s), nil
}

func (m *MockRecipeRepository) UpdateFavorite(ctx context.Context, id, owner uuid.UUID, favorite bool) error {
	args := m.Called(ctx, id, owner, favorite)
	if err := args.Error(0); err != nil {
		return err
	}
	return m.update(id, owner, func(s *recipe.Snapshot) { s.IsFavorite = favorite })
}

func (m *MockRecipeRepository) UpdateImage(ctx context.Context, id, owner uuid.UUID, imageURL string) error {
	args := m.Called(ctx, id, owner, imageURL)
	if err := args.Error(0); err != nil {
		return err
	}
	return m.update(id, owner, func(s *recipe.Snapshot) { s.ImageURL = &imageURL })
}

func (m *MockRecipeRepository) UpdateNutrition(ctx context.Context, id, owner uuid.UUID, info recipe.NutritionInfo) error {
	args := m.Called(ctx, id, owner, info)
	if err := args.Error(0); err != nil {
		return err
	}
	return m.update(id, owner, func(s *recipe.Snapshot) { s.Nutrition = &info })
}

func (m *MockRecipeRepository) Delete(ctx context.Context, id, owner uuid.UUID) error {
	args := m.Called(ctx, id, owner)
	if err := args.Error(0); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.recipes[id]
	if !ok || s.OwnerID != owner {
		return recipe.ErrRecipeNotFound
	}
	delete(m.recipes, id)
	return nil
}

func (m *MockRecipeRepository) update(id, owner uuid.UUID, apply func(*recipe.Snapshot)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.recipes[id]
	if !ok || s.OwnerID != owner {
		return recipe.ErrRecipeNotFound
	}
	apply(&s)
	m.recipes[id] = s
	return nil
}

// MockPreferencesRepository provides a mock implementation of PreferencesRepository
type MockPreferencesRepository struct {
	mock.Mock
}

func (m *MockPreferencesRepository) Get(ctx context.Context, owner uuid.UUID) (*user.Preferences, error) {
	args := m.Called(ctx, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.Preferences), args.Error(1)
}

func (m *MockPreferencesRepository) Upsert(ctx context.Context, prefs *user.Preferences) error {
	args := m.Called(ctx, prefs)
	return args.Error(0)
}

// MockImageStorage provides a mock implementation of ImageStorage
type MockImageStorage struct {
	mock.Mock
}

func (m *MockImageStorage) Upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	args := m.Called(ctx, key, contentType, data)
	return args.String(0), args.Error(1)
}

type identityKey struct{}

// FakeIdentity is an IdentityProvider that reads the user from a context
// value set with WithUser, and lets tests emit auth changes.
type FakeIdentity struct {
	mu        sync.Mutex
	listeners map[int]func(outbound.AuthEvent)
	next      int
}

// NewFakeIdentity creates a fake identity provider
func NewFakeIdentity() *FakeIdentity {
	return &FakeIdentity{listeners: make(map[int]func(outbound.AuthEvent))}
}

// WithUser returns a context authenticated as userID
func WithUser(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, identityKey{}, userID)
}

func (f *FakeIdentity) CurrentUser(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(identityKey{}).(uuid.UUID)
	return id, ok && id != uuid.Nil
}

func (f *FakeIdentity) OnAuthChange(listener func(outbound.AuthEvent)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.next
	f.next++
	f.listeners[id] = listener
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.listeners, id)
	}
}

// Emit delivers event to every listener synchronously
func (f *FakeIdentity) Emit(event outbound.AuthEvent) {
	f.mu.Lock()
	listeners := make([]func(outbound.AuthEvent), 0, len(f.listeners))
	for _, l := range f.listeners {
		listeners = append(listeners, l)
	}
	f.mu.Unlock()

	for _, l := range listeners {
		l(event)
	}
}

// MockGenerationGateway provides a mock implementation of GenerationGateway
type MockGenerationGateway struct {
	mock.Mock
}

func (m *MockGenerationGateway) GenerateRecipeText(ctx context.Context, req inbound.RecipeTextRequest) (*recipe.CoreFields, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*recipe.CoreFields), args.Error(1)
}

func (m *MockGenerationGateway) GenerateImage(ctx context.Context, req inbound.ImageRequest) (*inbound.GeneratedImage, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inbound.GeneratedImage), args.Error(1)
}

func (m *MockGenerationGateway) AnalyzeNutrition(ctx context.Context, req inbound.NutritionRequest) (*recipe.NutritionInfo, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*recipe.NutritionInfo), args.Error(1)
}

func (m *MockGenerationGateway) AnswerQuestion(ctx context.Context, req inbound.QuestionRequest) (*inbound.Answer, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inbound.Answer), args.Error(1)
}

func (m *MockGenerationGateway) DetectIngredients(ctx context.Context, req inbound.DetectIngredientsRequest) (*inbound.DetectedIngredients, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inbound.DetectedIngredients), args.Error(1)
}

func (m *MockGenerationGateway) GenerateChallenge(ctx context.Context) (*generation.Challenge, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*generation.Challenge), args.Error(1)
}
