package gorm

import (
	"context"
	"errors"
	"fmt"

	"github.com/alchemorsel/recipe-studio/internal/domain/user"
	"github.com/alchemorsel/recipe-studio/internal/ports/outbound"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PreferencesRepository implements the preferences repository using GORM
type PreferencesRepository struct {
	db *gorm.DB
}

// NewPreferencesRepository creates a new preferences repository
func NewPreferencesRepository(db *gorm.DB) *PreferencesRepository {
	return &PreferencesRepository{db: db}
}

var _ outbound.PreferencesRepository = (*PreferencesRepository)(nil)

// Get returns the owner's preferences, or nil when none were saved
func (r *PreferencesRepository) Get(ctx context.Context, owner uuid.UUID) (*user.Preferences, error) {
	var model PreferencesModel

	result := r.db.WithContext(ctx).First(&model, "owner_id = ?", owner)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get preferences: %w", result.Error)
	}
	return ModelToPreferences(&model), nil
}

// Upsert replaces the owner's preferences row
func (r *PreferencesRepository) Upsert(ctx context.Context, prefs *user.Preferences) error {
	model := PreferencesToModel(prefs)

	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "owner_id"}},
		UpdateAll: true,
	}).Create(model)
	if result.Error != nil {
		return fmt.Errorf("upsert preferences: %w", result.Error)
	}
	return nil
}
