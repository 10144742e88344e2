// Package user holds per-user settings that shape recipe generation.
package user

import (
	"errors"
	"time"

	"github.com/alchemorsel/recipe-studio/internal/domain/recipe"
	"github.com/google/uuid"
)

var ErrMissingOwner = errors.New("preferences must have an owner")

// Preferences are the saved generation defaults of one user. There is at
// most one record per owner.
type Preferences struct {
	OwnerID             uuid.UUID `json:"-"`
	Cuisine             string    `json:"cuisine,omitempty"`
	MealType            string    `json:"mealType,omitempty"`
	DietaryRestrictions string    `json:"dietaryRestrictions,omitempty"`
	Language            string    `json:"language,omitempty"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// NewPreferences builds a preferences record for owner.
func NewPreferences(owner uuid.UUID, cuisine, mealType, dietary, language string) (*Preferences, error) {
	if owner == uuid.Nil {
		return nil, ErrMissingOwner
	}
	return &Preferences{
		OwnerID:             owner,
		Cuisine:             cuisine,
		MealType:            mealType,
		DietaryRestrictions: dietary,
		Language:            language,
		UpdatedAt:           time.Now(),
	}, nil
}

// ApplyTo fills the optional fields of in that the caller left empty.
// Surprise requests keep their cuisine and meal type open.
func (p *Preferences) ApplyTo(in recipe.UserInput) recipe.UserInput {
	if p == nil {
		return in
	}
	if in.DietaryRestrictions == "" {
		in.DietaryRestrictions = p.DietaryRestrictions
	}
	if in.Language == "" {
		in.Language = p.Language
	}
	if in.SurpriseMe {
		return in
	}
	if in.Cuisine == "" {
		in.Cuisine = p.Cuisine
	}
	if in.MealType == "" {
		in.MealType = p.MealType
	}
	return in
}

// Clone returns a copy of the preferences.
func (p *Preferences) Clone() *Preferences {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
