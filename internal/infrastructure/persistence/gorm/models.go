// Package gorm provides GORM model definitions and repositories
package gorm

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RecipeModel represents the GORM model for recipes
type RecipeModel struct {
	ID      uuid.UUID `gorm:"type:char(36);primaryKey"`
	OwnerID uuid.UUID `gorm:"type:char(36);not null;index:idx_recipes_owner_created,priority:1"`

	// Generated text
	Title        string         `gorm:"type:varchar(255);not null"`
	Ingredients  StringSlice    `gorm:"type:json;not null"`
	Instructions StringSlice    `gorm:"type:json;not null"`
	UserInput    UserInputModel `gorm:"embedded;embeddedPrefix:input_"`

	// Enrichment, NULL until attached
	ImageURL      *string    `gorm:"type:text"`
	NutritionInfo *JSONField `gorm:"type:json"`

	IsFavorite bool      `gorm:"not null;default:false"`
	CreatedAt  time.Time `gorm:"not null;index:idx_recipes_owner_created,priority:2,sort:desc"`
	UpdatedAt  time.Time
}

// UserInputModel represents the embedded generation parameters
type UserInputModel struct {
	Ingredients           string `gorm:"type:text;not null"`
	Cuisine               string `gorm:"type:varchar(100)"`
	MealType              string `gorm:"type:varchar(100)"`
	DietaryRestrictions   string `gorm:"type:varchar(500)"`
	Language              string `gorm:"type:varchar(50)"`
	SurpriseMe            bool   `gorm:"not null;default:false"`
	MaxCookingTimeMinutes int    `gorm:"column:max_cooking_time_minutes;not null;default:0"`
}

// PreferencesModel represents the GORM model for per-user generation defaults
type PreferencesModel struct {
	OwnerID             uuid.UUID `gorm:"type:char(36);primaryKey"`
	Cuisine             string    `gorm:"type:varchar(100)"`
	MealType            string    `gorm:"type:varchar(100)"`
	DietaryRestrictions string    `gorm:"type:varchar(500)"`
	Language            string    `gorm:"type:varchar(50)"`
	UpdatedAt           time.Time
}

// Models lists every table for AutoMigrate
func Models() []interface{} {
	return []interface{}{&RecipeModel{}, &PreferencesModel{}}
}

// StringSlice custom type for handling string arrays
type StringSlice []string

// Scan implements the sql.Scanner interface
func (s *StringSlice) Scan(value interface{}) error {
	if value == nil {
		*s = StringSlice{}
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return fmt.Errorf("cannot scan %T into StringSlice", value)
	}
}

// Value implements the driver.Valuer interface
func (s StringSlice) Value() (driver.Value, error) {
	if len(s) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(s)
	return string(b), err
}

// JSONField custom type for handling JSON objects
type JSONField map[string]interface{}

// Scan implements the sql.Scanner interface
func (j *JSONField) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, j)
	case string:
		return json.Unmarshal([]byte(v), j)
	default:
		return fmt.Errorf("cannot scan %T into JSONField", value)
	}
}

// Value implements the driver.Valuer interface
func (j JSONField) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	b, err := json.Marshal(j)
	return string(b), err
}

// BeforeCreate hook for RecipeModel
func (r *RecipeModel) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// TableName methods for custom table names
func (RecipeModel) TableName() string {
	return "recipes"
}

func (PreferencesModel) TableName() string {
	return "user_preferences"
}
