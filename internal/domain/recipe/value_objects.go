package recipe

import "strings"

// DefaultNutritionDisclaimer is attached to every nutrition estimate that
// arrives without one.
const DefaultNutritionDisclaimer = "Nutritional information is AI-estimated and may not be accurate. Consult a nutritionist for precise data."

// CaloriesBasis says what the calorie estimate refers to.
type CaloriesBasis string

const (
	CaloriesPerServing CaloriesBasis = "per_serving"
	CaloriesTotal      CaloriesBasis = "total"
	CaloriesUnknown    CaloriesBasis = ""
)

// UserInput holds the generation request parameters that produced a recipe.
type UserInput struct {
	Ingredients           string `json:"ingredients"`
	Cuisine               string `json:"cuisine,omitempty"`
	MealType              string `json:"mealType,omitempty"`
	DietaryRestrictions   string `json:"dietaryRestrictions,omitempty"`
	Language              string `json:"language,omitempty"`
	SurpriseMe            bool   `json:"surpriseMe,omitempty"`
	MaxCookingTimeMinutes int    `json:"maxCookingTimeMinutes,omitempty"`
}

// Validate checks the invariants a generation request must satisfy.
func (u UserInput) Validate() error {
	if strings.TrimSpace(u.Ingredients) == "" {
		return ErrEmptyIngredientsInput
	}
	if u.MaxCookingTimeMinutes < 0 {
		return ErrInvalidCookingTime
	}
	return nil
}

// NutritionInfo is an advisory nutrition estimate for a recipe.
type NutritionInfo struct {
	EstimatedCalories float64       `json:"estimatedCalories"`
	CaloriesBasis     CaloriesBasis `json:"caloriesBasis,omitempty"`
	ProteinGrams      float64       `json:"proteinGrams"`
	CarbsGrams        float64       `json:"carbsGrams"`
	FatGrams          float64       `json:"fatGrams"`
	HealthTips        []string      `json:"healthTips"`
	Disclaimer        string        `json:"disclaimer"`
}

// WithDefaults fills the disclaimer when the estimate carries none.
func (n NutritionInfo) WithDefaults() NutritionInfo {
	if strings.TrimSpace(n.Disclaimer) == "" {
		n.Disclaimer = DefaultNutritionDisclaimer
	}
	if n.HealthTips == nil {
		n.HealthTips = []string{}
	}
	return n
}

// CoreFields are the generated text fields of a recipe. They never change
// after creation.
type CoreFields struct {
	Title        string   `json:"title"`
	Ingredients  []string `json:"ingredients"`
	Instructions []string `json:"instructions"`
}

// Validate checks that every core field is present.
func (c CoreFields) Validate() error {
	if strings.TrimSpace(c.Title) == "" {
		return ErrEmptyTitle
	}
	if len(c.Ingredients) == 0 {
		return ErrNoIngredients
	}
	if len(c.Instructions) == 0 {
		return ErrNoInstructions
	}
	return nil
}

// Enrichment is a field that starts Pending and later becomes Ready.
type Enrichment[T any] struct {
	value T
	ready bool
}

// Pending returns an enrichment with no value yet.
func Pending[T any]() Enrichment[T] {
	return Enrichment[T]{}
}

// Ready returns an enrichment holding v.
func Ready[T any](v T) Enrichment[T] {
	return Enrichment[T]{value: v, ready: true}
}

// IsReady reports whether a value has been attached.
func (e Enrichment[T]) IsReady() bool {
	return e.ready
}

// Value returns the attached value and whether it is present.
func (e Enrichment[T]) Value() (T, bool) {
	return e.value, e.ready
}

// Ptr returns a pointer to the value, or nil while pending.
func (e Enrichment[T]) Ptr() *T {
	if !e.ready {
		return nil
	}
	v := e.value
	return &v
}

// FromPtr builds an enrichment from an optional value.
func FromPtr[T any](v *T) Enrichment[T] {
	if v == nil {
		return Pending[T]()
	}
	return Ready(*v)
}
