package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/alchemorsel/recipe-studio/internal/domain/recipe"
)

var errNoJSONObject = errors.New("model reply contains no JSON object")

// decodeFirstObject decodes the first JSON object found in reply into v.
// Text before the object, such as a code fence, is ignored, as is
// anything after it.
func decodeFirstObject(reply string, v interface{}) error {
	start := strings.IndexByte(reply, '{')
	if start < 0 {
		return errNoJSONObject
	}
	dec := json.NewDecoder(strings.NewReader(reply[start:]))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode model reply: %w", err)
	}
	return nil
}

type recipeTextReply struct {
	Title        string   `json:"title" validate:"required,notblank"`
	Ingredients  []string `json:"ingredients" validate:"min=1,dive,notblank"`
	Instructions []string `json:"instructions" validate:"min=1,dive,notblank"`
}

func (r recipeTextReply) core() *recipe.CoreFields {
	return &recipe.CoreFields{
		Title:        strings.TrimSpace(r.Title),
		Ingredients:  trimAll(r.Ingredients),
		Instructions: trimAll(r.Instructions),
	}
}

// Numbers are pointers so that a missing field fails "required" instead of
// reading as zero.
type nutritionReply struct {
	EstimatedCalories *float64 `json:"estimatedCalories" validate:"required,gte=0"`
	CaloriesBasis     string   `json:"caloriesBasis"`
	ProteinGrams      *float64 `json:"proteinGrams" validate:"required,gte=0"`
	CarbsGrams        *float64 `json:"carbsGrams" validate:"required,gte=0"`
	FatGrams          *float64 `json:"fatGrams" validate:"required,gte=0"`
	HealthTips        []string `json:"healthTips" validate:"min=1,max=5,dive,notblank"`
	Disclaimer        string   `json:"disclaimer"`
}

const maxHealthTips = 3

func (r nutritionReply) info() *recipe.NutritionInfo {
	tips := trimAll(r.HealthTips)
	if len(tips) > maxHealthTips {
		tips = tips[:maxHealthTips]
	}
	info := recipe.NutritionInfo{
		EstimatedCalories: *r.EstimatedCalories,
		CaloriesBasis:     normalizeBasis(r.CaloriesBasis),
		ProteinGrams:      *r.ProteinGrams,
		CarbsGrams:        *r.CarbsGrams,
		FatGrams:          *r.FatGrams,
		HealthTips:        tips,
		Disclaimer:        strings.TrimSpace(r.Disclaimer),
	}.WithDefaults()
	return &info
}

func normalizeBasis(s string) recipe.CaloriesBasis {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer(" ", "_", "-", "_").Replace(s)
	switch {
	case strings.Contains(s, "serving"):
		return recipe.CaloriesPerServing
	case strings.Contains(s, "total"), strings.Contains(s, "dish"):
		return recipe.CaloriesTotal
	default:
		return recipe.CaloriesUnknown
	}
}

type detectReply struct {
	DetectedIngredients []string `json:"detectedIngredients"`
}

// normalizeIngredients trims, drops blanks and removes case-insensitive
// duplicates. The first spelling wins and order is kept.
func normalizeIngredients(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, item := range in {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		key := strings.ToLower(item)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, item)
	}
	return out
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
