package generation

// Challenge is a themed cooking challenge for home cooks.
type Challenge struct {
	Title       string   `json:"title" validate:"required"`
	Description string   `json:"description" validate:"required"`
	Constraints []string `json:"constraints" validate:"min=2,max=4,dive,required"`
	ExampleDish string   `json:"exampleDish,omitempty"`
}
