// Package generation models one end-to-end recipe generation and the
// stages it moves through.
package generation

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Stage is a state of the generation pipeline.
type Stage string

const (
	StageIdle               Stage = "idle"
	StageGeneratingText     Stage = "generating_text"
	StagePersisting         Stage = "persisting"
	StageEnrichingNutrition Stage = "enriching_nutrition"
	StageEnrichingImage     Stage = "enriching_image"
	StageDone               Stage = "done"
	StageFailed             Stage = "failed"
)

var ErrIllegalTransition = errors.New("illegal generation stage transition")

var transitions = map[Stage][]Stage{
	StageIdle:               {StageGeneratingText},
	StageGeneratingText:     {StagePersisting, StageFailed},
	StagePersisting:         {StageEnrichingNutrition, StageFailed},
	StageEnrichingNutrition: {StageEnrichingImage},
	StageEnrichingImage:     {StageDone},
}

// Terminal reports whether no further transition is possible.
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageFailed
}

// Notice is a non-fatal failure reported by an enrichment stage.
type Notice struct {
	Stage   Stage     `json:"stage"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Run tracks a single generation request.
type Run struct {
	mu        sync.RWMutex
	id        uuid.UUID
	ownerID   uuid.UUID
	stage     Stage
	recipeID  uuid.UUID
	failure   string
	notices   []Notice
	startedAt time.Time
	updatedAt time.Time
}

// NewRun starts a run in the idle stage.
func NewRun(owner uuid.UUID) *Run {
	now := time.Now()
	return &Run{
		id:        uuid.New(),
		ownerID:   owner,
		stage:     StageIdle,
		startedAt: now,
		updatedAt: now,
	}
}

// NewEnrichmentRun starts a run for a recipe that is already persisted,
// skipping straight to enrichment.
func NewEnrichmentRun(owner, recipeID uuid.UUID) *Run {
	r := NewRun(owner)
	r.stage = StageEnrichingNutrition
	r.recipeID = recipeID
	return r
}

// Advance moves the run to next. Only the edges of the pipeline are allowed.
func (r *Run) Advance(next Stage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, allowed := range transitions[r.stage] {
		if allowed == next {
			r.stage = next
			r.updatedAt = time.Now()
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, r.stage, next)
}

// Fail moves the run to failed, recording reason.
func (r *Run) Fail(reason string) error {
	if err := r.Advance(StageFailed); err != nil {
		return err
	}
	r.mu.Lock()
	r.failure = reason
	r.mu.Unlock()
	return nil
}

// AttachRecipe records the persisted recipe the run produced.
func (r *Run) AttachRecipe(id uuid.UUID) {
	r.mu.Lock()
	r.recipeID = id
	r.mu.Unlock()
}

// AddNotice records a non-fatal enrichment failure.
func (r *Run) AddNotice(stage Stage, message string) {
	r.mu.Lock()
	r.notices = append(r.notices, Notice{Stage: stage, Message: message, At: time.Now()})
	r.mu.Unlock()
}

func (r *Run) ID() uuid.UUID { return r.id }
func (r *Run) OwnerID() uuid.UUID { return r.ownerID }

// Stage returns the current stage.
func (r *Run) Stage() Stage {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stage
}

// View is a point-in-time copy of a run.
type View struct {
	ID        uuid.UUID  `json:"id"`
	Stage     Stage      `json:"stage"`
	RecipeID  *uuid.UUID `json:"recipeId,omitempty"`
	Failure   string     `json:"failure,omitempty"`
	Notices   []Notice   `json:"notices"`
	StartedAt time.Time  `json:"startedAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// View returns a copy that is safe to hand to other goroutines.
func (r *Run) View() View {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v := View{
		ID:        r.id,
		Stage:     r.stage,
		Failure:   r.failure,
		Notices:   make([]Notice, len(r.notices)),
		StartedAt: r.startedAt,
		UpdatedAt: r.updatedAt,
	}
	copy(v.Notices, r.notices)
	if r.recipeID != uuid.Nil {
		id := r.recipeID
		v.RecipeID = &id
	}
	return v
}
