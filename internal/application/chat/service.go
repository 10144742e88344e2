// Package chat keeps question and answer sessions about a single recipe.
// Sessions live in memory only.
package chat

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alchemorsel/recipe-studio/internal/domain/chat"
	"github.com/alchemorsel/recipe-studio/internal/infrastructure/monitoring"
	"github.com/alchemorsel/recipe-studio/internal/ports/inbound"
	"github.com/alchemorsel/recipe-studio/internal/ports/outbound"
	apperrors "github.com/alchemorsel/recipe-studio/pkg/errors"
	"github.com/alchemorsel/recipe-studio/pkg/validation"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Config controls session expiry.
type Config struct {
	SessionTTL    time.Duration
	SweepInterval time.Duration
}

type session struct {
	id         uuid.UUID
	owner      uuid.UUID
	recipe     chat.RecipeContext
	transcript chat.Transcript
	busy       atomic.Bool
	lastActive atomic.Int64
}

func (s *session) touch() {
	s.lastActive.Store(time.Now().UnixNano())
}

func (s *session) view() *inbound.ChatSession {
	return &inbound.ChatSession{
		ID:         s.id,
		RecipeID:   s.recipe.RecipeID,
		Title:      s.recipe.Title,
		Messages:   s.transcript.Messages(),
		InFlight:   s.busy.Load(),
		LastActive: time.Unix(0, s.lastActive.Load()),
	}
}

// Service implements inbound.ChatService. Each owner has at most one open
// session; opening another discards the previous one.
type Service struct {
	gateway  inbound.GenerationGateway
	store    inbound.RecipeStore
	identity outbound.IdentityProvider
	metrics  *monitoring.Metrics
	validate *validation.Validator
	config   Config
	logger   *zap.Logger

	mu       sync.RWMutex
	sessions map[uuid.UUID]*session
	byOwner  map[uuid.UUID]uuid.UUID

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewService creates a new chat service
func NewService(
	gateway inbound.GenerationGateway,
	store inbound.RecipeStore,
	identity outbound.IdentityProvider,
	metrics *monitoring.Metrics,
	config Config,
	logger *zap.Logger,
) *Service {
	if config.SessionTTL <= 0 {
		config.SessionTTL = 30 * time.Minute
	}
	if config.SweepInterval <= 0 {
		config.SweepInterval = time.Minute
	}
	return &Service{
		gateway:  gateway,
		store:    store,
		identity: identity,
		metrics:  metrics,
		validate: validation.New(),
		config:   config,
		logger:   logger.Named("chat"),
		sessions: make(map[uuid.UUID]*session),
		byOwner:  make(map[uuid.UUID]uuid.UUID),
	}
}

var _ inbound.ChatService = (*Service)(nil)

// Open starts an empty session about one of the caller's recipes.
func (s *Service) Open(ctx context.Context, recipeID uuid.UUID) (*inbound.ChatSession, error) {
	owner, ok := s.identity.CurrentUser(ctx)
	if !ok {
		return nil, apperrors.NewAuthFailure()
	}

	r, err := s.store.Get(ctx, recipeID)
	if err != nil {
		return nil, err
	}

	sess := &session{
		id:    uuid.New(),
		owner: owner,
		recipe: chat.RecipeContext{
			RecipeID:     r.ID(),
			Title:        r.Title(),
			Ingredients:  r.Ingredients(),
			Instructions: r.Instructions(),
		},
	}
	sess.touch()

	s.mu.Lock()
	if previous, ok := s.byOwner[owner]; ok {
		delete(s.sessions, previous)
	}
	s.sessions[sess.id] = sess
	s.byOwner[owner] = sess.id
	s.mu.Unlock()

	s.logger.Debug("Chat session opened",
		zap.String("session_id", sess.id.String()),
		zap.String("recipe_id", recipeID.String()),
	)
	return sess.view(), nil
}

// Ask sends one question. Only one question per session may be in flight.
// A failed model call still returns a reply, FailureReply, and no error.
func (s *Service) Ask(ctx context.Context, sessionID uuid.UUID, question string) (*chat.Message, error) {
	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, apperrors.NewValidationFailure("question", "question must not be empty")
	}
	req := inbound.QuestionRequest{Recipe: sess.recipe.String(), Question: question}
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}
	if !sess.busy.CompareAndSwap(false, true) {
		return nil, apperrors.NewConflictError("a question is already in flight")
	}
	defer sess.busy.Store(false)
	defer sess.touch()

	sess.transcript.Append(chat.NewMessage(chat.SenderUser, question))

	text := chat.FailureReply
	answer, err := s.gateway.AnswerQuestion(ctx, req)
	s.metrics.ObserveChatQuestion(err)
	if err != nil {
		s.logger.Warn("Answering question failed",
			zap.String("session_id", sessionID.String()),
			zap.String("recipe_id", sess.recipe.RecipeID.String()),
			zap.Error(err),
		)
	} else {
		text = answer.Text
	}

	reply := chat.NewMessage(chat.SenderAssistant, text)
	sess.transcript.Append(reply)
	return &reply, nil
}

// Transcript returns the session with a copy of its messages.
func (s *Service) Transcript(ctx context.Context, sessionID uuid.UUID) (*inbound.ChatSession, error) {
	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return sess.view(), nil
}

// Close discards the session and its transcript.
func (s *Service) Close(ctx context.Context, sessionID uuid.UUID) error {
	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.remove(sess)
	s.mu.Unlock()
	return nil
}

// Start runs the idle session sweeper until Stop is called.
func (s *Service) Start(ctx context.Context) error {
	s.stop = make(chan struct{})
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.config.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.sweep(time.Now())
			case <-s.stop:
				return
			}
		}
	}()
	return nil
}

// Stop halts the sweeper.
func (s *Service) Stop(ctx context.Context) error {
	if s.stop == nil {
		return nil
	}
	close(s.stop)
	s.wg.Wait()
	s.stop = nil
	return nil
}

// sweep drops sessions idle since before now - SessionTTL. Busy sessions
// are kept.
func (s *Service) sweep(now time.Time) int {
	cutoff := now.Add(-s.config.SessionTTL).UnixNano()

	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for _, sess := range s.sessions {
		if !sess.busy.Load() && sess.lastActive.Load() < cutoff {
			s.remove(sess)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Debug("Swept idle chat sessions", zap.Int("count", removed))
	}
	return removed
}

// remove must be called with mu held.
func (s *Service) remove(sess *session) {
	delete(s.sessions, sess.id)
	if s.byOwner[sess.owner] == sess.id {
		delete(s.byOwner, sess.owner)
	}
}

func (s *Service) session(ctx context.Context, sessionID uuid.UUID) (*session, error) {
	owner, ok := s.identity.CurrentUser(ctx)
	if !ok {
		return nil, apperrors.NewAuthFailure()
	}
	s.mu.RLock()
	sess, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok || sess.owner != owner {
		return nil, apperrors.NewNotFoundError("Chat session")
	}
	return sess, nil
}
