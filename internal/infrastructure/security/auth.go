// Package security provides token authentication and the identity stream
// the application listens to.
package security

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alchemorsel/recipe-studio/internal/ports/outbound"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrTokenRevoked = errors.New("token has been revoked")
)

// Config holds token settings
type Config struct {
	JWTSecret     string
	JWTExpiration time.Duration
	Issuer        string
}

// Claims represents JWT claims structure
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// IdentityService issues and validates HS256 tokens and reports sign-in
// and sign-out transitions. It implements outbound.IdentityProvider.
type IdentityService struct {
	config Config
	secret []byte
	cache  outbound.CacheRepository
	logger *zap.Logger

	mu        sync.Mutex
	active    map[uuid.UUID]int
	listeners map[int]func(outbound.AuthEvent)
	nextID    int
}

// NewIdentityService creates a new identity service. Revoked token IDs are
// kept in cache until the token would have expired.
func NewIdentityService(cfg Config, cache outbound.CacheRepository, logger *zap.Logger) *IdentityService {
	if cfg.JWTExpiration <= 0 {
		cfg.JWTExpiration = 24 * time.Hour
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "recipe-studio"
	}
	return &IdentityService{
		config:    cfg,
		secret:    []byte(cfg.JWTSecret),
		cache:     cache,
		logger:    logger.Named("identity"),
		active:    make(map[uuid.UUID]int),
		listeners: make(map[int]func(outbound.AuthEvent)),
	}
}

var _ outbound.IdentityProvider = (*IdentityService)(nil)

// IssueToken creates a signed access token for userID
func (s *IdentityService) IssueToken(userID uuid.UUID) (string, *Claims, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.JWTExpiration)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, claims, nil
}

// ValidateToken parses a token and checks that it was not revoked
func (s *IdentityService) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(s.config.Issuer), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if _, err := uuid.Parse(claims.UserID); err != nil {
		return nil, fmt.Errorf("%w: bad user_id claim", ErrInvalidToken)
	}

	revoked, err := s.cache.Exists(ctx, revokedKey(claims.ID))
	if err != nil {
		s.logger.Warn("Failed to check token revocation", zap.Error(err))
	} else if revoked {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// Authenticate validates a token and returns a context carrying the user.
// The first authentication of a user that is not signed in emits
// signed_in.
func (s *IdentityService) Authenticate(ctx context.Context, tokenString string) (context.Context, *Claims, error) {
	claims, err := s.ValidateToken(ctx, tokenString)
	if err != nil {
		return ctx, nil, err
	}
	userID := uuid.MustParse(claims.UserID)

	s.mu.Lock()
	_, known := s.active[userID]
	s.active[userID]++
	s.mu.Unlock()
	if !known {
		s.emit(outbound.AuthEvent{Type: outbound.AuthSignedIn, UserID: userID, At: time.Now()})
	}
	return WithUser(ctx, userID), claims, nil
}

// SignOut revokes the token and emits signed_out for its user
func (s *IdentityService) SignOut(ctx context.Context, claims *Claims) error {
	ttl := s.config.JWTExpiration
	if claims.ExpiresAt != nil {
		ttl = time.Until(claims.ExpiresAt.Time)
	}
	if ttl > 0 {
		if err := s.cache.Set(ctx, revokedKey(claims.ID), []byte("revoked"), ttl); err != nil {
			return fmt.Errorf("failed to revoke token: %w", err)
		}
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return ErrInvalidToken
	}
	s.mu.Lock()
	delete(s.active, userID)
	s.mu.Unlock()

	s.logger.Info("User signed out", zap.String("user_id", claims.UserID))
	s.emit(outbound.AuthEvent{Type: outbound.AuthSignedOut, UserID: userID, At: time.Now()})
	return nil
}

// CurrentUser returns the user attached to ctx
func (s *IdentityService) CurrentUser(ctx context.Context) (uuid.UUID, bool) {
	return UserFromContext(ctx)
}

// OnAuthChange registers listener for sign-in and sign-out events
func (s *IdentityService) OnAuthChange(listener func(outbound.AuthEvent)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = listener
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *IdentityService) emit(event outbound.AuthEvent) {
	s.mu.Lock()
	listeners := make([]func(outbound.AuthEvent), 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(event)
	}
}

func revokedKey(tokenID string) string {
	return "revoked_token:" + tokenID
}

type userKey struct{}

// WithUser returns a context authenticated as userID
func WithUser(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

// UserFromContext returns the authenticated user, if any
func UserFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(userKey{}).(uuid.UUID)
	return id, ok && id != uuid.Nil
}
