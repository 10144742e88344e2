// Package testutils provides custom assertions and testing utilities
package testutils

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alchemorsel/recipe-studio/internal/domain/recipe"
	apperrors "github.com/alchemorsel/recipe-studio/pkg/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RecipeAssertions provides recipe-specific assertion methods
type RecipeAssertions struct {
	t *testing.T
}

// NewRecipeAssertions creates a new recipe assertions helper
func NewRecipeAssertions(t *testing.T) *RecipeAssertions {
	return &RecipeAssertions{t: t}
}

// Persisted asserts that a recipe has a durable identity and its core fields
func (ra *RecipeAssertions) Persisted(r *recipe.Recipe, msgAndArgs ...interface{}) {
	require.NotNil(ra.t, r, "Recipe should not be nil")
	assert.NotEqual(ra.t, uuid.Nil, r.ID(), "Recipe should have a valid ID")
	assert.False(ra.t, r.CreatedAt().IsZero(), "Recipe should have a creation time")
	assert.NoError(ra.t, r.Core().Validate(), msgAndArgs...)
}

// Enriched asserts which enrichment fields are ready
func (ra *RecipeAssertions) Enriched(r *recipe.Recipe, nutrition, image bool, msgAndArgs ...interface{}) {
	require.NotNil(ra.t, r, "Recipe should not be nil")
	assert.Equal(ra.t, nutrition, r.Nutrition().IsReady(), "nutrition readiness")
	assert.Equal(ra.t, image, r.Image().IsReady(), "image readiness")
}

// ErrorCode asserts that err is an *AppError with the given code
func ErrorCode(t *testing.T, err error, code apperrors.ErrorCode, msgAndArgs ...interface{}) *apperrors.AppError {
	t.Helper()
	require.Error(t, err, msgAndArgs...)
	appErr, ok := apperrors.As(err)
	require.True(t, ok, "expected *AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code, msgAndArgs...)
	return appErr
}

// HTTPAssertions provides HTTP-specific assertion methods
type HTTPAssertions struct {
	t *testing.T
}

// NewHTTPAssertions creates a new HTTP assertions helper
func NewHTTPAssertions(t *testing.T) *HTTPAssertions {
	return &HTTPAssertions{t: t}
}

// JSONResponse asserts the status code and that the body is JSON, and
// decodes it into target
func (ha *HTTPAssertions) JSONResponse(rec *httptest.ResponseRecorder, expectedCode int, target interface{}) {
	require.NotNil(ha.t, rec, "Response should not be nil")
	assert.Equal(ha.t, expectedCode, rec.Code, "body: %s", rec.Body.String())

	contentType := rec.Header().Get("Content-Type")
	assert.True(ha.t, strings.Contains(contentType, "application/json"),
		"Response should have JSON content type, got: %s", contentType)

	if target != nil {
		require.NoError(ha.t, json.Unmarshal(rec.Body.Bytes(), target), "Response should be valid JSON")
	}
}

// ErrorResponse asserts a JSON error envelope with the given status and code
func (ha *HTTPAssertions) ErrorResponse(rec *httptest.ResponseRecorder, expectedCode int, code apperrors.ErrorCode) apperrors.ErrorResponse {
	var resp apperrors.ErrorResponse
	ha.JSONResponse(rec, expectedCode, &resp)
	assert.Equal(ha.t, code, resp.Error.Code)
	return resp
}
