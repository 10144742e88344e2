package healthcheck

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// HealthCheckTestSuite covers status aggregation, caching and the HTTP
// endpoints mounted by the API server
type HealthCheckTestSuite struct {
	suite.Suite
	hc *HealthCheck
}

func (suite *HealthCheckTestSuite) SetupTest() {
	suite.hc = New("1.2.3", zaptest.NewLogger(suite.T()))
	suite.hc.SetCacheTTL(0)
}

func (suite *HealthCheckTestSuite) serve(path string, handler http.HandlerFunc) *httptest.ResponseRecorder {
	router := chi.NewRouter()
	router.Get(path, handler)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func (suite *HealthCheckTestSuite) TestNew() {
	assert.Equal(suite.T(), "1.2.3", suite.hc.version)
	assert.Empty(suite.T(), suite.hc.checkers)
	assert.Equal(suite.T(), 5*time.Second, New("v", zap.NewNop()).cacheTTL)
}

func (suite *HealthCheckTestSuite) TestCheck_Aggregation() {
	cases := []struct {
		name     string
		statuses map[string]Status
		want     Status
	}{
		{"NoCheckers_ShouldBeHealthy", nil, StatusHealthy},
		{"AllHealthy_ShouldBeHealthy", map[string]Status{"database": StatusHealthy, "redis": StatusHealthy}, StatusHealthy},
		{"ProviderDown_ShouldBeDegraded", map[string]Status{"database": StatusHealthy, "model_provider": StatusDegraded}, StatusDegraded},
		{"DatabaseDown_ShouldBeUnhealthy", map[string]Status{"database": StatusUnhealthy, "model_provider": StatusDegraded}, StatusUnhealthy},
	}

	for _, tc := range cases {
		suite.Run(tc.name, func() {
			// Arrange
			hc := New("1.2.3", zap.NewNop())
			for name, status := range tc.statuses {
				hc.Register(name, NewMockChecker(name).WithStatus(status))
			}

			// Act
			response := hc.Check(context.Background())

			// Assert
			AssertResponseStructure(suite.T(), response)
			assert.Equal(suite.T(), tc.want, response.Status)
			assert.Len(suite.T(), response.Checks, len(tc.statuses))
		})
	}
}

func (suite *HealthCheckTestSuite) TestCheck_RegisteredNameWins() {
	suite.hc.Register("database", NewMockChecker("db-internal").WithMessage("ok").
		WithMetadata(map[string]interface{}{"open_conns": 3}))

	response := suite.hc.Check(context.Background())

	require.Len(suite.T(), response.Checks, 1)
	check := response.Checks[0]
	assert.Equal(suite.T(), "database", check.Name)
	assert.Equal(suite.T(), "ok", check.Message)
	assert.Equal(suite.T(), map[string]interface{}{"open_conns": 3}, check.Metadata)
}

func (suite *HealthCheckTestSuite) TestCheck_RunsCheckersConcurrently() {
	for i := 0; i < 3; i++ {
		name := fmt.Sprintf("slow_%d", i)
		suite.hc.Register(name, NewMockChecker(name).WithDelay(50*time.Millisecond))
	}

	start := time.Now()
	response := suite.hc.Check(context.Background())

	assert.Less(suite.T(), time.Since(start), 140*time.Millisecond)
	assert.Len(suite.T(), response.Checks, 3)
}

func (suite *HealthCheckTestSuite) TestCheck_ContextDeadline() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	suite.hc.Register("slow", NewSlowChecker("slow", 200*time.Millisecond))

	response := suite.hc.Check(ctx)

	require.Len(suite.T(), response.Checks, 1)
	assert.Equal(suite.T(), StatusUnhealthy, response.Status)
	assert.Equal(suite.T(), "Check timed out", response.Checks[0].Message)
}

func (suite *HealthCheckTestSuite) TestCheck_Caching() {
	checker := NewMockChecker("database")
	suite.hc.Register("database", checker)
	suite.hc.SetCacheTTL(100 * time.Millisecond)

	first := suite.hc.Check(context.Background())
	second := suite.hc.Check(context.Background())

	assert.Equal(suite.T(), first.Timestamp, second.Timestamp, "second call should be cached")
	assert.Equal(suite.T(), 1, checker.GetCallCount())

	time.Sleep(150 * time.Millisecond)
	third := suite.hc.Check(context.Background())

	assert.NotEqual(suite.T(), first.Timestamp, third.Timestamp)
	assert.Equal(suite.T(), 2, checker.GetCallCount())
}

func (suite *HealthCheckTestSuite) TestHandler() {
	suite.Run("Degraded_ShouldStillBeOK", func() {
		suite.hc.Register("model_provider", NewMockChecker("model_provider").WithStatus(StatusDegraded))

		rec := suite.serve("/health", suite.hc.Handler())

		assert.Equal(suite.T(), http.StatusOK, rec.Code)
		assert.Equal(suite.T(), "application/json", rec.Header().Get("Content-Type"))
		var body map[string]interface{}
		require.NoError(suite.T(), json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(suite.T(), "degraded", body["status"])
		assert.Equal(suite.T(), "1.2.3", body["version"])
	})

	suite.Run("Unhealthy_ShouldBe503", func() {
		suite.hc.Register("database", NewMockChecker("database").WithStatus(StatusUnhealthy))

		rec := suite.serve("/health", suite.hc.Handler())

		assert.Equal(suite.T(), http.StatusServiceUnavailable, rec.Code)
	})
}

func (suite *HealthCheckTestSuite) TestLivenessHandler() {
	suite.hc.Register("database", NewMockChecker("database").WithStatus(StatusUnhealthy))

	rec := suite.serve("/live", suite.hc.LivenessHandler())

	assert.Equal(suite.T(), http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(suite.T(), json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(suite.T(), "alive", body["status"])
	assert.Contains(suite.T(), body, "timestamp")
}

func (suite *HealthCheckTestSuite) TestReadinessHandler() {
	suite.Run("Healthy_ShouldBeReady", func() {
		suite.hc.Register("database", NewMockChecker("database"))

		rec := suite.serve("/ready", suite.hc.ReadinessHandler())

		assert.Equal(suite.T(), http.StatusOK, rec.Code)
		var body map[string]interface{}
		require.NoError(suite.T(), json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(suite.T(), "ready", body["status"])
	})

	suite.Run("Degraded_ShouldStillBeReady", func() {
		suite.hc.Register("model_provider", NewMockChecker("model_provider").WithStatus(StatusDegraded))

		rec := suite.serve("/ready", suite.hc.ReadinessHandler())

		assert.Equal(suite.T(), http.StatusOK, rec.Code)
	})

	suite.Run("Unhealthy_ShouldNotBeReady", func() {
		suite.hc.Register("database", NewMockChecker("database").WithStatus(StatusUnhealthy))

		rec := suite.serve("/ready", suite.hc.ReadinessHandler())

		assert.Equal(suite.T(), http.StatusServiceUnavailable, rec.Code)
		var body map[string]interface{}
		require.NoError(suite.T(), json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(suite.T(), "not_ready", body["status"])
		assert.Equal(suite.T(), "a required dependency is unhealthy", body["reason"])
		assert.Contains(suite.T(), body, "checks")
	})
}

func (suite *HealthCheckTestSuite) TestJSONDurationsInMilliseconds() {
	response := Response{
		Status:        StatusHealthy,
		Version:       "1.2.3",
		Timestamp:     time.Now(),
		TotalDuration: Millis(250 * time.Millisecond),
		Checks: []Check{{
			Name:        "database",
			Status:      StatusHealthy,
			Duration:    Millis(100 * time.Millisecond),
			LastChecked: time.Now(),
		}},
	}

	data, err := json.Marshal(response)
	require.NoError(suite.T(), err)

	var decoded struct {
		TotalDuration float64 `json:"total_duration_ms"`
		Checks        []struct {
			Duration float64 `json:"duration_ms"`
		} `json:"checks"`
	}
	require.NoError(suite.T(), json.Unmarshal(data, &decoded))
	assert.Equal(suite.T(), float64(250), decoded.TotalDuration)
	require.Len(suite.T(), decoded.Checks, 1)
	assert.Equal(suite.T(), float64(100), decoded.Checks[0].Duration)
}

func (suite *HealthCheckTestSuite) TestCheckFunc() {
	checker := CheckFunc(func(ctx context.Context) (Status, string, interface{}) {
		return StatusDegraded, "provider unreachable", map[string]interface{}{"provider": "ollama"}
	})
	suite.hc.Register("model_provider", checker)

	response := suite.hc.Check(context.Background())

	require.Len(suite.T(), response.Checks, 1)
	check := response.Checks[0]
	assert.Equal(suite.T(), "model_provider", check.Name)
	assert.Equal(suite.T(), StatusDegraded, check.Status)
	assert.Equal(suite.T(), "provider unreachable", check.Message)
	assert.NotZero(suite.T(), check.LastChecked)
}

func (suite *HealthCheckTestSuite) TestPing() {
	suite.Run("Failure_ShouldBeUnhealthy", func() {
		check := Ping(func(context.Context) error { return errors.New("connection refused") }, nil).
			Check(context.Background())

		assert.Equal(suite.T(), StatusUnhealthy, check.Status)
		assert.Equal(suite.T(), "connection refused", check.Message)
		assert.Nil(suite.T(), check.Metadata)
	})

	suite.Run("Success_ShouldReportStats", func() {
		check := Ping(func(context.Context) error { return nil },
			func() interface{} { return map[string]int{"idle": 2} }).
			Check(context.Background())

		assert.Equal(suite.T(), StatusHealthy, check.Status)
		assert.Equal(suite.T(), map[string]int{"idle": 2}, check.Metadata)
	})
}

func (suite *HealthCheckTestSuite) TestCheck_SortedByName() {
	for _, name := range []string{"redis", "database", "model_provider"} {
		suite.hc.Register(name, NewMockChecker(name))
	}

	response := suite.hc.Check(context.Background())

	require.Len(suite.T(), response.Checks, 3)
	assert.Equal(suite.T(), "database", response.Checks[0].Name)
	assert.Equal(suite.T(), "model_provider", response.Checks[1].Name)
	assert.Equal(suite.T(), "redis", response.Checks[2].Name)
}

func TestHealthCheckTestSuite(t *testing.T) {
	suite.Run(t, new(HealthCheckTestSuite))
}

func BenchmarkHealthCheck_Check(b *testing.B) {
	hc := New("1.2.3", zap.NewNop())
	hc.SetCacheTTL(0)
	for _, name := range []string{"database", "redis", "model_provider"} {
		hc.Register(name, NewMockChecker(name))
	}
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		hc.Check(ctx)
	}
}
