package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alchemorsel/recipe-studio/internal/ports/outbound"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

// ProviderTestSuite runs the provider against a fake OpenAI-compatible API
type ProviderTestSuite struct {
	suite.Suite
	server   *httptest.Server
	provider *Provider
	lastBody map[string]interface{}
	status   int
}

func (suite *ProviderTestSuite) reset() {
	suite.lastBody = nil
	suite.status = http.StatusOK
}

func (suite *ProviderTestSuite) SetupTest() {
	suite.reset()

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		suite.decode(r)
		if suite.fail(w) {
			return
		}
		writeJSON(w, map[string]interface{}{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"choices": []map[string]interface{}{{"index": 0, "finish_reason": "stop", "message": map[string]string{"role": "assistant", "content": `{"title":"Simple Pancakes"}`}}},
			"usage":   map[string]int{"total_tokens": 42},
		})
	})
	mux.HandleFunc("/v1/images/generations", func(w http.ResponseWriter, r *http.Request) {
		suite.decode(r)
		if suite.fail(w) {
			return
		}
		writeJSON(w, map[string]interface{}{"created": 1, "data": []map[string]string{{"b64_json": "iVBORw0KGgo="}}})
	})
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		if suite.fail(w) {
			return
		}
		writeJSON(w, map[string]interface{}{"object": "list", "data": []map[string]string{{"id": "llama3.2"}}})
	})
	suite.server = httptest.NewServer(mux)
	suite.provider = NewProvider(Config{
		Name:        "ollama",
		APIKey:      "test",
		BaseURL:     suite.server.URL + "/v1/",
		TextModel:   "llama3.2",
		VisionModel: "llava",
	}, zap.NewNop())
}

func (suite *ProviderTestSuite) TearDownTest() {
	suite.server.Close()
}

func (suite *ProviderTestSuite) decode(r *http.Request) {
	var body map[string]interface{}
	_ = json.NewDecoder(r.Body).Decode(&body)
	suite.lastBody = body
}

func (suite *ProviderTestSuite) fail(w http.ResponseWriter) bool {
	if suite.status == http.StatusOK {
		return false
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(suite.status)
	_, _ = w.Write([]byte(`{"error":{"message":"quota exceeded","type":"insufficient_quota"}}`))
	return true
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (suite *ProviderTestSuite) TestComplete() {
	suite.Run("JSONMode_ShouldSetResponseFormat", func() {
		suite.reset()

		// Act
		reply, err := suite.provider.Complete(context.Background(), outbound.CompletionRequest{
			System: "You are a chef.",
			Prompt: "Make pancakes",
			JSON:   true,
		})

		// Assert
		require.NoError(suite.T(), err)
		assert.Equal(suite.T(), `{"title":"Simple Pancakes"}`, reply)
		assert.Equal(suite.T(), "llama3.2", suite.lastBody["model"])
		format, ok := suite.lastBody["response_format"].(map[string]interface{})
		require.True(suite.T(), ok)
		assert.Equal(suite.T(), "json_object", format["type"])
		assert.Len(suite.T(), suite.lastBody["messages"], 2)
	})

	suite.Run("Images_ShouldUseVisionModel", func() {
		suite.reset()

		_, err := suite.provider.Complete(context.Background(), outbound.CompletionRequest{
			Prompt: "List ingredients",
			Images: []string{"data:image/jpeg;base64,AQID"},
		})

		require.NoError(suite.T(), err)
		assert.Equal(suite.T(), "llava", suite.lastBody["model"])
		messages := suite.lastBody["messages"].([]interface{})
		require.Len(suite.T(), messages, 1)
		parts := messages[0].(map[string]interface{})["content"].([]interface{})
		assert.Len(suite.T(), parts, 2)
	})

	suite.Run("APIError_ShouldBeWrapped", func() {
		suite.reset()
		suite.status = http.StatusTooManyRequests

		_, err := suite.provider.Complete(context.Background(), outbound.CompletionRequest{Prompt: "x"})

		require.Error(suite.T(), err)
		assert.Contains(suite.T(), err.Error(), "quota exceeded")
		assert.Contains(suite.T(), err.Error(), "429")
	})
}

func (suite *ProviderTestSuite) TestGenerateImage() {
	image, err := suite.provider.GenerateImage(context.Background(), "Simple Pancakes")

	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "data:image/png;base64,iVBORw0KGgo=", image.DataURI)
	assert.Equal(suite.T(), "b64_json", suite.lastBody["response_format"])
}

func (suite *ProviderTestSuite) TestPing() {
	require.NoError(suite.T(), suite.provider.Ping(context.Background()))
	suite.status = http.StatusServiceUnavailable
	assert.Error(suite.T(), suite.provider.Ping(context.Background()))
}

func TestProviderTestSuite(t *testing.T) {
	suite.Run(t, new(ProviderTestSuite))
}
