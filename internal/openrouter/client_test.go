package openrouter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sitedesc/llmstxt/internal/descriptor"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := New(Config{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Model:   "test-provider/test-model",
	}, zap.NewNop())
	require.NoError(t, err)
	return client, srv
}

func completionResponse(content string) map[string]any {
	return map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": content}},
		},
	}
}

func TestCompleteSendsAuthAndParsesChoice(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "test-provider/test-model", req.Model)
		require.Equal(t, 100, req.MaxTokens)
		require.InDelta(t, 0.3, req.Temperature, 0.0001)

		writeTestJSON(w, completionResponse("A page about widgets."))
	}))

	got, err := client.Complete(context.Background(), "describe this page")
	require.NoError(t, err)
	require.Equal(t, "A page about widgets.", got)
}

func TestCompleteCleansLabelAndQuotes(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeTestJSON(w, completionResponse(`Description: "A  quoted   description."`))
	}))

	got, err := client.Complete(context.Background(), "prompt")
	require.NoError(t, err)
	require.Equal(t, "A quoted description.", got)
}

func TestCompleteRateLimitIsRetryable(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		writeTestJSON(w, map[string]any{"error": map[string]any{"message": "rate limited"}})
	}))

	_, err := client.Complete(context.Background(), "prompt")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	require.True(t, apiErr.Retryable())

	var retryable descriptor.RetryableError
	require.ErrorAs(t, err, &retryable)
}

func TestCompleteClientErrorIsNotRetryable(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))

	_, err := client.Complete(context.Background(), "prompt")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.False(t, apiErr.Retryable())
}

func TestModels(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/models", r.URL.Path)
		writeTestJSON(w, map[string]any{"data": []map[string]string{
			{"id": "a/b", "name": "B"},
			{"id": "c/d", "name": "D"},
		}})
	}))

	models, err := client.Models(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 2)
	require.Equal(t, "a/b", models[0].ID)
}

func TestValidateModel(t *testing.T) {
	t.Parallel()

	require.NoError(t, ValidateModel("anthropic/claude-3-haiku"))
	require.NoError(t, ValidateModel("meta-llama/llama-3-8b-instruct:free"))
	require.Error(t, ValidateModel(""))
	require.Error(t, ValidateModel("no-slash"))
	require.Error(t, ValidateModel("too/many/parts"))
	require.Error(t, ValidateModel("provider/model:"))
}

func TestCleanDescription(t *testing.T) {
	t.Parallel()

	require.Equal(t, "Plain text.", CleanDescription("  Plain text.  "))
	require.Equal(t, "No label.", CleanDescription(`description: 'No label.'`))
	require.Equal(t, "Collapsed spaces here.", CleanDescription("Collapsed\n  spaces\there."))
}

func writeTestJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
