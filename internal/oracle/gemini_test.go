package oracle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *GeminiClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := DefaultConfig("test-key")
	cfg.BaseURL = srv.URL
	cfg.Timeout = 5 * time.Second
	c := NewGeminiClient(cfg)
	c.backoff = func(int) {}
	return c
}

func candidateResponse(text string) []byte {
	body, _ := json.Marshal(map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": []map[string]any{{"text": text}}}},
		},
	})
	return body
}

func TestComplete_Success(t *testing.T) {
	var captured geminiRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.URL.Path, "gemini-2.0-flash:generateContent")
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Write(candidateResponse(`{"interpretation": "ok"}`))
	})

	got, err := c.Complete(context.Background(), "system prompt", "user prompt")
	require.NoError(t, err)
	assert.Equal(t, `{"interpretation": "ok"}`, got)

	require.NotNil(t, captured.SystemInstruction)
	assert.Equal(t, "system prompt", captured.SystemInstruction.Parts[0].Text)
	assert.Equal(t, "user prompt", captured.Contents[0].Parts[0].Text)
	assert.Equal(t, 0.7, captured.GenerationConfig.Temperature)
	assert.Equal(t, 4096, captured.GenerationConfig.MaxOutputTokens)
}

func TestComplete_JoinsMultipleParts(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		body, _ := json.Marshal(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]any{
					{"text": "first "}, {"text": "second"},
				}}},
			},
		})
		w.Write(body)
	})

	got, err := c.Complete(context.Background(), "", "dream")
	require.NoError(t, err)
	assert.Equal(t, "first second", got)
}

func TestComplete_NotConfigured(t *testing.T) {
	c := NewGeminiClient(Config{})
	_, err := c.Complete(context.Background(), "s", "u")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestComplete_RetriesOnRateLimit(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write(candidateResponse("done"))
	})

	got, err := c.Complete(context.Background(), "", "dream")
	require.NoError(t, err)
	assert.Equal(t, "done", got)
	assert.Equal(t, int32(3), calls.Load())
}

func TestComplete_RateLimitExhausted(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.Complete(context.Background(), "", "dream")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retries exceeded")
	assert.Equal(t, int32(maxRateLimitRetries+1), calls.Load())
}

func TestComplete_ServerErrorDoesNotRetry(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("internal"))
	})

	_, err := c.Complete(context.Background(), "", "dream")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
	assert.Equal(t, int32(1), calls.Load())
}

func TestComplete_APIErrorBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"error": {"code": 400, "message": "invalid argument"}}`))
	})

	_, err := c.Complete(context.Background(), "", "dream")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid argument")
}

func TestComplete_EmptyCandidates(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"candidates": []}`))
	})

	_, err := c.Complete(context.Background(), "", "dream")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no completion returned")
}
