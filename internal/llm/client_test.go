package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientDraft(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"presenter-1","choices":[{"message":{"role":"assistant","content":"  Good evening.  "},"finish_reason":"length"}]}`))
	}))
	defer srv.Close()

	client, err := New(Config{APIKey: "secret", BaseURL: srv.URL + "/v1/", Model: "presenter"})
	require.NoError(t, err)
	assert.Equal(t, "presenter", client.Model())

	draft, err := client.Draft(context.Background(), DraftRequest{
		Brief:       "You read the news.",
		Prompt:      "Cover the rate decision.",
		Temperature: 0.4,
		MaxTokens:   120,
	})
	require.NoError(t, err)
	assert.Equal(t, "Good evening.", draft.Text)
	assert.Equal(t, "presenter-1", draft.Model)
	assert.True(t, draft.Cut)

	assert.Equal(t, "presenter", got.Model)
	assert.Equal(t, 120, got.MaxTokens)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "Cover the rate decision.", got.Messages[1].Content)
}

func TestClientDraftErrors(t *testing.T) {
	client, err := New(Config{})
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, client.Model())
	_, err = client.Draft(context.Background(), DraftRequest{Prompt: "hi"})
	require.ErrorIs(t, err, ErrMissingAPIKey)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client, err = New(Config{APIKey: "secret", BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = client.Draft(context.Background(), DraftRequest{Prompt: "hi"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusTooManyRequests, apiErr.Status)
	assert.Equal(t, "quota exceeded", apiErr.Body)
	assert.True(t, apiErr.Retryable())

	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"   "}}]}`))
	}))
	defer empty.Close()

	client, err = New(Config{APIKey: "secret", BaseURL: empty.URL})
	require.NoError(t, err)
	_, err = client.Draft(context.Background(), DraftRequest{Prompt: "hi"})
	require.ErrorIs(t, err, ErrEmptyDraft)

	_, err = New(Config{BaseURL: "://bad"})
	require.Error(t, err)
}
