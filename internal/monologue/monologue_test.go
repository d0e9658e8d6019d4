package monologue

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"overlaybackend/internal/llm"
	"overlaybackend/internal/news"
	"overlaybackend/internal/settings"
)

type fakeDrafter struct {
	response string
	err      error
	last     llm.DraftRequest
}

func (f *fakeDrafter) Draft(_ context.Context, req llm.DraftRequest) (llm.Draft, error) {
	f.last = req
	if f.err != nil {
		return llm.Draft{}, f.err
	}
	if strings.TrimSpace(f.response) == "" {
		return llm.Draft{}, llm.ErrEmptyDraft
	}
	return llm.Draft{Text: f.response, Model: "test-model"}, nil
}

func sampleHeadlines() []news.Headline {
	return []news.Headline{
		{ID: "a", Title: "Rates held steady", Source: "Wire", Priority: 5},
		{ID: "b", Title: "New telescope images released", Source: "Science Daily", Priority: 3},
	}
}

func TestLLMWriterUsesModelResponse(t *testing.T) {
	fake := &fakeDrafter{response: "Good evening. Rates held steady today."}
	writer := LLMWriter{Client: fake, Fallback: TemplateWriter{}}
	cfg := settings.Builtin().Monologue

	script, err := writer.Write(context.Background(), sampleHeadlines(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "llm", script.Generator)
	assert.Equal(t, "Good evening. Rates held steady today.", script.Text)
	assert.Equal(t, 6, script.WordCount)

	assert.Equal(t, cfg.Temperature, fake.last.Temperature)
	assert.Equal(t, cfg.MaxWords*2, fake.last.MaxTokens)
	assert.Contains(t, fake.last.Brief, "news anchor")
	assert.Contains(t, fake.last.Brief, "neutral")
	assert.Contains(t, fake.last.Prompt, "1. Rates held steady (source: Wire)")
	assert.Contains(t, fake.last.Prompt, "2. New telescope images released")
}

func TestLLMWriterPromptWithoutSources(t *testing.T) {
	fake := &fakeDrafter{response: "ok"}
	cfg := settings.Builtin().Monologue
	cfg.IncludeSources = false

	_, err := LLMWriter{Client: fake}.Write(context.Background(), sampleHeadlines(), cfg)
	require.NoError(t, err)
	assert.NotContains(t, fake.last.Prompt, "(source:")
	assert.Contains(t, fake.last.Prompt, "Do not mention source names.")
}

func TestLLMWriterFallsBackOnUpstreamError(t *testing.T) {
	writer := LLMWriter{Client: &fakeDrafter{err: &llm.APIError{Status: 503, Body: "overloaded"}}, Fallback: TemplateWriter{}}
	script, err := writer.Write(context.Background(), sampleHeadlines(), settings.Builtin().Monologue)
	require.NoError(t, err)
	assert.Equal(t, "template", script.Generator)

	writer.Client = &fakeDrafter{response: "   "}
	script, err = writer.Write(context.Background(), sampleHeadlines(), settings.Builtin().Monologue)
	require.NoError(t, err)
	assert.Equal(t, "template", script.Generator)
}

func TestLLMWriterConfigurationErrors(t *testing.T) {
	cfg := settings.Builtin().Monologue

	_, err := LLMWriter{Fallback: TemplateWriter{}}.Write(context.Background(), sampleHeadlines(), cfg)
	require.ErrorIs(t, err, llm.ErrMissingAPIKey)

	writer := LLMWriter{Client: &fakeDrafter{err: llm.ErrMissingAPIKey}, Fallback: TemplateWriter{}}
	_, err = writer.Write(context.Background(), sampleHeadlines(), cfg)
	require.ErrorIs(t, err, llm.ErrMissingAPIKey, "missing key is not masked by the fallback")

	_, err = writer.Write(context.Background(), nil, cfg)
	require.ErrorIs(t, err, ErrNoHeadlines)
}

func TestTemplateWriter(t *testing.T) {
	cfg := settings.Builtin().Monologue
	script, err := TemplateWriter{}.Write(context.Background(), sampleHeadlines(), cfg)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(script.Text, "Good evening."))
	assert.Contains(t, script.Text, "First, Rates held steady, according to Wire.")
	assert.Contains(t, script.Text, "Finally, New telescope images released, according to Science Daily.")

	cfg.MaxWords = 50
	many := make([]news.Headline, 0, 20)
	for range 20 {
		many = append(many, news.Headline{Title: "Another long headline about the day's events"})
	}
	script, err = TemplateWriter{}.Write(context.Background(), many, cfg)
	require.NoError(t, err)
	assert.Equal(t, 50, script.WordCount)
	assert.True(t, strings.HasSuffix(script.Text, "…"))

	_, err = TemplateWriter{}.Write(context.Background(), nil, cfg)
	require.ErrorIs(t, err, ErrNoHeadlines)
}
