// Package monologue turns the current headlines into a short spoken script
// for an on-air presenter.
package monologue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"overlaybackend/internal/llm"
	"overlaybackend/internal/news"
	"overlaybackend/internal/settings"
)

var ErrNoHeadlines = errors.New("monologue: no headlines to cover")

// Script is a generated monologue.
type Script struct {
	Text      string `json:"text"`
	WordCount int    `json:"word_count"`
	// Generator names the writer that produced the text.
	Generator string `json:"generator"`
}

// Writer produces a script for the given headlines.
type Writer interface {
	Write(ctx context.Context, headlines []news.Headline, cfg settings.Monologue) (Script, error)
}

var styleBriefs = map[string]string{
	"news_anchor": "a composed evening news anchor",
	"casual":      "a relaxed podcast host chatting with listeners",
	"comedic":     "a late-night host who adds light, good-natured jokes",
	"analytical":  "an analyst who briefly explains why each story matters",
}

// LLMWriter asks a chat model for the script and falls back to another Writer
// when the model call fails for reasons other than configuration.
type LLMWriter struct {
	Client   llm.Drafter
	Fallback Writer
	Logger   *slog.Logger
}

func (w LLMWriter) Write(ctx context.Context, headlines []news.Headline, cfg settings.Monologue) (Script, error) {
	if len(headlines) == 0 {
		return Script{}, ErrNoHeadlines
	}
	if w.Client == nil {
		return Script{}, llm.ErrMissingAPIKey
	}
	logger := w.Logger
	if logger == nil {
		logger = slog.Default()
	}

	brief, prompt := buildPrompt(headlines, cfg)
	draft, err := w.Client.Draft(ctx, llm.DraftRequest{
		Brief:       brief,
		Prompt:      prompt,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxWords * 2,
	})
	if err == nil {
		if draft.Cut {
			logger.Debug("monologue draft hit the token limit", "model", draft.Model)
		}
		text := limitWords(draft.Text, cfg.MaxWords)
		return Script{Text: text, WordCount: len(strings.Fields(text)), Generator: "llm"}, nil
	}

	if errors.Is(err, llm.ErrMissingAPIKey) || w.Fallback == nil {
		return Script{}, fmt.Errorf("generate monologue: %w", err)
	}
	logger.Warn("monologue model unavailable, using fallback", "error", err)
	return w.Fallback.Write(ctx, headlines, cfg)
}

// buildPrompt returns the presenter brief and the headline rundown.
func buildPrompt(headlines []news.Headline, cfg settings.Monologue) (brief, prompt string) {
	persona, ok := styleBriefs[cfg.Style]
	if !ok {
		persona = styleBriefs["news_anchor"]
	}

	brief = fmt.Sprintf("You are %s writing a script to be read aloud on a live broadcast. "+
		"Keep a %s tone. Never invent facts beyond the headlines given. "+
		"Respond with the script text only, no headings or stage directions.", persona, cfg.Tone)

	var b strings.Builder
	fmt.Fprintf(&b, "Write a monologue of at most %d words covering these headlines in order:\n", cfg.MaxWords)
	for i, h := range headlines {
		fmt.Fprintf(&b, "%d. %s", i+1, h.Title)
		if cfg.IncludeSources && h.Source != "" {
			fmt.Fprintf(&b, " (source: %s)", h.Source)
		}
		b.WriteByte('\n')
	}
	if cfg.IncludeSources {
		b.WriteString("Credit each source by name when you mention its story.")
	} else {
		b.WriteString("Do not mention source names.")
	}
	return brief, b.String()
}

// TemplateWriter assembles a plain script without a model.
type TemplateWriter struct{}

var openings = map[string]string{
	"news_anchor": "Good evening. Here are the stories we are following.",
	"casual":      "Hey everyone, here's what's going on right now.",
	"comedic":     "Welcome back, folks. The news did not take the day off.",
	"analytical":  "Here is a quick look at the stories that matter.",
}

func (TemplateWriter) Write(_ context.Context, headlines []news.Headline, cfg settings.Monologue) (Script, error) {
	if len(headlines) == 0 {
		return Script{}, ErrNoHeadlines
	}
	opening, ok := openings[cfg.Style]
	if !ok {
		opening = openings["news_anchor"]
	}

	parts := []string{opening}
	for i, h := range headlines {
		lead := "Next,"
		if i == 0 {
			lead = "First,"
		} else if i == len(headlines)-1 {
			lead = "Finally,"
		}
		line := fmt.Sprintf("%s %s.", lead, strings.TrimRight(h.Title, ".!? "))
		if cfg.IncludeSources && h.Source != "" {
			line = fmt.Sprintf("%s %s, according to %s.", lead, strings.TrimRight(h.Title, ".!? "), h.Source)
		}
		parts = append(parts, line)
	}
	parts = append(parts, "That's the latest. Stay with us.")

	text := limitWords(strings.Join(parts, " "), cfg.MaxWords)
	return Script{Text: text, WordCount: len(strings.Fields(text)), Generator: "template"}, nil
}

func limitWords(text string, maxWords int) string {
	words := strings.Fields(text)
	if maxWords <= 0 || len(words) <= maxWords {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:maxWords], " ") + "…"
}
