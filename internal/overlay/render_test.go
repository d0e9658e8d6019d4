package overlay

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"overlaybackend/internal/news"
	"overlaybackend/internal/settings"
)

var renderNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func baseSettings() settings.Overlay {
	return settings.Builtin().Overlay
}

func headline(title, source string, priority int, age time.Duration) news.Headline {
	return news.Headline{
		ID:          strings.ReplaceAll(strings.ToLower(title), " ", "-"),
		Title:       title,
		Source:      source,
		URL:         "https://example.com/" + strings.ReplaceAll(title, " ", "-"),
		Category:    "general",
		Priority:    priority,
		PublishedAt: renderNow.Add(-age),
	}
}

func TestIsBreaking(t *testing.T) {
	cases := []struct {
		title    string
		priority int
		want     bool
	}{
		{"Market update", 9, true},
		{"BREAKING: outage reported", 2, true},
		{"Quarterly report released", 5, false},
		{"Edge of breaking point", 1, true},
		{"Exactly seven", BreakingPriority, false},
	}
	for _, tc := range cases {
		t.Run(tc.title, func(t *testing.T) {
			assert.Equal(t, tc.want, IsBreaking(news.Headline{Title: tc.title, Priority: tc.priority}))
		})
	}
}

func TestRenderPanelAndTicker(t *testing.T) {
	s := baseSettings()
	s.MaxPanelItems = 2
	items := []news.Headline{
		headline("First story", "Wire", 5, 30*time.Second),
		headline("Second story", "Daily", 3, 5*time.Minute),
		headline("Third story", "", 3, 3*time.Hour),
	}

	out := Render(items, s, renderNow)

	require.Len(t, out.Panel, 2, "panel capped at max_panel_items")
	assert.Equal(t, "First story", out.Panel[0].Title)
	assert.Equal(t, "Wire", out.Panel[0].Source)
	assert.Equal(t, "just now", out.Panel[0].TimeLabel)
	assert.Equal(t, "5m ago", out.Panel[1].TimeLabel)

	require.Len(t, out.Ticker, 3, "ticker carries every headline")
	assert.Equal(t, "Wire: First story", out.Ticker[0])
	assert.Equal(t, "Third story", out.Ticker[2])
	assert.Equal(t, "Wire: First story • Daily: Second story • Third story", out.TickerText)
	assert.False(t, out.Breaking)
	assert.GreaterOrEqual(t, out.TickerDurationSec, 10)
	assert.Equal(t, 30, out.RefreshRate)
}

func TestRenderHonoursDisplayFlags(t *testing.T) {
	s := baseSettings()
	s.ShowSources = false
	s.ShowTimestamps = false
	out := Render([]news.Headline{headline("Quiet story", "Wire", 3, time.Hour)}, s, renderNow)

	require.Len(t, out.Panel, 1)
	assert.Empty(t, out.Panel[0].Source)
	assert.Empty(t, out.Panel[0].TimeLabel)
	assert.Equal(t, "Quiet story", out.Ticker[0])
}

func TestRenderBreakingBadge(t *testing.T) {
	items := []news.Headline{headline("Market update", "Wire", 9, time.Minute)}

	out := Render(items, baseSettings(), renderNow)
	assert.True(t, out.Breaking)
	assert.True(t, out.ShowBreakingBadge)
	assert.True(t, out.Panel[0].Breaking)

	s := baseSettings()
	s.ShowBreaking = false
	out = Render(items, s, renderNow)
	assert.True(t, out.Breaking, "flag is computed regardless of display")
	assert.False(t, out.ShowBreakingBadge)
}

func TestRenderLayoutAndTheme(t *testing.T) {
	s := baseSettings()
	s.Layout = "ticker"
	s.TickerPosition = "top"
	s.Theme = "broadcast"
	s.FontSize = "large"

	out := Render(nil, s, renderNow)
	assert.False(t, out.Layout.ShowPanel)
	assert.True(t, out.Layout.ShowTicker)
	assert.Equal(t, "ticker-top", out.Layout.TickerClass)
	assert.Equal(t, "broadcast", out.Theme.Name)
	assert.Equal(t, 24, out.FontSizePx)
	assert.NotNil(t, out.Panel)
	assert.NotNil(t, out.Ticker)

	s.Layout = "panel"
	s.PanelPosition = "bottom-left"
	out = Render(nil, s, renderNow)
	assert.True(t, out.Layout.ShowPanel)
	assert.False(t, out.Layout.ShowTicker)
	assert.Equal(t, "pos-bottom-left", out.Layout.PanelClass)
}

func TestRelativeTime(t *testing.T) {
	assert.Equal(t, "", relativeTime(time.Time{}, renderNow))
	assert.Equal(t, "2h ago", relativeTime(renderNow.Add(-2*time.Hour), renderNow))
	assert.Equal(t, "Feb 27", relativeTime(renderNow.Add(-50*time.Hour), renderNow))
}

func TestRenderHTMLEscapesHeadlines(t *testing.T) {
	items := []news.Headline{
		headline("BREAKING <script>alert(1)</script>", "<b>Wire</b>", 3, time.Minute),
	}
	page, err := RenderHTML(Render(items, baseSettings(), renderNow))
	require.NoError(t, err)

	html := string(page)
	assert.NotContains(t, html, "<script>alert(1)</script>")
	assert.NotContains(t, html, "<b>Wire</b>")
	assert.Contains(t, html, "&lt;script&gt;")
	assert.Contains(t, html, `content="30"`)
	assert.Contains(t, html, "pos-top-right")
	assert.Contains(t, html, "ticker-bottom")
	assert.Contains(t, html, `class="badge"`)
	assert.Contains(t, html, "#0b0f19")
}

func TestRenderHTMLHidesBadgeAndSections(t *testing.T) {
	s := baseSettings()
	s.ShowBreaking = false
	s.Layout = "panel"
	page, err := RenderHTML(Render([]news.Headline{headline("Market update", "Wire", 9, time.Minute)}, s, renderNow))
	require.NoError(t, err)

	html := string(page)
	assert.NotContains(t, html, `class="badge"`)
	assert.NotContains(t, html, `class="ticker`)
	assert.Contains(t, html, "Market update")
}

func TestRenderHTMLEmpty(t *testing.T) {
	page, err := RenderHTML(Render(nil, baseSettings(), renderNow))
	require.NoError(t, err)
	assert.Contains(t, string(page), "No headlines available")
}
