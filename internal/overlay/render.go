// Package overlay turns ordered headlines and effective settings into the
// panel/ticker structure consumed by the broadcast overlay, and its HTML form.
package overlay

import (
	"fmt"
	"strings"
	"time"

	"overlaybackend/internal/news"
	"overlaybackend/internal/settings"
)

// BreakingPriority is the priority above which a headline counts as breaking.
const BreakingPriority = 7

const tickerSeparator = " • "

// PanelItem is one headline as displayed in the panel.
type PanelItem struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Source    string `json:"source,omitempty"`
	URL       string `json:"url,omitempty"`
	Category  string `json:"category"`
	TimeLabel string `json:"time_label,omitempty"`
	Priority  int    `json:"priority"`
	IsCustom  bool   `json:"is_custom"`
	Breaking  bool   `json:"breaking"`
}

// Layout describes where the panel and ticker are placed.
type Layout struct {
	Mode           string `json:"mode"`
	ShowPanel      bool   `json:"show_panel"`
	ShowTicker     bool   `json:"show_ticker"`
	PanelPosition  string `json:"panel_position"`
	TickerPosition string `json:"ticker_position"`
	PanelClass     string `json:"panel_class"`
	TickerClass    string `json:"ticker_class"`
}

// Rendered is the presentation artifact for one overlay refresh.
type Rendered struct {
	Mode              news.Mode   `json:"mode"`
	Panel             []PanelItem `json:"panel"`
	Ticker            []string    `json:"ticker"`
	TickerText        string      `json:"ticker_text"`
	Breaking          bool        `json:"breaking"`
	ShowBreakingBadge bool        `json:"show_breaking_badge"`
	Layout            Layout      `json:"layout"`
	Theme             Theme       `json:"theme"`
	FontSize          string      `json:"font_size"`
	FontSizePx        int         `json:"font_size_px"`
	Opacity           float64     `json:"opacity"`
	TickerSpeed       int         `json:"ticker_speed"`
	TickerDurationSec int         `json:"ticker_duration_sec"`
	RefreshRate       int         `json:"refresh_rate"`
	GeneratedAt       time.Time   `json:"generated_at"`
}

// IsBreaking reports whether a headline should raise the breaking-news flag.
func IsBreaking(h news.Headline) bool {
	return h.Priority > BreakingPriority || strings.Contains(strings.ToLower(h.Title), "breaking")
}

// Render builds the overlay for headlines under the effective settings s.
// It performs no I/O; now only drives relative time labels.
func Render(headlines []news.Headline, s settings.Overlay, now time.Time) Rendered {
	out := Rendered{
		Mode:        s.ContentMode,
		Panel:       []PanelItem{},
		Ticker:      []string{},
		Layout:      layoutFor(s),
		Theme:       themeFor(s.Theme),
		FontSize:    s.FontSize,
		FontSizePx:  fontSizePx(s.FontSize),
		Opacity:     s.Opacity,
		TickerSpeed: s.TickerSpeed,
		RefreshRate: s.RefreshRate,
		GeneratedAt: now.UTC(),
	}

	for _, h := range headlines {
		breaking := IsBreaking(h)
		if breaking {
			out.Breaking = true
		}

		if len(out.Panel) < s.MaxPanelItems {
			item := PanelItem{
				ID:       h.ID,
				Title:    h.Title,
				URL:      h.URL,
				Category: h.Category,
				Priority: h.Priority,
				IsCustom: h.IsCustom,
				Breaking: breaking,
			}
			if s.ShowSources {
				item.Source = h.Source
			}
			if s.ShowTimestamps {
				item.TimeLabel = relativeTime(h.PublishedAt, now)
			}
			out.Panel = append(out.Panel, item)
		}

		entry := h.Title
		if s.ShowSources && h.Source != "" {
			entry = h.Source + ": " + h.Title
		}
		out.Ticker = append(out.Ticker, entry)
	}

	out.TickerText = strings.Join(out.Ticker, tickerSeparator)
	out.ShowBreakingBadge = out.Breaking && s.ShowBreaking
	out.TickerDurationSec = tickerDuration(out.TickerText, s.TickerSpeed)
	return out
}

func relativeTime(published, now time.Time) string {
	if published.IsZero() {
		return ""
	}
	age := now.Sub(published)
	switch {
	case age < time.Minute:
		return "just now"
	case age < time.Hour:
		return fmt.Sprintf("%dm ago", int(age.Minutes()))
	case age < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(age.Hours()))
	default:
		return published.UTC().Format("Jan 2")
	}
}

// tickerDuration estimates one scroll pass at ~10px per character.
func tickerDuration(text string, speed int) int {
	if speed <= 0 {
		speed = 60
	}
	seconds := len([]rune(text)) * 10 / speed
	return max(seconds, 10)
}
