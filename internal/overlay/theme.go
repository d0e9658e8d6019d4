package overlay

import "overlaybackend/internal/settings"

// Theme is the colour set used by the HTML overlay.
type Theme struct {
	Name       string `json:"name"`
	Background string `json:"background"`
	Foreground string `json:"foreground"`
	Accent     string `json:"accent"`
	Muted      string `json:"muted"`
	BreakingBG string `json:"breaking_bg"`
	BreakingFG string `json:"breaking_fg"`
}

var themes = map[string]Theme{
	"dark": {
		Name: "dark", Background: "#0b0f19", Foreground: "#f5f7fa",
		Accent: "#3b82f6", Muted: "#9ca3af", BreakingBG: "#dc2626", BreakingFG: "#ffffff",
	},
	"light": {
		Name: "light", Background: "#ffffff", Foreground: "#111827",
		Accent: "#2563eb", Muted: "#6b7280", BreakingBG: "#b91c1c", BreakingFG: "#ffffff",
	},
	"broadcast": {
		Name: "broadcast", Background: "#102a63", Foreground: "#ffffff",
		Accent: "#facc15", Muted: "#c7d2fe", BreakingBG: "#e11d48", BreakingFG: "#ffffff",
	},
	"minimal": {
		Name: "minimal", Background: "#000000", Foreground: "#e5e5e5",
		Accent: "#a3a3a3", Muted: "#737373", BreakingBG: "#ef4444", BreakingFG: "#000000",
	},
}

var panelClasses = map[string]string{
	"top-left":     "pos-top-left",
	"top-right":    "pos-top-right",
	"bottom-left":  "pos-bottom-left",
	"bottom-right": "pos-bottom-right",
}

var tickerClasses = map[string]string{
	"top":    "ticker-top",
	"bottom": "ticker-bottom",
}

var fontSizes = map[string]int{
	"small":  14,
	"medium": 18,
	"large":  24,
}

func themeFor(name string) Theme {
	if theme, ok := themes[name]; ok {
		return theme
	}
	return themes["dark"]
}

func fontSizePx(name string) int {
	if px, ok := fontSizes[name]; ok {
		return px
	}
	return fontSizes["medium"]
}

func layoutFor(s settings.Overlay) Layout {
	panelClass, ok := panelClasses[s.PanelPosition]
	if !ok {
		panelClass = panelClasses["top-right"]
	}
	tickerClass, ok := tickerClasses[s.TickerPosition]
	if !ok {
		tickerClass = tickerClasses["bottom"]
	}
	return Layout{
		Mode:           s.Layout,
		ShowPanel:      s.Layout != "ticker",
		ShowTicker:     s.Layout != "panel",
		PanelPosition:  s.PanelPosition,
		TickerPosition: s.TickerPosition,
		PanelClass:     panelClass,
		TickerClass:    tickerClass,
	}
}
