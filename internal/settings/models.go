package settings

import (
	"maps"

	"overlaybackend/internal/news"
)

// Overlay is the operator-facing overlay configuration.
type Overlay struct {
	Filter         news.Filter          `json:"filter" yaml:"filter" validate:"required,oneof=top tech business science"`
	Limit          int                  `json:"limit" yaml:"limit" validate:"required,min=1,max=50"`
	RefreshRate    int                  `json:"refresh_rate" yaml:"refresh_rate" validate:"required,min=5,max=3600"`
	ContentMode    news.Mode            `json:"content_mode" yaml:"content_mode" validate:"required,oneof=auto manual custom_only ai_monologue"`
	Theme          string               `json:"theme" yaml:"theme" validate:"oneof=dark light broadcast minimal"`
	Layout         string               `json:"layout" yaml:"layout" validate:"oneof=panel ticker both"`
	PanelPosition  string               `json:"panel_position" yaml:"panel_position" validate:"oneof=top-left top-right bottom-left bottom-right"`
	TickerPosition string               `json:"ticker_position" yaml:"ticker_position" validate:"oneof=top bottom"`
	ShowTimestamps bool                 `json:"show_timestamps" yaml:"show_timestamps"`
	ShowSources    bool                 `json:"show_sources" yaml:"show_sources"`
	ShowBreaking   bool                 `json:"show_breaking" yaml:"show_breaking"`
	FontSize       string               `json:"font_size" yaml:"font_size" validate:"oneof=small medium large"`
	Opacity        float64              `json:"opacity" yaml:"opacity" validate:"gte=0,lte=1"`
	TickerSpeed    int                  `json:"ticker_speed" yaml:"ticker_speed" validate:"min=10,max=400"`
	MaxPanelItems  int                  `json:"max_panel_items" yaml:"max_panel_items" validate:"min=1,max=20"`
	ModeSettings   map[news.Mode]Preset `json:"mode_settings" yaml:"mode_settings"`
}

// Preset overrides a subset of Overlay while a content mode is active.
type Preset struct {
	Filter         *news.Filter `json:"filter,omitempty" yaml:"filter,omitempty" validate:"omitempty,oneof=top tech business science"`
	Limit          *int         `json:"limit,omitempty" yaml:"limit,omitempty" validate:"omitempty,min=1,max=50"`
	RefreshRate    *int         `json:"refresh_rate,omitempty" yaml:"refresh_rate,omitempty" validate:"omitempty,min=5,max=3600"`
	Theme          *string      `json:"theme,omitempty" yaml:"theme,omitempty" validate:"omitempty,oneof=dark light broadcast minimal"`
	Layout         *string      `json:"layout,omitempty" yaml:"layout,omitempty" validate:"omitempty,oneof=panel ticker both"`
	PanelPosition  *string      `json:"panel_position,omitempty" yaml:"panel_position,omitempty" validate:"omitempty,oneof=top-left top-right bottom-left bottom-right"`
	TickerPosition *string      `json:"ticker_position,omitempty" yaml:"ticker_position,omitempty" validate:"omitempty,oneof=top bottom"`
	ShowTimestamps *bool        `json:"show_timestamps,omitempty" yaml:"show_timestamps,omitempty"`
	ShowSources    *bool        `json:"show_sources,omitempty" yaml:"show_sources,omitempty"`
	ShowBreaking   *bool        `json:"show_breaking,omitempty" yaml:"show_breaking,omitempty"`
	FontSize       *string      `json:"font_size,omitempty" yaml:"font_size,omitempty" validate:"omitempty,oneof=small medium large"`
	Opacity        *float64     `json:"opacity,omitempty" yaml:"opacity,omitempty" validate:"omitempty,gte=0,lte=1"`
	TickerSpeed    *int         `json:"ticker_speed,omitempty" yaml:"ticker_speed,omitempty" validate:"omitempty,min=10,max=400"`
	MaxPanelItems  *int         `json:"max_panel_items,omitempty" yaml:"max_panel_items,omitempty" validate:"omitempty,min=1,max=20"`
}

// Monologue configures the AI news monologue script.
type Monologue struct {
	Style          string  `json:"style" yaml:"style" validate:"required,oneof=news_anchor casual comedic analytical"`
	Tone           string  `json:"tone" yaml:"tone" validate:"required,oneof=neutral upbeat serious"`
	MaxWords       int     `json:"max_words" yaml:"max_words" validate:"min=50,max=1000"`
	IncludeSources bool    `json:"include_sources" yaml:"include_sources"`
	Temperature    float64 `json:"temperature" yaml:"temperature" validate:"gte=0,lte=2"`
}

// Snapshot is the full settings state.
type Snapshot struct {
	Overlay   Overlay   `json:"settings" yaml:"overlay"`
	Monologue Monologue `json:"monologue_settings" yaml:"monologue"`
}

// requiredOverlayKeys must survive every partial update.
var requiredOverlayKeys = []string{"filter", "limit", "refresh_rate", "content_mode"}

func ptr[T any](v T) *T { return &v }

// Builtin returns the documented default settings.
func Builtin() Snapshot {
	return Snapshot{
		Overlay: Overlay{
			Filter:         news.FilterTop,
			Limit:          10,
			RefreshRate:    30,
			ContentMode:    news.ModeAuto,
			Theme:          "dark",
			Layout:         "both",
			PanelPosition:  "top-right",
			TickerPosition: "bottom",
			ShowTimestamps: true,
			ShowSources:    true,
			ShowBreaking:   true,
			FontSize:       "medium",
			Opacity:        0.9,
			TickerSpeed:    60,
			MaxPanelItems:  5,
			ModeSettings: map[news.Mode]Preset{
				news.ModeAuto:        {},
				news.ModeManual:      {},
				news.ModeCustomOnly:  {Theme: ptr("broadcast")},
				news.ModeAIMonologue: {Limit: ptr(news.MonologueFetchLimit), Layout: ptr("panel")},
			},
		},
		Monologue: Monologue{
			Style:          "news_anchor",
			Tone:           "neutral",
			MaxWords:       250,
			IncludeSources: true,
			Temperature:    0.7,
		},
	}
}

// Apply overlays the preset's fields onto o.
func (p Preset) Apply(o *Overlay) {
	if p.Filter != nil {
		o.Filter = *p.Filter
	}
	if p.Limit != nil {
		o.Limit = *p.Limit
	}
	if p.RefreshRate != nil {
		o.RefreshRate = *p.RefreshRate
	}
	if p.Theme != nil {
		o.Theme = *p.Theme
	}
	if p.Layout != nil {
		o.Layout = *p.Layout
	}
	if p.PanelPosition != nil {
		o.PanelPosition = *p.PanelPosition
	}
	if p.TickerPosition != nil {
		o.TickerPosition = *p.TickerPosition
	}
	if p.ShowTimestamps != nil {
		o.ShowTimestamps = *p.ShowTimestamps
	}
	if p.ShowSources != nil {
		o.ShowSources = *p.ShowSources
	}
	if p.ShowBreaking != nil {
		o.ShowBreaking = *p.ShowBreaking
	}
	if p.FontSize != nil {
		o.FontSize = *p.FontSize
	}
	if p.Opacity != nil {
		o.Opacity = *p.Opacity
	}
	if p.TickerSpeed != nil {
		o.TickerSpeed = *p.TickerSpeed
	}
	if p.MaxPanelItems != nil {
		o.MaxPanelItems = *p.MaxPanelItems
	}
}

// Clone returns a copy that shares no map with o.
func (o Overlay) Clone() Overlay {
	o.ModeSettings = maps.Clone(o.ModeSettings)
	return o
}
