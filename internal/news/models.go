package news

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	// DefaultCustomPriority is assigned to operator headlines submitted without a priority.
	DefaultCustomPriority = 6
	// DefaultProviderPriority is assigned to every headline returned by the upstream provider.
	DefaultProviderPriority = 3

	MinPriority = 1
	MaxPriority = 10

	// MonologueFetchLimit caps the provider set used for ai_monologue composition.
	MonologueFetchLimit = 5
)

var (
	ErrInvalidMode   = errors.New("news: invalid content mode")
	ErrInvalidFilter = errors.New("news: invalid filter")
)

// Headline is the canonical unit of overlay content.
type Headline struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Source      string    `json:"source"`
	ImageURL    string    `json:"image,omitempty"`
	PublishedAt time.Time `json:"publishedAt"`
	URL         string    `json:"url"`
	Category    string    `json:"category"`
	Priority    int       `json:"priority"`
	IsCustom    bool      `json:"isCustom"`
}

// HeadlineInput carries an operator-submitted headline before it is stored.
type HeadlineInput struct {
	Title    string `json:"title"`
	Source   string `json:"source"`
	URL      string `json:"url"`
	ImageURL string `json:"image"`
	Category string `json:"category"`
	Priority *int   `json:"priority"`
}

// Mode selects which sources contribute to a composition pass.
type Mode string

const (
	ModeAuto        Mode = "auto"
	ModeManual      Mode = "manual"
	ModeCustomOnly  Mode = "custom_only"
	ModeAIMonologue Mode = "ai_monologue"
)

// Modes lists every content mode in a stable order.
var Modes = []Mode{ModeAuto, ModeManual, ModeCustomOnly, ModeAIMonologue}

// ParseMode validates a raw mode string.
func ParseMode(raw string) (Mode, error) {
	mode := Mode(strings.ToLower(strings.TrimSpace(raw)))
	if !mode.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, raw)
	}
	return mode, nil
}

func (m Mode) Valid() bool {
	switch m {
	case ModeAuto, ModeManual, ModeCustomOnly, ModeAIMonologue:
		return true
	}
	return false
}

// UsesProvider reports whether compositions in this mode call the upstream provider.
func (m Mode) UsesProvider() bool {
	return m == ModeAuto || m == ModeAIMonologue
}

// Filter is the coarse topic selector exposed to operators.
type Filter string

const (
	FilterTop      Filter = "top"
	FilterTech     Filter = "tech"
	FilterBusiness Filter = "business"
	FilterScience  Filter = "science"
)

// ParseFilter validates a raw filter string.
func ParseFilter(raw string) (Filter, error) {
	filter := Filter(strings.ToLower(strings.TrimSpace(raw)))
	switch filter {
	case FilterTop, FilterTech, FilterBusiness, FilterScience:
		return filter, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidFilter, raw)
}

// Category maps the filter onto the upstream provider's category vocabulary.
func (f Filter) Category() string {
	switch f {
	case FilterTech:
		return "technology"
	case FilterBusiness:
		return "business"
	case FilterScience:
		return "science"
	default:
		return "general"
	}
}

// SortHeadlines orders headlines by priority descending, newest first on ties.
// The sort is stable so equal items keep their collection order.
func SortHeadlines(items []Headline) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Priority != items[j].Priority {
			return items[i].Priority > items[j].Priority
		}
		return items[i].PublishedAt.After(items[j].PublishedAt)
	})
}

// CountCustom returns the number of operator headlines in items.
func CountCustom(items []Headline) int {
	n := 0
	for _, item := range items {
		if item.IsCustom {
			n++
		}
	}
	return n
}

func cloneHeadlines(items []Headline) []Headline {
	if items == nil {
		return []Headline{}
	}
	out := make([]Headline, len(items))
	copy(out, items)
	return out
}
