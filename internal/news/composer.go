package news

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"overlaybackend/internal/metrics"
)

// HeadlineFetcher is the provider side of a composition pass.
type HeadlineFetcher interface {
	Fetch(ctx context.Context, filter Filter, limit int, query string) ([]Headline, error)
}

// ComposeRequest selects the sources and size of a composition pass.
type ComposeRequest struct {
	Mode   Mode
	Filter Filter
	Limit  int
	Query  string
}

// Composition is the ordered result of a composition pass.
type Composition struct {
	Headlines   []Headline
	CustomCount int
	APICount    int
	// ProviderErr is the swallowed provider failure, if any.
	ProviderErr error
}

// Composer merges custom and provider headlines per content mode.
type Composer struct {
	Store    HeadlineStore
	Provider HeadlineFetcher
	Cache    Cache
	Logger   *slog.Logger
}

// NewComposer constructs a Composer.
func NewComposer(store HeadlineStore, provider HeadlineFetcher, cache Cache, logger *slog.Logger) (*Composer, error) {
	if store == nil {
		return nil, errors.New("composer requires a headline store")
	}
	if provider == nil {
		return nil, errors.New("composer requires a provider")
	}
	if cache == nil {
		return nil, errors.New("composer requires a cache")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Composer{Store: store, Provider: provider, Cache: cache, Logger: logger}, nil
}

// Compose collects headlines for the mode, orders them and truncates to the limit.
// Provider failures never surface as errors; they are reported in ProviderErr.
func (c *Composer) Compose(ctx context.Context, req ComposeRequest) (Composition, error) {
	if !req.Mode.Valid() {
		return Composition{}, fmt.Errorf("%w: %q", ErrInvalidMode, req.Mode)
	}
	if req.Limit <= 0 {
		return Composition{}, fmt.Errorf("compose: limit must be positive, got %d", req.Limit)
	}

	var (
		items       []Headline
		providerErr error
	)

	switch req.Mode {
	case ModeCustomOnly:
		custom, err := c.Store.List(ctx)
		if err != nil {
			return Composition{}, fmt.Errorf("list custom headlines: %w", err)
		}
		items = custom

	case ModeManual:
		if last, ok := c.Cache.Last(ctx); ok {
			items = last.Headlines
		}

	case ModeAuto:
		custom, err := c.Store.List(ctx)
		if err != nil {
			return Composition{}, fmt.Errorf("list custom headlines: %w", err)
		}
		fetched, err := c.Provider.Fetch(ctx, req.Filter, req.Limit, req.Query)
		if err != nil {
			providerErr = err
			fetched = nil
		}
		items = make([]Headline, 0, len(custom)+len(fetched))
		items = append(items, custom...)
		items = append(items, fetched...)

	case ModeAIMonologue:
		fetched, err := c.Provider.Fetch(ctx, req.Filter, min(req.Limit, MonologueFetchLimit), req.Query)
		if err != nil {
			providerErr = err
			fetched = nil
		}
		items = fetched
	}

	// A caller that went away is not a provider outage.
	if errors.Is(providerErr, context.Canceled) {
		return Composition{}, providerErr
	}

	items = cloneHeadlines(items)
	SortHeadlines(items)
	if len(items) > req.Limit {
		items = items[:req.Limit]
	}

	customCount := CountCustom(items)
	metrics.RecordComposition(string(req.Mode), providerErr != nil)
	if providerErr != nil {
		c.Logger.Warn("composition degraded: provider unavailable",
			"mode", string(req.Mode),
			"filter", string(req.Filter),
			"headlines", len(items),
			"error", providerErr)
	}

	return Composition{
		Headlines:   items,
		CustomCount: customCount,
		APICount:    len(items) - customCount,
		ProviderErr: providerErr,
	}, nil
}
