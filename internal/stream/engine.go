// Package stream coordinates the headline store, settings, cache and composer
// behind the /stream, /settings and /overlay endpoints.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"overlaybackend/internal/news"
	"overlaybackend/internal/settings"
)

// ErrNoContent is returned when a provider-backed mode produced nothing
// because the upstream provider failed.
var ErrNoContent = errors.New("stream: news provider unavailable and no other content")

// DefaultComposeTimeout bounds one shared composition once it no longer
// follows the requesting caller's context.
const DefaultComposeTimeout = 20 * time.Second

// Request selects a stream; zero fields resolve from the effective settings.
type Request struct {
	Mode   news.Mode
	Filter news.Filter
	Limit  int
	Query  string
}

// Result is one resolved stream.
type Result struct {
	Headlines       []news.Headline
	Mode            news.Mode
	Filter          news.Filter
	Limit           int
	Query           string
	Cached          bool
	CustomCount     int
	APICount        int
	CustomAvailable int
	// ProviderErr is set when the provider failed but other content was served.
	ProviderErr error
	Settings    settings.Overlay
	Timestamp   time.Time
}

// NextUpdate is when clients are expected to poll again.
func (r Result) NextUpdate() time.Time {
	return r.Timestamp.Add(time.Duration(r.Settings.RefreshRate) * time.Second)
}

// Engine serializes mutations against stream reads. Every mutation
// invalidates the cache before its write lock is released.
type Engine struct {
	store    news.HeadlineStore
	cache    news.Cache
	settings *settings.Manager
	composer *news.Composer
	logger   *slog.Logger

	mu    sync.RWMutex
	group singleflight.Group
	now   func() time.Time

	composeTimeout time.Duration
}

// NewEngine wires an Engine and its composer.
func NewEngine(store news.HeadlineStore, provider news.HeadlineFetcher, cache news.Cache, mgr *settings.Manager, logger *slog.Logger) (*Engine, error) {
	if mgr == nil {
		return nil, errors.New("stream engine requires a settings manager")
	}
	if logger == nil {
		logger = slog.Default()
	}
	composer, err := news.NewComposer(store, provider, cache, logger)
	if err != nil {
		return nil, err
	}
	return &Engine{
		store:    store,
		cache:    cache,
		settings: mgr,
		composer: composer,
		logger:   logger,
		now:      time.Now,

		composeTimeout: DefaultComposeTimeout,
	}, nil
}

// Settings exposes the settings manager for reads.
func (e *Engine) Settings() *settings.Manager {
	return e.settings
}

// Stream returns the ordered headlines for req, from cache when fresh.
//
// Concurrent misses for one key share a single composition. That
// composition runs detached from any single caller, so a caller that goes
// away only abandons its own wait.
func (e *Engine) Stream(ctx context.Context, req Request) (Result, error) {
	result, key, hit, err := e.lookup(ctx, req)
	if err != nil || hit {
		return result, err
	}

	ch := e.group.DoChan(key.String(), func() (any, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.composeTimeout)
		defer cancel()
		return e.compose(shared, key)
	})

	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Result{}, res.Err
		}
		comp := res.Val.(news.Composition)
		result.Headlines = append([]news.Headline{}, comp.Headlines...)
		result.CustomCount = comp.CustomCount
		result.APICount = comp.APICount
		result.ProviderErr = comp.ProviderErr
		return result, nil
	}
}

// lookup resolves req against the effective settings and serves fresh cache
// entries. hit reports whether result is already complete.
func (e *Engine) lookup(ctx context.Context, req Request) (result Result, key news.CacheKey, hit bool, err error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	mode := req.Mode
	if mode == "" {
		mode = e.settings.Overlay().ContentMode
	}
	if !mode.Valid() {
		return Result{}, key, false, fmt.Errorf("%w: %q", news.ErrInvalidMode, mode)
	}

	eff := e.settings.Effective(mode)
	filter := req.Filter
	if filter == "" {
		filter = eff.Filter
	}
	limit := req.Limit
	if limit <= 0 {
		limit = eff.Limit
	}
	query := strings.TrimSpace(req.Query)

	key, err = news.NewCacheKey(mode, filter, limit, query)
	if err != nil {
		return Result{}, key, false, err
	}

	custom, err := e.store.List(ctx)
	if err != nil {
		return Result{}, key, false, fmt.Errorf("list custom headlines: %w", err)
	}

	result = Result{
		Mode:            mode,
		Filter:          filter,
		Limit:           limit,
		Query:           query,
		CustomAvailable: len(custom),
		Settings:        eff,
		Timestamp:       e.now().UTC(),
	}

	if mode != news.ModeManual {
		if entry, ok := e.cache.Get(ctx, key); ok {
			result.Headlines = entry.Headlines
			result.Cached = true
			result.CustomCount = news.CountCustom(entry.Headlines)
			result.APICount = len(entry.Headlines) - result.CustomCount
			return result, key, true, nil
		}
	}
	return result, key, false, nil
}

// compose holds the read lock for the whole build-and-store so a mutation
// cannot land between reading the store and caching the result.
func (e *Engine) compose(ctx context.Context, key news.CacheKey) (news.Composition, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	comp, err := e.composer.Compose(ctx, news.ComposeRequest{
		Mode:   key.Mode,
		Filter: key.Filter,
		Limit:  key.Limit,
		Query:  key.Query,
	})
	if err != nil {
		return news.Composition{}, err
	}

	if comp.ProviderErr != nil && key.Mode.UsesProvider() {
		if errors.Is(comp.ProviderErr, news.ErrMissingCredentials) {
			return news.Composition{}, fmt.Errorf("compose %s: %w", key.Mode, comp.ProviderErr)
		}
		if len(comp.Headlines) == 0 {
			return news.Composition{}, fmt.Errorf("%w: %v", ErrNoContent, comp.ProviderErr)
		}
	}

	// Degraded results are not cached so a recovered provider is picked up
	// on the next poll.
	if key.Mode != news.ModeManual && comp.ProviderErr == nil {
		e.cache.Put(ctx, key, comp.Headlines)
	}
	return comp, nil
}

// AddHeadline stores a custom headline.
func (e *Engine) AddHeadline(ctx context.Context, input news.HeadlineInput) (news.Headline, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	headline, err := e.store.Add(ctx, input)
	if err != nil {
		return news.Headline{}, err
	}
	e.invalidate(ctx, "headline added")
	e.logger.Info("custom headline added", "id", headline.ID, "priority", headline.Priority)
	return headline, nil
}

// RemoveHeadline deletes a custom headline; unknown ids are a no-op.
func (e *Engine) RemoveHeadline(ctx context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.store.Remove(ctx, id); err != nil {
		return err
	}
	e.cache.ForgetHeadlines(ctx, []string{id})
	e.invalidate(ctx, "headline removed")
	return nil
}

// ClearHeadlines deletes every custom headline.
func (e *Engine) ClearHeadlines(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.store.Clear(ctx); err != nil {
		return err
	}
	if last, ok := e.cache.Last(ctx); ok {
		var ids []string
		for _, h := range last.Headlines {
			if h.IsCustom {
				ids = append(ids, h.ID)
			}
		}
		e.cache.ForgetHeadlines(ctx, ids)
	}
	e.invalidate(ctx, "headlines cleared")
	return nil
}

// UpdateSettings merges a partial settings update.
func (e *Engine) UpdateSettings(ctx context.Context, patch settings.Patch) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.settings.Update(patch); err != nil {
		return err
	}
	e.invalidate(ctx, "settings updated")
	return nil
}

// UpdateSettingsField sets one settings key.
func (e *Engine) UpdateSettingsField(ctx context.Context, scope settings.Scope, key string, value json.RawMessage) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.settings.UpdateField(scope, key, value); err != nil {
		return err
	}
	e.invalidate(ctx, "settings field updated")
	return nil
}

// ResetSettings restores defaults for scope.
func (e *Engine) ResetSettings(ctx context.Context, scope settings.Scope) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.settings.Reset(scope); err != nil {
		return err
	}
	e.invalidate(ctx, "settings reset")
	return nil
}

// Reset drops every cached list, including the manual snapshot, and all
// custom headlines.
func (e *Engine) Reset(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cache.Clear(ctx)
	if err := e.store.Clear(ctx); err != nil {
		return err
	}
	e.logger.Info("stream reset")
	return nil
}

func (e *Engine) invalidate(ctx context.Context, reason string) {
	e.cache.InvalidateAll(ctx)
	e.logger.Debug("stream cache invalidated", "reason", reason)
}
