package news

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/time/rate"

	"overlaybackend/internal/metrics"
)

// ErrMissingCredentials signals that the upstream provider cannot be called at all.
var ErrMissingCredentials = errors.New("news: upstream provider credentials are not configured")

// Article is a raw item as returned by an upstream provider.
type Article struct {
	Title       string
	Source      string
	URL         string
	ImageURL    string
	PublishedAt time.Time
}

// ProviderRequest describes one upstream fetch.
type ProviderRequest struct {
	Category string
	Query    string
	Limit    int
}

// Provider defines a pluggable upstream news source.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, req ProviderRequest) ([]Article, error)
}

// GatewayOptions tunes the provider gateway.
type GatewayOptions struct {
	Timeout time.Duration
	// RatePerSecond bounds upstream calls; zero disables limiting.
	RatePerSecond float64
	Burst         int
	Logger        *slog.Logger
}

// Gateway fetches from a Provider and normalizes results into headlines.
type Gateway struct {
	provider Provider
	timeout  time.Duration
	limiter  *rate.Limiter
	policy   *bluemonday.Policy
	logger   *slog.Logger
	now      func() time.Time
}

// NewGateway wraps provider with timeout, rate limiting and normalization.
func NewGateway(provider Provider, opts GatewayOptions) (*Gateway, error) {
	if provider == nil {
		return nil, errors.New("news: gateway requires a provider")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	g := &Gateway{
		provider: provider,
		timeout:  timeout,
		policy:   bluemonday.StrictPolicy(),
		logger:   logger.With("provider", provider.Name()),
		now:      time.Now,
	}
	if opts.RatePerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), burst)
	}
	return g, nil
}

// Fetch returns up to limit normalized provider headlines. A non-empty query
// overrides the filter-based category fetch.
func (g *Gateway) Fetch(ctx context.Context, filter Filter, limit int, query string) ([]Headline, error) {
	if limit <= 0 {
		return []Headline{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	articles, err := g.fetch(ctx, ProviderRequest{
		Category: filter.Category(),
		Query:    strings.TrimSpace(query),
		Limit:    limit,
	})
	elapsed := time.Since(start).Seconds()
	if err != nil {
		if errors.Is(err, context.Canceled) {
			metrics.RecordProviderFetch(g.provider.Name(), "canceled", elapsed)
			g.logger.Debug("provider fetch canceled by caller", "filter", string(filter))
			return []Headline{}, err
		}
		status := "error"
		if errors.Is(err, ErrMissingCredentials) {
			status = "misconfigured"
		}
		metrics.RecordProviderFetch(g.provider.Name(), status, elapsed)
		g.logger.Warn("provider fetch failed",
			"filter", string(filter),
			"query", query,
			"limit", limit,
			"error", err)
		return []Headline{}, err
	}
	metrics.RecordProviderFetch(g.provider.Name(), "ok", elapsed)

	headlines := g.normalize(articles, filter, limit)
	g.logger.Debug("provider fetch complete",
		"filter", string(filter),
		"articles", len(articles),
		"headlines", len(headlines))
	return headlines, nil
}

func (g *Gateway) fetch(ctx context.Context, req ProviderRequest) ([]Article, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("provider rate limit: %w", err)
		}
	}
	articles, err := g.provider.Fetch(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("fetch from %s: %w", g.provider.Name(), err)
	}
	return articles, nil
}

func (g *Gateway) normalize(articles []Article, filter Filter, limit int) []Headline {
	fetchedAt := g.now().UTC()
	out := make([]Headline, 0, min(len(articles), limit))
	for _, article := range articles {
		if len(out) == limit {
			break
		}
		title := g.plainText(article.Title)
		url := strings.TrimSpace(article.URL)
		if title == "" || url == "" {
			continue
		}
		published := article.PublishedAt
		if published.IsZero() {
			published = fetchedAt
		}
		out = append(out, Headline{
			ID:          uuid.NewString(),
			Title:       title,
			Source:      defaultString(g.plainText(article.Source), g.provider.Name()),
			URL:         url,
			ImageURL:    strings.TrimSpace(article.ImageURL),
			PublishedAt: published.UTC(),
			Category:    string(filter),
			Priority:    DefaultProviderPriority,
			IsCustom:    false,
		})
	}
	return out
}

// plainText strips markup from upstream text; the renderer escapes on output.
func (g *Gateway) plainText(s string) string {
	cleaned := html.UnescapeString(g.policy.Sanitize(s))
	return strings.Join(strings.Fields(cleaned), " ")
}
