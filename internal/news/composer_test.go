package news

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFetcher struct {
	mu        sync.Mutex
	headlines []Headline
	err       error
	calls     int
	limits    []int
}

func (s *stubFetcher) Fetch(_ context.Context, _ Filter, limit int, _ string) ([]Headline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.limits = append(s.limits, limit)
	if s.err != nil {
		return []Headline{}, s.err
	}
	out := s.headlines
	if len(out) > limit {
		out = out[:limit]
	}
	return cloneHeadlines(out), nil
}

func providerHeadlines(n, priority int) []Headline {
	base := time.Date(2025, 10, 3, 12, 0, 0, 0, time.UTC)
	out := make([]Headline, n)
	for i := range out {
		out[i] = Headline{
			ID:          fmt.Sprintf("api-%d", i),
			Title:       fmt.Sprintf("Provider story %d", i),
			Source:      "Wire",
			URL:         fmt.Sprintf("https://example.com/%d", i),
			PublishedAt: base.Add(-time.Duration(i) * time.Minute),
			Category:    "top",
			Priority:    priority,
		}
	}
	return out
}

func newTestComposer(t *testing.T, fetcher *stubFetcher) (*Composer, *MemoryStore, *MemoryCache) {
	t.Helper()
	store := NewMemoryStore()
	cache := NewMemoryCache(16, time.Minute)
	composer, err := NewComposer(store, fetcher, cache, nil)
	require.NoError(t, err)
	return composer, store, cache
}

func assertOrdered(t *testing.T, items []Headline) {
	t.Helper()
	for i := 1; i < len(items); i++ {
		prev, cur := items[i-1], items[i]
		require.GreaterOrEqual(t, prev.Priority, cur.Priority, "priority inversion at %d", i)
		if prev.Priority == cur.Priority {
			require.False(t, prev.PublishedAt.Before(cur.PublishedAt), "time inversion at %d", i)
		}
	}
}

func TestComposeAutoPrependsCustomAndTruncates(t *testing.T) {
	fetcher := &stubFetcher{headlines: providerHeadlines(3, DefaultProviderPriority)}
	composer, store, _ := newTestComposer(t, fetcher)
	custom, err := store.Add(context.Background(), HeadlineInput{Title: "Local event today", Source: "Ops", Priority: intPtr(5)})
	require.NoError(t, err)

	got, err := composer.Compose(context.Background(), ComposeRequest{Mode: ModeAuto, Filter: FilterTop, Limit: 2})
	require.NoError(t, err)

	require.Len(t, got.Headlines, 2)
	assert.Equal(t, custom.ID, got.Headlines[0].ID)
	assert.True(t, got.Headlines[0].IsCustom)
	assert.False(t, got.Headlines[1].IsCustom)
	assert.Equal(t, 1, got.CustomCount)
	assert.Equal(t, 1, got.APICount)
	assert.Equal(t, []int{2}, fetcher.limits, "custom headlines do not shrink the provider fetch")
}

func TestComposeCustomOnlyNeverIncludesProviderHeadlines(t *testing.T) {
	fetcher := &stubFetcher{headlines: providerHeadlines(5, 9)}
	composer, store, _ := newTestComposer(t, fetcher)
	for i := 0; i < 3; i++ {
		_, err := store.Add(context.Background(), HeadlineInput{Title: fmt.Sprintf("Custom %d", i), Source: "Ops", Priority: intPtr(i + 1)})
		require.NoError(t, err)
	}

	got, err := composer.Compose(context.Background(), ComposeRequest{Mode: ModeCustomOnly, Filter: FilterTop, Limit: 10})
	require.NoError(t, err)

	require.Len(t, got.Headlines, 3)
	for _, h := range got.Headlines {
		assert.True(t, h.IsCustom)
	}
	assert.Equal(t, "Custom 2", got.Headlines[0].Title)
	assert.Zero(t, fetcher.calls)
	assertOrdered(t, got.Headlines)
}

func TestComposeManualNeverCallsProvider(t *testing.T) {
	fetcher := &stubFetcher{headlines: providerHeadlines(5, 3)}
	composer, _, cache := newTestComposer(t, fetcher)

	got, err := composer.Compose(context.Background(), ComposeRequest{Mode: ModeManual, Filter: FilterTop, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, got.Headlines, "no previous composition yet")

	key, err := NewCacheKey(ModeAuto, FilterTop, 10, "")
	require.NoError(t, err)
	cache.Put(context.Background(), key, providerHeadlines(4, 3))

	got, err = composer.Compose(context.Background(), ComposeRequest{Mode: ModeManual, Filter: FilterTech, Limit: 3})
	require.NoError(t, err)
	require.Len(t, got.Headlines, 3)
	assert.Equal(t, "api-0", got.Headlines[0].ID)
	assert.Zero(t, fetcher.calls)
}

func TestComposeAIMonologueCapsFetchAndExcludesCustom(t *testing.T) {
	fetcher := &stubFetcher{headlines: providerHeadlines(8, 3)}
	composer, store, _ := newTestComposer(t, fetcher)
	_, err := store.Add(context.Background(), HeadlineInput{Title: "Custom", Source: "Ops", Priority: intPtr(10)})
	require.NoError(t, err)

	got, err := composer.Compose(context.Background(), ComposeRequest{Mode: ModeAIMonologue, Filter: FilterTop, Limit: 20})
	require.NoError(t, err)
	assert.Len(t, got.Headlines, MonologueFetchLimit)
	assert.Equal(t, []int{MonologueFetchLimit}, fetcher.limits)
	assert.Zero(t, got.CustomCount)

	got, err = composer.Compose(context.Background(), ComposeRequest{Mode: ModeAIMonologue, Filter: FilterTop, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, got.Headlines, 2)
}

func TestComposeDegradesOnProviderFailure(t *testing.T) {
	fetcher := &stubFetcher{err: errors.New("upstream down")}
	composer, store, _ := newTestComposer(t, fetcher)

	got, err := composer.Compose(context.Background(), ComposeRequest{Mode: ModeAuto, Filter: FilterTop, Limit: 5})
	require.NoError(t, err)
	assert.Empty(t, got.Headlines)
	assert.Error(t, got.ProviderErr)

	_, err = store.Add(context.Background(), HeadlineInput{Title: "Still here", Source: "Ops"})
	require.NoError(t, err)
	got, err = composer.Compose(context.Background(), ComposeRequest{Mode: ModeAuto, Filter: FilterTop, Limit: 5})
	require.NoError(t, err)
	require.Len(t, got.Headlines, 1)
	assert.Equal(t, "Still here", got.Headlines[0].Title)
	assert.Error(t, got.ProviderErr)
}

func TestComposeRejectsProgrammerErrors(t *testing.T) {
	composer, _, _ := newTestComposer(t, &stubFetcher{})

	_, err := composer.Compose(context.Background(), ComposeRequest{Mode: Mode("loud"), Limit: 5})
	require.ErrorIs(t, err, ErrInvalidMode)

	_, err = composer.Compose(context.Background(), ComposeRequest{Mode: ModeAuto, Limit: 0})
	require.Error(t, err)
}

func TestComposeOrderingAndLimitAcrossModes(t *testing.T) {
	mixed := providerHeadlines(6, 3)
	mixed[1].Priority = 8
	mixed[4].Priority = 8
	mixed[5].Priority = 1

	for _, mode := range Modes {
		for _, limit := range []int{1, 2, 4, 10} {
			t.Run(fmt.Sprintf("%s/%d", mode, limit), func(t *testing.T) {
				fetcher := &stubFetcher{headlines: mixed}
				composer, store, cache := newTestComposer(t, fetcher)
				for i := 0; i < 3; i++ {
					_, err := store.Add(context.Background(), HeadlineInput{Title: fmt.Sprintf("C%d", i), Source: "Ops", Priority: intPtr(3 + i*3)})
					require.NoError(t, err)
				}
				key, err := NewCacheKey(ModeAuto, FilterTop, 10, "")
				require.NoError(t, err)
				prior, err := composer.Compose(context.Background(), ComposeRequest{Mode: ModeAuto, Filter: FilterTop, Limit: 10})
				require.NoError(t, err)
				cache.Put(context.Background(), key, prior.Headlines)

				got, err := composer.Compose(context.Background(), ComposeRequest{Mode: mode, Filter: FilterTop, Limit: limit})
				require.NoError(t, err)
				assert.LessOrEqual(t, len(got.Headlines), limit)
				assertOrdered(t, got.Headlines)
			})
		}
	}
}

func TestSortHeadlinesBreaksTiesByRecency(t *testing.T) {
	base := time.Date(2025, 10, 3, 0, 0, 0, 0, time.UTC)
	items := []Headline{
		{ID: "old", Priority: 5, PublishedAt: base},
		{ID: "urgent", Priority: 9, PublishedAt: base.Add(-time.Hour)},
		{ID: "new", Priority: 5, PublishedAt: base.Add(time.Hour)},
		{ID: "twin-a", Priority: 2, PublishedAt: base},
		{ID: "twin-b", Priority: 2, PublishedAt: base},
	}
	SortHeadlines(items)

	ids := make([]string, len(items))
	for i, h := range items {
		ids[i] = h.ID
	}
	assert.Equal(t, []string{"urgent", "new", "old", "twin-a", "twin-b"}, ids)
}

func TestParseModeAndFilter(t *testing.T) {
	mode, err := ParseMode(" Custom_Only ")
	require.NoError(t, err)
	assert.Equal(t, ModeCustomOnly, mode)
	_, err = ParseMode("shouty")
	require.ErrorIs(t, err, ErrInvalidMode)

	filter, err := ParseFilter("TECH")
	require.NoError(t, err)
	assert.Equal(t, "technology", filter.Category())
	_, err = ParseFilter("sports")
	require.ErrorIs(t, err, ErrInvalidFilter)
	assert.Equal(t, "general", FilterTop.Category())
}
