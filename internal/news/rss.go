package news

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/mmcdole/gofeed"
)

// DefaultRSSFeeds maps provider categories to public feeds.
var DefaultRSSFeeds = map[string][]string{
	"general":    {"https://feeds.bbci.co.uk/news/rss.xml"},
	"technology": {"https://feeds.bbci.co.uk/news/technology/rss.xml"},
	"business":   {"https://feeds.bbci.co.uk/news/business/rss.xml"},
	"science":    {"https://feeds.bbci.co.uk/news/science_and_environment/rss.xml"},
}

// RSSProvider reads headlines from RSS/Atom feeds grouped by category.
type RSSProvider struct {
	parser *gofeed.Parser
	feeds  map[string][]string
}

// NewRSSProvider builds a provider over the given category feed table; nil uses DefaultRSSFeeds.
func NewRSSProvider(feeds map[string][]string) *RSSProvider {
	if feeds == nil {
		feeds = DefaultRSSFeeds
	}
	return &RSSProvider{parser: gofeed.NewParser(), feeds: feeds}
}

func (p *RSSProvider) Name() string { return "rss" }

// Fetch reads every feed of the category. With a query, all feeds are searched
// and only items whose title or description contain it are kept.
func (p *RSSProvider) Fetch(ctx context.Context, req ProviderRequest) ([]Article, error) {
	urls := p.feeds[req.Category]
	if req.Query != "" {
		urls = p.allFeeds()
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("rss: no feeds configured for category %q", req.Category)
	}

	query := strings.ToLower(req.Query)
	var (
		articles []Article
		errs     []error
	)
	for _, u := range urls {
		feed, err := p.parser.ParseURLWithContext(u, ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("rss: fetching %s: %w", u, err))
			continue
		}
		for _, item := range feed.Items {
			if query != "" && !strings.Contains(strings.ToLower(item.Title+" "+item.Description), query) {
				continue
			}
			articles = append(articles, articleFromFeedItem(feed, item))
		}
	}
	if len(errs) == len(urls) {
		return nil, errors.Join(errs...)
	}

	sort.SliceStable(articles, func(i, j int) bool {
		return articles[i].PublishedAt.After(articles[j].PublishedAt)
	})
	if req.Limit > 0 && len(articles) > req.Limit {
		articles = articles[:req.Limit]
	}
	return articles, nil
}

func (p *RSSProvider) allFeeds() []string {
	seen := make(map[string]struct{})
	var out []string
	categories := make([]string, 0, len(p.feeds))
	for category := range p.feeds {
		categories = append(categories, category)
	}
	sort.Strings(categories)
	for _, category := range categories {
		for _, u := range p.feeds[category] {
			if _, ok := seen[u]; ok {
				continue
			}
			seen[u] = struct{}{}
			out = append(out, u)
		}
	}
	return out
}

func articleFromFeedItem(feed *gofeed.Feed, item *gofeed.Item) Article {
	article := Article{
		Title:  item.Title,
		Source: feed.Title,
		URL:    item.Link,
	}
	switch {
	case item.PublishedParsed != nil:
		article.PublishedAt = *item.PublishedParsed
	case item.UpdatedParsed != nil:
		article.PublishedAt = *item.UpdatedParsed
	}
	if item.Image != nil {
		article.ImageURL = item.Image.URL
	} else {
		for _, enc := range item.Enclosures {
			if strings.HasPrefix(enc.Type, "image/") {
				article.ImageURL = enc.URL
				break
			}
		}
	}
	return article
}
