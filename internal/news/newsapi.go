package news

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const defaultNewsAPIBaseURL = "https://newsapi.org/v2"

// NewsAPIProvider fetches articles from a NewsAPI-compatible HTTP endpoint.
type NewsAPIProvider struct {
	baseURL    string
	apiKey     string
	country    string
	httpClient *http.Client
}

// NewNewsAPIProvider constructs a provider with sane defaults.
func NewNewsAPIProvider(apiKey string, opts ...func(*NewsAPIProvider)) *NewsAPIProvider {
	p := &NewsAPIProvider{
		baseURL: defaultNewsAPIBaseURL,
		apiKey:  apiKey,
		country: "us",
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WithNewsAPIBaseURL overrides the default API base URL (useful for tests).
func WithNewsAPIBaseURL(u string) func(*NewsAPIProvider) {
	return func(p *NewsAPIProvider) {
		if u != "" {
			p.baseURL = u
		}
	}
}

// WithNewsAPICountry sets the country used for top-headline requests.
func WithNewsAPICountry(country string) func(*NewsAPIProvider) {
	return func(p *NewsAPIProvider) {
		if country != "" {
			p.country = country
		}
	}
}

// WithNewsAPIHTTPClient overrides the internal HTTP client.
func WithNewsAPIHTTPClient(hc *http.Client) func(*NewsAPIProvider) {
	return func(p *NewsAPIProvider) {
		p.httpClient = hc
	}
}

func (p *NewsAPIProvider) Name() string { return "newsapi" }

// Fetch calls top-headlines for a category, or everything for a free-text query.
func (p *NewsAPIProvider) Fetch(ctx context.Context, req ProviderRequest) ([]Article, error) {
	if p.apiKey == "" {
		return nil, ErrMissingCredentials
	}

	params := url.Values{}
	params.Set("pageSize", strconv.Itoa(req.Limit))
	endpoint := p.baseURL + "/top-headlines"
	if req.Query != "" {
		endpoint = p.baseURL + "/everything"
		params.Set("q", req.Query)
		params.Set("sortBy", "publishedAt")
	} else {
		params.Set("country", p.country)
		params.Set("category", req.Category)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("newsapi: create request: %w", err)
	}
	httpReq.Header.Set("X-Api-Key", p.apiKey)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("newsapi: request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("newsapi: read body: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("newsapi: api error %d: %s", resp.StatusCode, truncate(string(data), 512))
	}

	return decodeNewsAPIArticles(data)
}

type newsAPIResponse struct {
	Status   string `json:"status"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Articles []struct {
		Source struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"source"`
		Author      string `json:"author"`
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
		URLToImage  string `json:"urlToImage"`
		PublishedAt string `json:"publishedAt"`
	} `json:"articles"`
}

func decodeNewsAPIArticles(data []byte) ([]Article, error) {
	var payload newsAPIResponse
	if err := json.NewDecoder(bytes.NewReader(data)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("newsapi: decode response: %w", err)
	}
	if payload.Status != "ok" {
		return nil, fmt.Errorf("newsapi: status %q: %s %s", payload.Status, payload.Code, payload.Message)
	}
	if payload.Articles == nil {
		return nil, fmt.Errorf("newsapi: response missing articles")
	}

	articles := make([]Article, 0, len(payload.Articles))
	for _, raw := range payload.Articles {
		// NewsAPI marks takedowns with a "[Removed]" placeholder.
		if raw.Title == "" || raw.Title == "[Removed]" {
			continue
		}
		var published time.Time
		if raw.PublishedAt != "" {
			if ts, err := time.Parse(time.RFC3339, raw.PublishedAt); err == nil {
				published = ts
			}
		}
		articles = append(articles, Article{
			Title:       raw.Title,
			Source:      raw.Source.Name,
			URL:         raw.URL,
			ImageURL:    raw.URLToImage,
			PublishedAt: published,
		})
	}
	return articles, nil
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
