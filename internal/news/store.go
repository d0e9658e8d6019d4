package news

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidHeadline is returned when an operator headline fails validation.
var ErrInvalidHeadline = errors.New("news: invalid headline")

// HeadlineStore holds operator-entered headlines, newest first.
type HeadlineStore interface {
	Add(ctx context.Context, input HeadlineInput) (Headline, error)
	Remove(ctx context.Context, id string) error
	Clear(ctx context.Context) error
	List(ctx context.Context) ([]Headline, error)
}

// NewCustomHeadline validates input and builds a stored headline with defaults applied.
func NewCustomHeadline(input HeadlineInput, now time.Time) (Headline, error) {
	title := strings.TrimSpace(input.Title)
	source := strings.TrimSpace(input.Source)
	if title == "" {
		return Headline{}, fmt.Errorf("%w: title is required", ErrInvalidHeadline)
	}
	if source == "" {
		return Headline{}, fmt.Errorf("%w: source is required", ErrInvalidHeadline)
	}

	priority := DefaultCustomPriority
	if input.Priority != nil {
		priority = *input.Priority
		if priority < MinPriority || priority > MaxPriority {
			return Headline{}, fmt.Errorf("%w: priority must be between %d and %d", ErrInvalidHeadline, MinPriority, MaxPriority)
		}
	}

	return Headline{
		ID:          uuid.NewString(),
		Title:       title,
		Source:      source,
		URL:         strings.TrimSpace(input.URL),
		ImageURL:    strings.TrimSpace(input.ImageURL),
		PublishedAt: now.UTC(),
		Category:    defaultString(input.Category, "custom"),
		Priority:    priority,
		IsCustom:    true,
	}, nil
}

// MemoryStore keeps custom headlines in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	items []Headline
	now   func() time.Time
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

// Add stores a new custom headline at the front of the list.
func (s *MemoryStore) Add(ctx context.Context, input HeadlineInput) (Headline, error) {
	if err := ctx.Err(); err != nil {
		return Headline{}, err
	}
	headline, err := NewCustomHeadline(input, s.now())
	if err != nil {
		return Headline{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = append([]Headline{headline}, s.items...)
	return headline, nil
}

// Remove drops the headline with the given id; unknown ids are ignored.
func (s *MemoryStore) Remove(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for idx := range s.items {
		if s.items[idx].ID == id {
			s.items = append(s.items[:idx], s.items[idx+1:]...)
			return nil
		}
	}
	return nil
}

// Clear removes every stored headline.
func (s *MemoryStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.items = nil
	s.mu.Unlock()
	return nil
}

// List returns a snapshot of the stored headlines, newest first.
func (s *MemoryStore) List(ctx context.Context) ([]Headline, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return cloneHeadlines(s.items), nil
}

func defaultString(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return strings.TrimSpace(value)
}
