package service

import (
	"context"
	"strings"
	"time"

	"github.com/bolibooks/bolibooks/internal/application/port"
	"github.com/bolibooks/bolibooks/internal/domain/entity"
	"github.com/bolibooks/bolibooks/internal/domain/event"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// EventPublisher delivers domain events to subscribers
type EventPublisher interface {
	Dispatch(ctx context.Context, evt *event.Event) error
}

// Clock returns the current time
type Clock func() time.Time

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// PageResult is one page of a listing
type PageResult[T any] struct {
	Data   []T `json:"data"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

func newPage[T any](data []T, total int, page port.Page) *PageResult[T] {
	if data == nil {
		data = make([]T, 0)
	}
	return &PageResult[T]{Data: data, Total: total, Limit: page.Limit, Offset: page.Offset}
}

// NormalizePage clamps a requested limit into [1, 100], defaulting to 20
func NormalizePage(limit, offset int) port.Page {
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return port.Page{Limit: limit, Offset: offset}
}

type actorKey struct{}

// WithActor returns a context carrying the id of the user performing a request
func WithActor(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, actorKey{}, userID)
}

// ActorFromContext returns the acting user id, if any
func ActorFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(actorKey{}).(int64)
	return id, ok && id != 0
}

func actorPtr(ctx context.Context) *int64 {
	if id, ok := ActorFromContext(ctx); ok {
		return &id
	}
	return nil
}

const dateLayout = "2006-01-02"

// parseDate accepts YYYY-MM-DD or RFC3339. An empty string yields def.
func parseDate(s string, def time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, validationError("invalid date %q, expected YYYY-MM-DD or RFC3339", s)
	}
	return t, nil
}

// parseRangeEnd is parseDate where a bare date covers the whole day
func parseRangeEnd(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		end := t.Add(24*time.Hour - time.Nanosecond)
		return &end, nil
	}
	t, err := parseDate(s, time.Time{})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseRangeStart(s string) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, err := parseDate(s, time.Time{})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func optionalDate(s string) (*time.Time, error) {
	return parseRangeStart(s)
}

// activityWriter records audit entries inside the caller's transaction
type activityWriter struct {
	repo port.ActivityRepository
}

func (w activityWriter) record(ctx context.Context, companyID int64, action, entityType string, entityID int64, details map[string]interface{}) error {
	if w.repo == nil {
		return nil
	}
	return w.repo.Create(ctx, &entity.ActivityEntry{
		CompanyID:  companyID,
		UserID:     actorPtr(ctx),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    details,
	})
}
