package source

import (
	"context"
	"time"

	"summarist/internal/domain"
)

// Filter selects candidate items on the remote service.
type Filter struct {
	// Since keeps items created or received after this instant.
	Since time.Time
	Label string
	Query string
	// MaxItems caps the number of listed items; it must be positive.
	MaxItems int
}

// Connector lists candidate items in the remote service's own ranking order.
type Connector interface {
	List(ctx context.Context, filter Filter) ([]domain.Item, error)
}

// DetailFetcher retrieves the bulk content needed to summarize one item.
type DetailFetcher interface {
	Detail(ctx context.Context, item domain.Item) (string, error)
}

type Source interface {
	Connector
	DetailFetcher
}

func FilterFromDays(daysAgo int, label string, query string, maxItems int, now time.Time) Filter {
	return Filter{
		Since:    now.Add(-time.Duration(daysAgo) * 24 * time.Hour),
		Label:    label,
		Query:    query,
		MaxItems: maxItems,
	}
}
