// Package listing implements the user listing controller: filter and page
// state, the fetch cycle that keeps it in sync with the user API, and the
// view model rendered from it.
package listing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Sternrassler/user-console/pkg/client"
	"github.com/Sternrassler/user-console/pkg/pagination"
	"github.com/rs/zerolog"
)

// Fetcher retrieves one page of the user listing.
type Fetcher interface {
	ListUsers(ctx context.Context, q client.Query) (*client.UserPage, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, q client.Query) (*client.UserPage, error)

// ListUsers implements Fetcher.
func (f FetcherFunc) ListUsers(ctx context.Context, q client.Query) (*client.UserPage, error) {
	return f(ctx, q)
}

// Controller owns the listing state of one console session. Every state
// change runs exactly one refresh before returning.
//
// Overlapping refreshes are allowed; each takes a sequence number and only
// the most recently issued one may update the state.
type Controller struct {
	fetcher Fetcher
	logger  zerolog.Logger

	mu      sync.Mutex
	state   State
	seq     uint64
	mounted bool
}

// New creates a controller on page 1 with no filters, in the loading state.
func New(fetcher Fetcher, logger zerolog.Logger) *Controller {
	if fetcher == nil {
		panic("listing: fetcher cannot be nil")
	}

	return &Controller{
		fetcher: fetcher,
		logger:  logger,
		state: State{
			Page: PageState{
				CurrentPage:  1,
				ItemsPerPage: ItemsPerPage,
			},
			Status: Status{Kind: StatusLoading},
		},
	}
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.state
	if s.Status.Rows != nil {
		s.Status.Rows = append([]client.UserRecord(nil), s.Status.Rows...)
	}
	return s
}

// Mount runs the initial refresh. Later calls do nothing and return false.
func (c *Controller) Mount(ctx context.Context) bool {
	c.mu.Lock()
	if c.mounted {
		c.mu.Unlock()
		return false
	}
	c.mounted = true
	c.mu.Unlock()

	c.Refresh(ctx)
	return true
}

// SetFilter sets one filter field and returns to page 1.
func (c *Controller) SetFilter(ctx context.Context, field Field, value string) error {
	c.mu.Lock()
	if err := c.state.Filters.set(field, value); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("set filter %q: %w", field, err)
	}
	c.state.Page.CurrentPage = 1
	c.mu.Unlock()

	c.logger.Debug().Str("field", string(field)).Str("value", value).Msg("Filter changed")
	c.Refresh(ctx)
	return nil
}

// ClearFilters empties every filter and returns to page 1.
func (c *Controller) ClearFilters(ctx context.Context) {
	c.mu.Lock()
	c.state.Filters = FilterCriteria{}
	c.state.Page.CurrentPage = 1
	c.mu.Unlock()

	c.logger.Debug().Msg("Filters cleared")
	c.Refresh(ctx)
}

// GoToPage moves to page n when 1 <= n <= TotalPages and refreshes.
// Out-of-range pages are ignored and reported as false.
func (c *Controller) GoToPage(ctx context.Context, n int) bool {
	c.mu.Lock()
	if !pagination.InRange(n, c.state.Page.TotalPages) {
		total := c.state.Page.TotalPages
		c.mu.Unlock()
		c.logger.Debug().Int("page", n).Int("total_pages", total).Msg("Ignoring out-of-range page")
		return false
	}
	c.state.Page.CurrentPage = n
	c.mu.Unlock()

	c.Refresh(ctx)
	return true
}

// Retry refreshes with the current state, typically after an error.
func (c *Controller) Retry(ctx context.Context) {
	c.Refresh(ctx)
}

// Refresh fetches the current page for the current filters and reconciles
// the outcome into the state. It never returns an error: failures become
// the error status.
func (c *Controller) Refresh(ctx context.Context) {
	c.mu.Lock()
	c.seq++
	seq := c.seq
	c.state.Status = Status{Kind: StatusLoading}
	query := c.state.Query()
	c.mu.Unlock()

	start := time.Now()
	page, err := c.fetcher.ListUsers(ctx, query)
	refreshDuration.Observe(time.Since(start).Seconds())

	c.mu.Lock()
	defer c.mu.Unlock()

	if seq != c.seq {
		refreshesTotal.WithLabelValues("stale").Inc()
		c.logger.Debug().
			Uint64("seq", seq).
			Uint64("latest_seq", c.seq).
			Msg("Dropping stale listing response")
		return
	}

	if err != nil {
		c.state.Page.TotalPages = 0
		c.state.Page.TotalItems = 0
		c.state.Status = Status{
			Kind:    StatusError,
			Message: "Failed to fetch data: " + err.Error(),
		}
		refreshesTotal.WithLabelValues("error").Inc()
		c.logger.Error().
			Err(err).
			Uint64("seq", seq).
			Int("page", query.Page).
			Str("error_class", string(client.ClassOf(err))).
			Msg("Listing refresh failed")
		return
	}

	if page == nil {
		page = &client.UserPage{}
	}
	rows := page.Items
	if rows == nil {
		rows = []client.UserRecord{}
	}
	c.state.Page.TotalPages = max(page.TotalPages, 0)
	c.state.Page.TotalItems = max(page.TotalItems, 0)
	c.state.Status = Status{Kind: StatusReady, Rows: rows}

	refreshesTotal.WithLabelValues("ready").Inc()
	c.logger.Info().
		Uint64("seq", seq).
		Int("page", query.Page).
		Int("total_pages", c.state.Page.TotalPages).
		Int("total_items", c.state.Page.TotalItems).
		Msg("Listing refreshed")
}
