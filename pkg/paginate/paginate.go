// Package paginate loads a collection incrementally in fixed-size pages
// ordered by (CreatedAt desc, ID asc), without re-fetching pages that were
// already loaded.
//
// The guarantee is session consistency, not linearizability: entities this
// client creates appear in the accumulated view immediately (the coordinator
// prepends them), while entities created elsewhere show up only on the next
// full reload. That trade-off is deliberate; the remote store offers no
// subscription primitive to do better with.
package paginate

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/lumacafe/console/pkg/models"
	"github.com/lumacafe/console/pkg/store"
)

// Paginator drives incremental loading of one collection into its View.
type Paginator[T models.Keyed[T]] struct {
	col  *store.Collection[T]
	view *View[T]
	log  zerolog.Logger
}

// New returns a paginator feeding the given view from the given collection.
func New[T models.Keyed[T]](col *store.Collection[T], view *View[T], log zerolog.Logger) *Paginator[T] {
	return &Paginator[T]{col: col, view: view, log: log}
}

// View returns the accumulated view the paginator feeds.
func (p *Paginator[T]) View() *View[T] { return p.view }

// LoadFirstPage fetches the first pageSize entities and replaces the
// accumulated view with them. The returned cursor points past the last entity
// of the page, or is exhausted when the collection has fewer than pageSize
// entities.
func (p *Paginator[T]) LoadFirstPage(ctx context.Context, pageSize int) ([]T, *store.Cursor, error) {
	page, next, err := p.col.QueryPage(ctx, pageSize, nil)
	if err != nil {
		return nil, nil, err
	}
	p.view.Replace(page)
	p.log.Debug().
		Str("collection", p.col.Name()).
		Int("count", len(page)).
		Bool("exhausted", next.Exhausted()).
		Msg("loaded first page")
	return page, next, nil
}

// LoadNextPage fetches the pageSize entities strictly after the cursor and
// appends them to the accumulated view. Calling it with an exhausted cursor
// fails with store.ErrCursorExhausted.
func (p *Paginator[T]) LoadNextPage(ctx context.Context, cursor *store.Cursor, pageSize int) ([]T, *store.Cursor, error) {
	if cursor.Exhausted() {
		return nil, nil, store.ErrCursorExhausted
	}
	page, next, err := p.col.QueryPage(ctx, pageSize, cursor)
	if err != nil {
		return nil, nil, err
	}
	p.view.Append(page)
	p.log.Debug().
		Str("collection", p.col.Name()).
		Int("count", len(page)).
		Bool("exhausted", next.Exhausted()).
		Msg("loaded next page")
	return page, next, nil
}
