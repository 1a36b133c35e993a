// Package console wires the synchronization core into the cafe admin
// console: one screen per collection, each a thin consumer of the paginator,
// the mutation coordinator, the featured quota and, for reservations, the
// slot availability guard. The screens themselves contain no synchronization
// logic; they supply transforms and commits and render local state.
package console

import (
	"github.com/rs/zerolog"

	"github.com/lumacafe/console/pkg/booking"
	"github.com/lumacafe/console/pkg/models"
	"github.com/lumacafe/console/pkg/optimistic"
	"github.com/lumacafe/console/pkg/paginate"
	"github.com/lumacafe/console/pkg/store"
)

// screen bundles the per-collection synchronization state one admin screen
// works with: the typed collection handle, the paginator feeding the shared
// view, and the coordinator mutating it.
type screen[T models.Keyed[T]] struct {
	col      *store.Collection[T]
	pager    *paginate.Paginator[T]
	coord    *optimistic.Coordinator[T]
	pageSize int
}

func newScreen[T models.Keyed[T]](rs store.RemoteStore, cfg *Config, name string, log zerolog.Logger) *screen[T] {
	col := store.NewCollection[T](rs, name)
	view := paginate.NewView[T]()
	slog := log.With().Str("collection", name).Logger()
	return &screen[T]{
		col:      col,
		pager:    paginate.New(col, view, slog),
		coord:    optimistic.New(view, cfg.CommitTimeout(), slog),
		pageSize: cfg.Sync.PageSize,
	}
}

// App is the admin console application. The remote store is injected at
// construction and lives from startup to shutdown; nothing in the app
// reaches for a global handle.
type App struct {
	cfg *Config
	log zerolog.Logger

	products     *screen[models.Product]
	offers       *screen[models.Offer]
	reviews      *screen[models.Review]
	messages     *screen[models.Message]
	reservations *screen[models.Reservation]

	guard *booking.Guard
}

// New builds the console over the given remote store.
func New(cfg *Config, rs store.RemoteStore, log zerolog.Logger) *App {
	a := &App{
		cfg:          cfg,
		log:          log,
		products:     newScreen[models.Product](rs, cfg, models.CollectionProducts, log),
		offers:       newScreen[models.Offer](rs, cfg, models.CollectionOffers, log),
		reviews:      newScreen[models.Review](rs, cfg, models.CollectionReviews, log),
		messages:     newScreen[models.Message](rs, cfg, models.CollectionMessages, log),
		reservations: newScreen[models.Reservation](rs, cfg, models.CollectionReservations, log),
	}
	a.guard = booking.NewGuard(a.reservations.col, a.reservations.coord, log.With().Str("component", "booking").Logger())
	return a
}

// Guard exposes the slot availability guard (used by tests and handlers).
func (a *App) Guard() *booking.Guard { return a.guard }
