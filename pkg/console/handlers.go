package console

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/lumacafe/console/pkg/booking"
	"github.com/lumacafe/console/pkg/featured"
	"github.com/lumacafe/console/pkg/models"
	"github.com/lumacafe/console/pkg/optimistic"
	"github.com/lumacafe/console/pkg/store"
)

// Router builds the admin API. Each collection gets the same routes; the
// flagged collections additionally get the featured toggle, and reservations
// go through the availability guard instead of plain create.
func (a *App) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(requestLogger(a.log))

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", a.handleHealth).Methods(http.MethodGet)

	registerScreen(api, "/products", a.products, a.log)
	registerScreen(api, "/offers", a.offers, a.log)
	registerScreen(api, "/reviews", a.reviews, a.log)
	registerScreen(api, "/messages", a.messages, a.log)

	registerFeatured(api, "/products", a.products, featured.Quota{
		Collection: models.CollectionProducts,
		Limit:      a.cfg.FeaturedLimit(models.CollectionProducts),
	}, a.log)
	registerFeatured(api, "/offers", a.offers, featured.Quota{
		Collection: models.CollectionOffers,
		Limit:      a.cfg.FeaturedLimit(models.CollectionOffers),
	}, a.log)
	registerFeatured(api, "/reviews", a.reviews, featured.Quota{
		Collection: models.CollectionReviews,
		Limit:      a.cfg.FeaturedLimit(models.CollectionReviews),
	}, a.log)

	// Reservations: list and delete like any screen, but creation must pass
	// the slot guard, and the booking form probes availability first.
	api.HandleFunc("/reservations/availability", a.handleAvailability).Methods(http.MethodGet)
	registerPages(api, "/reservations", a.reservations, a.log)
	api.HandleFunc("/reservations", a.handleReserve).Methods(http.MethodPost)
	registerDelete(api, "/reservations", a.reservations, a.log)

	return r
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *App) handleAvailability(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	timeSlot := r.URL.Query().Get("time")
	if date == "" || timeSlot == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("bad_request", "date and time are required"))
		return
	}
	avail, err := a.guard.CheckAvailability(r.Context(), date, timeSlot)
	if avail == booking.Unknown {
		writeJSON(w, http.StatusServiceUnavailable, errorBody("availability_unknown", err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"availability": avail.String()})
}

func (a *App) handleReserve(w http.ResponseWriter, r *http.Request) {
	var res models.Reservation
	if err := json.NewDecoder(r.Body).Decode(&res); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("bad_request", err.Error()))
		return
	}
	if res.Date == "" || res.Time == "" || res.Name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("bad_request", "name, date and time are required"))
		return
	}
	confirmed, err := a.guard.Reserve(r.Context(), res)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, confirmed)
}

// pageResponse is the envelope for list endpoints: the page items plus the
// opaque cursor token the client hands back to load more.
type pageResponse[T any] struct {
	Items     []T    `json:"items"`
	Cursor    string `json:"cursor"`
	Exhausted bool   `json:"exhausted"`
}

func newPageResponse[T any](items []T, cursor *store.Cursor) pageResponse[T] {
	token, _ := cursor.MarshalText()
	if items == nil {
		items = []T{}
	}
	return pageResponse[T]{Items: items, Cursor: string(token), Exhausted: cursor.Exhausted()}
}

// registerPages wires the list endpoints: first page and load-more.
func registerPages[T models.Keyed[T]](r *mux.Router, prefix string, s *screen[T], log zerolog.Logger) {
	r.HandleFunc(prefix, func(w http.ResponseWriter, req *http.Request) {
		page, cursor, err := s.pager.LoadFirstPage(req.Context(), s.pageSize)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, newPageResponse(page, cursor))
	}).Methods(http.MethodGet)

	r.HandleFunc(prefix+"/page", func(w http.ResponseWriter, req *http.Request) {
		token := req.URL.Query().Get("cursor")
		if token == "" {
			writeJSON(w, http.StatusBadRequest, errorBody("bad_request", "cursor is required"))
			return
		}
		cursor, err := store.ParseCursor(token)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("bad_request", err.Error()))
			return
		}
		page, next, err := s.pager.LoadNextPage(req.Context(), cursor, s.pageSize)
		if errors.Is(err, store.ErrCursorExhausted) {
			// No more pages. Not a failure: answer an empty page so the
			// load-more button can simply disable itself.
			writeJSON(w, http.StatusOK, newPageResponse[T](nil, store.NewExhaustedCursor()))
			return
		}
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, newPageResponse(page, next))
	}).Methods(http.MethodGet)
}

// registerScreen wires the standard routes of one admin screen: list,
// load-more, create, update, delete. All mutations run through the
// coordinator with the collection write as commit.
func registerScreen[T models.Keyed[T]](r *mux.Router, prefix string, s *screen[T], log zerolog.Logger) {
	registerPages(r, prefix, s, log)

	r.HandleFunc(prefix, func(w http.ResponseWriter, req *http.Request) {
		var e T
		if err := json.NewDecoder(req.Body).Decode(&e); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("bad_request", err.Error()))
			return
		}
		confirmed, err := s.coord.Create(req.Context(), e, func(ctx context.Context, e T) (string, error) {
			return s.col.Create(ctx, e)
		})
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, confirmed)
	}).Methods(http.MethodPost)

	r.HandleFunc(prefix+"/{id}", func(w http.ResponseWriter, req *http.Request) {
		id := mux.Vars(req)["id"]
		var body T
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("bad_request", err.Error()))
			return
		}
		updated, err := s.coord.Update(req.Context(), id,
			func(T) T { return body }, // full replacement; identity is pinned by the coordinator
			func(ctx context.Context, e T) error {
				return s.col.Update(ctx, e)
			})
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}).Methods(http.MethodPut)

	registerDelete(r, prefix, s, log)
}

func registerDelete[T models.Keyed[T]](r *mux.Router, prefix string, s *screen[T], log zerolog.Logger) {
	r.HandleFunc(prefix+"/{id}", func(w http.ResponseWriter, req *http.Request) {
		id := mux.Vars(req)["id"]
		err := s.coord.Delete(req.Context(), id, func(ctx context.Context, id string) error {
			return s.col.Delete(ctx, id)
		})
		if err != nil {
			writeError(w, log, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}).Methods(http.MethodDelete)
}

// registerFeatured wires the featured toggle for collections that carry the
// flag. Toggles go through the gate, which serializes the quota check and the
// mutation; handlers run concurrently and an unserialized check-then-apply
// could admit more than the cap.
func registerFeatured[T featured.Entity[T]](r *mux.Router, prefix string, s *screen[T], quota featured.Quota, log zerolog.Logger) {
	gate := featured.NewGate(quota, s.coord)
	r.HandleFunc(prefix+"/{id}/featured", func(w http.ResponseWriter, req *http.Request) {
		id := mux.Vars(req)["id"]
		var body struct {
			Featured bool `json:"featured"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("bad_request", err.Error()))
			return
		}
		updated, err := gate.Set(req.Context(), id, body.Featured,
			func(ctx context.Context, e T) error {
				return s.col.Update(ctx, e)
			})
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}).Methods(http.MethodPost)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func errorBody(code, msg string) map[string]any {
	return map[string]any{"code": code, "error": msg}
}

// writeError maps core errors onto API responses. Every failure the core
// surfaces is per-operation and recoverable by retrying the user action, so
// none of these are fatal and all carry a machine-readable code.
func writeError(w http.ResponseWriter, log zerolog.Logger, err error) {
	var rejected *optimistic.UpdateRejectedError
	switch {
	case errors.Is(err, featured.ErrLimitExceeded):
		writeJSON(w, http.StatusConflict, errorBody("featured_limit_exceeded", err.Error()))
	case errors.Is(err, booking.ErrSlotConflict):
		writeJSON(w, http.StatusConflict, errorBody("slot_conflict", err.Error()))
	case errors.As(err, new(*booking.UnknownAvailabilityError)):
		writeJSON(w, http.StatusServiceUnavailable, errorBody("availability_unknown", err.Error()))
	case errors.As(err, &rejected):
		body := errorBody("update_rejected", err.Error())
		body["rolled_back"] = rejected.RolledBack
		writeJSON(w, http.StatusBadGateway, body)
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not_found", err.Error()))
	default:
		log.Error().Err(err).Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, errorBody("internal", err.Error()))
	}
}
