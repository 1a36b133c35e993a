// Package booking guards reservation creation against double-booking a
// (date, time) slot.
//
// The remote store offers no unique constraint and no "insert if absent", so
// the guard can only reduce double-booking, not eliminate it: each attempt
// runs Checking -> Available -> Committing -> Committed, and between the
// availability check and the commit another booking for the same slot can
// land first. That residual check-then-act race is a property of the store's
// interface and is left visible here rather than hidden behind a guarantee
// the system cannot keep. What the guard does promise: an attempt whose
// check observes an existing reservation reports a conflict and writes
// nothing, and a failed check never falls through to a commit.
package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/lumacafe/console/pkg/models"
	"github.com/lumacafe/console/pkg/optimistic"
	"github.com/lumacafe/console/pkg/store"
)

// Availability is the outcome of a slot check.
type Availability int

const (
	// Unknown means the check itself failed; the caller must not commit.
	Unknown Availability = iota
	// Available means no reservation occupied the slot at check time.
	Available
	// Conflict means the slot is already taken.
	Conflict
)

func (a Availability) String() string {
	switch a {
	case Available:
		return "available"
	case Conflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// ErrSlotConflict is wrapped in *ConflictError; match with errors.Is.
var ErrSlotConflict = errors.New("slot already booked")

// ConflictError reports a slot that was taken at check time. No write
// occurred.
type ConflictError struct {
	Date string
	Time string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("slot %s %s is already booked", e.Date, e.Time)
}

func (e *ConflictError) Is(target error) bool { return target == ErrSlotConflict }

// UnknownAvailabilityError reports that availability could not be
// determined. The guard refused to commit.
type UnknownAvailabilityError struct {
	Date string
	Time string
	Err  error
}

func (e *UnknownAvailabilityError) Error() string {
	return fmt.Sprintf("availability of slot %s %s unknown: %v", e.Date, e.Time, e.Err)
}

func (e *UnknownAvailabilityError) Unwrap() error { return e.Err }

// Guard performs the check-then-reserve sequence for reservations.
type Guard struct {
	reservations *store.Collection[models.Reservation]
	coord        *optimistic.Coordinator[models.Reservation]
	log          zerolog.Logger
}

// NewGuard returns a guard checking the given reservations collection and
// committing through the given coordinator.
func NewGuard(reservations *store.Collection[models.Reservation], coord *optimistic.Coordinator[models.Reservation], log zerolog.Logger) *Guard {
	return &Guard{reservations: reservations, coord: coord, log: log}
}

// CheckAvailability queries existing reservations for an exact (date, time)
// match. A store error yields Unknown, never Available: assuming a free slot
// on a failed check is how double-bookings happen silently.
func (g *Guard) CheckAvailability(ctx context.Context, date, timeSlot string) (Availability, error) {
	existing, err := g.reservations.QueryExact(ctx, store.Fields{
		"date": date,
		"time": timeSlot,
	})
	if err != nil {
		g.log.Warn().Str("date", date).Str("time", timeSlot).Err(err).Msg("availability check failed")
		return Unknown, err
	}
	if len(existing) > 0 {
		return Conflict, nil
	}
	return Available, nil
}

// Reserve books the reservation's slot: check availability, then commit the
// create through the coordinator. Conflicts surface as *ConflictError,
// failed checks as *UnknownAvailabilityError; in both cases nothing was
// written. A commit that loses the residual race is not detected here.
func (g *Guard) Reserve(ctx context.Context, r models.Reservation) (models.Reservation, error) {
	var zero models.Reservation

	avail, err := g.CheckAvailability(ctx, r.Date, r.Time)
	switch avail {
	case Unknown:
		return zero, &UnknownAvailabilityError{Date: r.Date, Time: r.Time, Err: err}
	case Conflict:
		g.log.Info().Str("date", r.Date).Str("time", r.Time).Msg("slot conflict")
		return zero, &ConflictError{Date: r.Date, Time: r.Time}
	}

	confirmed, err := g.coord.Create(ctx, r, func(ctx context.Context, e models.Reservation) (string, error) {
		return g.reservations.Create(ctx, e)
	})
	if err != nil {
		return zero, err
	}
	g.log.Info().Str("date", r.Date).Str("time", r.Time).Str("id", confirmed.EntityID()).Msg("reservation committed")
	return confirmed, nil
}
