// Package models defines the per-collection schemas for the cafe admin
// console: products, offers, reviews, contact messages, and reservations.
//
// Every entity embeds [Meta], which carries the two attributes the
// synchronization core depends on: the store-assigned id (absent before the
// first successful create) and the immutable creation timestamp used as the
// ordering key. The [Keyed] constraint exposes both to generic code without
// tying the core to any concrete schema.
package models

import "time"

// Collection names as they exist in the remote document store.
const (
	CollectionProducts     = "products"
	CollectionOffers       = "offers"
	CollectionReviews      = "reviews"
	CollectionMessages     = "messages"
	CollectionReservations = "reservations"
)

// Keyed is the constraint the synchronization core requires of every entity
// type. EntityID returns the opaque record id (empty before the first create),
// CreatedTime the insertion-order key. The With* methods return a copy with
// the identity attribute replaced; they exist so the mutation coordinator can
// substitute a store-assigned id after a successful create and keep CreatedAt
// immutable across updates without reflection.
type Keyed[T any] interface {
	EntityID() string
	CreatedTime() time.Time
	WithEntityID(id string) T
	WithCreated(t time.Time) T
}

// Flagged is implemented by entities that carry the promotional featured flag.
type Flagged interface {
	IsFeatured() bool
}

// Meta holds the attributes common to every document in the store.
type Meta struct {
	// ID is assigned by the remote store on create. Before the first
	// successful create it holds a temporary local id (see pkg/optimistic).
	ID string `json:"id,omitempty"`
	// CreatedAt is the insertion-order key. It never changes after creation;
	// collections are ordered by (CreatedAt desc, ID asc).
	CreatedAt time.Time `json:"created_at"`
}

func (m Meta) EntityID() string       { return m.ID }
func (m Meta) CreatedTime() time.Time { return m.CreatedAt }

// Product is a menu item shown on the site and managed in the admin console.
type Product struct {
	Meta
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	PriceCents  int     `json:"price_cents"`
	Category    string  `json:"category,omitempty"`
	ImageURL    string  `json:"image_url,omitempty"`
	Featured    bool    `json:"featured"`
	Rating      float64 `json:"rating,omitempty"`
}

func (p Product) IsFeatured() bool { return p.Featured }

func (p Product) WithFeatured(v bool) Product { p.Featured = v; return p }

func (p Product) WithEntityID(id string) Product  { p.ID = id; return p }
func (p Product) WithCreated(t time.Time) Product { p.CreatedAt = t; return p }

// Offer is a time-bounded promotion.
type Offer struct {
	Meta
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Discount    int    `json:"discount_percent"`
	ValidUntil  string `json:"valid_until,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	Featured    bool   `json:"featured"`
}

func (o Offer) IsFeatured() bool { return o.Featured }

func (o Offer) WithFeatured(v bool) Offer { o.Featured = v; return o }

func (o Offer) WithEntityID(id string) Offer { o.ID = id; return o }
func (o Offer) WithCreated(t time.Time) Offer { o.CreatedAt = t; return o }

// Review is a customer review; featured reviews appear on the front page.
type Review struct {
	Meta
	Author   string `json:"author"`
	Text     string `json:"text"`
	Stars    int    `json:"stars"`
	Featured bool   `json:"featured"`
}

func (r Review) IsFeatured() bool { return r.Featured }

func (r Review) WithFeatured(v bool) Review { r.Featured = v; return r }

func (r Review) WithEntityID(id string) Review  { r.ID = id; return r }
func (r Review) WithCreated(t time.Time) Review { r.CreatedAt = t; return r }

// Message is a contact-form submission read in the admin inbox.
type Message struct {
	Meta
	Name  string `json:"name"`
	Email string `json:"email"`
	Body  string `json:"body"`
	Read  bool   `json:"read"`
}

func (m Message) WithEntityID(id string) Message  { m.ID = id; return m }
func (m Message) WithCreated(t time.Time) Message { m.CreatedAt = t; return m }

// Reservation books a (date, time) slot. Date is "2006-01-02", Time "15:04";
// together they form the slot key checked by pkg/booking before commit.
type Reservation struct {
	Meta
	Name   string `json:"name"`
	Phone  string `json:"phone,omitempty"`
	Email  string `json:"email,omitempty"`
	Guests int    `json:"guests"`
	Date   string `json:"date"`
	Time   string `json:"time"`
	Notes  string `json:"notes,omitempty"`
}

func (r Reservation) WithEntityID(id string) Reservation  { r.ID = id; return r }
func (r Reservation) WithCreated(t time.Time) Reservation { r.CreatedAt = t; return r }
