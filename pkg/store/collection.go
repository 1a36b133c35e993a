package store

import (
	"context"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/lumacafe/console/pkg/models"
)

// cbor codec for the normalization round-trip. RFC 3339 with nanoseconds and
// an explicit time tag so timestamps survive the trip into Fields and back
// without losing precision.
var (
	fieldsEnc cbor.EncMode
	fieldsDec cbor.DecMode
)

func init() {
	var err error
	fieldsEnc, err = cbor.EncOptions{
		Time:    cbor.TimeRFC3339Nano,
		TimeTag: cbor.EncTagRequired,
	}.EncMode()
	if err != nil {
		panic(err)
	}
	fieldsDec, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(err)
	}
}

// Collection binds a collection name to its schema type and performs the
// normalization step at the store boundary: raw records become T on the way
// in, T becomes Fields on the way out. A record that does not fit the schema
// fails with *MalformedRecordError instead of leaking untyped values into
// the synchronization core.
type Collection[T models.Keyed[T]] struct {
	rs   RemoteStore
	name string
}

// NewCollection creates the typed handle for one collection.
func NewCollection[T models.Keyed[T]](rs RemoteStore, name string) *Collection[T] {
	return &Collection[T]{rs: rs, name: name}
}

// Name returns the collection name in the remote store.
func (c *Collection[T]) Name() string { return c.name }

// Get fetches and normalizes a single entity. Missing ids are ErrNotFound.
func (c *Collection[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	rec, err := c.rs.Get(ctx, c.name, id)
	if err != nil {
		return zero, err
	}
	return c.decode(rec)
}

// QueryPage loads one page in (CreatedAt desc, ID asc) order, starting
// strictly after the cursor position when after is non-nil.
func (c *Collection[T]) QueryPage(ctx context.Context, pageSize int, after *Cursor) ([]T, *Cursor, error) {
	recs, next, err := c.rs.QueryPage(ctx, c.name, pageSize, after)
	if err != nil {
		return nil, nil, err
	}
	out := make([]T, 0, len(recs))
	for _, rec := range recs {
		e, err := c.decode(rec)
		if err != nil {
			return nil, nil, err
		}
		out = append(out, e)
	}
	return out, next, nil
}

// QueryExact returns every entity whose fields match all entries of match.
func (c *Collection[T]) QueryExact(ctx context.Context, match Fields) ([]T, error) {
	recs, err := c.rs.QueryExact(ctx, c.name, match)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(recs))
	for _, rec := range recs {
		e, err := c.decode(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// Create writes a new document and returns the store-assigned id. The
// entity's local id and creation timestamp are not sent; the store assigns
// both.
func (c *Collection[T]) Create(ctx context.Context, e T) (string, error) {
	fields, err := c.encode(e)
	if err != nil {
		return "", err
	}
	return c.rs.Create(ctx, c.name, fields)
}

// Update replaces the document's fields with the entity's current values.
// Full replacement, not a partial patch, matching the store contract.
func (c *Collection[T]) Update(ctx context.Context, e T) error {
	fields, err := c.encode(e)
	if err != nil {
		return err
	}
	return c.rs.Update(ctx, c.name, e.EntityID(), fields)
}

// Delete removes the document with the given id.
func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	return c.rs.Delete(ctx, c.name, id)
}

// encode converts an entity to the untyped field set sent to the store.
// Identity attributes are stripped: the store owns id and created_at.
func (c *Collection[T]) encode(e T) (Fields, error) {
	raw, err := fieldsEnc.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode %s entity: %w", c.name, err)
	}
	var fields Fields
	if err := fieldsDec.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("encode %s entity: %w", c.name, err)
	}
	delete(fields, "id")
	delete(fields, "created_at")
	return fields, nil
}

// decode normalizes a raw record into the schema type.
func (c *Collection[T]) decode(rec Record) (T, error) {
	var zero T
	if rec.ID == "" {
		return zero, &MalformedRecordError{Collection: c.name, ID: rec.ID, Err: fmt.Errorf("missing id")}
	}
	merged := make(map[string]any, len(rec.Fields)+2)
	for k, v := range rec.Fields {
		merged[k] = v
	}
	merged["id"] = rec.ID
	merged["created_at"] = rec.CreatedAt
	raw, err := fieldsEnc.Marshal(merged)
	if err != nil {
		return zero, &MalformedRecordError{Collection: c.name, ID: rec.ID, Err: err}
	}
	var e T
	if err := fieldsDec.Unmarshal(raw, &e); err != nil {
		return zero, &MalformedRecordError{Collection: c.name, ID: rec.ID, Err: err}
	}
	return e, nil
}
