// Package surreal implements the [store.RemoteStore] contract over SurrealDB
// using the official Go SDK.
//
// The connection is configured manually rather than through the endpoint URL
// helper so the surrealcbor codec handles marshaling: SurrealDB speaks CBOR
// internally and default Go marshaling does not produce compatible datetime
// or record-id encodings. Queries are always parameterized with $vars; user
// input is never interpolated into SurrealQL text.
package surreal

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	surrealdb "github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/pkg/connection"
	"github.com/surrealdb/surrealdb.go/pkg/connection/gorillaws"
	smodels "github.com/surrealdb/surrealdb.go/pkg/models"
	"github.com/surrealdb/surrealdb.go/surrealcbor"

	"github.com/lumacafe/console/pkg/store"
)

// Config carries the connection parameters for one SurrealDB endpoint.
type Config struct {
	URL       string // ws://host:port/rpc
	Namespace string
	Database  string
	Username  string
	Password  string
}

// Store is a SurrealDB-backed remote store.
type Store struct {
	db *surrealdb.DB
}

// New connects to SurrealDB, authenticates when credentials are present, and
// selects the namespace/database pair.
func New(ctx context.Context, cfg Config) (*Store, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse surrealdb url: %w", err)
	}

	conf := connection.NewConfig(u)
	codec := surrealcbor.New()
	conf.Marshaler = codec
	conf.Unmarshaler = codec

	conn := gorillaws.New(conf)
	db, err := surrealdb.FromConnection(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("connect to surrealdb: %w", err)
	}

	if cfg.Username != "" && cfg.Password != "" {
		if _, err := db.SignIn(ctx, map[string]any{
			"user": cfg.Username,
			"pass": cfg.Password,
		}); err != nil {
			return nil, fmt.Errorf("surrealdb signin: %w", err)
		}
	}

	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		return nil, fmt.Errorf("surrealdb use %s/%s: %w", cfg.Namespace, cfg.Database, err)
	}

	return &Store{db: db}, nil
}

// Close shuts the connection down.
func (s *Store) Close(ctx context.Context) error {
	return s.db.Close(ctx)
}

func (s *Store) Get(ctx context.Context, collection, id string) (store.Record, error) {
	rid := smodels.RecordID{Table: collection, ID: id}
	row, err := surrealdb.Select[map[string]any](ctx, s.db, rid)
	if err != nil {
		if isNotFound(err) {
			return store.Record{}, store.ErrNotFound
		}
		return store.Record{}, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	if row == nil || len(*row) == 0 {
		return store.Record{}, store.ErrNotFound
	}
	return recordFromRow(collection, *row)
}

func (s *Store) QueryPage(ctx context.Context, collection string, pageSize int, after *store.Cursor) ([]store.Record, *store.Cursor, error) {
	sql := "SELECT * FROM type::table($tb)"
	params := map[string]any{
		"tb":    collection,
		"limit": pageSize,
	}
	if after != nil {
		at, id := after.Position()
		sql += " WHERE created_at < $after_at OR (created_at = $after_at AND id > $after_id)"
		params["after_at"] = smodels.CustomDateTime{Time: at}
		params["after_id"] = smodels.RecordID{Table: collection, ID: id}
	}
	sql += " ORDER BY created_at DESC, id ASC LIMIT $limit"

	rows, err := s.queryRows(ctx, sql, params)
	if err != nil {
		return nil, nil, fmt.Errorf("query page %s: %w", collection, err)
	}

	page := make([]store.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := recordFromRow(collection, row)
		if err != nil {
			return nil, nil, err
		}
		page = append(page, rec)
	}

	if len(page) < pageSize {
		return page, store.NewExhaustedCursor(), nil
	}
	last := page[len(page)-1]
	return page, store.CursorAfter(last.CreatedAt, last.ID), nil
}

// fieldName restricts QueryExact match keys to plain identifiers. Anything
// else would have to be interpolated into the statement text, which is how
// injection happens; reject it instead.
var fieldName = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

func (s *Store) QueryExact(ctx context.Context, collection string, match store.Fields) ([]store.Record, error) {
	sql := "SELECT * FROM type::table($tb)"
	params := map[string]any{"tb": collection}

	clauses := make([]string, 0, len(match))
	for k, v := range match {
		if !fieldName.MatchString(k) {
			return nil, fmt.Errorf("query exact %s: invalid field name %q", collection, k)
		}
		clauses = append(clauses, fmt.Sprintf("%s = $f_%s", k, k))
		params["f_"+k] = v
	}
	if len(clauses) > 0 {
		sql += " WHERE " + strings.Join(clauses, " AND ")
	}

	rows, err := s.queryRows(ctx, sql, params)
	if err != nil {
		return nil, fmt.Errorf("query exact %s: %w", collection, err)
	}

	out := make([]store.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := recordFromRow(collection, row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// createSQL stamps created_at with the database clock inside one
// transaction. Several console instances may write concurrently; only a
// single clock keeps the ordering key monotonic across them.
const createSQL = `BEGIN TRANSACTION; CREATE $record CONTENT $data; UPDATE $record SET created_at = time::now(); COMMIT TRANSACTION;`

func (s *Store) Create(ctx context.Context, collection string, fields store.Fields) (string, error) {
	rid, params := createParams(collection, fields)
	if _, err := surrealdb.Query[any](ctx, s.db, createSQL, params); err != nil {
		return "", &store.WriteRejectedError{Op: "create", Collection: collection, Err: err}
	}
	return fmt.Sprint(rid.ID), nil
}

// createParams builds the record id and statement parameters for a create.
// created_at is never taken from the caller; the database assigns it.
func createParams(collection string, fields store.Fields) (smodels.RecordID, map[string]any) {
	rid := smodels.RecordID{Table: collection, ID: uuid.NewString()}
	content := make(map[string]any, len(fields))
	for k, v := range fields {
		if k == "created_at" {
			continue
		}
		content[k] = v
	}
	return rid, map[string]any{"record": rid, "data": content}
}

func (s *Store) Update(ctx context.Context, collection, id string, fields store.Fields) error {
	// MERGE rather than CONTENT so created_at survives a full field update.
	rid := smodels.RecordID{Table: collection, ID: id}
	_, err := surrealdb.Query[any](ctx, s.db, "UPDATE $record MERGE $data", map[string]any{
		"record": rid,
		"data":   fields,
	})
	if err != nil {
		return &store.WriteRejectedError{Op: "update", Collection: collection, ID: id, Err: err}
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	rid := smodels.RecordID{Table: collection, ID: id}
	if _, err := surrealdb.Delete[map[string]any](ctx, s.db, rid); err != nil {
		return &store.WriteRejectedError{Op: "delete", Collection: collection, ID: id, Err: err}
	}
	return nil
}

func (s *Store) queryRows(ctx context.Context, sql string, params map[string]any) ([]map[string]any, error) {
	result, err := surrealdb.Query[[]map[string]any](ctx, s.db, sql, params)
	if err != nil {
		return nil, err
	}
	if result == nil || len(*result) == 0 {
		return nil, nil
	}
	return (*result)[0].Result, nil
}

// recordFromRow splits a raw SurrealDB row into the store record shape:
// identity attributes out, domain fields in the untyped map.
func recordFromRow(collection string, row map[string]any) (store.Record, error) {
	fields := make(store.Fields, len(row))
	for k, v := range row {
		fields[k] = v
	}

	rawID, ok := fields["id"]
	if !ok {
		return store.Record{}, &store.MalformedRecordError{Collection: collection, Err: fmt.Errorf("row has no id")}
	}
	delete(fields, "id")
	var id string
	switch v := rawID.(type) {
	case smodels.RecordID:
		id = fmt.Sprint(v.ID)
	case *smodels.RecordID:
		id = fmt.Sprint(v.ID)
	case string:
		id = v
	default:
		return store.Record{}, &store.MalformedRecordError{Collection: collection, Err: fmt.Errorf("unexpected id type %T", rawID)}
	}

	createdAt, err := timeValue(fields["created_at"])
	if err != nil {
		return store.Record{}, &store.MalformedRecordError{Collection: collection, ID: id, Err: err}
	}
	delete(fields, "created_at")

	return store.Record{ID: id, CreatedAt: createdAt, Fields: fields}, nil
}

// timeValue tolerates the datetime shapes the codec may hand back.
func timeValue(v any) (time.Time, error) {
	switch t := v.(type) {
	case smodels.CustomDateTime:
		return t.Time, nil
	case *smodels.CustomDateTime:
		return t.Time, nil
	case time.Time:
		return t, nil
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return time.Time{}, fmt.Errorf("bad created_at %q: %w", t, err)
		}
		return parsed, nil
	case nil:
		return time.Time{}, fmt.Errorf("missing created_at")
	default:
		return time.Time{}, fmt.Errorf("unexpected created_at type %T", v)
	}
}

// isNotFound matches the SDK's miss signatures, which arrive as error text
// rather than a sentinel.
func isNotFound(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "Expected a single or multiple results but got 0") ||
		strings.Contains(msg, "cannot unmarshal array into Go value")
}
