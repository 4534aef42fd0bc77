// Package store is a generic record store over Postgres. Each collection is
// a table of (id, data JSONB, created_at, updated_at); the JSONB column is
// what lets CRM imports carry fields nobody declared in advance.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"solardesk/api/internal/record"
	"solardesk/api/internal/util"
)

var (
	// ErrCollectionNotFound maps Postgres undefined_table; callers treat it
	// as schema drift and may retry under an alternate collection name.
	ErrCollectionNotFound = errors.New("collection not found")
	// ErrNotFound is returned for mutations that matched no row.
	ErrNotFound = errors.New("record not found")
)

var collectionNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxIdleConns(10)
	db.SetMaxOpenConns(20)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}

// Publisher receives change events after successful writes. A nil publisher
// disables the change feed.
type Publisher interface {
	RecordChanged(ctx context.Context, collection, recordID, action string)
}

type PostgresStore struct {
	db  *sql.DB
	pub Publisher
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// WithPublisher returns a store that emits change events after writes.
func (s *PostgresStore) WithPublisher(pub Publisher) *PostgresStore {
	return &PostgresStore{db: s.db, pub: pub}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Select reads records from a collection according to the filter.
func (s *PostgresStore) Select(ctx context.Context, collection string, f Filter) ([]record.Record, error) {
	table, err := tableName(collection)
	if err != nil {
		return nil, err
	}

	var args []any
	query := fmt.Sprintf(`SELECT id, data, created_at, updated_at FROM %s`, table)
	query += whereSQL(f, &args)
	query += orderSQL(f, &args)
	query += rangeSQL(f, &args)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapTableError(collection, err)
	}
	defer rows.Close()

	items := make([]record.Record, 0)
	for rows.Next() {
		var (
			id        string
			data      []byte
			createdAt time.Time
			updatedAt time.Time
		)
		if err := rows.Scan(&id, &data, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", collection, err)
		}
		rec, err := record.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("decode %s row %s: %w", collection, id, err)
		}
		rec["id"] = record.String(id)
		rec["created_at"] = record.String(createdAt.UTC().Format(time.RFC3339))
		rec["updated_at"] = record.String(updatedAt.UTC().Format(time.RFC3339))
		items = append(items, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", collection, err)
	}
	return items, nil
}

// Count returns the number of records matching the filter, ignoring its
// range settings.
func (s *PostgresStore) Count(ctx context.Context, collection string, f Filter) (int, error) {
	table, err := tableName(collection)
	if err != nil {
		return 0, err
	}

	var args []any
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, table) + whereSQL(f, &args)

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, mapTableError(collection, err)
	}
	return count, nil
}

// Insert writes a new record and returns its id, generating one when the
// record does not carry its own.
func (s *PostgresStore) Insert(ctx context.Context, collection string, rec record.Record) (string, error) {
	table, err := tableName(collection)
	if err != nil {
		return "", err
	}

	id := rec.ID()
	if id == "" {
		id = util.NewID("")
	}
	data, err := json.Marshal(stripMetadata(rec))
	if err != nil {
		return "", fmt.Errorf("encode %s record: %w", collection, err)
	}

	query := fmt.Sprintf(`INSERT INTO %s (id, data) VALUES ($1, $2)`, table)
	if _, err := s.db.ExecContext(ctx, query, id, data); err != nil {
		return "", mapTableError(collection, err)
	}
	s.publish(ctx, collection, id, "insert")
	return id, nil
}

// Update merges the patch into the record's JSONB document.
func (s *PostgresStore) Update(ctx context.Context, collection, id string, patch record.Record) error {
	table, err := tableName(collection)
	if err != nil {
		return err
	}

	data, err := json.Marshal(stripMetadata(patch))
	if err != nil {
		return fmt.Errorf("encode %s patch: %w", collection, err)
	}

	query := fmt.Sprintf(`UPDATE %s SET data = data || $2::jsonb, updated_at = NOW() WHERE id = $1`, table)
	res, err := s.db.ExecContext(ctx, query, id, data)
	if err != nil {
		return mapTableError(collection, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s %s: %w", collection, id, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	s.publish(ctx, collection, id, "update")
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	table, err := tableName(collection)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, table), id)
	if err != nil {
		return mapTableError(collection, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", collection, id, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	s.publish(ctx, collection, id, "delete")
	return nil
}

func (s *PostgresStore) publish(ctx context.Context, collection, id, action string) {
	if s.pub != nil {
		s.pub.RecordChanged(ctx, collection, id, action)
	}
}

// stripMetadata drops the columns the table owns so they never end up
// duplicated inside the JSONB document.
func stripMetadata(rec record.Record) record.Record {
	out := make(record.Record, len(rec))
	for key, value := range rec {
		switch strings.ToLower(key) {
		case "id", "created_at", "updated_at":
			continue
		}
		out[key] = value
	}
	return out
}

func tableName(collection string) (string, error) {
	if !collectionNamePattern.MatchString(collection) {
		return "", fmt.Errorf("invalid collection name %q", collection)
	}
	return `"` + collection + `"`, nil
}

func mapTableError(collection string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "42P01" {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}
	return fmt.Errorf("query %s: %w", collection, err)
}

// metaColumns are addressed directly instead of through the JSONB document.
var metaColumns = map[string]string{
	"id":         "id",
	"created_at": "created_at",
	"updated_at": "updated_at",
}

func clauseSQL(c Clause, args *[]any) string {
	var lhs string
	if col, ok := metaColumns[strings.ToLower(c.Field)]; ok {
		if col == "id" {
			lhs = "id"
		} else {
			lhs = col + "::text"
		}
	} else {
		*args = append(*args, c.Field)
		lhs = fmt.Sprintf("data->>$%d", len(*args))
	}

	*args = append(*args, c.Value)
	switch c.Op {
	case OpILike:
		return fmt.Sprintf("%s ILIKE $%d", lhs, len(*args))
	default:
		return fmt.Sprintf("%s = $%d", lhs, len(*args))
	}
}

func whereSQL(f Filter, args *[]any) string {
	var parts []string
	for _, c := range f.Where {
		parts = append(parts, clauseSQL(c, args))
	}
	if len(f.AnyOf) > 0 {
		var ors []string
		for _, c := range f.AnyOf {
			ors = append(ors, clauseSQL(c, args))
		}
		parts = append(parts, "("+strings.Join(ors, " OR ")+")")
	}
	if len(parts) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(parts, " AND ")
}

func orderSQL(f Filter, args *[]any) string {
	if f.OrderBy == "" {
		return " ORDER BY created_at DESC"
	}
	direction := " ASC"
	if f.Desc {
		direction = " DESC"
	}
	if col, ok := metaColumns[strings.ToLower(f.OrderBy)]; ok {
		return " ORDER BY " + col + direction
	}
	*args = append(*args, f.OrderBy)
	return fmt.Sprintf(" ORDER BY data->>$%d%s", len(*args), direction)
}

func rangeSQL(f Filter, args *[]any) string {
	var clause string
	if f.Limit > 0 {
		*args = append(*args, f.Limit)
		clause += fmt.Sprintf(" LIMIT $%d", len(*args))
	}
	if f.Offset > 0 {
		*args = append(*args, f.Offset)
		clause += fmt.Sprintf(" OFFSET $%d", len(*args))
	}
	return clause
}
