package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/MrWong99/fabula/pkg/story"
)

// Schema is the SQL DDL for the stories table. Execute it via
// [PostgresSource.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS stories (
    ref        TEXT PRIMARY KEY,
    document   JSONB NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// DB is the database interface used by [PostgresSource]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresSource serves story documents stored as JSONB rows in a stories
// table. The ref is the primary key; the manifest is the full set of refs in
// insertion order.
type PostgresSource struct {
	db DB
}

// Compile-time interface check.
var _ Source = (*PostgresSource)(nil)

// NewPostgresSource creates a story source backed by the given database
// connection or pool. The caller is responsible for calling
// [PostgresSource.Migrate] to ensure the schema exists before issuing queries.
func NewPostgresSource(db DB) *PostgresSource {
	return &PostgresSource{db: db}
}

// Migrate executes the [Schema] DDL against the database, creating the
// stories table if it does not already exist.
func (s *PostgresSource) Migrate(ctx context.Context) error {
	_, err := s.db.Exec(ctx, Schema)
	if err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Fetch returns the raw document for ref. A missing row is reported as a
// [*story.TransportError] wrapping [pgx.ErrNoRows], matching the other
// sources' "not fetchable" semantics.
func (s *PostgresSource) Fetch(ctx context.Context, ref string) ([]byte, error) {
	var raw []byte
	err := s.db.QueryRow(ctx, `SELECT document FROM stories WHERE ref = $1`, ref).Scan(&raw)
	if err != nil {
		return nil, &story.TransportError{Ref: ref, Err: err}
	}
	return raw, nil
}

// Manifest lists all stored refs in insertion order.
func (s *PostgresSource) Manifest(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT ref FROM stories ORDER BY created_at, ref`)
	if err != nil {
		return nil, fmt.Errorf("store: list refs: %w", err)
	}
	defer rows.Close()

	var refs []string
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, fmt.Errorf("store: scan ref: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list refs: %w", err)
	}
	return refs, nil
}

// Put inserts or replaces the story document stored under ref. The document
// is parsed and validated first so the table only ever holds playable
// stories.
func (s *PostgresSource) Put(ctx context.Context, ref string, raw []byte) error {
	st, err := story.Parse(raw)
	if err != nil {
		var perr *story.ParseError
		if errors.As(err, &perr) {
			perr.Ref = ref
		}
		return err
	}
	if err := st.Validate(); err != nil {
		var verr *story.ValidationError
		if errors.As(err, &verr) {
			verr.Ref = ref
		}
		return err
	}

	const query = `
		INSERT INTO stories (ref, document) VALUES ($1, $2)
		ON CONFLICT (ref) DO UPDATE SET document = EXCLUDED.document, updated_at = now()`
	if _, err := s.db.Exec(ctx, query, ref, raw); err != nil {
		return fmt.Errorf("store: put %q: %w", ref, err)
	}
	return nil
}

// Delete removes the story stored under ref. Deleting an absent ref is not
// an error.
func (s *PostgresSource) Delete(ctx context.Context, ref string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM stories WHERE ref = $1`, ref); err != nil {
		return fmt.Errorf("store: delete %q: %w", ref, err)
	}
	return nil
}
