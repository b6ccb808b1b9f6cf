// Package sqlstore implements persistence.Store on Postgres. The schema lives
// in migrations/000001_create_store.up.sql.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/tgscreens/core/persistence"
)

const (
	getQuery  = `SELECT value FROM kv_store WHERE key = $1`
	setQuery  = `INSERT INTO kv_store (key, value) VALUES ($1, $2) ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`
	hgetQuery = `SELECT value FROM hash_store WHERE key = $1 AND field = $2`
	hsetQuery = `INSERT INTO hash_store (key, field, value) VALUES ($1, $2, $3) ON CONFLICT (key, field) DO UPDATE SET value = EXCLUDED.value`
	hdelQuery = `DELETE FROM hash_store WHERE key = ? AND field IN (?)`
	hkeysSQL  = `SELECT field FROM hash_store WHERE key = $1 ORDER BY field`
)

// Store keeps blobs in kv_store and hash records in hash_store.
type Store struct {
	db *sqlx.DB
}

var _ persistence.Store = (*Store)(nil)

// New wraps an open connection pool; Close closes it.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var v []byte
	if err := s.db.GetContext(ctx, &v, getQuery, key); err != nil {
		return nil, mapErr(err)
	}
	return v, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if _, err := s.db.ExecContext(ctx, setQuery, key, value); err != nil {
		return fmt.Errorf("sqlstore: set %s: %w", key, err)
	}
	return nil
}

func (s *Store) HGet(ctx context.Context, key, field string) ([]byte, error) {
	var v []byte
	if err := s.db.GetContext(ctx, &v, hgetQuery, key, field); err != nil {
		return nil, mapErr(err)
	}
	return v, nil
}

func (s *Store) HSet(ctx context.Context, key, field string, value []byte) error {
	if _, err := s.db.ExecContext(ctx, hsetQuery, key, field, value); err != nil {
		return fmt.Errorf("sqlstore: hset %s: %w", key, err)
	}
	return nil
}

func (s *Store) HDel(ctx context.Context, key string, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	query, args, err := sqlx.In(hdelQuery, key, fields)
	if err != nil {
		return fmt.Errorf("sqlstore: hdel %s: %w", key, err)
	}
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("sqlstore: hdel %s: %w", key, err)
	}
	return nil
}

func (s *Store) HKeys(ctx context.Context, key string) ([]string, error) {
	var fields []string
	if err := s.db.SelectContext(ctx, &fields, hkeysSQL, key); err != nil {
		return nil, fmt.Errorf("sqlstore: hkeys %s: %w", key, err)
	}
	return fields, nil
}

// HUpdate applies deletes, then sets, in one transaction. Fields are
// written in sorted order so concurrent flushes lock rows consistently.
func (s *Store) HUpdate(ctx context.Context, key string, set map[string][]byte, del []string) (err error) {
	if len(set) == 0 && len(del) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlstore: hupdate %s: %w", key, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if len(del) > 0 {
		query, args, inErr := sqlx.In(hdelQuery, key, del)
		if inErr != nil {
			return fmt.Errorf("sqlstore: hupdate %s: %w", key, inErr)
		}
		if _, err = tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
			return fmt.Errorf("sqlstore: hupdate %s: %w", key, err)
		}
	}
	for _, field := range slices.Sorted(maps.Keys(set)) {
		if _, err = tx.ExecContext(ctx, hsetQuery, key, field, set[field]); err != nil {
			return fmt.Errorf("sqlstore: hupdate %s: %w", key, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("sqlstore: hupdate %s: %w", key, err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func mapErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.ErrNotFound
	}
	return err
}
