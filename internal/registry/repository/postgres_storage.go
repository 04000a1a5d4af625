package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStorage implements Storage on the storage_items table
// (see migrations/001_init.up.sql). Each call is a single statement, which
// gives the per-key atomicity Storage promises.
type PostgresStorage struct {
	db *pgxpool.Pool
}

// NewPostgresStorage creates a new PostgresStorage.
func NewPostgresStorage(db *pgxpool.Pool) *PostgresStorage {
	return &PostgresStorage{db: db}
}

// Get implements Storage.
func (s *PostgresStorage) Get(ctx context.Context, collection, key string) (json.RawMessage, error) {
	var raw []byte
	err := s.db.QueryRow(ctx,
		`SELECT value FROM storage_items WHERE collection = $1 AND key = $2`,
		collection, key,
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get %s/%s: %w", collection, key, err)
	}
	return json.RawMessage(raw), nil
}

// Set implements Storage.
func (s *PostgresStorage) Set(ctx context.Context, collection, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s/%s: %w", collection, key, err)
	}
	_, err = s.db.Exec(ctx,
		`INSERT INTO storage_items (collection, key, value, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (collection, key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		collection, key, raw, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("set %s/%s: %w", collection, key, err)
	}
	return nil
}

// Delete implements Storage.
func (s *PostgresStorage) Delete(ctx context.Context, collection, key string) error {
	if _, err := s.db.Exec(ctx,
		`DELETE FROM storage_items WHERE collection = $1 AND key = $2`, collection, key,
	); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, key, err)
	}
	return nil
}

// GetAll implements Storage.
func (s *PostgresStorage) GetAll(ctx context.Context, collection string) (map[string]json.RawMessage, error) {
	rows, err := s.db.Query(ctx,
		`SELECT key, value FROM storage_items WHERE collection = $1`, collection,
	)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	defer rows.Close()

	out := make(map[string]json.RawMessage)
	for rows.Next() {
		var key string
		var raw []byte
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		out[key] = json.RawMessage(raw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	return out, nil
}
