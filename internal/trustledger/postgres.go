package trustledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// advisoryLockKey serialises Append across trustd instances sharing a database.
const advisoryLockKey = int64(7_311_402_118)

const entryColumns = `idx, ts, domain, action, actor, data_hash, prev_hash, hash`

// PostgresLedger stores the chain in the ownership_ledger table. The genesis
// row is inserted by migration 003.
type PostgresLedger struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresLedger creates a PostgresLedger.
func NewPostgresLedger(pool *pgxpool.Pool, logger *zap.Logger) *PostgresLedger {
	return &PostgresLedger{pool: pool, logger: logger}
}

// Append implements Ledger. The tail read and the insert run in one
// transaction under an advisory lock.
func (l *PostgresLedger) Append(ctx context.Context, domain, action, actor string, payload any) (*Entry, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", advisoryLockKey); err != nil {
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	var prevIdx int
	var prevHash string
	if err := tx.QueryRow(ctx,
		"SELECT idx, hash FROM ownership_ledger ORDER BY idx DESC LIMIT 1",
	).Scan(&prevIdx, &prevHash); err != nil {
		return nil, fmt.Errorf("read ledger tail: %w", err)
	}

	entry := &Entry{
		Index:     prevIdx + 1,
		Timestamp: time.Now().UTC(),
		Domain:    domain,
		Action:    action,
		Actor:     actor,
		DataHash:  sha256Sum(payloadJSON),
		PrevHash:  prevHash,
	}
	entry.Hash = hashEntry(entry)

	if _, err := tx.Exec(ctx,
		`INSERT INTO ownership_ledger (`+entryColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.Index, entry.Timestamp, entry.Domain,
		entry.Action, entry.Actor, entry.DataHash,
		entry.PrevHash, entry.Hash,
	); err != nil {
		return nil, fmt.Errorf("insert ledger entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit ledger tx: %w", err)
	}

	l.logger.Debug("ledger entry appended",
		zap.Int("idx", entry.Index),
		zap.String("action", entry.Action),
		zap.String("domain", entry.Domain),
	)
	return entry, nil
}

// Get implements Ledger.
func (l *PostgresLedger) Get(ctx context.Context, index int) (*Entry, error) {
	row := l.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM ownership_ledger WHERE idx = $1`, index)
	entry, err := scanEntry(row)
	if err != nil {
		return nil, fmt.Errorf("get ledger entry %d: %w", index, err)
	}
	return entry, nil
}

// ForDomain implements Ledger.
func (l *PostgresLedger) ForDomain(ctx context.Context, domain string) ([]*Entry, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT `+entryColumns+` FROM ownership_ledger WHERE domain = $1 AND idx > 0 ORDER BY idx ASC`, domain)
	if err != nil {
		return nil, fmt.Errorf("query ledger for %s: %w", domain, err)
	}
	return collectEntries(rows)
}

// Len implements Ledger.
func (l *PostgresLedger) Len(ctx context.Context) (int, error) {
	var n int
	if err := l.pool.QueryRow(ctx, "SELECT COUNT(*) FROM ownership_ledger").Scan(&n); err != nil {
		return 0, fmt.Errorf("count ledger entries: %w", err)
	}
	return n, nil
}

// Verify implements Ledger. It loads the whole chain.
func (l *PostgresLedger) Verify(ctx context.Context) error {
	rows, err := l.pool.Query(ctx, `SELECT `+entryColumns+` FROM ownership_ledger ORDER BY idx ASC`)
	if err != nil {
		return fmt.Errorf("query ledger: %w", err)
	}
	entries, err := collectEntries(rows)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("ledger has no genesis entry")
	}
	return verifyChain(entries)
}

// Root implements Ledger.
func (l *PostgresLedger) Root(ctx context.Context) (string, error) {
	var hash string
	if err := l.pool.QueryRow(ctx,
		"SELECT hash FROM ownership_ledger ORDER BY idx DESC LIMIT 1",
	).Scan(&hash); err != nil {
		return "", fmt.Errorf("get ledger root: %w", err)
	}
	return hash, nil
}

func scanEntry(row pgx.Row) (*Entry, error) {
	e := &Entry{}
	if err := row.Scan(
		&e.Index, &e.Timestamp, &e.Domain,
		&e.Action, &e.Actor, &e.DataHash,
		&e.PrevHash, &e.Hash,
	); err != nil {
		return nil, err
	}
	e.Timestamp = e.Timestamp.UTC()
	return e, nil
}

func collectEntries(rows pgx.Rows) ([]*Entry, error) {
	defer rows.Close()
	out := []*Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ledger row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
