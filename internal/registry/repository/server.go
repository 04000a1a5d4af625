package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmerrifield20/mcptrust/internal/registry/model"
)

// ErrServerNotFound is returned when no registration exists for a domain.
var ErrServerNotFound = errors.New("server not found")

const serverColumns = `id, domain, endpoint, capabilities, contact_email, description,
	dns_verified, verified_at, created_at, updated_at`

// ServerRepository reads and patches MCP server registrations in PostgreSQL.
type ServerRepository struct {
	db *pgxpool.Pool
}

// NewServerRepository creates a new ServerRepository.
func NewServerRepository(db *pgxpool.Pool) *ServerRepository {
	return &ServerRepository{db: db}
}

// Register inserts a new registration. The domain column is unique, so a
// second registration for the same domain fails.
func (r *ServerRepository) Register(ctx context.Context, rec *model.RegistrationRecord) error {
	rec.ID = uuid.New()
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	rec.Capabilities = model.NormalizeCapabilities(rec.Capabilities)
	if rec.Capabilities == nil {
		rec.Capabilities = []string{}
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO mcp_servers (
			id, domain, endpoint, capabilities, contact_email, description,
			dns_verified, verified_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rec.ID, rec.Domain, rec.Endpoint, rec.Capabilities, rec.ContactEmail, rec.Description,
		rec.DNSVerified, rec.VerifiedAt, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert server: %w", err)
	}
	return nil
}

// GetServersByDomain returns every registration for domain. The unique index
// keeps this at most one row, but callers still receive a slice.
func (r *ServerRepository) GetServersByDomain(ctx context.Context, domain string) ([]*model.RegistrationRecord, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+serverColumns+` FROM mcp_servers WHERE domain = $1 ORDER BY created_at`, domain)
	if err != nil {
		return nil, fmt.Errorf("get servers by domain: %w", err)
	}
	defer rows.Close()

	var out []*model.RegistrationRecord
	for rows.Next() {
		rec, err := scanServer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// UnregisterServer removes the registration for domain. Removing a domain
// with no registration is not an error.
func (r *ServerRepository) UnregisterServer(ctx context.Context, domain string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM mcp_servers WHERE domain = $1`, domain); err != nil {
		return fmt.Errorf("unregister server: %w", err)
	}
	return nil
}

// UpdateServer applies the non-nil fields of patch to the registration for domain.
func (r *ServerRepository) UpdateServer(ctx context.Context, domain string, patch model.ServerPatch) error {
	// A nil []string binds as SQL NULL, which COALESCE leaves untouched.
	query := `
		UPDATE mcp_servers SET
			endpoint      = COALESCE($2, endpoint),
			capabilities  = COALESCE($3, capabilities),
			contact_email = COALESCE($4, contact_email),
			description   = COALESCE($5, description),
			dns_verified  = COALESCE($6, dns_verified),
			verified_at   = COALESCE($7, verified_at),
			updated_at    = $8
		WHERE domain = $1`

	tag, err := r.db.Exec(ctx, query,
		domain, patch.Endpoint, patch.Capabilities, patch.ContactEmail, patch.Description,
		patch.DNSVerified, patch.VerifiedAt, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("update server: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrServerNotFound
	}
	return nil
}

func scanServer(rows pgx.Rows) (*model.RegistrationRecord, error) {
	var rec model.RegistrationRecord
	err := rows.Scan(
		&rec.ID, &rec.Domain, &rec.Endpoint, &rec.Capabilities, &rec.ContactEmail, &rec.Description,
		&rec.DNSVerified, &rec.VerifiedAt, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan server: %w", err)
	}
	return &rec, nil
}
