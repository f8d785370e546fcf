package psql

import (
	"context"
	"errors"
	"fmt"

	"github.com/duynhne/masjid-connect-service/internal/core/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const profileColumns = `id, role, name, phone, whatsapp, location, created_at, updated_at`

// ProfileRepository implements domain.ProfileRepository using PostgreSQL
type ProfileRepository struct {
	pool *pgxpool.Pool
}

// NewProfileRepository creates a new PostgreSQL profile repository
func NewProfileRepository(pool *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{pool: pool}
}

// GetProfile retrieves a profile by identity id
func (r *ProfileRepository) GetProfile(ctx context.Context, id string) (*domain.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM users WHERE id = $1`
	p, err := scanProfile(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProfileNotFound
		}
		return nil, fmt.Errorf("query profile: %w: %w", domain.ErrStoreUnavailable, err)
	}
	return p, nil
}

// UpsertProfile creates the profile if absent, otherwise overwrites the editable fields.
// The role column is never written here.
func (r *ProfileRepository) UpsertProfile(ctx context.Context, id string, upd domain.ProfileUpdate) (*domain.Profile, error) {
	query := `
		INSERT INTO users (id, name, phone, whatsapp, location, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			phone = EXCLUDED.phone,
			whatsapp = EXCLUDED.whatsapp,
			location = EXCLUDED.location,
			updated_at = now()
		RETURNING ` + profileColumns

	p, err := scanProfile(r.pool.QueryRow(ctx, query, id, upd.Name, upd.Phone, upd.WhatsApp, upd.Location))
	if err != nil {
		return nil, fmt.Errorf("upsert profile: %w: %w", domain.ErrStoreUnavailable, err)
	}
	return p, nil
}

// AssignRole creates the profile with defaults if absent. For an existing profile only a NULL
// role is filled in; every other column keeps its value.
func (r *ProfileRepository) AssignRole(ctx context.Context, id string, role domain.Role, defaults domain.ProfileUpdate) (*domain.Profile, error) {
	query := `
		INSERT INTO users (id, role, name, phone, whatsapp, location, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		ON CONFLICT (id) DO UPDATE SET
			role = COALESCE(users.role, EXCLUDED.role),
			updated_at = CASE WHEN users.role IS NULL THEN now() ELSE users.updated_at END
		RETURNING ` + profileColumns

	p, err := scanProfile(r.pool.QueryRow(ctx, query,
		id, string(role), defaults.Name, defaults.Phone, defaults.WhatsApp, defaults.Location))
	if err != nil {
		return nil, fmt.Errorf("assign role: %w: %w", domain.ErrStoreUnavailable, err)
	}
	return p, nil
}

func scanProfile(row pgx.Row) (*domain.Profile, error) {
	var p domain.Profile
	var role *string
	if err := row.Scan(&p.ID, &role, &p.Name, &p.Phone, &p.WhatsApp, &p.Location, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if role != nil {
		p.Role = domain.Role(*role)
	}
	return &p, nil
}
