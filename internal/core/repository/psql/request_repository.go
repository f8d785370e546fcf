package psql

import (
	"context"
	"errors"
	"fmt"

	"github.com/duynhne/masjid-connect-service/internal/core/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const requestColumns = `id::text, imam_id, masjid_name, masjid_location, masjid_map_link, imam_phone,
	imam_whatsapp, date_from, date_to, prayers, amount_type, amount_value, payment_info, note,
	status, accepted_by, created_at, updated_at`

// RequestRepository implements domain.RequestRepository using PostgreSQL
type RequestRepository struct {
	pool *pgxpool.Pool
}

// NewRequestRepository creates a new PostgreSQL request repository
func NewRequestRepository(pool *pgxpool.Pool) *RequestRepository {
	return &RequestRepository{pool: pool}
}

// CreateRequest inserts a new OPEN request owned by ownerID
func (r *RequestRepository) CreateRequest(ctx context.Context, ownerID string, f domain.RequestFields) (*domain.LeaveRequest, error) {
	query := `
		INSERT INTO requests (id, imam_id, masjid_name, masjid_location, masjid_map_link, imam_phone,
			imam_whatsapp, date_from, date_to, prayers, amount_type, amount_value, payment_info, note,
			status, accepted_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, 'OPEN', NULL, now(), now())
		RETURNING ` + requestColumns

	req, err := scanRequest(r.pool.QueryRow(ctx, query,
		uuid.NewString(), ownerID, f.MasjidName, f.MasjidLocation, f.MasjidMapLink, f.ContactPhone,
		f.ContactWhatsApp, f.DateFrom, f.DateTo, prayerStrings(f.Prayers), string(f.AmountType),
		amountOf(f), f.PaymentInfo, f.Note))
	if err != nil {
		return nil, fmt.Errorf("insert request: %w: %w", domain.ErrStoreUnavailable, err)
	}
	return req, nil
}

// GetRequest retrieves a request by id
func (r *RequestRepository) GetRequest(ctx context.Context, id string) (*domain.LeaveRequest, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrRequestNotFound
	}
	query := `SELECT ` + requestColumns + ` FROM requests WHERE id = $1`
	return r.one(ctx, "query request", query, id)
}

// UpdateRequest overwrites the editable fields of a request owned by ownerID
func (r *RequestRepository) UpdateRequest(ctx context.Context, id, ownerID string, f domain.RequestFields) (*domain.LeaveRequest, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrRequestNotFound
	}
	query := `
		UPDATE requests SET
			masjid_name = $3, masjid_location = $4, masjid_map_link = $5, imam_phone = $6,
			imam_whatsapp = $7, date_from = $8, date_to = $9, prayers = $10, amount_type = $11,
			amount_value = $12, payment_info = $13, note = $14, updated_at = now()
		WHERE id = $1 AND imam_id = $2
		RETURNING ` + requestColumns

	return r.one(ctx, "update request", query,
		id, ownerID, f.MasjidName, f.MasjidLocation, f.MasjidMapLink, f.ContactPhone,
		f.ContactWhatsApp, f.DateFrom, f.DateTo, prayerStrings(f.Prayers), string(f.AmountType),
		amountOf(f), f.PaymentInfo, f.Note)
}

// ToggleRequestStatus flips OPEN and CLOSED in a single statement
func (r *RequestRepository) ToggleRequestStatus(ctx context.Context, id, ownerID string) (*domain.LeaveRequest, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrRequestNotFound
	}
	query := `
		UPDATE requests SET
			status = CASE WHEN status = 'OPEN' THEN 'CLOSED' ELSE 'OPEN' END,
			updated_at = now()
		WHERE id = $1 AND imam_id = $2
		RETURNING ` + requestColumns

	return r.one(ctx, "toggle request status", query, id, ownerID)
}

// DeleteRequest hard-removes a request owned by ownerID
func (r *RequestRepository) DeleteRequest(ctx context.Context, id, ownerID string) error {
	if _, err := uuid.Parse(id); err != nil {
		return domain.ErrRequestNotFound
	}
	result, err := r.pool.Exec(ctx, `DELETE FROM requests WHERE id = $1 AND imam_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete request: %w: %w", domain.ErrStoreUnavailable, err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrRequestNotFound
	}
	return nil
}

// ListRequestsByOwner returns every request posted by ownerID, newest first
func (r *RequestRepository) ListRequestsByOwner(ctx context.Context, ownerID string) ([]domain.LeaveRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE imam_id = $1 ORDER BY created_at DESC`
	return r.many(ctx, "list requests by owner", query, ownerID)
}

// ListRequestsByStatus returns every request in the given status, newest first
func (r *RequestRepository) ListRequestsByStatus(ctx context.Context, status domain.Status) ([]domain.LeaveRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE status = $1 ORDER BY created_at DESC`
	return r.many(ctx, "list requests by status", query, string(status))
}

func (r *RequestRepository) one(ctx context.Context, op, query string, args ...any) (*domain.LeaveRequest, error) {
	req, err := scanRequest(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRequestNotFound
		}
		return nil, fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
	}
	return req, nil
}

func (r *RequestRepository) many(ctx context.Context, op, query string, args ...any) ([]domain.LeaveRequest, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	out := make([]domain.LeaveRequest, 0)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w: %w", op, domain.ErrStoreUnavailable, err)
		}
		out = append(out, *req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
	}
	return out, nil
}

func scanRequest(row pgx.Row) (*domain.LeaveRequest, error) {
	var req domain.LeaveRequest
	var prayers []string
	var amountType, status string
	err := row.Scan(
		&req.ID,
		&req.OwnerID,
		&req.MasjidName,
		&req.MasjidLocation,
		&req.MasjidMapLink,
		&req.ContactPhone,
		&req.ContactWhatsApp,
		&req.DateFrom,
		&req.DateTo,
		&prayers,
		&amountType,
		&req.AmountValue,
		&req.PaymentInfo,
		&req.Note,
		&status,
		&req.AcceptedBy,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	req.Prayers = make([]domain.Prayer, len(prayers))
	for i, p := range prayers {
		req.Prayers[i] = domain.Prayer(p)
	}
	req.AmountType = domain.AmountType(amountType)
	req.Status = domain.Status(status)
	return &req, nil
}

func prayerStrings(prayers []domain.Prayer) []string {
	out := make([]string, len(prayers))
	for i, p := range prayers {
		out[i] = string(p)
	}
	return out
}

func amountOf(f domain.RequestFields) float64 {
	if f.AmountValue == nil {
		return 0
	}
	return *f.AmountValue
}
