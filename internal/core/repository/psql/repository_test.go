package psql

import (
	"context"
	"errors"
	"os"
	"testing"

	database "github.com/duynhne/masjid-connect-service/internal/core"
	"github.com/duynhne/masjid-connect-service/internal/core/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// testPool connects to TEST_DATABASE_URL and applies migrations. Tests are skipped without it.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)
	if err := database.NewMigrator(pool, zap.NewNop()).RunMigrations(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return pool
}

func TestProfileRepository(t *testing.T) {
	pool := testPool(t)
	repo := NewProfileRepository(pool)
	ctx := context.Background()
	id := "test-" + uuid.NewString()
	t.Cleanup(func() { _, _ = pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id) })

	if _, err := repo.GetProfile(ctx, id); !errors.Is(err, domain.ErrProfileNotFound) {
		t.Fatalf("GetProfile() on absent id error = %v, want ErrProfileNotFound", err)
	}

	p, err := repo.UpsertProfile(ctx, id, domain.ProfileUpdate{Name: "Imam A", Phone: "1111"})
	if err != nil {
		t.Fatalf("UpsertProfile() error = %v", err)
	}
	if p.Role != domain.RoleUnset || !p.Complete() {
		t.Errorf("UpsertProfile() = %+v", p)
	}

	p, err = repo.AssignRole(ctx, id, domain.RoleImam, domain.ProfileUpdate{Name: "ignored"})
	if err != nil {
		t.Fatalf("AssignRole() error = %v", err)
	}
	if p.Role != domain.RoleImam || p.Name != "Imam A" {
		t.Errorf("AssignRole() = %+v, want imam with existing name", p)
	}

	p, err = repo.AssignRole(ctx, id, domain.RolePartTime, domain.ProfileUpdate{})
	if err != nil {
		t.Fatalf("second AssignRole() error = %v", err)
	}
	if p.Role != domain.RoleImam {
		t.Errorf("second AssignRole() role = %s, want imam kept", p.Role)
	}

	p, err = repo.UpsertProfile(ctx, id, domain.ProfileUpdate{Name: "Imam B", Phone: "2222"})
	if err != nil {
		t.Fatalf("UpsertProfile() error = %v", err)
	}
	if p.Role != domain.RoleImam || p.Name != "Imam B" {
		t.Errorf("UpsertProfile() after role = %+v, want role kept", p)
	}
}

func TestRequestRepository(t *testing.T) {
	pool := testPool(t)
	repo := NewRequestRepository(pool)
	ctx := context.Background()
	owner := "test-" + uuid.NewString()
	t.Cleanup(func() { _, _ = pool.Exec(ctx, `DELETE FROM requests WHERE imam_id = $1`, owner) })

	amount := 500.0
	fields := domain.RequestFields{
		MasjidName:     "Al-Noor",
		MasjidLocation: "Hyderabad",
		ContactPhone:   "1111",
		DateFrom:       "2024-01-01",
		DateTo:         "2024-01-03",
		Prayers:        []domain.Prayer{domain.PrayerFajr, domain.PrayerIsha},
		AmountType:     domain.AmountPerDay,
		AmountValue:    &amount,
	}

	created, err := repo.CreateRequest(ctx, owner, fields)
	if err != nil {
		t.Fatalf("CreateRequest() error = %v", err)
	}
	if created.Status != domain.StatusOpen || created.AcceptedBy != nil || len(created.Prayers) != 2 {
		t.Errorf("CreateRequest() = %+v", created)
	}

	if _, err := repo.ToggleRequestStatus(ctx, created.ID, "someone-else"); !errors.Is(err, domain.ErrRequestNotFound) {
		t.Errorf("ToggleRequestStatus() by non-owner error = %v, want ErrRequestNotFound", err)
	}

	toggled, err := repo.ToggleRequestStatus(ctx, created.ID, owner)
	if err != nil {
		t.Fatalf("ToggleRequestStatus() error = %v", err)
	}
	if toggled.Status != domain.StatusClosed {
		t.Errorf("ToggleRequestStatus() status = %s, want CLOSED", toggled.Status)
	}

	mine, err := repo.ListRequestsByOwner(ctx, owner)
	if err != nil || len(mine) != 1 {
		t.Errorf("ListRequestsByOwner() = %d, %v, want 1", len(mine), err)
	}

	if _, err := repo.GetRequest(ctx, "not-a-uuid"); !errors.Is(err, domain.ErrRequestNotFound) {
		t.Errorf("GetRequest() with malformed id error = %v, want ErrRequestNotFound", err)
	}

	if err := repo.DeleteRequest(ctx, created.ID, owner); err != nil {
		t.Fatalf("DeleteRequest() error = %v", err)
	}
	if err := repo.DeleteRequest(ctx, created.ID, owner); !errors.Is(err, domain.ErrRequestNotFound) {
		t.Errorf("second DeleteRequest() error = %v, want ErrRequestNotFound", err)
	}
}
