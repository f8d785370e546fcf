package v1

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/duynhne/masjid-connect-service/internal/core/domain"
	"github.com/duynhne/masjid-connect-service/internal/core/feed"
	"github.com/duynhne/masjid-connect-service/internal/core/repository/memory"
)

func amount(v float64) *float64 { return &v }

func alNoor() domain.RequestFields {
	return domain.RequestFields{
		MasjidName:     "Al-Noor",
		MasjidLocation: "Hyderabad",
		ContactPhone:   "+91 98765-43210",
		DateFrom:       "2024-01-01",
		DateTo:         "2024-01-03",
		Prayers:        []domain.Prayer{domain.PrayerFajr, domain.PrayerIsha},
		AmountType:     domain.AmountPerDay,
		AmountValue:    amount(500),
	}
}

func newRequestService(t *testing.T) (*RequestService, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	return NewRequestService(store, feed.NewBroker(), nil), store
}

func TestCreateValidation(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(f *domain.RequestFields)
		wantFields []string
	}{
		{"missing masjid name", func(f *domain.RequestFields) { f.MasjidName = " " }, []string{"masjidName"}},
		{"missing phone", func(f *domain.RequestFields) { f.ContactPhone = "" }, []string{"imamPhone"}},
		{"no prayers", func(f *domain.RequestFields) { f.Prayers = nil }, []string{"prayers"}},
		{"empty prayers", func(f *domain.RequestFields) { f.Prayers = []domain.Prayer{} }, []string{"prayers"}},
		{"unknown prayer", func(f *domain.RequestFields) { f.Prayers = []domain.Prayer{"tahajjud"} }, []string{"prayers"}},
		{"missing amount", func(f *domain.RequestFields) { f.AmountValue = nil }, []string{"amountValue"}},
		{"negative amount", func(f *domain.RequestFields) { f.AmountValue = amount(-1) }, []string{"amountValue"}},
		{"bad date", func(f *domain.RequestFields) { f.DateFrom = "01/01/2024" }, []string{"dateFrom"}},
		{"bad amount type", func(f *domain.RequestFields) { f.AmountType = "hourly" }, []string{"amountType"}},
		{"several", func(f *domain.RequestFields) { f.MasjidLocation = ""; f.DateTo = "" }, []string{"masjidLocation", "dateTo"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store := newRequestService(t)
			fields := alNoor()
			tt.mutate(&fields)

			_, err := svc.Create(context.Background(), "imam-a", fields)
			var verr *domain.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Create() error = %v, want *ValidationError", err)
			}
			if len(verr.Fields) != len(tt.wantFields) {
				t.Fatalf("Create() fields = %v, want %v", verr.Fields, tt.wantFields)
			}
			for i := range tt.wantFields {
				if verr.Fields[i] != tt.wantFields[i] {
					t.Errorf("Create() fields = %v, want %v", verr.Fields, tt.wantFields)
				}
			}

			list, _ := store.ListRequestsByOwner(context.Background(), "imam-a")
			if len(list) != 0 {
				t.Errorf("%d requests written after validation failure", len(list))
			}
		})
	}
}

func TestCreateAcceptsReversedDatesAndDefaultsAmountType(t *testing.T) {
	svc, _ := newRequestService(t)
	fields := alNoor()
	fields.DateFrom, fields.DateTo = "2024-02-10", "2024-02-01"
	fields.AmountType = ""
	fields.Prayers = []domain.Prayer{"FAJR", "fajr", "isha"}

	req, err := svc.Create(context.Background(), "imam-a", fields)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if req.AmountType != domain.AmountPerDay {
		t.Errorf("AmountType = %q, want per_day", req.AmountType)
	}
	if len(req.Prayers) != 2 {
		t.Errorf("Prayers = %v, want fajr and isha once each", req.Prayers)
	}
	if req.AcceptedBy != nil {
		t.Error("AcceptedBy must be null")
	}
}

func TestCreateAppearsInOwnedAndOpen(t *testing.T) {
	ctx := context.Background()
	svc, _ := newRequestService(t)

	req, err := svc.Create(ctx, "imam-a", alNoor())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if req.Status != domain.StatusOpen || req.OwnerID != "imam-a" {
		t.Fatalf("Create() = status %q owner %q", req.Status, req.OwnerID)
	}

	owned, err := svc.ListOwned(ctx, "imam-a")
	if err != nil || len(owned) != 1 || owned[0].ID != req.ID {
		t.Errorf("ListOwned() = %v, %v; want the new request", owned, err)
	}
	open, err := svc.ListOpen(ctx)
	if err != nil || len(open) != 1 || open[0].ID != req.ID {
		t.Errorf("ListOpen() = %v, %v; want the new request", open, err)
	}
	other, _ := svc.ListOwned(ctx, "imam-b")
	if len(other) != 0 {
		t.Errorf("ListOwned(imam-b) = %v, want empty", other)
	}
}

func TestToggleTwiceRestoresStatus(t *testing.T) {
	ctx := context.Background()
	svc, _ := newRequestService(t)
	req, _ := svc.Create(ctx, "imam-a", alNoor())

	closed, err := svc.ToggleStatus(ctx, "imam-a", req.ID)
	if err != nil || closed.Status != domain.StatusClosed {
		t.Fatalf("ToggleStatus() = %v, %v; want CLOSED", closed, err)
	}
	open, _ := svc.ListOpen(ctx)
	if len(open) != 0 {
		t.Errorf("ListOpen() after close = %v, want empty", open)
	}

	reopened, err := svc.ToggleStatus(ctx, "imam-a", req.ID)
	if err != nil || reopened.Status != domain.StatusOpen {
		t.Fatalf("ToggleStatus() = %v, %v; want OPEN", reopened, err)
	}
}

func TestNonOwnerIsForbidden(t *testing.T) {
	ctx := context.Background()
	svc, store := newRequestService(t)
	req, _ := svc.Create(ctx, "imam-a", alNoor())

	if _, err := svc.ToggleStatus(ctx, "imam-b", req.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("ToggleStatus() error = %v, want ErrForbidden", err)
	}
	edited := alNoor()
	edited.MasjidName = "Hijacked"
	if _, err := svc.Update(ctx, "imam-b", req.ID, edited); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("Update() error = %v, want ErrForbidden", err)
	}
	if err := svc.Delete(ctx, "imam-b", req.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("Delete() error = %v, want ErrForbidden", err)
	}
	if _, err := svc.GetForEdit(ctx, "imam-b", req.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("GetForEdit() error = %v, want ErrForbidden", err)
	}

	got, _ := store.GetRequest(ctx, req.ID)
	if got.Status != domain.StatusOpen || got.MasjidName != "Al-Noor" {
		t.Errorf("request mutated by non-owner: %+v", got)
	}
}

func TestMissingRequestIsNotFound(t *testing.T) {
	ctx := context.Background()
	svc, _ := newRequestService(t)

	if _, err := svc.Update(ctx, "imam-a", "missing", alNoor()); !errors.Is(err, domain.ErrRequestNotFound) {
		t.Errorf("Update() error = %v, want ErrRequestNotFound", err)
	}
	if _, err := svc.ToggleStatus(ctx, "imam-a", "missing"); !errors.Is(err, domain.ErrRequestNotFound) {
		t.Errorf("ToggleStatus() error = %v, want ErrRequestNotFound", err)
	}
	if err := svc.Delete(ctx, "imam-a", "missing"); !errors.Is(err, domain.ErrRequestNotFound) {
		t.Errorf("Delete() error = %v, want ErrRequestNotFound", err)
	}
	if _, err := svc.Get(ctx, "missing"); !errors.Is(err, domain.ErrRequestNotFound) {
		t.Errorf("Get() error = %v, want ErrRequestNotFound", err)
	}
}

func TestUpdateKeepsImmutableFields(t *testing.T) {
	ctx := context.Background()
	svc, store := newRequestService(t)
	created := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return created })
	req, _ := svc.Create(ctx, "imam-a", alNoor())

	store.SetClock(func() time.Time { return created.Add(time.Hour) })
	edited := alNoor()
	edited.MasjidName = "Al-Noor Central"
	edited.Prayers = []domain.Prayer{domain.PrayerJumua}

	got, err := svc.Update(ctx, "imam-a", req.ID, edited)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if got.ID != req.ID || got.OwnerID != "imam-a" || !got.CreatedAt.Equal(created) {
		t.Errorf("immutable fields changed: %+v", got)
	}
	if got.MasjidName != "Al-Noor Central" || len(got.Prayers) != 1 {
		t.Errorf("editable fields not applied: %+v", got)
	}
	if !got.UpdatedAt.After(got.CreatedAt) {
		t.Errorf("UpdatedAt = %v, want refreshed", got.UpdatedAt)
	}

	bad := alNoor()
	bad.Prayers = nil
	if _, err := svc.Update(ctx, "imam-a", req.ID, bad); !errors.Is(err, domain.ErrValidationFailed) {
		t.Errorf("Update() error = %v, want ErrValidationFailed", err)
	}
}

func TestDeleteRemoves(t *testing.T) {
	ctx := context.Background()
	svc, _ := newRequestService(t)
	req, _ := svc.Create(ctx, "imam-a", alNoor())

	if err := svc.Delete(ctx, "imam-a", req.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := svc.Get(ctx, req.ID); !errors.Is(err, domain.ErrRequestNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrRequestNotFound", err)
	}
}

func TestStoreUnavailable(t *testing.T) {
	ctx := context.Background()
	svc, store := newRequestService(t)
	store.FailWith(errors.New("network down"))

	if _, err := svc.Create(ctx, "imam-a", alNoor()); !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Errorf("Create() error = %v, want ErrStoreUnavailable", err)
	}
	if _, err := svc.ListOpen(ctx); !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Errorf("ListOpen() error = %v, want ErrStoreUnavailable", err)
	}
}

func TestUnauthenticatedCaller(t *testing.T) {
	svc, _ := newRequestService(t)
	if _, err := svc.Create(context.Background(), "", alNoor()); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Errorf("Create() error = %v, want ErrUnauthenticated", err)
	}
	if _, err := svc.ListOwned(context.Background(), ""); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Errorf("ListOwned() error = %v, want ErrUnauthenticated", err)
	}
}

func nextSnapshot[T any](t *testing.T, w *Watch[T]) Snapshot[T] {
	t.Helper()
	select {
	case snap, ok := <-w.C:
		if !ok {
			t.Fatal("watch closed")
		}
		return snap
	case <-time.After(time.Second):
		t.Fatal("no snapshot")
	}
	return Snapshot[T]{}
}

func TestWatchOpenSeesClose(t *testing.T) {
	ctx := context.Background()
	svc, _ := newRequestService(t)
	req, _ := svc.Create(ctx, "imam-a", alNoor())

	w := svc.WatchOpen(ctx)
	defer w.Close()

	if snap := nextSnapshot(t, w); snap.Err != nil || len(snap.Value) != 1 {
		t.Fatalf("initial snapshot = %+v, want one open request", snap)
	}

	if _, err := svc.ToggleStatus(ctx, "imam-a", req.ID); err != nil {
		t.Fatalf("ToggleStatus() error = %v", err)
	}
	if snap := nextSnapshot(t, w); snap.Err != nil || len(snap.Value) != 0 {
		t.Errorf("snapshot after close = %+v, want empty", snap)
	}
}

func TestWatchOwnedSeesDelete(t *testing.T) {
	ctx := context.Background()
	svc, _ := newRequestService(t)
	req, _ := svc.Create(ctx, "imam-a", alNoor())

	w := svc.WatchOwned(ctx, "imam-a")
	defer w.Close()
	nextSnapshot(t, w)

	if err := svc.Delete(ctx, "imam-a", req.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if snap := nextSnapshot(t, w); len(snap.Value) != 0 {
		t.Errorf("snapshot after delete = %+v, want empty", snap.Value)
	}
}

func TestWatchCloseReleasesSubscription(t *testing.T) {
	store := memory.NewStore()
	broker := feed.NewBroker()
	svc := NewRequestService(store, broker, nil)

	w := svc.WatchOpen(context.Background())
	nextSnapshot(t, w)
	if broker.Len() != 1 {
		t.Fatalf("broker.Len() = %d, want 1", broker.Len())
	}

	w.Close()
	w.Close()
	if broker.Len() != 0 {
		t.Errorf("broker.Len() = %d after Close, want 0", broker.Len())
	}
	if _, ok := <-w.C; ok {
		t.Error("C still open after Close")
	}
}

func TestWatchWithoutFeed(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := NewRequestService(store, nil, nil)

	w := svc.WatchOwned(ctx, "imam-a")
	defer w.Close()
	if snap := nextSnapshot(t, w); snap.Err != nil || len(snap.Value) != 0 {
		t.Fatalf("initial snapshot = %+v, want empty", snap)
	}

	if _, err := svc.Create(ctx, "imam-a", alNoor()); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if snap := nextSnapshot(t, w); len(snap.Value) != 1 {
		t.Errorf("snapshot after create = %d requests, want 1", len(snap.Value))
	}

	profiles := NewProfileService(store, nil, nil)
	ws := profiles.WatchState(ctx, domain.Identity{ID: "imam-a"})
	defer ws.Close()
	if snap := nextSnapshot(t, ws); snap.Value.State != StateProfileIncomplete {
		t.Errorf("WatchState() first state = %s, want profile_incomplete", snap.Value.State)
	}
}
