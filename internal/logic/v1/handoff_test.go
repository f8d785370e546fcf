package v1

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/duynhne/masjid-connect-service/config"
	"github.com/duynhne/masjid-connect-service/internal/core/domain"
	"github.com/duynhne/masjid-connect-service/internal/core/repository/memory"
)

var testHandoffConfig = config.HandoffConfig{
	AppName:        "Masjid Connect",
	MessageBaseURL: "https://wa.me",
	CurrencySymbol: "₹",
}

func TestPrepareHandoff(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	requests := NewRequestService(store, nil, nil)
	svc := NewHandoffService(store, store, testHandoffConfig, nil)

	req, err := requests.Create(ctx, "imam-a", alNoor())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := store.UpsertProfile(ctx, "bilal", domain.ProfileUpdate{Name: "Bilal", Phone: "9999"}); err != nil {
		t.Fatalf("UpsertProfile() error = %v", err)
	}

	h, err := svc.Prepare(ctx, domain.Identity{ID: "bilal"}, req.ID)
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}

	for _, want := range []string{"Bilal", "9999", "Al-Noor", "2024-01-01", "2024-01-03", "fajr, isha", "500"} {
		if !strings.Contains(h.Message, want) {
			t.Errorf("message missing %q:\n%s", want, h.Message)
		}
	}
	if !strings.Contains(h.Message, "• Amount: ₹500 (per_day)") {
		t.Errorf("amount line not rendered as expected:\n%s", h.Message)
	}
	if !strings.Contains(h.Message, "• WhatsApp: 9999") {
		t.Errorf("whatsapp should fall back to phone:\n%s", h.Message)
	}
	if h.CallLink != "tel:+91 98765-43210" {
		t.Errorf("CallLink = %q, want raw phone", h.CallLink)
	}
	if h.MessageNumber != "919876543210" {
		t.Errorf("MessageNumber = %q, want digits only", h.MessageNumber)
	}
	if !strings.HasPrefix(h.MessageLink, "https://wa.me/919876543210?text=Assalamu%20alaikum%2C%0A") {
		t.Errorf("MessageLink = %q", h.MessageLink)
	}
	if strings.Contains(h.MessageLink, "+") {
		t.Errorf("MessageLink must encode spaces as %%20: %q", h.MessageLink)
	}
}

func TestPrepareHandoffFallbacks(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := NewHandoffService(store, store, testHandoffConfig, nil)

	fields := alNoor()
	fields.ContactWhatsApp = "+91 (800) 111"
	req, _ := store.CreateRequest(ctx, "imam-a", fields.Normalize())

	h, err := svc.Prepare(ctx, domain.Identity{ID: "viewer", Email: "v@example.com"}, req.ID)
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if h.MessageNumber != "91800111" {
		t.Errorf("MessageNumber = %q, want whatsapp digits", h.MessageNumber)
	}
	for _, want := range []string{"I am v@example.com,", "• Phone: Not provided", "• WhatsApp: Not provided", "• Location: Not specified"} {
		if !strings.Contains(h.Message, want) {
			t.Errorf("message missing %q:\n%s", want, h.Message)
		}
	}
}

func TestPrepareHandoffErrors(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := NewHandoffService(store, store, testHandoffConfig, nil)

	if _, err := svc.Prepare(ctx, domain.Identity{ID: "v"}, "missing"); !errors.Is(err, domain.ErrRequestNotFound) {
		t.Errorf("Prepare() error = %v, want ErrRequestNotFound", err)
	}

	fields := alNoor()
	fields.ContactPhone = "n/a"
	req, _ := store.CreateRequest(ctx, "imam-a", fields)
	if _, err := svc.Prepare(ctx, domain.Identity{ID: "v"}, req.ID); !errors.Is(err, domain.ErrValidationFailed) {
		t.Errorf("Prepare() error = %v, want ErrValidationFailed for a number without digits", err)
	}

	if _, err := svc.Prepare(ctx, domain.Identity{}, req.ID); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Errorf("Prepare() error = %v, want ErrUnauthenticated", err)
	}
}

func TestComposeMessageWithoutProfile(t *testing.T) {
	req := &domain.LeaveRequest{MasjidName: "Al-Noor", AmountValue: 1250.5, AmountType: domain.AmountTotal}
	msg := ComposeMessage(req, domain.Identity{}, nil, testHandoffConfig)

	for _, want := range []string{"I am Part-time imam,", "• Prayers: Not specified", "• Amount: ₹1250.5 (total)", "using the Masjid Connect app."} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
}
