package v1

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/duynhne/masjid-connect-service/config"
	"github.com/duynhne/masjid-connect-service/internal/core/domain"
	"github.com/duynhne/masjid-connect-service/middleware"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Handoff holds the links a part-time imam uses to contact a request's poster.
type Handoff struct {
	RequestID     string `json:"requestId"`
	CallLink      string `json:"callLink,omitempty"`
	MessageNumber string `json:"messageNumber"`
	Message       string `json:"message"`
	MessageLink   string `json:"messageLink"`
}

// HandoffService prepares call and message links for a leave request
type HandoffService struct {
	requests domain.RequestRepository
	profiles domain.ProfileRepository
	cfg      config.HandoffConfig
	logger   *zap.Logger
}

// NewHandoffService creates a new handoff service
func NewHandoffService(requests domain.RequestRepository, profiles domain.ProfileRepository, cfg config.HandoffConfig, logger *zap.Logger) *HandoffService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HandoffService{requests: requests, profiles: profiles, cfg: cfg, logger: logger}
}

// Prepare builds the handoff for requestID as seen by viewer. A failed read of the viewer's
// profile is logged and the message falls back to placeholder details.
func (s *HandoffService) Prepare(ctx context.Context, viewer domain.Identity, requestID string) (*Handoff, error) {
	ctx, span := middleware.StartSpan(ctx, "request.handoff", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.String("request.id", requestID),
		attribute.String("user.id", viewer.ID),
	))
	defer span.End()

	if viewer.ID == "" {
		return nil, domain.ErrUnauthenticated
	}

	req, err := s.requests.GetRequest(ctx, requestID)
	if err != nil {
		if !errors.Is(err, domain.ErrRequestNotFound) {
			span.RecordError(err)
			s.logger.Error("Handoff request read failed", zap.String("request_id", requestID), zap.Error(err))
		}
		return nil, fmt.Errorf("handoff for request %q: %w", requestID, err)
	}

	number := MessageNumber(req)
	if number == "" {
		span.SetAttributes(attribute.Bool("handoff.contact", false))
		return nil, domain.NewValidationError("imamWhatsapp", "imamPhone")
	}

	profile, err := s.profiles.GetProfile(ctx, viewer.ID)
	if err != nil {
		if !errors.Is(err, domain.ErrProfileNotFound) {
			span.RecordError(err)
			s.logger.Warn("Handoff profile read failed, using fallbacks",
				zap.String("user_id", viewer.ID),
				zap.Error(err),
			)
		}
		profile = nil
	}

	msg := ComposeMessage(req, viewer, profile, s.cfg)
	h := &Handoff{
		RequestID:     req.ID,
		MessageNumber: number,
		Message:       msg,
		MessageLink:   MessageLink(s.cfg.MessageBaseURL, number, msg),
	}
	if req.ContactPhone != "" {
		h.CallLink = "tel:" + req.ContactPhone
	}
	return h, nil
}

// MessageNumber returns the digits of the messaging contact, falling back to the phone.
func MessageNumber(req *domain.LeaveRequest) string {
	raw := req.ContactWhatsApp
	if raw == "" {
		raw = req.ContactPhone
	}
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)
}

// MessageLink builds <base>/<number>?text=<text> with the text percent-encoded.
func MessageLink(base, number, text string) string {
	encoded := strings.ReplaceAll(url.QueryEscape(text), "+", "%20")
	return strings.TrimRight(base, "/") + "/" + number + "?text=" + encoded
}

// ComposeMessage renders the introduction a part-time imam sends to the poster of req.
func ComposeMessage(req *domain.LeaveRequest, viewer domain.Identity, profile *domain.Profile, cfg config.HandoffConfig) string {
	var p domain.Profile
	if profile != nil {
		p = *profile
	}

	name := firstNonEmpty(p.Name, viewer.Email, "Part-time imam")
	phone := firstNonEmpty(p.Phone, "Not provided")
	whatsapp := firstNonEmpty(p.WhatsApp, phone)
	location := firstNonEmpty(p.Location, "Not specified")

	prayers := "Not specified"
	if len(req.Prayers) > 0 {
		names := make([]string, len(req.Prayers))
		for i, pr := range req.Prayers {
			names[i] = string(pr)
		}
		prayers = strings.Join(names, ", ")
	}
	amount := fmt.Sprintf("%s%s (%s)", cfg.CurrencySymbol, strconv.FormatFloat(req.AmountValue, 'f', -1, 64), req.AmountType)

	return strings.Join([]string{
		"Assalamu alaikum,",
		"",
		fmt.Sprintf("I am %s, a part-time imam using the %s app.", name, cfg.AppName),
		"",
		"I am interested in helping with your request:",
		"• Masjid: " + req.MasjidName,
		"• Location: " + req.MasjidLocation,
		fmt.Sprintf("• Dates: %s → %s", req.DateFrom, req.DateTo),
		"• Prayers: " + prayers,
		"• Amount: " + amount,
		"",
		"My details:",
		"• Name: " + name,
		"• Phone: " + phone,
		"• WhatsApp: " + whatsapp,
		"• Location: " + location,
		"",
		"Please let me know if this is suitable for you.",
	}, "\n")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
