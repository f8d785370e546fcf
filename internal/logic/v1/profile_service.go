package v1

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/duynhne/masjid-connect-service/internal/core/domain"
	"github.com/duynhne/masjid-connect-service/internal/core/feed"
	"github.com/duynhne/masjid-connect-service/middleware"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ProfileService owns profile reads and writes and the onboarding gate built on them
type ProfileService struct {
	profiles domain.ProfileRepository
	feed     Feed
	logger   *zap.Logger
}

// NewProfileService creates a new profile service. A nil feed gets a private
// in-process broker, so watches still see this service's own writes.
func NewProfileService(profiles domain.ProfileRepository, f Feed, logger *zap.Logger) *ProfileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if f == nil {
		f = feed.NewBroker()
	}
	return &ProfileService{profiles: profiles, feed: f, logger: logger}
}

// RoleSelection is the result of SelectRole.
type RoleSelection struct {
	Profile *domain.Profile `json:"profile"`
	Role    domain.Role     `json:"role"`
	Home    string          `json:"home"`
	// Changed is false when a role was already assigned and nothing was written.
	Changed bool `json:"changed"`
}

// GetProfile returns the caller's profile, or ErrProfileNotFound.
func (s *ProfileService) GetProfile(ctx context.Context, id string) (*domain.Profile, error) {
	ctx, span := middleware.StartSpan(ctx, "profile.get", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.String("user.id", id),
	))
	defer span.End()

	p, err := s.profiles.GetProfile(ctx, id)
	if err != nil {
		span.SetAttributes(attribute.Bool("profile.found", false))
		if !errors.Is(err, domain.ErrProfileNotFound) {
			span.RecordError(err)
		}
		return nil, fmt.Errorf("get profile %q: %w", id, err)
	}

	span.SetAttributes(attribute.Bool("profile.found", true))
	return p, nil
}

// State evaluates the onboarding gate for identity. A failed profile read is logged and
// evaluated as an empty profile, so the result is never active on a read failure.
func (s *ProfileService) State(ctx context.Context, identity *domain.Identity) GateState {
	if identity == nil || identity.ID == "" {
		return Evaluate(nil, nil)
	}

	ctx, span := middleware.StartSpan(ctx, "session.evaluate", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.String("user.id", identity.ID),
	))
	defer span.End()

	p, err := s.profiles.GetProfile(ctx, identity.ID)
	degraded := false
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrProfileNotFound):
		p = nil
	default:
		span.RecordError(err)
		s.logger.Error("Profile read failed, evaluating gate with empty profile",
			zap.String("user_id", identity.ID),
			zap.Error(err),
		)
		degradedProfileReads.Inc()
		p = nil
		degraded = true
	}

	gs := Evaluate(identity, p)
	gs.Degraded = degraded
	span.SetAttributes(attribute.String("gate.state", string(gs.State)))
	return gs
}

// SaveProfile creates or updates the caller's profile. Name and phone are required; role is untouched.
func (s *ProfileService) SaveProfile(ctx context.Context, identity domain.Identity, upd domain.ProfileUpdate) (*domain.Profile, GateState, error) {
	ctx, span := middleware.StartSpan(ctx, "profile.save", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.String("user.id", identity.ID),
	))
	defer span.End()

	if identity.ID == "" {
		return nil, Evaluate(nil, nil), domain.ErrUnauthenticated
	}

	upd = upd.Normalize()
	if err := domain.ValidateProfileUpdate(upd); err != nil {
		span.SetAttributes(attribute.Bool("request.valid", false))
		return nil, GateState{}, err
	}

	p, err := s.profiles.UpsertProfile(ctx, identity.ID, upd)
	if err != nil {
		span.RecordError(err)
		s.logger.Error("Profile save failed", zap.String("user_id", identity.ID), zap.Error(err))
		return nil, GateState{}, fmt.Errorf("save profile %q: %w", identity.ID, err)
	}

	s.publish(ctx, identity.ID)
	span.AddEvent("profile.saved")
	return p, Evaluate(&identity, p), nil
}

// SelectRole assigns role to the caller once. A caller that already has a role keeps it and
// is pointed at its home without a write. A missing profile is created with defaults.
func (s *ProfileService) SelectRole(ctx context.Context, identity domain.Identity, role domain.Role) (*RoleSelection, error) {
	ctx, span := middleware.StartSpan(ctx, "profile.select_role", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.String("user.id", identity.ID),
		attribute.String("role", string(role)),
	))
	defer span.End()

	if identity.ID == "" {
		return nil, domain.ErrUnauthenticated
	}
	if !role.Valid() {
		return nil, domain.NewValidationError("role")
	}

	existing, err := s.profiles.GetProfile(ctx, identity.ID)
	switch {
	case err == nil:
		if existing.RoleAssigned() {
			span.SetAttributes(attribute.Bool("role.changed", false))
			return &RoleSelection{
				Profile: existing,
				Role:    existing.Role,
				Home:    HomeFor(StateActive, existing.Role),
			}, nil
		}
	case errors.Is(err, domain.ErrProfileNotFound):
	default:
		span.RecordError(err)
		s.logger.Error("Role selection read failed", zap.String("user_id", identity.ID), zap.Error(err))
		return nil, fmt.Errorf("select role for %q: %w", identity.ID, err)
	}

	p, err := s.profiles.AssignRole(ctx, identity.ID, role, defaultProfile(identity))
	if err != nil {
		span.RecordError(err)
		s.logger.Error("Role assignment failed", zap.String("user_id", identity.ID), zap.Error(err))
		return nil, fmt.Errorf("assign role for %q: %w", identity.ID, err)
	}

	changed := p.Role == role
	span.SetAttributes(attribute.Bool("role.changed", changed))
	if changed {
		s.publish(ctx, identity.ID)
	}
	return &RoleSelection{
		Profile: p,
		Role:    p.Role,
		Home:    HomeFor(StateActive, p.Role),
		Changed: changed,
	}, nil
}

// WatchState streams the gate state of identity, re-evaluated on every change to its profile.
func (s *ProfileService) WatchState(ctx context.Context, identity domain.Identity) *Watch[GateState] {
	sub := s.feed.Subscribe(feed.TopicProfiles)
	return NewWatch(ctx, sub,
		func(ctx context.Context) (GateState, error) {
			return s.State(ctx, &identity), nil
		},
		func(ev feed.Event) bool { return ev.Key == identity.ID },
	)
}

func (s *ProfileService) publish(ctx context.Context, id string) {
	s.feed.Publish(ctx, feed.Event{Topic: feed.TopicProfiles, Key: id, Op: feed.OpUpsert})
}

// defaultProfile is used when role selection creates the profile.
func defaultProfile(identity domain.Identity) domain.ProfileUpdate {
	name := "User"
	if local, _, ok := strings.Cut(identity.Email, "@"); ok && local != "" {
		name = local
	}
	return domain.ProfileUpdate{Name: name}
}
