package v1

import (
	"context"
	"errors"
	"fmt"

	"github.com/duynhne/masjid-connect-service/internal/core/domain"
	"github.com/duynhne/masjid-connect-service/internal/core/feed"
	"github.com/duynhne/masjid-connect-service/middleware"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// RequestService manages the leave-request lifecycle. Only the owner may change a request;
// the repository re-checks ownership in the mutating statement itself.
type RequestService struct {
	requests domain.RequestRepository
	feed     Feed
	logger   *zap.Logger
}

// NewRequestService creates a new request service. A nil feed gets a private
// in-process broker, so watches still see this service's own writes.
func NewRequestService(requests domain.RequestRepository, f Feed, logger *zap.Logger) *RequestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if f == nil {
		f = feed.NewBroker()
	}
	return &RequestService{requests: requests, feed: f, logger: logger}
}

// Create posts a new OPEN request owned by callerID.
func (s *RequestService) Create(ctx context.Context, callerID string, fields domain.RequestFields) (req *domain.LeaveRequest, err error) {
	ctx, span := middleware.StartSpan(ctx, "request.create", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.String("user.id", callerID),
	))
	defer span.End()
	defer func() { s.observe("create", err) }()

	if callerID == "" {
		return nil, domain.ErrUnauthenticated
	}

	fields = fields.Normalize()
	if err := domain.ValidateRequestFields(fields); err != nil {
		span.SetAttributes(attribute.Bool("request.valid", false))
		return nil, err
	}
	span.SetAttributes(attribute.Bool("request.valid", true))

	req, err = s.requests.CreateRequest(ctx, callerID, fields)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("create request for %q: %w", callerID, err)
	}

	span.SetAttributes(attribute.String("request.id", req.ID))
	span.AddEvent("request.created")
	s.publish(ctx, req.ID, feed.OpUpsert)
	return req, nil
}

// Get returns one request to any authenticated caller.
func (s *RequestService) Get(ctx context.Context, id string) (req *domain.LeaveRequest, err error) {
	ctx, span := middleware.StartSpan(ctx, "request.get", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.String("request.id", id),
	))
	defer span.End()

	req, err = s.requests.GetRequest(ctx, id)
	if err != nil {
		span.SetAttributes(attribute.Bool("request.found", false))
		if !errors.Is(err, domain.ErrRequestNotFound) {
			span.RecordError(err)
			s.logger.Error("Request read failed", zap.String("request_id", id), zap.Error(err))
		}
		return nil, fmt.Errorf("get request %q: %w", id, err)
	}
	span.SetAttributes(attribute.Bool("request.found", true))
	return req, nil
}

// GetForEdit returns a request only to its owner.
func (s *RequestService) GetForEdit(ctx context.Context, callerID, id string) (*domain.LeaveRequest, error) {
	return s.owned(ctx, "request.get_for_edit", callerID, id)
}

// Update overwrites the editable fields. id, owner and createdAt never change.
func (s *RequestService) Update(ctx context.Context, callerID, id string, fields domain.RequestFields) (req *domain.LeaveRequest, err error) {
	defer func() { s.observe("update", err) }()

	if _, err := s.owned(ctx, "request.update.load", callerID, id); err != nil {
		return nil, err
	}

	ctx, span := middleware.StartSpan(ctx, "request.update", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.String("request.id", id),
	))
	defer span.End()

	fields = fields.Normalize()
	if err := domain.ValidateRequestFields(fields); err != nil {
		span.SetAttributes(attribute.Bool("request.valid", false))
		return nil, err
	}

	req, err = s.requests.UpdateRequest(ctx, id, callerID, fields)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("update request %q: %w", id, err)
	}

	s.publish(ctx, id, feed.OpUpsert)
	return req, nil
}

// ToggleStatus flips OPEN and CLOSED.
func (s *RequestService) ToggleStatus(ctx context.Context, callerID, id string) (req *domain.LeaveRequest, err error) {
	defer func() { s.observe("toggle", err) }()

	if _, err := s.owned(ctx, "request.toggle.load", callerID, id); err != nil {
		return nil, err
	}

	ctx, span := middleware.StartSpan(ctx, "request.toggle", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.String("request.id", id),
	))
	defer span.End()

	req, err = s.requests.ToggleRequestStatus(ctx, id, callerID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("toggle request %q: %w", id, err)
	}

	span.SetAttributes(attribute.String("request.status", string(req.Status)))
	s.publish(ctx, id, feed.OpUpsert)
	return req, nil
}

// Delete removes a request permanently.
func (s *RequestService) Delete(ctx context.Context, callerID, id string) (err error) {
	defer func() { s.observe("delete", err) }()

	if _, err := s.owned(ctx, "request.delete.load", callerID, id); err != nil {
		return err
	}

	ctx, span := middleware.StartSpan(ctx, "request.delete", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.String("request.id", id),
	))
	defer span.End()

	if err := s.requests.DeleteRequest(ctx, id, callerID); err != nil {
		span.RecordError(err)
		return fmt.Errorf("delete request %q: %w", id, err)
	}

	span.AddEvent("request.deleted")
	s.publish(ctx, id, feed.OpDelete)
	return nil
}

// ListOwned returns the caller's requests in any status.
func (s *RequestService) ListOwned(ctx context.Context, callerID string) ([]domain.LeaveRequest, error) {
	ctx, span := middleware.StartSpan(ctx, "request.list_owned", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.String("user.id", callerID),
	))
	defer span.End()

	if callerID == "" {
		return nil, domain.ErrUnauthenticated
	}

	list, err := s.requests.ListRequestsByOwner(ctx, callerID)
	if err != nil {
		span.RecordError(err)
		s.logger.Error("List owned requests failed", zap.String("user_id", callerID), zap.Error(err))
		return nil, fmt.Errorf("list requests of %q: %w", callerID, err)
	}
	span.SetAttributes(attribute.Int("request.count", len(list)))
	return list, nil
}

// ListOpen returns every OPEN request.
func (s *RequestService) ListOpen(ctx context.Context) ([]domain.LeaveRequest, error) {
	ctx, span := middleware.StartSpan(ctx, "request.list_open", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	list, err := s.requests.ListRequestsByStatus(ctx, domain.StatusOpen)
	if err != nil {
		span.RecordError(err)
		s.logger.Error("List open requests failed", zap.Error(err))
		return nil, fmt.Errorf("list open requests: %w", err)
	}
	span.SetAttributes(attribute.Int("request.count", len(list)))
	return list, nil
}

// WatchOwned streams ListOwned snapshots for callerID.
func (s *RequestService) WatchOwned(ctx context.Context, callerID string) *Watch[[]domain.LeaveRequest] {
	sub := s.feed.Subscribe(feed.TopicRequests)
	return NewWatch(ctx, sub, func(ctx context.Context) ([]domain.LeaveRequest, error) {
		return s.ListOwned(ctx, callerID)
	}, nil)
}

// WatchOpen streams ListOpen snapshots.
func (s *RequestService) WatchOpen(ctx context.Context) *Watch[[]domain.LeaveRequest] {
	sub := s.feed.Subscribe(feed.TopicRequests)
	return NewWatch(ctx, sub, s.ListOpen, nil)
}

// owned loads a request and checks that callerID owns it.
func (s *RequestService) owned(ctx context.Context, spanName, callerID, id string) (*domain.LeaveRequest, error) {
	ctx, span := middleware.StartSpan(ctx, spanName, trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.String("request.id", id),
		attribute.String("user.id", callerID),
	))
	defer span.End()

	if callerID == "" {
		return nil, domain.ErrUnauthenticated
	}

	req, err := s.requests.GetRequest(ctx, id)
	if err != nil {
		if !errors.Is(err, domain.ErrRequestNotFound) {
			span.RecordError(err)
		}
		return nil, fmt.Errorf("load request %q: %w", id, err)
	}
	if req.OwnerID != callerID {
		span.SetAttributes(attribute.Bool("request.owner", false))
		return nil, fmt.Errorf("request %q not owned by %q: %w", id, callerID, domain.ErrForbidden)
	}
	return req, nil
}

func (s *RequestService) observe(op string, err error) {
	requestOperations.WithLabelValues(op, resultLabel(err)).Inc()
	if errors.Is(err, domain.ErrStoreUnavailable) {
		s.logger.Error("Leave request operation failed", zap.String("op", op), zap.Error(err))
	}
}

func (s *RequestService) publish(ctx context.Context, id string, op feed.Op) {
	s.feed.Publish(ctx, feed.Event{Topic: feed.TopicRequests, Key: id, Op: op})
}
