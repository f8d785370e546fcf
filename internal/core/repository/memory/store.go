// Package memory implements the domain repositories in process memory.
// It backs local development (no DB_HOST) and the service tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/duynhne/masjid-connect-service/internal/core/domain"
	"github.com/google/uuid"
)

// Store holds profiles and leave requests behind one lock.
type Store struct {
	mu       sync.RWMutex
	profiles map[string]domain.Profile
	requests map[string]domain.LeaveRequest
	now      func() time.Time
	// failWith, when set, is returned (wrapped) by every call. Used to simulate outages.
	failWith error
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		profiles: make(map[string]domain.Profile),
		requests: make(map[string]domain.LeaveRequest),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the timestamp source.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// FailWith makes every following call fail with err wrapped in domain.ErrStoreUnavailable.
// Pass nil to recover.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = err
}

func (s *Store) checkLocked() error {
	if s.failWith != nil {
		return fmt.Errorf("memory store: %w: %w", domain.ErrStoreUnavailable, s.failWith)
	}
	return nil
}

// GetProfile implements domain.ProfileRepository.
func (s *Store) GetProfile(ctx context.Context, id string) (*domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkLocked(); err != nil {
		return nil, err
	}
	p, ok := s.profiles[id]
	if !ok {
		return nil, domain.ErrProfileNotFound
	}
	return &p, nil
}

// UpsertProfile implements domain.ProfileRepository.
func (s *Store) UpsertProfile(ctx context.Context, id string, upd domain.ProfileUpdate) (*domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(); err != nil {
		return nil, err
	}

	now := s.now()
	p, ok := s.profiles[id]
	if !ok {
		p = domain.Profile{ID: id, CreatedAt: now}
	}
	p.Name = upd.Name
	p.Phone = upd.Phone
	p.WhatsApp = upd.WhatsApp
	p.Location = upd.Location
	p.UpdatedAt = now
	s.profiles[id] = p
	return &p, nil
}

// AssignRole implements domain.ProfileRepository.
func (s *Store) AssignRole(ctx context.Context, id string, role domain.Role, defaults domain.ProfileUpdate) (*domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(); err != nil {
		return nil, err
	}

	now := s.now()
	p, ok := s.profiles[id]
	switch {
	case !ok:
		p = domain.Profile{
			ID:        id,
			Role:      role,
			Name:      defaults.Name,
			Phone:     defaults.Phone,
			WhatsApp:  defaults.WhatsApp,
			Location:  defaults.Location,
			CreatedAt: now,
			UpdatedAt: now,
		}
	case !p.Role.Valid():
		p.Role = role
		p.UpdatedAt = now
	default:
		return &p, nil
	}
	s.profiles[id] = p
	return &p, nil
}

// CreateRequest implements domain.RequestRepository.
func (s *Store) CreateRequest(ctx context.Context, ownerID string, fields domain.RequestFields) (*domain.LeaveRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(); err != nil {
		return nil, err
	}

	now := s.now()
	r := domain.LeaveRequest{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Status:    domain.StatusOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}
	fields.Apply(&r)
	s.requests[r.ID] = r
	return cloneRequest(r), nil
}

// GetRequest implements domain.RequestRepository.
func (s *Store) GetRequest(ctx context.Context, id string) (*domain.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkLocked(); err != nil {
		return nil, err
	}
	r, ok := s.requests[id]
	if !ok {
		return nil, domain.ErrRequestNotFound
	}
	return cloneRequest(r), nil
}

// UpdateRequest implements domain.RequestRepository.
func (s *Store) UpdateRequest(ctx context.Context, id, ownerID string, fields domain.RequestFields) (*domain.LeaveRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(); err != nil {
		return nil, err
	}
	r, ok := s.requests[id]
	if !ok || r.OwnerID != ownerID {
		return nil, domain.ErrRequestNotFound
	}
	fields.Apply(&r)
	r.UpdatedAt = s.now()
	s.requests[id] = r
	return cloneRequest(r), nil
}

// ToggleRequestStatus implements domain.RequestRepository.
func (s *Store) ToggleRequestStatus(ctx context.Context, id, ownerID string) (*domain.LeaveRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(); err != nil {
		return nil, err
	}
	r, ok := s.requests[id]
	if !ok || r.OwnerID != ownerID {
		return nil, domain.ErrRequestNotFound
	}
	r.Status = r.Status.Toggled()
	r.UpdatedAt = s.now()
	s.requests[id] = r
	return cloneRequest(r), nil
}

// DeleteRequest implements domain.RequestRepository.
func (s *Store) DeleteRequest(ctx context.Context, id, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(); err != nil {
		return err
	}
	r, ok := s.requests[id]
	if !ok || r.OwnerID != ownerID {
		return domain.ErrRequestNotFound
	}
	delete(s.requests, id)
	return nil
}

// ListRequestsByOwner implements domain.RequestRepository.
func (s *Store) ListRequestsByOwner(ctx context.Context, ownerID string) ([]domain.LeaveRequest, error) {
	return s.list(func(r domain.LeaveRequest) bool { return r.OwnerID == ownerID })
}

// ListRequestsByStatus implements domain.RequestRepository.
func (s *Store) ListRequestsByStatus(ctx context.Context, status domain.Status) ([]domain.LeaveRequest, error) {
	return s.list(func(r domain.LeaveRequest) bool { return r.Status == status })
}

func (s *Store) list(match func(domain.LeaveRequest) bool) ([]domain.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkLocked(); err != nil {
		return nil, err
	}

	out := make([]domain.LeaveRequest, 0)
	for _, r := range s.requests {
		if match(r) {
			out = append(out, *cloneRequest(r))
		}
	}
	// newest first, same as the psql store
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func cloneRequest(r domain.LeaveRequest) *domain.LeaveRequest {
	r.Prayers = append([]domain.Prayer(nil), r.Prayers...)
	return &r
}
