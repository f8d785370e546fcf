package v1

import (
	"context"
	"sync"

	"github.com/duynhne/masjid-connect-service/internal/core/domain"
	"go.uber.org/zap"
)

// Session tracks one connected client: its current identity and the profile watch that keeps
// its gate state fresh. Changing the identity releases the previous watch before the next
// one is opened, so at most one watch is live per session.
type Session struct {
	profiles *ProfileService
	logger   *zap.Logger

	mu       sync.Mutex
	identity *domain.Identity
	watch    *Watch[GateState]
	fwdDone  chan struct{}
	closed   bool

	states chan GateState
}

// NewSession creates a session with no identity.
func NewSession(profiles *ProfileService, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		profiles: profiles,
		logger:   logger,
		states:   make(chan GateState, 1),
	}
}

// States delivers gate states. Only the latest undelivered state is kept.
// The channel is closed by Close.
func (s *Session) States() <-chan GateState {
	return s.states
}

// Identity returns the current identity, or nil when signed out.
func (s *Session) Identity() *domain.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil {
		return nil
	}
	id := *s.identity
	return &id
}

// SetIdentity switches the session to identity. nil signs out and emits unauthenticated.
func (s *Session) SetIdentity(ctx context.Context, identity *domain.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	s.stopLocked()
	// an undelivered state belongs to the previous identity
	select {
	case <-s.states:
	default:
	}

	if identity == nil || identity.ID == "" {
		s.identity = nil
		s.emit(Evaluate(nil, nil))
		return
	}

	id := *identity
	s.identity = &id
	w := s.profiles.WatchState(ctx, id)
	done := make(chan struct{})
	s.watch = w
	s.fwdDone = done

	go func() {
		defer close(done)
		for snap := range w.C {
			s.emit(snap.Value)
		}
	}()

	s.logger.Debug("Session identity changed", zap.String("user_id", id.ID))
}

// Close releases the current watch and closes States. Safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.stopLocked()
	s.closed = true
	close(s.states)
}

// stopLocked closes the current watch and waits for its forwarder to drain.
func (s *Session) stopLocked() {
	if s.watch == nil {
		return
	}
	s.watch.Close()
	<-s.fwdDone
	s.watch = nil
	s.fwdDone = nil
}

// emit replaces any undelivered state with gs.
func (s *Session) emit(gs GateState) {
	for {
		select {
		case s.states <- gs:
			return
		default:
		}
		select {
		case <-s.states:
		default:
		}
	}
}
