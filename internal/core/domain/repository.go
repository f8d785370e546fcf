package domain

import "context"

// ProfileRepository defines data access for the users collection.
// Implementations wrap backend failures in ErrStoreUnavailable.
type ProfileRepository interface {
	// GetProfile returns ErrProfileNotFound when no record exists.
	GetProfile(ctx context.Context, id string) (*Profile, error)
	// UpsertProfile creates the record if absent and overwrites the editable fields. Role is untouched.
	UpsertProfile(ctx context.Context, id string, upd ProfileUpdate) (*Profile, error)
	// AssignRole creates the record with defaults if absent, otherwise sets role only when it is unset.
	// The stored profile is returned; its Role differs from role when an earlier role won.
	AssignRole(ctx context.Context, id string, role Role, defaults ProfileUpdate) (*Profile, error)
}

// RequestRepository defines data access for the requests collection.
// Mutations are guarded by owner id; a guarded miss returns ErrRequestNotFound.
type RequestRepository interface {
	CreateRequest(ctx context.Context, ownerID string, fields RequestFields) (*LeaveRequest, error)
	GetRequest(ctx context.Context, id string) (*LeaveRequest, error)
	UpdateRequest(ctx context.Context, id, ownerID string, fields RequestFields) (*LeaveRequest, error)
	ToggleRequestStatus(ctx context.Context, id, ownerID string) (*LeaveRequest, error)
	DeleteRequest(ctx context.Context, id, ownerID string) error
	ListRequestsByOwner(ctx context.Context, ownerID string) ([]LeaveRequest, error)
	ListRequestsByStatus(ctx context.Context, status Status) ([]LeaveRequest, error)
}
