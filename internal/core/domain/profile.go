package domain

import (
	"strings"
	"time"
)

// Role is the marketplace side a user has chosen. The zero value means unset.
type Role string

const (
	RoleUnset    Role = ""
	RoleImam     Role = "imam"
	RolePartTime Role = "part_time"
)

// Valid reports whether r is an assignable role.
func (r Role) Valid() bool {
	return r == RoleImam || r == RolePartTime
}

// Identity is the authenticated caller as reported by the identity provider.
type Identity struct {
	ID    string
	Email string
}

// Profile is the per-identity record in the users collection.
type Profile struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	WhatsApp  string    `json:"whatsapp"`
	Location  string    `json:"location"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Complete reports whether onboarding details (name and phone) are filled in.
func (p *Profile) Complete() bool {
	return p != nil && p.Name != "" && p.Phone != ""
}

// RoleAssigned reports whether the profile carries an assignable role.
func (p *Profile) RoleAssigned() bool {
	return p != nil && p.Role.Valid()
}

// ProfileUpdate carries the user-editable profile fields.
type ProfileUpdate struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	WhatsApp string `json:"whatsapp"`
	Location string `json:"location"`
}

// Normalize trims surrounding whitespace from every field.
func (u ProfileUpdate) Normalize() ProfileUpdate {
	return ProfileUpdate{
		Name:     strings.TrimSpace(u.Name),
		Phone:    strings.TrimSpace(u.Phone),
		WhatsApp: strings.TrimSpace(u.WhatsApp),
		Location: strings.TrimSpace(u.Location),
	}
}

// SelectRoleRequest is the body of a role selection.
type SelectRoleRequest struct {
	Role Role `json:"role" binding:"required,oneof=imam part_time"`
}
