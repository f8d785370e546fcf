package v1

import (
	"strings"

	"github.com/duynhne/masjid-connect-service/internal/core/domain"
)

// State is the onboarding state of a caller.
type State string

// Onboarding states in precedence order. The first that applies wins.
const (
	StateUnauthenticated   State = "unauthenticated"
	StateProfileIncomplete State = "profile_incomplete"
	StateRoleUnassigned    State = "role_unassigned"
	StateActive            State = "active"
)

// Client routes known to the gate.
const (
	RouteLogin        = "/login"
	RouteProfile      = "/profile"
	RouteRole         = "/role"
	RouteImamHome     = "/imam"
	RouteImamCreate   = "/imam/create"
	RouteImamEdit     = "/imam/edit/:id"
	RoutePartTimeHome = "/part-time"
)

var roleRoutes = map[domain.Role][]string{
	domain.RoleImam:     {RouteImamHome, RouteImamCreate, RouteImamEdit},
	domain.RolePartTime: {RoutePartTimeHome},
}

// GateState is the outcome of evaluating an identity and its profile.
type GateState struct {
	State State       `json:"state"`
	Role  domain.Role `json:"role,omitempty"`
	Home  string      `json:"home"`
	// Degraded is set when the profile could not be read and empty fields were assumed.
	Degraded bool            `json:"degraded,omitempty"`
	Profile  *domain.Profile `json:"profile,omitempty"`
}

// Active reports whether the state is active for role. An empty role matches any active role.
func (g GateState) Active(role domain.Role) bool {
	return g.State == StateActive && (role == domain.RoleUnset || g.Role == role)
}

// Decision is the answer to "may this caller open path?".
type Decision struct {
	Allowed  bool   `json:"allowed"`
	Redirect string `json:"redirect,omitempty"`
}

// Evaluate derives the gate state. A nil profile is treated as role-unset with empty fields.
func Evaluate(identity *domain.Identity, profile *domain.Profile) GateState {
	var gs GateState
	switch {
	case identity == nil || identity.ID == "":
		gs.State = StateUnauthenticated
	case !profile.Complete():
		gs.State = StateProfileIncomplete
	case !profile.RoleAssigned():
		gs.State = StateRoleUnassigned
	default:
		gs.State = StateActive
		gs.Role = profile.Role
	}
	gs.Home = HomeFor(gs.State, gs.Role)
	if identity != nil && identity.ID != "" {
		gs.Profile = profile
	}
	return gs
}

// HomeFor returns the landing route of a state.
func HomeFor(state State, role domain.Role) string {
	switch state {
	case StateProfileIncomplete:
		return RouteProfile
	case StateRoleUnassigned:
		return RouteRole
	case StateActive:
		switch role {
		case domain.RoleImam:
			return RouteImamHome
		case domain.RolePartTime:
			return RoutePartTimeHome
		}
	}
	return RouteLogin
}

// Route decides whether path is reachable in gs, or where to send the caller instead.
func Route(gs GateState, path string) Decision {
	path = cleanPath(path)

	var allowed bool
	switch gs.State {
	case StateUnauthenticated:
		allowed = path == RouteLogin
	case StateProfileIncomplete:
		allowed = path == RouteProfile
	case StateRoleUnassigned:
		allowed = path == RouteRole || path == RouteProfile
	case StateActive:
		allowed = path == RouteProfile
		for _, pattern := range roleRoutes[gs.Role] {
			if matchRoute(pattern, path) {
				allowed = true
				break
			}
		}
	}

	gateDecisions.WithLabelValues(string(gs.State), decisionLabel(allowed)).Inc()
	if allowed {
		return Decision{Allowed: true}
	}
	return Decision{Redirect: HomeFor(gs.State, gs.Role)}
}

func decisionLabel(allowed bool) string {
	if allowed {
		return "allow"
	}
	return "redirect"
}

func cleanPath(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	return path
}

// matchRoute matches a path against a pattern whose ":name" segments match one non-empty segment.
func matchRoute(pattern, path string) bool {
	ps := strings.Split(pattern, "/")
	xs := strings.Split(path, "/")
	if len(ps) != len(xs) {
		return false
	}
	for i := range ps {
		if strings.HasPrefix(ps[i], ":") {
			if xs[i] == "" {
				return false
			}
			continue
		}
		if ps[i] != xs[i] {
			return false
		}
	}
	return true
}
