// Package authz implements declarative authorization: operations publish a
// Requirement value when their routes are mounted, and the interceptor
// middleware enforces it before dispatch. No reflection, no ambient state.
package authz

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// Combination selects how a requirement's permissions combine.
type Combination int

const (
	// CombineAll grants only when every permission is held.
	CombineAll Combination = iota
	// CombineAny grants when at least one permission is held.
	CombineAny
)

// OwnerFunc extracts the resource-owner id from a request. It must be
// unambiguous by construction: each operation supplies its own accessor at
// registration time instead of naming a parameter to be found at runtime.
type OwnerFunc func(*http.Request) (int64, bool)

// Requirement is the authorization metadata attached to one operation.
// The zero value requires authentication only.
type Requirement struct {
	Permissions []string
	Combine     Combination
	AllowSelf   bool
	Owner       OwnerFunc
}

// All requires every listed permission.
func All(perms ...string) Requirement {
	return Requirement{Permissions: perms, Combine: CombineAll}
}

// Any requires at least one of the listed permissions.
func Any(perms ...string) Requirement {
	return Requirement{Permissions: perms, Combine: CombineAny}
}

// SelfOwned returns a copy that also grants when the resource owner
// extracted by owner equals the acting principal.
func (r Requirement) SelfOwned(owner OwnerFunc) Requirement {
	r.AllowSelf = true
	r.Owner = owner
	return r
}

// OwnerFromURLParam builds an OwnerFunc reading a numeric chi URL
// parameter.
func OwnerFromURLParam(name string) OwnerFunc {
	return func(r *http.Request) (int64, bool) {
		raw := chi.URLParam(r, name)
		if raw == "" {
			return 0, false
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return 0, false
		}
		return id, true
	}
}
