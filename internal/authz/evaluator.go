package authz

import (
	"context"
	"errors"

	"github.com/praxis-platform/praxis/internal/shared"
)

// Decision reasons. Produced per-request, never persisted.
const (
	ReasonGranted                = "GRANTED"
	ReasonSelfAccess             = "SELF_ACCESS"
	ReasonInsufficientPermission = "INSUFFICIENT_PERMISSION"
	ReasonPrincipalNotFound      = "PRINCIPAL_NOT_FOUND"
)

// Decision is the outcome of one authorization check.
type Decision struct {
	Granted bool
	Reason  string
}

// Resolver maps a user to their effective permission set. Implementations
// must return shared.ErrPrincipalNotFound for unknown users so the
// evaluator can default-deny.
type Resolver interface {
	EffectivePermissions(ctx context.Context, userID int64) ([]string, error)
}

// Evaluator is the pure decision function of the authorization core. It has
// no side effects beyond the resolver lookup and is safe for concurrent
// use.
type Evaluator struct {
	resolver Resolver
}

// NewEvaluator constructs an Evaluator.
func NewEvaluator(resolver Resolver) *Evaluator {
	return &Evaluator{resolver: resolver}
}

// Evaluate decides whether userID may perform an operation carrying req.
// ownerID is the resource owner when the operation could extract one, nil
// otherwise. A non-nil error means the decision could not be made at all.
func (e *Evaluator) Evaluate(ctx context.Context, userID int64, req Requirement, ownerID *int64) (Decision, error) {
	granted, err := e.resolver.EffectivePermissions(ctx, userID)
	if err != nil {
		if errors.Is(err, shared.ErrPrincipalNotFound) {
			return Decision{Reason: ReasonPrincipalNotFound}, nil
		}
		return Decision{}, err
	}

	// An operation with no specific permissions requires authentication
	// only. A nil permission list is treated the same as an empty one.
	if len(req.Permissions) == 0 {
		return Decision{Granted: true, Reason: ReasonGranted}, nil
	}

	held := make(map[string]struct{}, len(granted))
	for _, p := range granted {
		held[p] = struct{}{}
	}

	satisfied := false
	switch req.Combine {
	case CombineAll:
		satisfied = true
		for _, p := range req.Permissions {
			if _, ok := held[p]; !ok {
				satisfied = false
				break
			}
		}
	case CombineAny:
		for _, p := range req.Permissions {
			if _, ok := held[p]; ok {
				satisfied = true
				break
			}
		}
	}
	if satisfied {
		return Decision{Granted: true, Reason: ReasonGranted}, nil
	}

	if req.AllowSelf && ownerID != nil && *ownerID == userID {
		return Decision{Granted: true, Reason: ReasonSelfAccess}, nil
	}

	return Decision{Reason: ReasonInsufficientPermission}, nil
}
