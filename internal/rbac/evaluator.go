package rbac

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/lboeman/solarforecastarbiter-api/internal/identity"
	"github.com/lboeman/solarforecastarbiter-api/internal/shared"
)

// Reader is the read-only slice of the model the evaluator consumes. Both the
// pool-backed repository and its transactional view satisfy it, so operations
// can evaluate authorization inside the same transaction that applies their
// mutation.
type Reader interface {
	ResolveSubject(ctx context.Context, auth0ID string) (identity.User, error)
	UserPermissions(ctx context.Context, userID uuid.UUID) ([]Permission, error)
}

// ObjectGrants is the externally maintained per-object grant association
// consulted when a permission does not apply to all objects of its type.
type ObjectGrants interface {
	HasGrant(ctx context.Context, permissionID, objectID uuid.UUID) (bool, error)
}

// Evaluator answers whether a subject may act on an object. It never mutates
// state, and absence of permission is an ordinary false, not an error.
type Evaluator struct {
	grants ObjectGrants
}

// NewEvaluator constructs an Evaluator. grants may be nil, in which case
// object-scoped permissions never match.
func NewEvaluator(grants ObjectGrants) *Evaluator {
	return &Evaluator{grants: grants}
}

// CanPerform reports whether the subject may perform action on the identified
// object. Unknown subjects and subjects with no granted roles yield false.
func (e *Evaluator) CanPerform(ctx context.Context, r Reader, subject string, objectType ObjectType, objectID uuid.UUID, action Action) (bool, error) {
	perms, err := e.subjectPermissions(ctx, r, subject)
	if err != nil || perms == nil {
		return false, err
	}
	for _, p := range perms {
		if p.Action != action || p.ObjectType != objectType {
			continue
		}
		if p.AppliesToAll {
			return true, nil
		}
		if e.grants == nil {
			continue
		}
		ok, err := e.grants.HasGrant(ctx, p.ID, objectID)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// CanCreate reports whether the subject may create objects of the given type.
// Only applies-to-all permissions count: an object that does not exist yet
// cannot carry a specific-object grant.
func (e *Evaluator) CanCreate(ctx context.Context, r Reader, subject string, objectType ObjectType) (bool, error) {
	perms, err := e.subjectPermissions(ctx, r, subject)
	if err != nil || perms == nil {
		return false, err
	}
	for _, p := range perms {
		if p.Action == ActionCreate && p.ObjectType == objectType && p.AppliesToAll {
			return true, nil
		}
	}
	return false, nil
}

func (e *Evaluator) subjectPermissions(ctx context.Context, r Reader, subject string) ([]Permission, error) {
	user, err := r.ResolveSubject(ctx, subject)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.UserPermissions(ctx, user.ID)
}
