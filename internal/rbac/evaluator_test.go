package rbac

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/lboeman/solarforecastarbiter-api/internal/identity"
	"github.com/lboeman/solarforecastarbiter-api/internal/shared"
)

type stubReader struct {
	users map[string]identity.User
	perms map[uuid.UUID][]Permission
}

func (r stubReader) ResolveSubject(ctx context.Context, auth0ID string) (identity.User, error) {
	u, ok := r.users[auth0ID]
	if !ok {
		return identity.User{}, shared.ErrNotFound
	}
	return u, nil
}

func (r stubReader) UserPermissions(ctx context.Context, userID uuid.UUID) ([]Permission, error) {
	return r.perms[userID], nil
}

type stubGrants map[uuid.UUID]map[uuid.UUID]bool

func (g stubGrants) HasGrant(ctx context.Context, permissionID, objectID uuid.UUID) (bool, error) {
	return g[permissionID][objectID], nil
}

func TestCanPerformUnknownSubject(t *testing.T) {
	eval := NewEvaluator(nil)
	reader := stubReader{users: map[string]identity.User{}}

	ok, err := eval.CanPerform(context.Background(), reader, "auth0|ghost", ObjectForecasts, uuid.New(), ActionRead)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCanPerformAppliesToAll(t *testing.T) {
	userID := uuid.New()
	reader := stubReader{
		users: map[string]identity.User{"auth0|alice": {ID: userID}},
		perms: map[uuid.UUID][]Permission{userID: {
			{ID: uuid.New(), Action: ActionRead, ObjectType: ObjectForecasts, AppliesToAll: true},
		}},
	}
	eval := NewEvaluator(nil)

	ok, err := eval.CanPerform(context.Background(), reader, "auth0|alice", ObjectForecasts, uuid.New(), ActionRead)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = eval.CanPerform(context.Background(), reader, "auth0|alice", ObjectForecasts, uuid.New(), ActionDelete)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = eval.CanPerform(context.Background(), reader, "auth0|alice", ObjectObservations, uuid.New(), ActionRead)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCanPerformObjectScoped(t *testing.T) {
	userID := uuid.New()
	permID := uuid.New()
	grantedObject := uuid.New()
	reader := stubReader{
		users: map[string]identity.User{"auth0|alice": {ID: userID}},
		perms: map[uuid.UUID][]Permission{userID: {
			{ID: permID, Action: ActionRead, ObjectType: ObjectSites, AppliesToAll: false},
		}},
	}

	// Without a grant association the scoped permission never matches.
	eval := NewEvaluator(nil)
	ok, err := eval.CanPerform(context.Background(), reader, "auth0|alice", ObjectSites, grantedObject, ActionRead)
	require.NoError(t, err)
	require.False(t, ok)

	eval = NewEvaluator(stubGrants{permID: {grantedObject: true}})
	ok, err = eval.CanPerform(context.Background(), reader, "auth0|alice", ObjectSites, grantedObject, ActionRead)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = eval.CanPerform(context.Background(), reader, "auth0|alice", ObjectSites, uuid.New(), ActionRead)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCanCreateIgnoresObjectScopedPermissions(t *testing.T) {
	userID := uuid.New()
	scoped := uuid.New()
	reader := stubReader{
		users: map[string]identity.User{"auth0|alice": {ID: userID}},
		perms: map[uuid.UUID][]Permission{userID: {
			{ID: scoped, Action: ActionCreate, ObjectType: ObjectReports, AppliesToAll: false},
		}},
	}
	eval := NewEvaluator(stubGrants{scoped: {uuid.New(): true}})

	ok, err := eval.CanCreate(context.Background(), reader, "auth0|alice", ObjectReports)
	require.NoError(t, err)
	require.False(t, ok)

	reader.perms[userID] = append(reader.perms[userID],
		Permission{ID: uuid.New(), Action: ActionCreate, ObjectType: ObjectReports, AppliesToAll: true})
	ok, err = eval.CanCreate(context.Background(), reader, "auth0|alice", ObjectReports)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestParseActionAndObjectType(t *testing.T) {
	a, err := ParseAction("write_values")
	require.NoError(t, err)
	require.Equal(t, ActionWriteValues, a)

	_, err = ParseAction("annihilate")
	require.Error(t, err)

	o, err := ParseObjectType("cdf_forecasts")
	require.NoError(t, err)
	require.Equal(t, ObjectCDFForecasts, o)

	_, err = ParseObjectType("widgets")
	require.Error(t, err)
}
