package identity

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/lboeman/solarforecastarbiter-api/internal/shared"
)

type countingRepo struct {
	users        map[string]User
	indexLookups int
	idLookups    int
}

func (r *countingRepo) GetUserByAuth0ID(ctx context.Context, auth0ID string) (User, error) {
	r.indexLookups++
	u, ok := r.users[auth0ID]
	if !ok {
		return User{}, shared.ErrNotFound
	}
	return u, nil
}

func (r *countingRepo) GetUser(ctx context.Context, id uuid.UUID) (User, error) {
	r.idLookups++
	for _, u := range r.users {
		if u.ID == id {
			return u, nil
		}
	}
	return User{}, shared.ErrNotFound
}

func (r *countingRepo) CreateUserIfNotExists(ctx context.Context, auth0ID string) (User, error) {
	if u, ok := r.users[auth0ID]; ok {
		return u, nil
	}
	u := User{ID: uuid.New(), Auth0ID: auth0ID}
	r.users[auth0ID] = u
	return u, nil
}

func (r *countingRepo) UserInfo(ctx context.Context, auth0ID string) (UserInfo, error) {
	u, ok := r.users[auth0ID]
	if !ok {
		return UserInfo{}, shared.ErrNotFound
	}
	return UserInfo{UserID: u.ID, Auth0ID: u.Auth0ID}, nil
}

func newCacheFixture(t *testing.T) (*CachedRepository, *countingRepo, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	repo := &countingRepo{users: make(map[string]User)}
	return NewCachedRepository(repo, client, time.Minute), repo, mr
}

func TestCachedLookupSkipsIndexOnHit(t *testing.T) {
	cached, repo, _ := newCacheFixture(t)
	orgID := uuid.New()
	repo.users["auth0|alice"] = User{ID: uuid.New(), Auth0ID: "auth0|alice", OrganizationID: orgID}

	u, err := cached.GetUserByAuth0ID(context.Background(), "auth0|alice")
	require.NoError(t, err)
	require.Equal(t, orgID, u.OrganizationID)
	require.Equal(t, 1, repo.indexLookups)

	_, err = cached.GetUserByAuth0ID(context.Background(), "auth0|alice")
	require.NoError(t, err)
	require.Equal(t, 1, repo.indexLookups)
	require.Equal(t, 1, repo.idLookups)
}

func TestCachedLookupAlwaysReadsFreshOrganization(t *testing.T) {
	cached, repo, _ := newCacheFixture(t)
	userID := uuid.New()
	repo.users["auth0|alice"] = User{ID: userID, Auth0ID: "auth0|alice", OrganizationID: uuid.New()}

	_, err := cached.GetUserByAuth0ID(context.Background(), "auth0|alice")
	require.NoError(t, err)

	// A membership change must be visible on the next cached lookup.
	newOrg := uuid.New()
	repo.users["auth0|alice"] = User{ID: userID, Auth0ID: "auth0|alice", OrganizationID: newOrg}

	u, err := cached.GetUserByAuth0ID(context.Background(), "auth0|alice")
	require.NoError(t, err)
	require.Equal(t, newOrg, u.OrganizationID)
}

func TestCachedLookupRecoversFromStaleEntry(t *testing.T) {
	cached, repo, mr := newCacheFixture(t)
	repo.users["auth0|alice"] = User{ID: uuid.New(), Auth0ID: "auth0|alice"}
	require.NoError(t, mr.Set("identity:auth0:auth0|alice", uuid.NewString()))

	u, err := cached.GetUserByAuth0ID(context.Background(), "auth0|alice")
	require.NoError(t, err)
	require.Equal(t, repo.users["auth0|alice"].ID, u.ID)
}

func TestCachedLookupMiss(t *testing.T) {
	cached, _, _ := newCacheFixture(t)

	_, err := cached.GetUserByAuth0ID(context.Background(), "auth0|ghost")
	require.ErrorIs(t, err, shared.ErrNotFound)
}
