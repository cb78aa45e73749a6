package identity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// CachedRepository caches the subject-to-user-id edge in Redis. That mapping
// never changes once a user is provisioned, so a hit only short-circuits the
// auth0_id index lookup; the user row itself (and its organization reference,
// which membership operations rewrite) is always read fresh.
type CachedRepository struct {
	RepositoryPort
	client *redis.Client
	ttl    time.Duration
}

// NewCachedRepository wraps repo with a Redis lookup cache.
func NewCachedRepository(repo RepositoryPort, client *redis.Client, ttl time.Duration) *CachedRepository {
	return &CachedRepository{RepositoryPort: repo, client: client, ttl: ttl}
}

func cacheKey(auth0ID string) string {
	return "identity:auth0:" + auth0ID
}

// GetUserByAuth0ID resolves via the cached id when possible.
func (c *CachedRepository) GetUserByAuth0ID(ctx context.Context, auth0ID string) (User, error) {
	cached, err := c.client.Get(ctx, cacheKey(auth0ID)).Result()
	if err == nil {
		if id, parseErr := uuid.Parse(cached); parseErr == nil {
			user, getErr := c.RepositoryPort.GetUser(ctx, id)
			if getErr == nil {
				return user, nil
			}
		}
		// Stale or unparsable entry, fall through to the index lookup.
		_ = c.client.Del(ctx, cacheKey(auth0ID)).Err()
	} else if !errors.Is(err, redis.Nil) {
		// Redis being down never blocks resolution.
		return c.RepositoryPort.GetUserByAuth0ID(ctx, auth0ID)
	}

	user, err := c.RepositoryPort.GetUserByAuth0ID(ctx, auth0ID)
	if err != nil {
		return User{}, err
	}
	_ = c.client.Set(ctx, cacheKey(auth0ID), user.ID.String(), c.ttl).Err()
	return user, nil
}
