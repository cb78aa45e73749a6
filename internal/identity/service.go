package identity

import (
	"context"
	"errors"

	"github.com/lboeman/solarforecastarbiter-api/internal/shared"
)

// Service resolves external subject identities to internal users. It performs
// no credential verification; callers supply an already-authenticated subject.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Resolve maps an opaque subject identity to the internal user and its current
// organization.
func (s *Service) Resolve(ctx context.Context, auth0ID string) (User, error) {
	return s.repo.GetUserByAuth0ID(ctx, auth0ID)
}

// CreateUserIfNotExists provisions a user on first contact from an external
// identity. Existing users are returned unchanged.
func (s *Service) CreateUserIfNotExists(ctx context.Context, auth0ID string) (User, error) {
	return s.repo.CreateUserIfNotExists(ctx, auth0ID)
}

// UserExists reports whether the subject identity has been seen before.
func (s *Service) UserExists(ctx context.Context, auth0ID string) (bool, error) {
	_, err := s.repo.GetUserByAuth0ID(ctx, auth0ID)
	if errors.Is(err, shared.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetCurrentUserInfo returns the caller's user record joined with organization
// name and role grants.
func (s *Service) GetCurrentUserInfo(ctx context.Context, auth0ID string) (UserInfo, error) {
	return s.repo.UserInfo(ctx, auth0ID)
}
