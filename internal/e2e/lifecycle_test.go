package e2e

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/lboeman/solarforecastarbiter-api/internal/identity"
	"github.com/lboeman/solarforecastarbiter-api/internal/invites"
	"github.com/lboeman/solarforecastarbiter-api/internal/org"
	"github.com/lboeman/solarforecastarbiter-api/internal/rbac"
	"github.com/lboeman/solarforecastarbiter-api/internal/shared"
	_ "github.com/lboeman/solarforecastarbiter-api/internal/testing/guard"
)

// store is a single in-memory model shared by the org, rbac and invites
// services, so a workflow can cross service boundaries the way it does
// against one database.
type store struct {
	orgs      map[uuid.UUID]org.Organization
	users     map[uuid.UUID]identity.User
	subjects  map[string]uuid.UUID
	roles     map[uuid.UUID]rbac.Role
	perms     map[uuid.UUID]rbac.Permission
	rolePerms map[uuid.UUID]map[uuid.UUID]bool
	userRoles map[uuid.UUID]map[uuid.UUID]bool
	invites   map[uuid.UUID]invites.Invite
}

func newStore() *store {
	return &store{
		orgs:      make(map[uuid.UUID]org.Organization),
		users:     make(map[uuid.UUID]identity.User),
		subjects:  make(map[string]uuid.UUID),
		roles:     make(map[uuid.UUID]rbac.Role),
		perms:     make(map[uuid.UUID]rbac.Permission),
		rolePerms: make(map[uuid.UUID]map[uuid.UUID]bool),
		userRoles: make(map[uuid.UUID]map[uuid.UUID]bool),
		invites:   make(map[uuid.UUID]invites.Invite),
	}
}

func (s *store) addUser(subject string, orgID uuid.UUID) uuid.UUID {
	id := uuid.New()
	s.users[id] = identity.User{ID: id, Auth0ID: subject, OrganizationID: orgID}
	s.subjects[subject] = id
	return id
}

func (s *store) resolveSubject(auth0ID string) (identity.User, error) {
	id, ok := s.subjects[auth0ID]
	if !ok {
		return identity.User{}, shared.ErrNotFound
	}
	return s.users[id], nil
}

func (s *store) userPermissions(userID uuid.UUID) []rbac.Permission {
	var perms []rbac.Permission
	for roleID := range s.userRoles[userID] {
		for permID := range s.rolePerms[roleID] {
			perms = append(perms, s.perms[permID])
		}
	}
	return perms
}

func (s *store) grantRole(userID, roleID uuid.UUID) bool {
	if s.userRoles[userID] == nil {
		s.userRoles[userID] = make(map[uuid.UUID]bool)
	}
	if s.userRoles[userID][roleID] {
		return false
	}
	s.userRoles[userID][roleID] = true
	return true
}

func (s *store) attach(roleID, permID uuid.UUID) bool {
	if s.rolePerms[roleID] == nil {
		s.rolePerms[roleID] = make(map[uuid.UUID]bool)
	}
	if s.rolePerms[roleID][permID] {
		return false
	}
	s.rolePerms[roleID][permID] = true
	return true
}

func (s *store) moveUser(userID, orgID uuid.UUID) error {
	u, ok := s.users[userID]
	if !ok {
		return shared.ErrNotFound
	}
	u.OrganizationID = orgID
	s.users[userID] = u
	return nil
}

// orgStore adapts store to the org repository ports.
type orgStore struct{ s *store }

func (r orgStore) WithTx(ctx context.Context, fn func(context.Context, org.TxRepository) error) error {
	return fn(ctx, r)
}

func (r orgStore) InsertOrganization(ctx context.Context, o org.Organization) error {
	for _, existing := range r.s.orgs {
		if existing.Name == o.Name {
			return shared.ErrConstraintViolation
		}
	}
	r.s.orgs[o.ID] = o
	return nil
}

func (r orgStore) GetOrganization(ctx context.Context, id uuid.UUID) (org.Organization, error) {
	o, ok := r.s.orgs[id]
	if !ok {
		return org.Organization{}, shared.ErrNotFound
	}
	return o, nil
}

func (r orgStore) GetOrganizationByName(ctx context.Context, name string) (org.Organization, error) {
	for _, o := range r.s.orgs {
		if o.Name == name {
			return o, nil
		}
	}
	return org.Organization{}, shared.ErrNotFound
}

func (r orgStore) ListOrganizations(ctx context.Context) ([]org.Organization, error) {
	out := make([]org.Organization, 0, len(r.s.orgs))
	for _, o := range r.s.orgs {
		out = append(out, o)
	}
	return out, nil
}

func (r orgStore) ListMembers(ctx context.Context) ([]org.Member, error) {
	out := make([]org.Member, 0, len(r.s.users))
	for _, u := range r.s.users {
		out = append(out, org.Member{UserID: u.ID, Auth0ID: u.Auth0ID, OrganizationID: u.OrganizationID})
	}
	return out, nil
}

func (r orgStore) EnsureUnaffiliated(ctx context.Context) error {
	if _, err := r.GetOrganizationByName(ctx, org.UnaffiliatedName); err == nil {
		return nil
	}
	id := uuid.New()
	r.s.orgs[id] = org.Organization{ID: id, Name: org.UnaffiliatedName, AcceptedTOU: true}
	return nil
}

func (r orgStore) SetAcceptedTOU(ctx context.Context, id uuid.UUID) (bool, error) {
	o, ok := r.s.orgs[id]
	if !ok {
		return false, nil
	}
	o.AcceptedTOU = true
	r.s.orgs[id] = o
	return true, nil
}

func (r orgStore) GetUser(ctx context.Context, id uuid.UUID) (identity.User, error) {
	u, ok := r.s.users[id]
	if !ok {
		return identity.User{}, shared.ErrNotFound
	}
	return u, nil
}

func (r orgStore) UpdateUserOrganization(ctx context.Context, userID, orgID uuid.UUID) error {
	return r.s.moveUser(userID, orgID)
}

func (r orgStore) DeleteUserRolesOwnedByOrg(ctx context.Context, userID, orgID uuid.UUID) error {
	for roleID := range r.s.userRoles[userID] {
		if r.s.roles[roleID].OrganizationID == orgID {
			delete(r.s.userRoles[userID], roleID)
		}
	}
	return nil
}

func (r orgStore) DeleteUser(ctx context.Context, userID uuid.UUID) (bool, error) {
	if _, ok := r.s.users[userID]; !ok {
		return false, nil
	}
	u := r.s.users[userID]
	delete(r.s.subjects, u.Auth0ID)
	delete(r.s.users, userID)
	delete(r.s.userRoles, userID)
	return true, nil
}

func (r orgStore) InsertRole(ctx context.Context, role rbac.Role) error {
	r.s.roles[role.ID] = role
	return nil
}

func (r orgStore) InsertPermission(ctx context.Context, perm rbac.Permission) error {
	r.s.perms[perm.ID] = perm
	return nil
}

func (r orgStore) AttachPermissionToRole(ctx context.Context, roleID, permID uuid.UUID) error {
	r.s.attach(roleID, permID)
	return nil
}

func (r orgStore) GetOrgRoleByName(ctx context.Context, orgID uuid.UUID, name string) (rbac.Role, error) {
	for _, role := range r.s.roles {
		if role.OrganizationID == orgID && role.Name == name {
			return role, nil
		}
	}
	return rbac.Role{}, shared.ErrNotFound
}

func (r orgStore) GrantRoleToUser(ctx context.Context, userID, roleID uuid.UUID) (bool, error) {
	return r.s.grantRole(userID, roleID), nil
}

// rbacStore adapts store to the rbac repository ports.
type rbacStore struct{ s *store }

func (r rbacStore) WithTx(ctx context.Context, fn func(context.Context, rbac.TxRepository) error) error {
	return fn(ctx, r)
}

func (r rbacStore) ResolveSubject(ctx context.Context, auth0ID string) (identity.User, error) {
	return r.s.resolveSubject(auth0ID)
}

func (r rbacStore) UserPermissions(ctx context.Context, userID uuid.UUID) ([]rbac.Permission, error) {
	return r.s.userPermissions(userID), nil
}

func (r rbacStore) GetUser(ctx context.Context, id uuid.UUID) (identity.User, error) {
	u, ok := r.s.users[id]
	if !ok {
		return identity.User{}, shared.ErrNotFound
	}
	return u, nil
}

func (r rbacStore) GetRole(ctx context.Context, id uuid.UUID) (rbac.Role, error) {
	role, ok := r.s.roles[id]
	if !ok {
		return rbac.Role{}, shared.ErrNotFound
	}
	return role, nil
}

func (r rbacStore) GetPermission(ctx context.Context, id uuid.UUID) (rbac.Permission, error) {
	perm, ok := r.s.perms[id]
	if !ok {
		return rbac.Permission{}, shared.ErrNotFound
	}
	return perm, nil
}

func (r rbacStore) RolePermissions(ctx context.Context, roleID uuid.UUID) ([]rbac.Permission, error) {
	var perms []rbac.Permission
	for permID := range r.s.rolePerms[roleID] {
		perms = append(perms, r.s.perms[permID])
	}
	return perms, nil
}

func (r rbacStore) ListRoles(ctx context.Context, orgID uuid.UUID) ([]rbac.Role, error) {
	var roles []rbac.Role
	for _, role := range r.s.roles {
		if role.OrganizationID == orgID {
			roles = append(roles, role)
		}
	}
	return roles, nil
}

func (r rbacStore) ListPermissions(ctx context.Context, orgID uuid.UUID) ([]rbac.Permission, error) {
	var perms []rbac.Permission
	for _, perm := range r.s.perms {
		if perm.OrganizationID == orgID {
			perms = append(perms, perm)
		}
	}
	return perms, nil
}

func (r rbacStore) InsertRole(ctx context.Context, role rbac.Role) error {
	r.s.roles[role.ID] = role
	return nil
}

func (r rbacStore) InsertPermission(ctx context.Context, perm rbac.Permission) error {
	r.s.perms[perm.ID] = perm
	return nil
}

func (r rbacStore) AttachPermissionToRole(ctx context.Context, roleID, permID uuid.UUID) (bool, error) {
	return r.s.attach(roleID, permID), nil
}

func (r rbacStore) GrantRoleToUser(ctx context.Context, userID, roleID uuid.UUID) (bool, error) {
	return r.s.grantRole(userID, roleID), nil
}

func (r rbacStore) RevokeRoleFromUser(ctx context.Context, userID, roleID uuid.UUID) (bool, error) {
	if !r.s.userRoles[userID][roleID] {
		return false, nil
	}
	delete(r.s.userRoles[userID], roleID)
	return true, nil
}

func (r rbacStore) RoleHasAdminPermission(ctx context.Context, roleID uuid.UUID) (bool, error) {
	for permID := range r.s.rolePerms[roleID] {
		if r.s.perms[permID].Administrative() {
			return true, nil
		}
	}
	return false, nil
}

func (r rbacStore) RoleGrantedOutsideOrg(ctx context.Context, roleID, orgID uuid.UUID) (bool, error) {
	for userID, roles := range r.s.userRoles {
		if roles[roleID] && r.s.users[userID].OrganizationID != orgID {
			return true, nil
		}
	}
	return false, nil
}

func (r rbacStore) DeleteRole(ctx context.Context, id uuid.UUID) (bool, error) {
	if _, ok := r.s.roles[id]; !ok {
		return false, nil
	}
	delete(r.s.roles, id)
	delete(r.s.rolePerms, id)
	for userID := range r.s.userRoles {
		delete(r.s.userRoles[userID], id)
	}
	return true, nil
}

func (r rbacStore) DeletePermission(ctx context.Context, id uuid.UUID) (bool, error) {
	if _, ok := r.s.perms[id]; !ok {
		return false, nil
	}
	delete(r.s.perms, id)
	for roleID := range r.s.rolePerms {
		delete(r.s.rolePerms[roleID], id)
	}
	return true, nil
}

// inviteStore adapts store to the invites repository ports.
type inviteStore struct{ s *store }

func (r inviteStore) WithTx(ctx context.Context, fn func(context.Context, invites.TxRepository) error) error {
	return fn(ctx, r)
}

func (r inviteStore) ResolveSubject(ctx context.Context, auth0ID string) (identity.User, error) {
	return r.s.resolveSubject(auth0ID)
}

func (r inviteStore) UserPermissions(ctx context.Context, userID uuid.UUID) ([]rbac.Permission, error) {
	return r.s.userPermissions(userID), nil
}

func (r inviteStore) GetInvite(ctx context.Context, id uuid.UUID) (invites.Invite, error) {
	iv, ok := r.s.invites[id]
	if !ok {
		return invites.Invite{}, shared.ErrNotFound
	}
	return iv, nil
}

func (r inviteStore) InsertInvite(ctx context.Context, invite invites.Invite) error {
	r.s.invites[invite.ID] = invite
	return nil
}

func (r inviteStore) DeleteInvite(ctx context.Context, id uuid.UUID) (bool, error) {
	if _, ok := r.s.invites[id]; !ok {
		return false, nil
	}
	delete(r.s.invites, id)
	return true, nil
}

func (r inviteStore) UpdateUserOrganization(ctx context.Context, userID, orgID uuid.UUID) error {
	return r.s.moveUser(userID, orgID)
}

func (r inviteStore) ListPendingForInvitee(ctx context.Context, auth0ID string) ([]invites.InviteWithOrg, error) {
	var out []invites.InviteWithOrg
	for _, iv := range r.s.invites {
		if iv.InviteeAuth0ID == auth0ID {
			out = append(out, invites.InviteWithOrg{Invite: iv, OrganizationName: r.s.orgs[iv.OrganizationID].Name})
		}
	}
	return out, nil
}

var (
	_ org.RepositoryPort     = orgStore{}
	_ org.TxRepository       = orgStore{}
	_ rbac.RepositoryPort    = rbacStore{}
	_ rbac.TxRepository      = rbacStore{}
	_ invites.RepositoryPort = inviteStore{}
	_ invites.TxRepository   = inviteStore{}
)

// TestOrganizationCollaborationLifecycle walks the whole lifecycle: bootstrap
// an organization, promote an admin, share data access with an outside
// collaborator, then bring the collaborator in through an invite.
func TestOrganizationCollaborationLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newStore()
	eval := rbac.NewEvaluator(nil)

	orgService := org.NewService(orgStore{s}, nil)
	rbacService := rbac.NewService(rbacStore{s}, eval, nil)
	inviteService := invites.NewService(inviteStore{s}, eval)

	require.NoError(t, orgService.EnsureUnaffiliated(ctx))
	unaffiliated, err := orgStore{s}.GetOrganizationByName(ctx, org.UnaffiliatedName)
	require.NoError(t, err)

	vendor, err := orgService.CreateOrganization(ctx, "Forecast Vendor")
	require.NoError(t, err)

	// New identities land in Unaffiliated; the admin is moved in and promoted.
	adminID := s.addUser("auth0|admin", unaffiliated.ID)
	require.NoError(t, orgService.AddUserToOrg(ctx, adminID, vendor.ID))
	require.NoError(t, orgService.PromoteUserToOrgAdmin(ctx, adminID, vendor.ID))

	// The promoted admin can now mint roles and permissions.
	analystRole, err := rbacService.CreateRole(ctx, "auth0|admin", "Analysts", "forecast analysts")
	require.NoError(t, err)
	readPerm, err := rbacService.CreatePermission(ctx, "auth0|admin", rbac.PermissionParams{
		Description: "read forecasts", Action: rbac.ActionRead,
		ObjectType: rbac.ObjectForecasts, AppliesToAll: true,
	})
	require.NoError(t, err)
	require.NoError(t, rbacService.AddPermissionToRole(ctx, "auth0|admin", analystRole.ID, readPerm.ID))

	// A collaborator in another organization can receive the analyst role.
	partner, err := orgService.CreateOrganization(ctx, "Partner Utility")
	require.NoError(t, err)
	collaboratorID := s.addUser("auth0|collab", partner.ID)
	require.NoError(t, rbacService.AddRoleToUser(ctx, "auth0|admin", collaboratorID, analystRole.ID))

	ok, err := rbacService.CanPerform(ctx, "auth0|collab", rbac.ObjectForecasts, uuid.New(), rbac.ActionRead)
	require.NoError(t, err)
	require.True(t, ok)

	// The admin default roles must not cross the boundary.
	adminRole, err := orgStore{s}.GetOrgRoleByName(ctx, vendor.ID,
		"Administer data access controls (Forecast Vendor)")
	require.NoError(t, err)
	err = rbacService.AddRoleToUser(ctx, "auth0|admin", collaboratorID, adminRole.ID)
	require.ErrorIs(t, err, shared.ErrAccessDenied)

	// Admins hold create on invites through no default role, so grant one.
	invitePerm, err := rbacService.CreatePermission(ctx, "auth0|admin", rbac.PermissionParams{
		Description: "invite collaborators", Action: rbac.ActionCreate,
		ObjectType: rbac.ObjectInvites, AppliesToAll: true,
	})
	require.NoError(t, err)
	inviterRole, err := rbacService.CreateRole(ctx, "auth0|admin", "Inviters", "")
	require.NoError(t, err)
	require.NoError(t, rbacService.AddPermissionToRole(ctx, "auth0|admin", inviterRole.ID, invitePerm.ID))
	require.NoError(t, rbacService.AddRoleToUser(ctx, "auth0|admin", adminID, inviterRole.ID))

	invite, err := inviteService.CreateInvite(ctx, "auth0|admin", "auth0|collab")
	require.NoError(t, err)
	require.NoError(t, inviteService.AcceptInvite(ctx, "auth0|collab", invite.ID))

	moved, err := s.resolveSubject("auth0|collab")
	require.NoError(t, err)
	require.Equal(t, vendor.ID, moved.OrganizationID)

	// Joining the organization keeps previously shared grants intact.
	ok, err = rbacService.CanPerform(ctx, "auth0|collab", rbac.ObjectForecasts, uuid.New(), rbac.ActionRead)
	require.NoError(t, err)
	require.True(t, ok)

	// Leaving strips grants owned by the organization being left.
	require.NoError(t, orgService.RemoveUserFromOrg(ctx, collaboratorID))
	ok, err = rbacService.CanPerform(ctx, "auth0|collab", rbac.ObjectForecasts, uuid.New(), rbac.ActionRead)
	require.NoError(t, err)
	require.False(t, ok)
}
