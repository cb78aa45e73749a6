package org

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/lboeman/solarforecastarbiter-api/internal/rbac"
)

// Base names of the five roles created for every new organization. Role names
// are globally unique, so the stored name carries the organization name as a
// suffix; see defaultRoleName.
const (
	RoleReadAll     = "Read all"
	RoleWriteAll    = "Write all values"
	RoleCreateMeta  = "Create metadata"
	RoleDeleteMeta  = "Delete metadata"
	RoleAdminAccess = "Administer data access controls"
)

// adminDefaultRoles are the default roles granted by PromoteUserToOrgAdmin.
var adminDefaultRoles = []string{
	RoleCreateMeta, RoleReadAll, RoleWriteAll, RoleAdminAccess,
}

func defaultRoleName(base, orgName string) string {
	return fmt.Sprintf("%s (%s)", base, orgName)
}

// LegacyDefaultRoleNames returns the unsuffixed role names used before role
// bootstrap became per organization. Rows with these names are dead weight and
// are swept by the cleanup job.
func LegacyDefaultRoleNames() []string {
	return []string{
		RoleReadAll, RoleWriteAll, RoleCreateMeta, RoleDeleteMeta, RoleAdminAccess,
	}
}

type permSpec struct {
	action  rbac.Action
	objects []rbac.ObjectType
}

type roleSpec struct {
	base        string
	description string
	perms       []permSpec
}

// Sites carry no stored values, so the read-all role gets read_values only on
// value-bearing types.
var defaultRoleSpecs = []roleSpec{
	{
		base:        RoleReadAll,
		description: "View all data and metadata",
		perms: []permSpec{
			{rbac.ActionRead, []rbac.ObjectType{
				rbac.ObjectSites, rbac.ObjectObservations, rbac.ObjectForecasts,
				rbac.ObjectCDFForecasts, rbac.ObjectReports, rbac.ObjectAggregates}},
			{rbac.ActionReadValues, []rbac.ObjectType{
				rbac.ObjectObservations, rbac.ObjectForecasts,
				rbac.ObjectCDFForecasts, rbac.ObjectReports, rbac.ObjectAggregates}},
		},
	},
	{
		base:        RoleWriteAll,
		description: "Allows the user to submit data within the organization",
		perms: []permSpec{
			{rbac.ActionWriteValues, []rbac.ObjectType{
				rbac.ObjectObservations, rbac.ObjectForecasts,
				rbac.ObjectCDFForecasts, rbac.ObjectAggregates}},
		},
	},
	{
		base:        RoleCreateMeta,
		description: "Allows the user to create metadata types",
		perms: []permSpec{
			{rbac.ActionCreate, []rbac.ObjectType{
				rbac.ObjectObservations, rbac.ObjectForecasts,
				rbac.ObjectCDFForecasts, rbac.ObjectAggregates}},
		},
	},
	{
		base:        RoleDeleteMeta,
		description: "Allows the user to delete metadata",
		perms: []permSpec{
			{rbac.ActionDelete, []rbac.ObjectType{
				rbac.ObjectObservations, rbac.ObjectForecasts,
				rbac.ObjectCDFForecasts, rbac.ObjectAggregates}},
		},
	},
	{
		base:        RoleAdminAccess,
		description: "Administer users roles and permissions",
		perms: []permSpec{
			{rbac.ActionCreate, []rbac.ObjectType{rbac.ObjectRoles, rbac.ObjectPermissions}},
			{rbac.ActionUpdate, []rbac.ObjectType{rbac.ObjectRoles, rbac.ObjectPermissions}},
			{rbac.ActionGrant, []rbac.ObjectType{rbac.ObjectRoles}},
			{rbac.ActionRevoke, []rbac.ObjectType{rbac.ObjectRoles}},
		},
	},
}

// defaultRole is one fully materialized default role with its permissions.
type defaultRole struct {
	role  rbac.Role
	perms []rbac.Permission
}

// buildDefaultRoles materializes the five default roles for a new
// organization. Every permission applies to all objects of its type.
func buildDefaultRoles(orgID uuid.UUID, orgName string) []defaultRole {
	out := make([]defaultRole, 0, len(defaultRoleSpecs))
	for _, spec := range defaultRoleSpecs {
		dr := defaultRole{
			role: rbac.Role{
				ID:             uuid.New(),
				Name:           defaultRoleName(spec.base, orgName),
				Description:    spec.description,
				OrganizationID: orgID,
			},
		}
		for _, ps := range spec.perms {
			for _, obj := range ps.objects {
				dr.perms = append(dr.perms, rbac.Permission{
					ID:             uuid.New(),
					Description:    fmt.Sprintf("%s %s", ps.action, obj),
					OrganizationID: orgID,
					Action:         ps.action,
					ObjectType:     obj,
					AppliesToAll:   true,
				})
			}
		}
		out = append(out, dr)
	}
	return out
}
