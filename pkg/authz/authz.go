// Package authz decides whether an identity satisfies a declarative
// role or group requirement attached to a route.
package authz

import (
	"github.com/keyportal/keyportal/pkg/errs"
	"github.com/keyportal/keyportal/pkg/identity"
)

const AdminRole = "admin"

// Requirement lists the acceptable roles, and optionally groups, for
// an operation. The identity passes if it holds any listed role, or,
// when groups are listed, any listed group.
type Requirement struct {
	Roles  []string
	Groups []string
}

func Roles(roles ...string) Requirement {
	return Requirement{Roles: roles}
}

// Authorize returns nil when the identity satisfies the requirement,
// or a Forbidden error carrying the unmet requirement.
func Authorize(id identity.Identity, req Requirement) error {
	for _, role := range req.Roles {
		if id.HasRole(role) {
			return nil
		}
	}
	for _, group := range req.Groups {
		if id.HasGroup(group) {
			return nil
		}
	}
	return &errs.Forbidden{RequiredRoles: req.Roles, RequiredGroups: req.Groups}
}

func RequireAdmin(id identity.Identity) error {
	return Authorize(id, Roles(AdminRole))
}
