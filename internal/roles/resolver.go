package roles

import (
	"context"
	"strings"
)

// ResolverRepositoryPort is the read surface the resolver needs.
type ResolverRepositoryPort interface {
	ListOpenAssignments(ctx context.Context, employeeID int64) ([]Assignment, error)
	RolesForEmployee(ctx context.Context, employeeID int64) ([]Role, error)
}

// PrincipalPort answers system-level permission checks from the employee's
// authentication principal. This is the second, independent source of
// capabilities; it is ORed with role capabilities, never ANDed.
type PrincipalPort interface {
	SystemPermissions(ctx context.Context, employeeID int64) ([]string, error)
}

// Resolver answers role and capability questions against the ledger.
type Resolver struct {
	repo       ResolverRepositoryPort
	principals PrincipalPort
	cache      *PermissionCache
}

// NewResolver constructs a Resolver. principals and cache may be nil.
func NewResolver(repo ResolverRepositoryPort, principals PrincipalPort, cache *PermissionCache) *Resolver {
	return &Resolver{repo: repo, principals: principals, cache: cache}
}

// HasRole reports whether the employee holds an open grant of the role code.
// An open grant is active with a null end date. Only null-ness of the end
// date is checked, never its value against today: a grant carrying a future
// end date already reads as closed, and one without an end date reads as
// open indefinitely until revoked or swept.
func (r *Resolver) HasRole(ctx context.Context, employeeID int64, roleCode string) (bool, error) {
	roleCode = strings.ToUpper(strings.TrimSpace(roleCode))
	if roleCode == "" {
		return false, nil
	}
	if r.cache != nil {
		if hit, value, err := r.cache.Get(ctx, employeeID, "role:"+roleCode); err == nil && hit {
			return value, nil
		}
	}
	assignments, err := r.repo.ListOpenAssignments(ctx, employeeID)
	if err != nil {
		return false, err
	}
	found := false
	for _, a := range assignments {
		if a.RoleCode == roleCode {
			found = true
			break
		}
	}
	if r.cache != nil {
		_ = r.cache.Set(ctx, employeeID, "role:"+roleCode, found)
	}
	return found, nil
}

// HasCapability reports whether any open role grant exposes the capability,
// or the employee's authentication principal independently carries an
// equivalent system permission. The two predicates are evaluated separately
// and combined with a logical OR.
func (r *Resolver) HasCapability(ctx context.Context, employeeID int64, capability string) (bool, error) {
	capability = strings.TrimSpace(capability)
	if capability == "" {
		return false, nil
	}
	if r.cache != nil {
		if hit, value, err := r.cache.Get(ctx, employeeID, "cap:"+capability); err == nil && hit {
			return value, nil
		}
	}
	byRole, err := r.roleGrantsCapability(ctx, employeeID, capability)
	if err != nil {
		return false, err
	}
	byPrincipal, err := r.principalGrantsPermission(ctx, employeeID, capability)
	if err != nil {
		return false, err
	}
	granted := byRole || byPrincipal
	if r.cache != nil {
		_ = r.cache.Set(ctx, employeeID, "cap:"+capability, granted)
	}
	return granted, nil
}

// ListActiveRoles returns the distinct roles behind the employee's open
// grants.
func (r *Resolver) ListActiveRoles(ctx context.Context, employeeID int64) ([]Role, error) {
	return r.repo.RolesForEmployee(ctx, employeeID)
}

func (r *Resolver) roleGrantsCapability(ctx context.Context, employeeID int64, capability string) (bool, error) {
	held, err := r.repo.RolesForEmployee(ctx, employeeID)
	if err != nil {
		return false, err
	}
	for _, role := range held {
		if role.Capabilities[capability] {
			return true, nil
		}
	}
	return false, nil
}

func (r *Resolver) principalGrantsPermission(ctx context.Context, employeeID int64, capability string) (bool, error) {
	if r.principals == nil {
		return false, nil
	}
	perms, err := r.principals.SystemPermissions(ctx, employeeID)
	if err != nil {
		return false, err
	}
	for _, p := range perms {
		if p == capability {
			return true, nil
		}
	}
	return false, nil
}
