package roles

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type staticPrincipals struct {
	perms map[int64][]string
}

func (s staticPrincipals) SystemPermissions(_ context.Context, employeeID int64) ([]string, error) {
	return s.perms[employeeID], nil
}

func TestHasRoleChecksNullnessNotToday(t *testing.T) {
	repo := newMemRepo()
	ctx := context.Background()
	roleID, err := repo.InsertRole(ctx, Role{Code: "MANAGER", Label: "Manager", Active: true})
	require.NoError(t, err)

	// An end date far in the future still closes the grant: only the
	// null-ness of the end date is consulted, never its value.
	future := time.Now().AddDate(10, 0, 0)
	_, err = repo.InsertAssignment(ctx, Assignment{
		EmployeeID: 7, RoleID: roleID, RoleCode: "MANAGER",
		StartDate: time.Now(), EndDate: &future, Active: true,
	})
	require.NoError(t, err)

	resolver := NewResolver(repo, nil, nil)
	has, err := resolver.HasRole(ctx, 7, "MANAGER")
	require.NoError(t, err)
	require.False(t, has)

	_, err = repo.InsertAssignment(ctx, Assignment{
		EmployeeID: 7, RoleID: roleID, RoleCode: "MANAGER",
		StartDate: time.Now(), Active: true,
	})
	require.NoError(t, err)

	has, err = resolver.HasRole(ctx, 7, "manager")
	require.NoError(t, err)
	require.True(t, has)
}

func TestHasRoleIgnoresInactiveRows(t *testing.T) {
	repo := newMemRepo()
	ctx := context.Background()
	roleID, err := repo.InsertRole(ctx, Role{Code: "DRH", Label: "HR director", Active: true})
	require.NoError(t, err)
	_, err = repo.InsertAssignment(ctx, Assignment{
		EmployeeID: 7, RoleID: roleID, RoleCode: "DRH",
		StartDate: time.Now(), Active: false,
	})
	require.NoError(t, err)

	resolver := NewResolver(repo, nil, nil)
	has, err := resolver.HasRole(ctx, 7, "DRH")
	require.NoError(t, err)
	require.False(t, has)
}

func TestHasCapabilityCombinesSourcesWithOr(t *testing.T) {
	repo := newMemRepo()
	ctx := context.Background()
	roleID, err := repo.InsertRole(ctx, Role{
		Code: "RH_VALIDATION", Label: "HR validation", Active: true,
		Capabilities: map[string]bool{"validate_absence_rh": true},
	})
	require.NoError(t, err)
	_, err = repo.InsertAssignment(ctx, Assignment{
		EmployeeID: 10, RoleID: roleID, RoleCode: "RH_VALIDATION",
		StartDate: time.Now(), Active: true,
	})
	require.NoError(t, err)

	principals := staticPrincipals{perms: map[int64][]string{
		20: {"validate_absence_rh"},
	}}
	resolver := NewResolver(repo, principals, nil)

	// Source one: an open role grant exposing the capability.
	has, err := resolver.HasCapability(ctx, 10, "validate_absence_rh")
	require.NoError(t, err)
	require.True(t, has)

	// Source two: the authentication principal alone, no role grant.
	has, err = resolver.HasCapability(ctx, 20, "validate_absence_rh")
	require.NoError(t, err)
	require.True(t, has)

	// Neither source grants anything.
	has, err = resolver.HasCapability(ctx, 30, "validate_absence_rh")
	require.NoError(t, err)
	require.False(t, has)
}

func TestHasCapabilityIgnoresFalseFlags(t *testing.T) {
	repo := newMemRepo()
	ctx := context.Background()
	roleID, err := repo.InsertRole(ctx, Role{
		Code: "AUDITOR", Label: "Auditor", Active: true,
		Capabilities: map[string]bool{"view_audit": false},
	})
	require.NoError(t, err)
	_, err = repo.InsertAssignment(ctx, Assignment{
		EmployeeID: 5, RoleID: roleID, RoleCode: "AUDITOR",
		StartDate: time.Now(), Active: true,
	})
	require.NoError(t, err)

	resolver := NewResolver(repo, nil, nil)
	has, err := resolver.HasCapability(ctx, 5, "view_audit")
	require.NoError(t, err)
	require.False(t, has)
}
