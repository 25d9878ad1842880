package service_test

import (
	"context"
	"testing"

	"github.com/perkpoint/loyalty-platform/services/auth/internal/domain"
)

func hasRole(roles []string, want string) bool {
	for _, r := range roles {
		if r == want {
			return true
		}
	}
	return false
}

func TestAssignRolesGrants(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	user := activeUser(t, f)

	roles, err := f.svc.AssignRoles(ctx, user.ID, []string{"staff", "store_manager"})
	if err != nil {
		t.Fatalf("AssignRoles: %v", err)
	}

	for _, want := range []string{"customer", "staff", "store_manager"} {
		if !hasRole(roles, want) {
			t.Errorf("roles %v missing %s", roles, want)
		}
	}
}

func TestAssignRolesIdempotent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	user := activeUser(t, f)

	first, err := f.svc.AssignRoles(ctx, user.ID, []string{"staff"})
	if err != nil {
		t.Fatalf("AssignRoles: %v", err)
	}
	second, err := f.svc.AssignRoles(ctx, user.ID, []string{"staff"})
	if err != nil {
		t.Fatalf("repeated AssignRoles: %v", err)
	}

	if len(first) != len(second) {
		t.Errorf("repeated grant changed role set: %v vs %v", first, second)
	}
}

func TestAssignRolesRejectsUnknownRole(t *testing.T) {
	f := newFixture()
	user := activeUser(t, f)

	if _, err := f.svc.AssignRoles(context.Background(), user.ID, []string{"superuser"}); err == nil {
		t.Error("AssignRoles accepted a role outside the closed set")
	}
}

func TestAssignRolesNormalizesCase(t *testing.T) {
	f := newFixture()
	user := activeUser(t, f)

	roles, err := f.svc.AssignRoles(context.Background(), user.ID, []string{" Staff ", "ADMIN"})
	if err != nil {
		t.Fatalf("AssignRoles: %v", err)
	}
	if !hasRole(roles, "staff") || !hasRole(roles, "admin") {
		t.Errorf("roles = %v", roles)
	}
}

func TestRevokeRolesRemoves(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	user := activeUser(t, f)

	f.svc.AssignRoles(ctx, user.ID, []string{"staff", "admin"})
	roles, err := f.svc.RevokeRoles(ctx, user.ID, []string{"staff"})
	if err != nil {
		t.Fatalf("RevokeRoles: %v", err)
	}

	if hasRole(roles, "staff") {
		t.Errorf("staff still present: %v", roles)
	}
	if !hasRole(roles, "admin") || !hasRole(roles, "customer") {
		t.Errorf("roles = %v", roles)
	}
}

func TestRevokeAbsentRoleNoop(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	user := activeUser(t, f)

	roles, err := f.svc.RevokeRoles(ctx, user.ID, []string{"brand_manager"})
	if err != nil {
		t.Fatalf("RevokeRoles: %v", err)
	}
	if !hasRole(roles, "customer") {
		t.Errorf("roles = %v", roles)
	}
}

func TestRevokeAllRolesKeepsCustomerFloor(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	user := activeUser(t, f)

	f.svc.AssignRoles(ctx, user.ID, []string{"staff"})
	roles, err := f.svc.RevokeRoles(ctx, user.ID, []string{"customer", "staff"})
	if err != nil {
		t.Fatalf("RevokeRoles: %v", err)
	}

	if len(roles) != 1 || roles[0] != "customer" {
		t.Errorf("roles = %v, want [customer]", roles)
	}
}

func TestRolesUnknownUser(t *testing.T) {
	f := newFixture()

	if _, err := f.svc.AssignRoles(context.Background(), 999, []string{"staff"}); err != domain.ErrUserNotFound {
		t.Errorf("AssignRoles = %v, want ErrUserNotFound", err)
	}
}
