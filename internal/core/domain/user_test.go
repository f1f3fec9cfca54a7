package domain

import "testing"

func TestRoleValid(t *testing.T) {
	for _, r := range []Role{RoleAdmin, RoleProjectManager, RoleDeveloper, RoleStakeholder} {
		if !r.Valid() {
			t.Fatalf("expected %q to be valid", r)
		}
	}
	for _, r := range []Role{"root", "", "Developer"} {
		if r.Valid() {
			t.Fatalf("expected %q to be invalid", r)
		}
	}
}

func TestDefaultRoleIsDeveloper(t *testing.T) {
	if DefaultRole != RoleDeveloper {
		t.Fatalf("expected developer default, got %s", DefaultRole)
	}
}

func TestProfileUpdate_Empty(t *testing.T) {
	if !(ProfileUpdate{}).Empty() {
		t.Fatalf("zero update should be empty")
	}
	name := "Ana"
	if (ProfileUpdate{FirstName: &name}).Empty() {
		t.Fatalf("update with a name should not be empty")
	}
}
