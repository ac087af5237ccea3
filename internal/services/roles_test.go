package services

import "testing"

func TestNormalizeRoles(t *testing.T) {
	got := NormalizeRoles([]string{"sponsor", "Volunteer", "bogus", "ADMIN", " volunteer ", ""})
	want := []Role{RoleAdmin, RoleVolunteer, RoleSponsor}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("position %d: got %s, want %s", i, got[i], want[i])
		}
	}
}

func TestDeterminePrimaryRole(t *testing.T) {
	cases := []struct {
		name     string
		roles    []string
		fallback string
		want     Role
	}{
		{"highest wins", []string{"volunteer", "event_manager"}, "", RoleEventManager},
		{"admin over all", []string{"sponsor", "admin", "volunteer"}, "", RoleAdmin},
		{"fallback used", []string{"nope"}, "sponsor", RoleSponsor},
		{"invalid fallback", nil, "root", RoleVolunteer},
		{"empty", nil, "", RoleVolunteer},
	}
	for _, tc := range cases {
		if got := DeterminePrimaryRole(tc.roles, tc.fallback); got != tc.want {
			t.Fatalf("%s: got %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestPrimaryRoleOfEmptySet(t *testing.T) {
	if got := PrimaryRole(nil); got != RoleVolunteer {
		t.Fatalf("got %s", got)
	}
	if got := PrimaryRole([]Role{RoleSponsor, RoleEventManager}); got != RoleEventManager {
		t.Fatalf("got %s", got)
	}
}

func TestAuthorizeRoles(t *testing.T) {
	if !AuthorizeRoles([]string{"sponsor", "volunteer"}, RoleVolunteer) {
		t.Fatal("volunteer should pass")
	}
	if AuthorizeRoles([]string{"sponsor"}, RoleAdmin, RoleEventManager) {
		t.Fatal("sponsor should not pass admin/manager check")
	}
	if AuthorizeRoles(nil, RoleVolunteer) {
		t.Fatal("no roles should not pass")
	}
	actor := Actor{ID: "u1", Roles: []string{"admin"}}
	if !actor.IsAdmin() {
		t.Fatal("actor should be admin")
	}
}
