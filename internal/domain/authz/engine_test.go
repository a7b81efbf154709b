package authz

import "testing"

func TestEngine_IsPermitted(t *testing.T) {
	engine := NewEngine(DefaultPermissionTable())

	tests := []struct {
		name     string
		role     Role
		screen   Screen
		expected bool
	}{
		{"admin can access users", RoleAdmin, ScreenUsers, true},
		{"admin can access settings", RoleAdmin, ScreenSettings, true},
		{"owner can access registration", RoleFoundationOwner, ScreenRegistration, true},
		{"owner cannot access users", RoleFoundationOwner, ScreenUsers, false},
		{"member can access dashboard", RoleMember, ScreenDashboard, true},
		{"member can access meetings", RoleMember, ScreenMeetings, true},
		{"member cannot access settings", RoleMember, ScreenSettings, false},
		{"member cannot access expenses", RoleMember, ScreenExpenses, false},
		{"auditor can access reports", RoleAuditor, ScreenReports, true},
		{"auditor cannot access registration", RoleAuditor, ScreenRegistration, false},
		{"unknown role denied", Role("intruder"), ScreenDashboard, false},
		{"unknown screen denied", RoleAdmin, Screen("backdoor"), false},
		{"empty role denied", Role(""), ScreenDashboard, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := engine.IsPermitted(tt.role, tt.screen); got != tt.expected {
				t.Errorf("IsPermitted(%q, %q) = %v, want %v", tt.role, tt.screen, got, tt.expected)
			}
		})
	}
}

func TestEngine_PermittedScreensMatchesIsPermitted(t *testing.T) {
	engine := NewEngine(DefaultPermissionTable())

	allScreens := []Screen{
		ScreenLogin, ScreenDashboard, ScreenProfile, ScreenFoundations,
		ScreenRegistration, ScreenDocuments, ScreenMeetings, ScreenExpenses,
		ScreenInvestments, ScreenGrants, ScreenProjects, ScreenReports,
		ScreenSettings, ScreenUsers,
	}
	roles := []Role{
		RoleAdmin, RoleFoundationOwner, RoleBoardMember, RoleMember,
		RoleAuditor, Role("unknown"),
	}

	for _, role := range roles {
		permitted := make(map[Screen]bool)
		for _, s := range engine.PermittedScreens(role) {
			permitted[s] = true
		}
		for _, s := range allScreens {
			if engine.IsPermitted(role, s) != permitted[s] {
				t.Errorf("role %q screen %q: IsPermitted and PermittedScreens disagree", role, s)
			}
		}
	}
}

func TestEngine_PermittedScreensMember(t *testing.T) {
	engine := NewEngine(DefaultPermissionTable())

	got := engine.PermittedScreens(RoleMember)
	want := map[Screen]bool{
		ScreenDashboard: true,
		ScreenProfile:   true,
		ScreenGrants:    true,
		ScreenProjects:  true,
		ScreenMeetings:  true,
	}

	if len(got) != len(want) {
		t.Fatalf("PermittedScreens(member) = %v, want exactly %d screens", got, len(want))
	}
	for _, s := range got {
		if !want[s] {
			t.Errorf("PermittedScreens(member) contains unexpected screen %q", s)
		}
	}
}

func TestEngine_PermittedScreensUnknownRole(t *testing.T) {
	engine := NewEngine(DefaultPermissionTable())

	if got := engine.PermittedScreens(Role("ghost")); len(got) != 0 {
		t.Errorf("PermittedScreens(unknown) = %v, want empty", got)
	}
}

func TestEngine_DefaultRoute(t *testing.T) {
	engine := NewEngine(DefaultPermissionTable())

	tests := []struct {
		role     Role
		expected Screen
	}{
		{RoleAdmin, ScreenDashboard},
		{RoleFoundationOwner, ScreenFoundations},
		{RoleBoardMember, ScreenMeetings},
		{RoleMember, ScreenDashboard},
		{RoleAuditor, ScreenReports},
		{Role("unknown"), FallbackScreen},
		{Role(""), FallbackScreen},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			if got := engine.DefaultRoute(tt.role); got != tt.expected {
				t.Errorf("DefaultRoute(%q) = %q, want %q", tt.role, got, tt.expected)
			}
		})
	}
}

func TestEngine_DefaultRouteIsPermittedOrFallback(t *testing.T) {
	engine := NewEngine(DefaultPermissionTable())

	roles := []Role{
		RoleAdmin, RoleFoundationOwner, RoleBoardMember, RoleMember,
		RoleAuditor, Role("unknown"),
	}
	for _, role := range roles {
		route := engine.DefaultRoute(role)
		if route != FallbackScreen && !engine.IsPermitted(role, route) {
			t.Errorf("DefaultRoute(%q) = %q is neither permitted nor the fallback", role, route)
		}
	}
}

func TestRole_IsValid(t *testing.T) {
	tests := []struct {
		role     Role
		expected bool
	}{
		{RoleAdmin, true},
		{RoleMember, true},
		{RoleAuditor, true},
		{Role("INVALID"), false},
		{Role(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			if got := tt.role.IsValid(); got != tt.expected {
				t.Errorf("Role.IsValid() = %v, want %v", got, tt.expected)
			}
		})
	}
}
