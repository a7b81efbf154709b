package authz

// PermissionTable maps every role to the set of screens it may
// access and to its default landing screen. The table is built once
// at process startup and treated as immutable afterwards; changing
// a grant requires a restart.
type PermissionTable struct {
	grants   map[Role]map[Screen]bool
	defaults map[Role]Screen
}

// DefaultPermissionTable returns the production permission table.
func DefaultPermissionTable() *PermissionTable {
	return NewPermissionTable(
		map[Role][]Screen{
			RoleAdmin: {
				ScreenDashboard, ScreenProfile, ScreenFoundations,
				ScreenRegistration, ScreenDocuments, ScreenMeetings,
				ScreenExpenses, ScreenInvestments, ScreenGrants,
				ScreenProjects, ScreenReports, ScreenSettings, ScreenUsers,
			},
			RoleFoundationOwner: {
				ScreenDashboard, ScreenProfile, ScreenFoundations,
				ScreenRegistration, ScreenDocuments, ScreenMeetings,
				ScreenExpenses, ScreenInvestments, ScreenGrants,
				ScreenProjects, ScreenReports, ScreenSettings,
			},
			RoleBoardMember: {
				ScreenDashboard, ScreenProfile, ScreenFoundations,
				ScreenDocuments, ScreenMeetings, ScreenExpenses,
				ScreenGrants, ScreenProjects, ScreenReports,
			},
			RoleMember: {
				ScreenDashboard, ScreenProfile, ScreenGrants,
				ScreenProjects, ScreenMeetings,
			},
			RoleAuditor: {
				ScreenDashboard, ScreenProfile, ScreenDocuments,
				ScreenExpenses, ScreenInvestments, ScreenReports,
			},
		},
		map[Role]Screen{
			RoleAdmin:           ScreenDashboard,
			RoleFoundationOwner: ScreenFoundations,
			RoleBoardMember:     ScreenMeetings,
			RoleMember:          ScreenDashboard,
			RoleAuditor:         ScreenReports,
		},
	)
}

// NewPermissionTable builds an immutable permission table from the
// given grants and default routes. A role listed in grants but
// missing a default route falls back to FallbackScreen.
func NewPermissionTable(grants map[Role][]Screen, defaults map[Role]Screen) *PermissionTable {
	t := &PermissionTable{
		grants:   make(map[Role]map[Screen]bool, len(grants)),
		defaults: make(map[Role]Screen, len(defaults)),
	}
	for role, screens := range grants {
		set := make(map[Screen]bool, len(screens))
		for _, s := range screens {
			set[s] = true
		}
		t.grants[role] = set
	}
	for role, screen := range defaults {
		t.defaults[role] = screen
	}
	return t
}

// screens returns the grant set for a role. A role without an entry
// yields nil, which every lookup treats as an empty set.
func (t *PermissionTable) screens(role Role) map[Screen]bool {
	return t.grants[role]
}

// defaultRoute returns the configured landing screen for a role and
// whether one exists.
func (t *PermissionTable) defaultRoute(role Role) (Screen, bool) {
	s, ok := t.defaults[role]
	return s, ok
}
