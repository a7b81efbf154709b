package authz

// Screen is an opaque capability identifier a route or feature is
// gated behind. Screens are the unit of permission: a role either
// may or may not access a screen.
type Screen string

const (
	ScreenLogin        Screen = "login"
	ScreenDashboard    Screen = "dashboard"
	ScreenProfile      Screen = "profile"
	ScreenFoundations  Screen = "foundations"
	ScreenRegistration Screen = "registration"
	ScreenDocuments    Screen = "documents"
	ScreenMeetings     Screen = "meetings"
	ScreenExpenses     Screen = "expenses"
	ScreenInvestments  Screen = "investments"
	ScreenGrants       Screen = "grants"
	ScreenProjects     Screen = "projects"
	ScreenReports      Screen = "reports"
	ScreenSettings     Screen = "settings"
	ScreenUsers        Screen = "users"
)

// String returns the string representation of the screen.
func (s Screen) String() string {
	return string(s)
}
