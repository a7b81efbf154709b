package authz

import "sort"

// FallbackScreen is the documented safe default landing screen.
// An unrecognized role is routed here rather than failing, so a
// stale session surviving a permission-table change degrades to the
// login screen instead of an error.
const FallbackScreen = ScreenLogin

// Engine answers authorization questions against an immutable
// PermissionTable. All methods are pure lookups: they never return
// an error and never panic on unknown input; denial is the safe
// default for anything the table does not know.
type Engine struct {
	table *PermissionTable
}

// NewEngine creates an authorization engine over the given table.
func NewEngine(table *PermissionTable) *Engine {
	return &Engine{table: table}
}

// IsPermitted reports whether the role may access the screen.
// Unknown roles and unknown screens are denied.
func (e *Engine) IsPermitted(role Role, screen Screen) bool {
	return e.table.screens(role)[screen]
}

// PermittedScreens returns every screen the role may access. The
// result is sorted for stable presentation only; callers must not
// attach meaning to the order. An unknown role yields an empty slice.
func (e *Engine) PermittedScreens(role Role) []Screen {
	set := e.table.screens(role)
	screens := make([]Screen, 0, len(set))
	for s := range set {
		screens = append(screens, s)
	}
	sort.Slice(screens, func(i, j int) bool { return screens[i] < screens[j] })
	return screens
}

// DefaultRoute returns the landing screen for the role. Every known
// role maps to exactly one default; an unrecognized role falls back
// to FallbackScreen.
func (e *Engine) DefaultRoute(role Role) Screen {
	if s, ok := e.table.defaultRoute(role); ok {
		return s
	}
	return FallbackScreen
}
