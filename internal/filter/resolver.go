package filter

// WindowHandle identifies the focused window. Zero means no window.
type WindowHandle uintptr

// Foreground is the platform's best-effort window query.
type Foreground interface {
	ForegroundWindow() WindowHandle
	ProcessName(h WindowHandle) (string, error)
}

// AppResolver maps the focused window to a lowercase app name, remembering
// the last handle so a lookup only happens when focus moves.
//
// Not safe for concurrent use; it belongs to the hook goroutine.
type AppResolver struct {
	fg Foreground

	primed     bool
	lastHandle WindowHandle
	lastName   string
}

// NewAppResolver wraps fg. A nil fg resolves every window to no identity.
func NewAppResolver(fg Foreground) *AppResolver {
	return &AppResolver{fg: fg}
}

// Current resolves the window that currently has focus.
func (r *AppResolver) Current() string {
	if r == nil || r.fg == nil {
		return ""
	}
	return r.Resolve(r.fg.ForegroundWindow())
}

// Resolve returns the app name for h, or "" when it has no identity.
// Lookup errors are cached as "no identity" and never retried for the same
// handle.
func (r *AppResolver) Resolve(h WindowHandle) string {
	if r == nil || r.fg == nil {
		return ""
	}
	if r.primed && h == r.lastHandle {
		return r.lastName
	}
	name := ""
	if h != 0 {
		if n, err := r.fg.ProcessName(h); err == nil {
			name = normalizeApp(n)
		}
	}
	r.primed = true
	r.lastHandle = h
	r.lastName = name
	return name
}

// Invalidate drops the cached entry.
func (r *AppResolver) Invalidate() {
	r.primed = false
	r.lastHandle = 0
	r.lastName = ""
}
