//go:build !windows

package hook

// NewSystem returns the platform hook for this OS.
func NewSystem() (Platform, error) {
	return nil, ErrUnsupported
}
