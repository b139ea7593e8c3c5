//go:build !darwin && !linux && !windows

package sandbox

// Detect returns the unconfined backend on platforms with no local
// sandboxing facility. Callers wanting confinement here should configure
// the GenericApi backend instead.
func Detect(_ Paths) Backend {
	return NewNone()
}
