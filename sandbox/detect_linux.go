//go:build linux

package sandbox

// Detect returns the platform backend for Linux. Callers should still
// check Available: Landlock requires kernel 5.13 or newer.
func Detect(paths Paths) Backend {
	return NewLandlock(paths)
}
