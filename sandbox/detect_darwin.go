//go:build darwin

package sandbox

// Detect returns the platform backend for macOS. Callers should still
// check Available: sandbox-exec can be absent on stripped-down systems.
func Detect(paths Paths) Backend {
	return NewSeatbelt(paths)
}
