//go:build !linux

package sandbox

// MaybeInit is a no-op on platforms whose backends confine the child
// directly instead of re-executing the current binary.
func MaybeInit() bool { return false }
