//go:build windows

package sandbox

import (
	"os"
	"path/filepath"
	"strings"
)

// Detect returns the platform backend for Windows, choosing between the
// cmd and PowerShell restricted shells based on the configured COMSPEC.
func Detect(_ Paths) Backend {
	comspec := filepath.Base(os.Getenv("COMSPEC"))
	if strings.Contains(strings.ToLower(comspec), "powershell") {
		return NewPowerShellRestricted()
	}
	return NewCmdRestricted()
}
