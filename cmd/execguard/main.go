// Command execguard classifies commands proposed by automated agents and
// executes approved ones inside a platform sandbox.
package main

import (
	"fmt"
	"os"

	"github.com/sangderenard/execguard/sandbox"
)

func main() {
	// Re-exec sandbox-init mode never returns.
	if sandbox.MaybeInit() {
		return
	}
	code, err := execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "execguard:", err)
		if code == 0 {
			code = 1
		}
	}
	os.Exit(code)
}
