// Package debug gates low-level startup diagnostics (config resolution,
// path discovery) behind ICPC_DEBUG so they don't clutter normal output
// but are there when diagnosing a misconfigured daemon.
package debug

import (
	"fmt"
	"os"
)

// Enabled reports whether ICPC_DEBUG is set to a truthy value.
func Enabled() bool {
	v := os.Getenv("ICPC_DEBUG")
	return v != "" && v != "0" && v != "false"
}

// Logf writes a formatted diagnostic line to stderr when debug output is
// enabled; a no-op otherwise.
func Logf(format string, args ...any) {
	if !Enabled() {
		return
	}
	fmt.Fprintf(os.Stderr, format, args...)
}
