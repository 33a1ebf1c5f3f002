//go:build windows

package transfer

import "os"

// Windows has no SIGTERM equivalent for arbitrary processes, so a cancel
// goes straight to a hard kill.
func terminate(p *os.Process) error {
	return p.Kill()
}
