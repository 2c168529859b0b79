// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package procgroup detaches child processes from the daemon's process group
// so terminal signals aimed at the daemon do not reach them.
package procgroup

import "os/exec"

// Set configures cmd to start in its own process group. Call before Start.
func Set(cmd *exec.Cmd) {
	set(cmd)
}
