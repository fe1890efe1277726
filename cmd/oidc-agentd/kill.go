package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"syscall"
)

// runKill implements --kill: signals the daemon named by OIDC_PID to stop,
// removes its control socket, and prints unset statements for the caller's
// shell to eval, mirroring how ssh-agent -k tears down its own session.
func runKill() error {
	pidStr := os.Getenv("OIDC_PID")
	if pidStr == "" {
		return fmt.Errorf("OIDC_PID is not set, no agent to kill")
	}
	pid, err := strconv.Atoi(pidStr)
	if err != nil {
		return fmt.Errorf("OIDC_PID is not a valid pid: %q", pidStr)
	}

	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil && err != syscall.ESRCH {
		return fmt.Errorf("failed to signal pid %d: %w", pid, err)
	}

	if sock := os.Getenv("OIDC_SOCK"); sock != "" {
		os.Remove(sock)
		os.Remove(filepath.Dir(sock))
	}

	fmt.Println("unset OIDC_SOCK; unset OIDC_PID;")
	return nil
}
