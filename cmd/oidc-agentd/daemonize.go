package main

import (
	"fmt"
	"os"
	"syscall"
)

// socketPathEnv carries the already-computed socket path across the
// daemonizing re-exec, so parent and child agree on where the control
// socket lives without the parent having to wait on the child.
const socketPathEnv = "OIDC_AGENTD_SOCKET_PATH"

// daemonized reports whether this process is the detached child, i.e.
// whether daemonize has already run once for this invocation.
func daemonized() bool {
	return os.Getenv(socketPathEnv) != ""
}

// daemonize re-execs the current binary detached from the controlling
// terminal, passing socketPath through so the child binds the same socket
// the parent already printed to the caller, then exits the parent. There
// is no ecosystem daemonization library in the retrieved corpus to ground
// this on, so it is built directly on os/syscall, the one place in this
// daemon that falls back to the standard library for an ambient concern.
func daemonize(socketPath string) error {
	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", os.DevNull, err)
	}
	defer devNull.Close()

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to resolve executable path: %w", err)
	}

	procAttr := &os.ProcAttr{
		Env:   append(os.Environ(), socketPathEnv+"="+socketPath),
		Files: []*os.File{devNull, devNull, devNull},
		Sys:   &syscall.SysProcAttr{Setsid: true},
	}

	proc, err := os.StartProcess(exe, append([]string{exe}, os.Args[1:]...), procAttr)
	if err != nil {
		return fmt.Errorf("failed to start detached process: %w", err)
	}

	fmt.Printf("OIDC_SOCK=%s; export OIDC_SOCK;\n", socketPath)
	fmt.Printf("OIDC_PID=%d; export OIDC_PID;\n", proc.Pid)

	if err := proc.Release(); err != nil {
		return fmt.Errorf("failed to release detached process: %w", err)
	}
	return nil
}
