package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/oklog/run"

	"github.com/oidc-agent/agentd/internal/account"
	"github.com/oidc-agent/agentd/internal/agent"
	"github.com/oidc-agent/agentd/internal/dispatcher"
	"github.com/oidc-agent/agentd/internal/housekeeping"
	"github.com/oidc-agent/agentd/internal/httpx"
	"github.com/oidc-agent/agentd/internal/lockstate"
	"github.com/oidc-agent/agentd/pkg/log"
)

func runServe(opts daemonOptions) error {
	socketPath := os.Getenv(socketPathEnv)
	if socketPath == "" {
		socketDir, err := socketDirFor(opts.socketDir)
		if err != nil {
			return fmt.Errorf("failed to create socket directory: %w", err)
		}
		socketPath = filepath.Join(socketDir, "agent.sock")
	}

	if !opts.console && !daemonized() {
		if err := daemonize(socketPath); err != nil {
			return fmt.Errorf("failed to daemonize: %w", err)
		}
		return nil
	}

	logger := log.NewSlogLogger(newLogger(opts.debug))

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", socketPath, err)
	}
	defer os.Remove(socketPath)
	if err := os.Chmod(socketPath, 0o600); err != nil {
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	if opts.console {
		fmt.Printf("OIDC_SOCK=%s; export OIDC_SOCK;\n", socketPath)
		fmt.Printf("OIDC_PID=%d; export OIDC_PID;\n", os.Getpid())
	}

	httpClient, err := httpx.New(opts.rootCAs, opts.insecureSkipVerify)
	if err != nil {
		return fmt.Errorf("failed to build HTTP client: %w", err)
	}

	agentCtx := agent.New(account.New(), lockstate.New(), httpClient, nil, logger)
	d := dispatcher.New(agentCtx)
	agentCtx.RedirectHelpers.SetRelay(d.CompleteRedirect)
	defer agentCtx.RedirectHelpers.StopAll()

	var gr run.Group

	ctx, cancel := context.WithCancel(context.Background())
	gr.Add(func() error {
		return d.Serve(ctx, listener)
	}, func(error) {
		cancel()
		listener.Close()
	})

	interval := opts.housekeepingInterval
	gr.Add(func() error {
		return housekeeping.Run(ctx, agentCtx.Registry, interval, logger)
	}, func(error) {
		cancel()
	})

	gr.Add(run.SignalHandler(ctx, os.Interrupt, syscall.SIGTERM))

	logger.Infof("oidc-agentd listening on %s", socketPath)
	if err := gr.Run(); err != nil {
		if _, ok := err.(run.SignalError); ok {
			logger.Infof("shutting down: %v", err)
			return nil
		}
		return err
	}
	return nil
}

func socketDirFor(configured string) (string, error) {
	if configured != "" {
		if err := os.MkdirAll(configured, 0o700); err != nil {
			return "", err
		}
		return configured, nil
	}

	base := os.Getenv("XDG_RUNTIME_DIR")
	if base == "" {
		base = os.TempDir()
	}
	return os.MkdirTemp(base, "oidc-agent-"+strconv.Itoa(os.Getuid())+"-")
}
