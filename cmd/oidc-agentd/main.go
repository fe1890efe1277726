package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var opts daemonOptions

	cmd := &cobra.Command{
		Use:   "oidc-agentd",
		Short: "OIDC credential broker daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			cmd.SilenceErrors = true
			if opts.kill {
				return runKill()
			}
			return runServe(opts)
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&opts.kill, "kill", false, "stop the running daemon and print unset statements for its environment variables")
	flags.BoolVar(&opts.debug, "debug", false, "raise log verbosity to debug")
	flags.BoolVar(&opts.console, "console", false, "run in the foreground instead of daemonizing")
	flags.StringVar(&opts.socketDir, "socket-dir", "", "directory to create the control socket in (defaults under $XDG_RUNTIME_DIR or /tmp)")
	flags.DurationVar(&opts.housekeepingInterval, "housekeeping-interval", 0, "account-eviction sweep interval (default 1s)")
	flags.StringSliceVar(&opts.rootCAs, "ca", nil, "additional PEM root CA (file path, base64, or raw PEM) trusted for outbound issuer connections")
	flags.BoolVar(&opts.insecureSkipVerify, "insecure-skip-verify", false, "disable TLS verification for outbound issuer connections (testing only)")

	return cmd
}

type daemonOptions struct {
	kill                 bool
	debug                bool
	console              bool
	socketDir            string
	housekeepingInterval time.Duration
	rootCAs              []string
	insecureSkipVerify   bool
}
