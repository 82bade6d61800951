package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "stop",
			Short: "Stop the running daemon",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return signalDaemon(syscall.SIGTERM, "stop")
			},
		},
		&cobra.Command{
			Use:   "restart",
			Short: "Restart the running daemon",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				// serve re-execs itself on SIGHUP
				return signalDaemon(syscall.SIGHUP, "restart")
			},
		},
	)
}

// signalDaemon delivers sig to the PID recorded by serve, after checking
// with signal 0 that the process is still alive.
func signalDaemon(sig syscall.Signal, verb string) error {
	cfg := loadConfig()
	pidPath := filepath.Join(cfg.DataDir, "evinav.pid")

	data, err := os.ReadFile(pidPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("no running daemon (PID file not found)")
	}
	if err != nil {
		return fmt.Errorf("read PID file: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return fmt.Errorf("invalid PID file content: %w", err)
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find process %d: %w", pid, err)
	}
	if err := proc.Signal(syscall.Signal(0)); err != nil {
		return fmt.Errorf("no running daemon (process %d not found)", pid)
	}
	if err := proc.Signal(sig); err != nil {
		return fmt.Errorf("signal daemon: %w", err)
	}

	fmt.Fprintf(os.Stdout, "Sent %s to daemon (PID %d) for %s.\n", sigName(sig), pid, verb)
	return nil
}

func sigName(sig syscall.Signal) string {
	switch sig {
	case syscall.SIGTERM:
		return "SIGTERM"
	case syscall.SIGHUP:
		return "SIGHUP"
	}
	return sig.String()
}
