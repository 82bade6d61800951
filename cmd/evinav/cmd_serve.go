package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/user/evinav/internal/gateway"
	"github.com/user/evinav/internal/httpapi"
	"github.com/user/evinav/internal/scheduler"
	"github.com/user/evinav/internal/telegram"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the evinav daemon",
	RunE:  runServe,
}

func writePIDFile(dataDir string) (string, error) {
	pidPath := filepath.Join(dataDir, "evinav.pid")
	pid := os.Getpid()
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return "", fmt.Errorf("write PID file: %w", err)
	}
	return pidPath, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	// Write PID file
	pidPath, err := writePIDFile(cfg.DataDir)
	if err != nil {
		return err
	}
	defer os.Remove(pidPath)

	st, err := buildStack(cfg)
	if err != nil {
		return err
	}

	// Gateway: serializes turns per session, bounds concurrency across sessions.
	gw := gateway.New(st.sessions, int64(cfg.MaxConcurrent))
	gw.Queue.SetProcessor(func(run *gateway.Run) error {
		reply, _, err := st.runner.HandleTurn(run.Ctx, run.SessionID, run.Message.Source, run.Message.Text)
		if err != nil {
			return err
		}
		if run.OnComplete != nil {
			run.OnComplete(reply)
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gw.Start(ctx)
	defer gw.Stop()

	var toolNames []string
	for _, t := range st.machine.Tools() {
		toolNames = append(toolNames, t.Name())
	}

	slog.Info("evinav started",
		"data_dir", cfg.DataDir,
		"log_level", cfg.LogLevel,
		"addr", cfg.Addr,
		"max_concurrent", cfg.MaxConcurrent,
		"llm_provider", cfg.LLM.Provider,
		"llm_model", cfg.LLM.Model,
		"tools", strings.Join(toolNames, ","),
		"pid_file", pidPath,
	)

	// HTTP API
	api := httpapi.NewServer(gw, st.sessions, st.transcripts, st.machine.Total(), st.machine.Tools())
	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: api,
	}
	go func() {
		slog.Info("http api started", "addr", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http api error", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		httpServer.Close()
	}()

	// Telegram adapter
	if cfg.Telegram.Token != "" {
		adapter, err := telegram.New(cfg.Telegram.Token, gw, st.sessions, st.transcripts, st.machine.Total())
		if err != nil {
			return fmt.Errorf("create telegram adapter: %w", err)
		}
		go adapter.Start(ctx)
		slog.Info("telegram adapter started")
	} else {
		slog.Warn("telegram adapter disabled (no token)")
	}

	// Maintenance scheduler: archives sessions idle past the retention window.
	archiveAfter := time.Duration(cfg.Maintenance.ArchiveAfterDays) * 24 * time.Hour
	sched := scheduler.New(st.sessions, cfg.Maintenance.Schedule, archiveAfter)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for {
		sig := <-sigChan
		if sig == syscall.SIGHUP {
			slog.Info("received SIGHUP, restarting")
			execPath, err := os.Executable()
			if err != nil {
				slog.Error("failed to get executable path", "error", err)
				continue
			}
			// Clean up PID file before re-exec
			os.Remove(pidPath)
			if err := syscall.Exec(execPath, os.Args, os.Environ()); err != nil {
				slog.Error("failed to re-exec", "error", err)
				// Re-write PID file since we failed to re-exec
				if _, writeErr := writePIDFile(cfg.DataDir); writeErr != nil {
					slog.Error("failed to re-write PID file", "error", writeErr)
				}
				continue
			}
		}
		// SIGINT or SIGTERM
		slog.Info("shutting down", "signal", sig)
		return nil
	}
}
