package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/user/evinav/internal/catalog"
	"github.com/user/evinav/internal/state"
	"github.com/user/evinav/internal/types"
)

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionListCmd, sessionShowCmd, sessionClearCmd)
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage sessions",
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		sessions := state.NewSessionStore(cfg.DataDir)
		transcripts := state.NewTranscriptStore(cfg.DataDir)

		cat, err := catalog.Load()
		if err != nil {
			return fmt.Errorf("load catalog: %w", err)
		}

		ctx := context.Background()
		list, err := sessions.List(ctx)
		if err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}

		if len(list) == 0 {
			fmt.Println("No sessions found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATUS\tPHASE\tMESSAGES\tUPDATED")
		for _, info := range list {
			phase := "-"
			if sess, err := sessions.Load(ctx, info.ID); err == nil && sess != nil {
				phase = string(sess.Phase(len(cat.Questions)))
			}
			count, err := transcripts.Count(ctx, info.ID)
			if err != nil {
				count = 0
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
				info.ID,
				info.Status,
				phase,
				count,
				info.UpdatedAt.Format("2006-01-02 15:04:05"),
			)
		}
		return w.Flush()
	},
}

var sessionShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a session's profile and recent transcript",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		sessions := state.NewSessionStore(cfg.DataDir)
		transcripts := state.NewTranscriptStore(cfg.DataDir)

		cat, err := catalog.Load()
		if err != nil {
			return fmt.Errorf("load catalog: %w", err)
		}

		ctx := context.Background()
		id := types.SessionID(args[0])
		sess, err := sessions.Load(ctx, id)
		if err != nil {
			return fmt.Errorf("load session: %w", err)
		}
		if sess == nil {
			return fmt.Errorf("session not found: %s", args[0])
		}

		fmt.Printf("Session:  %s\n", sess.ID)
		fmt.Printf("Status:   %s\n", sess.Status)
		fmt.Printf("Phase:    %s\n", sess.Phase(len(cat.Questions)))
		fmt.Printf("Updated:  %s\n", sess.UpdatedAt.Format("2006-01-02 15:04:05"))

		if len(sess.Profile) > 0 {
			fmt.Println("\nProfile:")
			for _, q := range cat.Questions {
				if v := sess.Profile[q.Key]; v != "" {
					fmt.Printf("  %s: %s\n", q.Key, v)
				}
			}
		}

		records, err := transcripts.Tail(ctx, id, 20)
		if err != nil {
			return fmt.Errorf("read transcript: %w", err)
		}
		if len(records) > 0 {
			fmt.Println("\nRecent transcript:")
			for _, rec := range records {
				text := rec.Text
				if len(text) > 120 {
					text = text[:117] + "..."
				}
				text = strings.ReplaceAll(text, "\n", " ")
				fmt.Printf("  %4d  %-9s  %s\n", rec.Seq, rec.Role, text)
			}
		}
		return nil
	},
}

var sessionClearCmd = &cobra.Command{
	Use:   "clear <id|all>",
	Short: "Clear a session or all sessions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		sessionsDir := filepath.Join(cfg.DataDir, "sessions")

		if args[0] == "all" {
			if err := os.RemoveAll(sessionsDir); err != nil {
				return fmt.Errorf("remove sessions directory: %w", err)
			}
			fmt.Println("All sessions cleared.")
			return nil
		}

		// Remove specific session directory (validate path to prevent traversal)
		sessionDir := filepath.Join(sessionsDir, args[0])
		resolved, err := filepath.Abs(sessionDir)
		if err != nil {
			return fmt.Errorf("resolve path: %w", err)
		}
		absSessionsDir, _ := filepath.Abs(sessionsDir)
		if !strings.HasPrefix(resolved, absSessionsDir+string(filepath.Separator)) {
			return fmt.Errorf("invalid session ID: %s", args[0])
		}
		if _, err := os.Stat(sessionDir); os.IsNotExist(err) {
			return fmt.Errorf("session not found: %s", args[0])
		}
		if err := os.RemoveAll(sessionDir); err != nil {
			return fmt.Errorf("remove session directory: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Session %s cleared.\n", args[0])
		return nil
	},
}
