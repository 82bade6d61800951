package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/user/evinav/internal/types"
)

func init() {
	rootCmd.AddCommand(chatCmd)
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with Evi in the terminal",
	Args:  cobra.NoArgs,
	RunE:  runChat,
}

// runChat drives the turn runner directly, without the gateway: a single
// terminal user needs no queueing or concurrency bound.
func runChat(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	st, err := buildStack(cfg)
	if err != nil {
		return err
	}

	fmt.Println("Evi — NHS navigation companion. Type 'quit' to leave.")
	fmt.Println()

	ctx := context.Background()
	var sessionID types.SessionID
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			break
		}

		reply, sid, err := st.runner.HandleTurn(ctx, sessionID, "cli", line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		sessionID = sid

		fmt.Println()
		fmt.Println(reply)
		fmt.Println()
	}
	return scanner.Err()
}
