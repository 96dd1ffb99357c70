// Package main implements session management CLI commands for Belya.
package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// sessionsCmd manages supervisor sessions
var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage Belya sessions",
	Long: `List and manage Belya sessions.

Subcommands:
  list    - List sessions, most recent first
  new     - Start a new session
  rename  - Rename a session
  close   - Archive a session
  compact - Compact a session's tool-call history`,
	RunE: runSessionsList,
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions, most recent first",
	RunE:  runSessionsList,
}

var sessionsNewCmd = &cobra.Command{
	Use:   "new [name]",
	Short: "Start a new session",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSessionsNew,
}

var sessionsRenameCmd = &cobra.Command{
	Use:   "rename <session-id> <name>",
	Short: "Rename a session",
	Args:  cobra.ExactArgs(2),
	RunE:  runSessionsRename,
}

var sessionsCloseCmd = &cobra.Command{
	Use:   "close <session-id>",
	Short: "Archive a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsClose,
}

var sessionsCompactCmd = &cobra.Command{
	Use:   "compact [session-id]",
	Short: "Compact tool-call history (all sessions when no id given)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSessionsCompact,
}

var listLimit int

func runSessionsList(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	sessions, err := a.store.ListSessions(listLimit, 0)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	if len(sessions) == 0 {
		fmt.Println("No sessions found.")
		return nil
	}

	fmt.Println("📁 Sessions")
	fmt.Println(strings.Repeat("─", 70))
	for _, s := range sessions {
		state := ""
		if s.Archived() {
			state = " (archived)"
		}
		branch := ""
		if s.Branch != "" {
			branch = " @" + s.Branch
		}
		fmt.Printf("  %s  %s%s%s  policy=%s model=%s\n", s.ID, s.Name, branch, state, s.Policy, s.Model)
	}
	fmt.Println(strings.Repeat("─", 70))
	fmt.Printf("Total: %d sessions\n", len(sessions))

	return nil
}

func runSessionsNew(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	name := ""
	if len(args) > 0 {
		name = args[0]
	}
	sess, err := a.store.CreateSession(name)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	fmt.Printf("✅ Started session %s (%s)\n", sess.Name, sess.ID)
	return nil
}

func runSessionsRename(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.store.RenameSession(args[0], args[1]); err != nil {
		return fmt.Errorf("failed to rename session: %w", err)
	}
	fmt.Printf("✅ Renamed session to %s\n", args[1])
	return nil
}

func runSessionsClose(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.store.ArchiveSession(args[0]); err != nil {
		return fmt.Errorf("failed to archive session: %w", err)
	}
	fmt.Printf("✅ Archived session %s\n", args[0])
	return nil
}

func runSessionsCompact(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if len(args) == 1 {
		if err := a.store.Compact(args[0]); err != nil {
			return fmt.Errorf("compaction failed: %w", err)
		}
		fmt.Printf("✅ Compacted session %s\n", args[0])
		return nil
	}

	if err := a.store.CompactAll(); err != nil {
		return fmt.Errorf("compaction failed: %w", err)
	}
	fmt.Println("✅ Compacted all active sessions")
	return nil
}

func init() {
	sessionsListCmd.Flags().IntVar(&listLimit, "limit", 50, "maximum sessions to list")
	sessionsCmd.AddCommand(sessionsListCmd, sessionsNewCmd, sessionsRenameCmd, sessionsCloseCmd, sessionsCompactCmd)
	rootCmd.AddCommand(sessionsCmd)
}
