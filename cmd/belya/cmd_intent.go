// Package main implements the intent dispatch CLI commands for Belya.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ahmedaymanzekry/codex-belya/internal/types"
)

var (
	intentSession string
	intentPayload string
)

// intentCmd routes one intent through the supervisor
var intentCmd = &cobra.Command{
	Use:   "intent <text...>",
	Short: "Route an intent to a specialist",
	Long: `Routes one intent through the supervisor: specialist resolution,
approval gating, invocation, history append, and quota accounting.

Example:
  belya intent --session <id> "implement retries in the fetcher" \
    --payload '{"prompt": "add retry with backoff to fetcher.go"}'`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIntent,
}

// confirmCmd releases a pending risky action
var confirmCmd = &cobra.Command{
	Use:   "confirm [action-id]",
	Short: "Confirm the pending risky action for a session",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfirm,
}

// cancelCmd drops a pending risky action
var cancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Cancel the pending risky action for a session",
	RunE:  runCancel,
}

// capabilitiesCmd lists what the specialists can do
var capabilitiesCmd = &cobra.Command{
	Use:   "capabilities",
	Short: "List specialist capabilities",
	RunE:  runCapabilities,
}

func runIntent(cmd *cobra.Command, args []string) error {
	if intentSession == "" {
		return fmt.Errorf("--session is required")
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	payload := map[string]any{}
	if intentPayload != "" {
		if err := json.Unmarshal([]byte(intentPayload), &payload); err != nil {
			return fmt.Errorf("invalid payload JSON: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.LLMTimeout())
	defer cancel()

	res, err := a.router.HandleIntent(ctx, intentSession, strings.Join(args, " "), payload)
	if err != nil {
		return err
	}
	printResult(res)
	return nil
}

func runConfirm(cmd *cobra.Command, args []string) error {
	if intentSession == "" {
		return fmt.Errorf("--session is required")
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	actionID := ""
	if len(args) > 0 {
		actionID = args[0]
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.LLMTimeout())
	defer cancel()

	res, err := a.router.ConfirmPending(ctx, intentSession, actionID)
	if err != nil {
		return err
	}
	printResult(res)
	return nil
}

func runCancel(cmd *cobra.Command, args []string) error {
	if intentSession == "" {
		return fmt.Errorf("--session is required")
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.router.CancelPending(intentSession)
	if err != nil {
		return err
	}
	printResult(res)
	return nil
}

func runCapabilities(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Println("🛠  Capabilities")
	fmt.Println(strings.Repeat("─", 70))
	for _, c := range a.reg.Capabilities() {
		risky := ""
		if c.Risky {
			risky = " ⚠ risky"
		}
		fmt.Printf("  %-10s %-22s %s%s\n", c.Specialist, c.Tool, c.Description, risky)
	}
	fmt.Println(strings.Repeat("─", 70))
	return nil
}

func printResult(res *types.Result) {
	prefix := "✅"
	if res.Failed {
		prefix = "❌"
	}
	fmt.Printf("%s %s\n", prefix, res.Text)

	if res.Pending != nil {
		fmt.Printf("   Pending action %s — run: belya confirm --session %s %s\n",
			res.Pending.ActionID, intentSession, res.Pending.ActionID)
	}
	if res.TokenCost != nil {
		fmt.Printf("   Tokens used: %d\n", *res.TokenCost)
	}
	for _, alert := range res.Alerts {
		fmt.Printf("   ⚠ %s\n", alert.Message)
	}
}

func init() {
	for _, c := range []*cobra.Command{intentCmd, confirmCmd, cancelCmd} {
		c.Flags().StringVarP(&intentSession, "session", "s", "", "session id")
	}
	intentCmd.Flags().StringVarP(&intentPayload, "payload", "p", "", "tool arguments as JSON")
	rootCmd.AddCommand(intentCmd, confirmCmd, cancelCmd, capabilitiesCmd)
}
