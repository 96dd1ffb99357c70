// Package main implements quota usage CLI commands for Belya.
package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ahmedaymanzekry/codex-belya/internal/quota"
)

var usageWindow string

// usageCmd reports quota window state
var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show quota window usage for the code-generation service",
	RunE:  runUsage,
}

func runUsage(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	kinds := quota.Kinds
	if usageWindow != "" {
		kinds = []quota.Kind{quota.Kind(usageWindow)}
	}

	fmt.Println("📊 Quota Usage")
	fmt.Println(strings.Repeat("─", 60))
	for _, kind := range kinds {
		_, start, duration, err := a.tracker.CurrentUsage(kind)
		if err != nil {
			return err
		}
		fmt.Printf("  %s\n", a.tracker.Summary(kind))
		if !start.IsZero() {
			resets := start.Add(duration)
			fmt.Printf("    window started %s, resets in %s\n",
				start.Format(time.RFC3339), time.Until(resets).Round(time.Minute))
		}
	}
	fmt.Println(strings.Repeat("─", 60))

	return nil
}

func init() {
	usageCmd.Flags().StringVar(&usageWindow, "window", "", "window kind to show (short or long)")
	rootCmd.AddCommand(usageCmd)
}
