package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"genstudio/internal/adapter/repo"
	"genstudio/internal/domain"
	"genstudio/internal/infra"
	"genstudio/internal/usage"
)

var usageUserID string

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show a user's plan and usage for the current month",
	RunE: func(cmd *cobra.Command, args []string) error {
		if usageUserID == "" {
			return fmt.Errorf("--user is required")
		}
		loc, err := infra.UsageLocation()
		if err != nil {
			return err
		}

		runner, closeDB, err := openRunner(cmd.Context(), "usage")
		if err != nil {
			return err
		}
		defer closeDB()
		store := repo.NewStore(runner)

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()
		snap, err := usage.NewEvaluator(store.Subscriptions(), store.Ledger(), loc).Snapshot(ctx, usageUserID, time.Now())
		if err != nil {
			return err
		}

		out := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintf(out, "user\t%s\n", usageUserID)
		fmt.Fprintf(out, "plan\t%s\n", snap.Plan)
		fmt.Fprintf(out, "resets\t%s\n", snap.ResetAt.Format(time.RFC3339))
		for _, rt := range domain.ResourceTypes() {
			e := snap.Entitlements[rt]
			fmt.Fprintf(out, "%s\t%d used of %s\n", rt, e.Used, formatLimit(e.Limit))
		}
		return out.Flush()
	},
}

func formatLimit(limit *int) string {
	if limit == nil {
		return "unlimited"
	}
	return fmt.Sprint(*limit)
}

func init() {
	usageCmd.Flags().StringVar(&usageUserID, "user", "", "user id (token subject)")
}
