package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"genstudio/internal/sqlinline/lint"
)

var sqllintCmd = &cobra.Command{
	Use:   "sqllint [paths...]",
	Short: "Check inline SQL constants for unique --sql <uuid> markers",
	RunE: func(cmd *cobra.Command, args []string) error {
		vs, err := lint.Paths(args...)
		if err != nil {
			return err
		}
		if len(vs) == 0 {
			return nil
		}
		for _, v := range vs {
			fmt.Fprintln(cmd.ErrOrStderr(), " ", v)
		}
		return fmt.Errorf("%d SQL constant(s) without a valid unique marker", len(vs))
	},
}
