package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"genstudio/internal/domain"
	"genstudio/internal/infra/credentials"
	"genstudio/internal/middleware"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage provider API keys and development session tokens",
}

var (
	tokenProvider string
	tokenValue    string
)

var tokenSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Store a provider API key in integration_tokens",
	Long: `Store a provider API key in integration_tokens.

Keys stored here are used when the matching environment variable is empty.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		provider := strings.ToLower(strings.TrimSpace(tokenProvider))
		switch provider {
		case credentials.ProviderOpenAI, credentials.ProviderStability, credentials.ProviderReplicate:
		default:
			return fmt.Errorf("unsupported provider %q", tokenProvider)
		}
		value := strings.TrimSpace(tokenValue)
		if value == "" {
			return fmt.Errorf("--value is required")
		}

		runner, closeDB, err := openRunner(cmd.Context(), "token")
		if err != nil {
			return err
		}
		defer closeDB()

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()
		if err := credentials.NewStore(runner).SetToken(ctx, provider, value); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s key stored\n", provider)
		return nil
	},
}

var (
	mintSubject string
	mintEmail   string
	mintName    string
	mintTTL     time.Duration
)

var tokenMintCmd = &cobra.Command{
	Use:   "mint",
	Short: "Sign an HS256 session token with JWT_SECRET",
	RunE: func(cmd *cobra.Command, args []string) error {
		if mintSubject == "" {
			return fmt.Errorf("--user is required")
		}
		token, err := middleware.SignJWT(os.Getenv("JWT_SECRET"), domain.Identity{
			Subject: mintSubject,
			Email:   mintEmail,
			Name:    mintName,
		}, mintTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenSetCmd.Flags().StringVar(&tokenProvider, "provider", "", "openai, stability or replicate")
	tokenSetCmd.Flags().StringVar(&tokenValue, "value", "", "API key to store")
	tokenMintCmd.Flags().StringVar(&mintSubject, "user", "", "token subject")
	tokenMintCmd.Flags().StringVar(&mintEmail, "email", "", "email claim")
	tokenMintCmd.Flags().StringVar(&mintName, "name", "", "name claim")
	tokenMintCmd.Flags().DurationVar(&mintTTL, "ttl", 24*time.Hour, "token lifetime")
	tokenCmd.AddCommand(tokenSetCmd, tokenMintCmd)
}
