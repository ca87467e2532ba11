package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"roadtrip-server/middleware"
	"roadtrip-server/utils/config"
)

var (
	tokenDriver string
	tokenTTL    time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a development bearer token for a driver id",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if cfg.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is not set")
		}
		token, err := middleware.IssueToken(cfg.JWTSecret, tokenDriver, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenDriver, "driver", "", "Driver id to embed in the token")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "Token lifetime")
	_ = tokenCmd.MarkFlagRequired("driver")
	rootCmd.AddCommand(tokenCmd)
}
