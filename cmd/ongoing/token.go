package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"ongoing/pkg/config"
	"ongoing/pkg/gateway"
)

var (
	tokenSubject string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a JWT for the HTTP gateway",
	Long: `Sign a token with gateway.jwt_secret for use as
"Authorization: Bearer <token>" on /api requests.`,
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "admin", "token subject")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 30*24*time.Hour, "token lifetime")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, args []string) error {
	loader := config.NewLoaderWithPath(configPath)
	cfg, err := loader.Load(loader.GetConfigPath())
	if err != nil {
		return err
	}

	token, err := gateway.GenerateToken(cfg.Gateway.JWTSecret, tokenSubject, tokenTTL)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
