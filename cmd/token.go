package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/wallie/internal/api/auth"
	"github.com/wallie/internal/config"
)

// TokenCommand mints a session token for local development and testing.
func TokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Mint a session token for a user (development helper)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "user",
				Aliases:  []string{"u"},
				Usage:    "User id the token identifies",
				Required: true,
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.LoadConfig(c.String("config"))
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if cfg.Auth.JWTSecret == "" {
				return fmt.Errorf("auth jwt_secret is not configured")
			}

			token, err := auth.NewTokenService(cfg.Auth.JWTSecret).IssueToken(c.String("user"))
			if err != nil {
				return err
			}

			fmt.Println(token)
			return nil
		},
	}
}
