package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/wallie/internal/api"
	"github.com/wallie/internal/api/auth"
	"github.com/wallie/internal/config"
	"github.com/wallie/internal/database"
	"github.com/wallie/internal/logging"
	"github.com/wallie/internal/messaging"
	"github.com/wallie/internal/notify"
)

// ServeCommand returns the CLI command for starting the API server
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the Wallie messaging API server",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port for the API server (overrides config)",
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logging.Setup(cfg.Log.Level, isatty.IsTerminal(os.Stderr.Fd()))

	db, err := database.NewDB(cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := database.EnsureSchema(db); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}

	pool, err := database.NewPool(context.Background(), cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to create notify pool: %w", err)
	}
	defer pool.Close()

	publisher := notify.NewPublisher(pool)
	listener := notify.NewListener(pool, time.Duration(cfg.Poll.TimeoutSeconds)*time.Second)
	service := messaging.NewService(db, publisher, cfg.Pagination.DefaultLimit, cfg.Pagination.MaxLimit)
	tokenService := auth.NewTokenService(cfg.Auth.JWTSecret)
	handler := api.NewMessagesHandler(service, listener)

	port := cfg.Server.Port
	if c.Int("port") > 0 {
		port = c.Int("port")
	}

	log.Info().Int("port", port).Int("pollTimeoutSeconds", cfg.Poll.TimeoutSeconds).Msg("starting wallie API server")

	server := api.NewServer(port, handler, tokenService, cfg.Poll.RatePerSecond)
	return server.Start()
}
