package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	_ "github.com/kirinyoku/salonq/docs"
	"github.com/kirinyoku/salonq/internal/app"
	"github.com/kirinyoku/salonq/internal/config"
	"github.com/spf13/pflag"
)

// @title SalonQ API
// @version 1.0
// @description Queue booking for salons.
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var (
		envFiles []string
		migrate  bool
	)

	flagSet := pflag.NewFlagSet("salonq", pflag.ContinueOnError)
	flagSet.StringSliceVar(&envFiles, "env-file", nil, "dotenv files to load before reading the environment (default .env)")
	flagSet.BoolVar(&migrate, "migrate", false, "apply the database schema before serving")

	if err := flagSet.Parse(args); err != nil {
		return err
	}

	cfg, err := config.New(envFiles...)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := newLogger(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	application, err := app.New(context.Background(), cfg, logger, app.Options{Migrate: migrate})
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	if err := application.Run(context.Background()); err != nil {
		return fmt.Errorf("application finished with error: %w", err)
	}

	return nil
}

func newLogger(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}

	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
