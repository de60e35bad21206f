package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/samvad-hq/trending-seeder/internal/app"
	"github.com/samvad-hq/trending-seeder/internal/config"
	"github.com/samvad-hq/trending-seeder/internal/domain"
	"github.com/samvad-hq/trending-seeder/internal/logger"
	"github.com/samvad-hq/trending-seeder/internal/server"
)

func main() {
	cliApp := &cli.App{
		Name:  "seeder",
		Usage: "Seed the videos table with trending music videos",
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Serve the invocation endpoint, optionally running on a schedule",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "addr",
						Usage:   "Listen address (defaults to LISTEN_ADDR)",
						EnvVars: []string{"SEEDER_ADDR"},
					},
				},
				Action: serve,
			},
			{
				Name:  "run",
				Usage: "Perform one seeding run and print the outcome as JSON",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "date",
						Usage: "Trending window to ingest: YYYY-MM-DD or \"current\"",
					},
				},
				Action: runOnce,
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "seeder failed: %v\n", err)
		os.Exit(1)
	}
}

func setup() (*config.Config, logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.Init(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, log, nil
}

func serve(c *cli.Context) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer logger.Close()

	logger.InfoObj("seeder starting", "config", cfg.Redacted())

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner := app.NewRunner(log)
	defer func() {
		if err := runner.Close(); err != nil {
			logger.ErrorObj("seen cache close failed", "error", err.Error())
		}
	}()

	var wg sync.WaitGroup
	defer func() {
		stop()
		wg.Wait()
	}()
	if cfg.ScheduleInterval > 0 {
		scheduler := app.NewScheduler(cfg.ScheduleInterval, runner.Invoke, log)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := scheduler.Run(ctx); err != nil {
				logger.ErrorObj("scheduler stopped", "error", err.Error())
			}
		}()
	}

	addr := c.String("addr")
	if addr == "" {
		addr = cfg.ListenAddr
	}
	if err := server.New(runner.Invoke, log).ListenAndServe(ctx, addr); err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func runOnce(c *cli.Context) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer logger.Close()

	var override *domain.Window
	if raw := c.String("date"); raw != "" {
		w, err := domain.ParseWindow(raw)
		if err != nil {
			return err
		}
		override = &w
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	outcome, runErr := app.RunOnce(ctx, cfg, log, override)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(outcome); err != nil {
		return fmt.Errorf("encode outcome: %w", err)
	}
	return runErr
}
