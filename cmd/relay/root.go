package main

import (
	"context"
	"fmt"

	"gardenrelay/config"
	"gardenrelay/internal/api"
	"gardenrelay/internal/garden/collector"
	"gardenrelay/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func Execute(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		mode       string
	)
	root := &cobra.Command{
		Use:          "relay",
		Short:        "Relay Grow a Garden stock over HTTP",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if mode != "" {
				cfg.Upstream.Mode = mode
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default ./config/config.yaml)")
	root.Flags().StringVar(&mode, "mode", "", "upstream mode override: stream or poll")
	root.AddCommand(eventsCmd(&configPath))
	return root
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func run(ctx context.Context, cfg *config.Config) error {
	log, err := logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	c, err := collector.New(cfg, log)
	if err != nil {
		return fmt.Errorf("collector failed: %w", err)
	}

	server := api.NewServer(c.Store, api.ServerOptions{
		Addr:            cfg.Server.Addr(),
		Debug:           cfg.Server.Debug,
		CORSOrigins:     cfg.Server.CORSOrigins,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		Logger:          log,
		Metrics:         c.Metrics,
	})

	loopCtx, stopLoop := context.WithCancel(ctx)
	defer stopLoop()
	c.Start(loopCtx)

	serveErr := make(chan error, 1)
	go func() { serveErr <- server.ListenAndServe() }()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err = <-serveErr:
		log.Error("http server stopped", zap.Error(err))
	}

	if shutdownErr := server.Shutdown(context.Background()); shutdownErr != nil {
		log.Warn("http shutdown incomplete", zap.Error(shutdownErr))
	}
	stopLoop()
	c.Wait()
	log.Info("relay stopped")
	return err
}
