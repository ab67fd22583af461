// Package server implements the coordinator server commands.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/0xMiden/MultiSig/pkg/config"
	"github.com/0xMiden/MultiSig/pkg/engine"
	"github.com/0xMiden/MultiSig/pkg/engine/runtime"
	"github.com/0xMiden/MultiSig/pkg/miden"
	"github.com/0xMiden/MultiSig/pkg/services/apisrv"
	"github.com/0xMiden/MultiSig/pkg/services/metrics"
	"github.com/0xMiden/MultiSig/pkg/store"
)

// NewCommands returns the 'server' command.
func NewCommands() []cli.Command {
	cfgFlags := []cli.Flag{
		cli.StringFlag{Name: "config-path, c", Usage: "path to the YAML config overlaying the embedded base"},
		cli.BoolFlag{Name: "debug, d", Usage: "enable debug logging"},
	}
	return []cli.Command{{
		Name:  "server",
		Usage: "Coordinator server commands",
		Subcommands: []cli.Command{
			{
				Name:   "start",
				Usage:  "Start the multisig coordinator",
				Action: startCoordinator,
				Flags:  cfgFlags,
			},
			{
				Name:   "migrate",
				Usage:  "Apply database migrations and exit",
				Action: runMigrations,
				Flags:  cfgFlags,
			},
		},
	}}
}

func loadConfig(ctx *cli.Context) (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(ctx.String("config-path"))
	if err != nil {
		return cfg, nil, err
	}
	logCfg := zap.NewProductionConfig()
	logCfg.Encoding = "console"
	logCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if ctx.Bool("debug") {
		logCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	log, err := logCfg.Build()
	if err != nil {
		return cfg, nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return cfg, log, nil
}

func runMigrations(ctx *cli.Context) error {
	cfg, log, err := loadConfig(ctx)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer func() { _ = log.Sync() }()
	if err := store.RunMigrations(cfg.DB.DBURL); err != nil {
		return cli.NewExitError(err, 1)
	}
	log.Info("database migrated")
	return nil
}

func startCoordinator(ctx *cli.Context) error {
	cfg, log, err := loadConfig(ctx)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer func() { _ = log.Sync() }()

	networkID, err := miden.NewNetworkID(cfg.App.NetworkIDHRP)
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	if err := store.RunMigrations(cfg.DB.DBURL); err != nil {
		return cli.NewExitError(err, 1)
	}
	pool, err := store.NewPool(context.Background(), cfg.DB.DBURL, int32(cfg.DB.MaxConn))
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	st := store.New(pool)
	defer st.Close()

	eng := engine.New(engine.Config{
		NetworkID: networkID,
		Store:     st,
		Runtime: runtime.Config{
			Client: miden.ClientConfig{
				NodeURL:      cfg.Miden.NodeURL,
				StorePath:    cfg.Miden.StorePath,
				KeystorePath: cfg.Miden.KeystorePath,
				Timeout:      cfg.Miden.Timeout.Duration(),
			},
			Log: log,
		},
		Log: log,
	})
	if err := eng.Start(context.Background()); err != nil {
		return cli.NewExitError(err, 1)
	}
	defer eng.Shutdown()

	prometheus := metrics.NewPrometheusService(cfg.Prometheus, log)
	go prometheus.Start()
	defer prometheus.ShutDown()
	pprof := metrics.NewPprofService(cfg.Pprof, log)
	go pprof.Start()
	defer pprof.ShutDown()

	errChan := make(chan error, 1)
	api := apisrv.New(apisrv.Config{
		Listen:             cfg.App.Listen,
		NetworkID:          networkID,
		CORSAllowedOrigins: cfg.App.CORSAllowedOrigins,
		Log:                log,
	}, eng, errChan)
	api.Start()
	defer api.Shutdown()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		log.Error("coordinator failed", zap.Error(err))
		return cli.NewExitError(err, 1)
	case sig := <-sigChan:
		log.Info("shutting down", zap.Stringer("signal", sig))
	}
	return nil
}
