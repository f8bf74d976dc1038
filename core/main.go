package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sethvargo/go-envconfig"

	"pongnet/core/gamemode"
	"pongnet/pkg/logger"
	"pongnet/source/server"
)

const (
	VERSION = "1.0.0"
	AUTHOR  = "pongnet"
)

// Config is the server's environment-variable configuration (§1 scopes
// out CLI flag parsing; this is env-only, loaded with
// github.com/sethvargo/go-envconfig).
type Config struct {
	ListenAddr  string  `env:"PONGNET_LISTEN_ADDR,default=:40000"`
	MetricsAddr string  `env:"PONGNET_METRICS_ADDR,default=:9090"`
	TargetTPS   float64 `env:"PONGNET_TARGET_TPS,default=60"`
}

func main() {
	logger.Banner("Pong Netcode Server - Built with Go", VERSION)

	cfg := loadConfig()

	metrics := server.NewMetrics()
	metricsSrv := metrics.Serve(cfg.MetricsAddr)
	logger.Success("metrics exposed on %s/metrics", cfg.MetricsAddr)

	gm := gamemode.NewPongGamemode()
	logger.Success("Gamemode initialized: canonical paddle/ball")

	srvConfig := server.DefaultConfig()
	srvConfig.ListenAddr = cfg.ListenAddr
	srvConfig.TargetTPS = cfg.TargetTPS

	srv := server.NewServer(srvConfig, metrics)
	srv.ScoreHandler = gm.OnScore
	srv.ConnectHandler = gm.OnPlayerConnect
	srv.DisconnectHandler = gm.OnPlayerLeft

	logger.Info("Server Version: %s", VERSION)
	logger.Info("Listening on %s", srvConfig.ListenAddr)
	logger.Info("Target TPS: %.0f", srvConfig.TargetTPS)
	logger.Success("Configuration loaded successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		logger.Fatal("Server error: %v", err)
	case sig := <-sigChan:
		logger.Warn("Received signal: %v", sig)
		logger.Info("Shutting down gracefully...")

		srv.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)

		logger.Success("Server stopped")
		os.Exit(0)
	}
}

func loadConfig() Config {
	var cfg Config
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		logger.Warn("main: ConfigInvalid %v, falling back to defaults", err)
		return Config{ListenAddr: ":40000", MetricsAddr: ":9090", TargetTPS: 60}
	}
	return cfg
}
