package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"geokd/pkg/api"
	"geokd/pkg/config"
	"geokd/pkg/core"
	"geokd/pkg/logger"
	"geokd/pkg/network"
)

// main 启动 HTTP 与 TCP 两个入口，共享同一个 GeoStore
func main() {
	configPath := flag.String("config", "", "path to geokd.yaml")
	envFile := flag.String("env", ".env", "optional dotenv file")
	flag.Parse()

	_ = godotenv.Load(*envFile)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.L().Error("config_load_failed", "error", err)
		os.Exit(1)
	}
	log := logger.Setup(cfg.Log)

	store, err := core.NewGeoStore(cfg, log)
	if err != nil {
		log.Error("store_open_failed", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	warmUp(store, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpSrv := api.NewServer(store, log)
	tcpSrv := network.NewTCPServer(store, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return httpSrv.Start(cfg.Server.Addr) })
	g.Go(func() error { return tcpSrv.Start(cfg.Server.TCPAddr) })
	g.Go(func() error {
		<-gctx.Done()
		log.Info("server_shutdown")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return errors.Join(httpSrv.Shutdown(shutdownCtx), tcpSrv.Close())
	})

	if err := g.Wait(); err != nil {
		log.Error("server_exit", "error", err)
		os.Exit(1)
	}
}

// warmUp prefers the saved tree document and falls back to the CSV dataset.
func warmUp(store *core.GeoStore, cfg *config.Config) {
	log := logger.L()
	if _, err := os.Stat(cfg.Data.TreePath); err == nil {
		if err := store.LoadTree(cfg.Data.TreePath); err == nil {
			return
		}
		log.Warn("tree_load_failed", "path", cfg.Data.TreePath)
	}
	if _, err := os.Stat(cfg.Data.CSVPath); err != nil {
		log.Info("starting_empty", "csv", cfg.Data.CSVPath)
		return
	}
	if _, err := store.LoadCSV(cfg.Data.CSVPath); err != nil {
		log.Warn("csv_load_failed", "path", cfg.Data.CSVPath, "error", err)
	}
}
