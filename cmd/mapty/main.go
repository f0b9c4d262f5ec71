package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/nikolayrodzhev/mapty/internal/app"
	"github.com/nikolayrodzhev/mapty/internal/config"
	"github.com/nikolayrodzhev/mapty/internal/confirm"
	"github.com/nikolayrodzhev/mapty/internal/locate"
	"github.com/nikolayrodzhev/mapty/internal/mapview"
	maptymcp "github.com/nikolayrodzhev/mapty/internal/mcp"
	"github.com/nikolayrodzhev/mapty/internal/persistence"
	"github.com/nikolayrodzhev/mapty/internal/server"
	"github.com/nikolayrodzhev/mapty/internal/storage"
	"github.com/nikolayrodzhev/mapty/internal/ui"
	"tailscale.com/tsnet"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	migrateOnly := flag.Bool("migrate-only", false, "run migrations and exit (postgres driver)")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("mapty", Version)
		return
	}

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}))
	log.Info("mapty starting", "version", Version, "storage", cfg.Storage.Driver)

	if *migrateOnly {
		if cfg.Storage.Driver != config.DriverPostgres {
			log.Error("migrate-only needs storage.driver postgres", "driver", cfg.Storage.Driver)
			os.Exit(1)
		}
		if err := storage.RunMigrations(cfg.Storage.Database.DSN(), cfg.Storage.Migrations); err != nil {
			log.Error("migration failed", "error", err)
			os.Exit(1)
		}
		log.Info("migrate-only: exiting")
		return
	}

	// Connect storage
	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	kv, err := storage.Open(ctx, cfg.Storage, log)
	if err != nil {
		log.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer kv.Close()

	// Wire the app
	maps := mapview.New()
	board := ui.NewBoard()
	gate := confirm.NewGate(board, log)
	a := app.New(app.Deps{
		Map:       maps,
		UI:        board,
		Confirmer: gate,
		Persister: persistence.New(kv, log),
		Locator:   locate.FromConfig(cfg.Map.Coords()),
		Log:       log,
		Zoom:      cfg.Map.Zoom,
	})
	located := a.Start(ctx)

	// Create server
	srv := server.New(server.Deps{
		App:    a,
		Gate:   gate,
		Board:  board,
		Map:    maps,
		Log:    log,
		APIKey: cfg.Auth.APIKey,
	})
	mcpSrv := maptymcp.New(maptymcp.Local{App: a}, Version, log)
	srv.MountMCP(mcpserver.NewStreamableHTTPServer(mcpSrv))

	// Start server: tsnet or plain HTTP
	var listener net.Listener
	var tsServer *tsnet.Server

	if cfg.Tailscale.Enabled {
		tsServer = &tsnet.Server{
			Hostname: cfg.Tailscale.Hostname,
			Dir:      cfg.Tailscale.StateDir,
		}
		if err := tsServer.Start(); err != nil {
			log.Error("tsnet start failed", "error", err)
			os.Exit(1)
		}
		defer tsServer.Close()

		listener, err = tsServer.Listen("tcp", ":80")
		if err != nil {
			log.Error("tsnet listen failed", "error", err)
			os.Exit(1)
		}
		log.Info("tsnet server starting", "hostname", cfg.Tailscale.Hostname)
	} else {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		listener, err = net.Listen("tcp", addr)
		if err != nil {
			log.Error("listen failed", "addr", addr, "error", err)
			os.Exit(1)
		}
		log.Info("server starting", "addr", addr, "mode", "dev (no tailscale)")
	}

	httpSrv := &http.Server{Handler: srv}

	go func() {
		if err := httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("shutting down", "signal", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	// Pending confirmations resolve as cancelled.
	srv.Close()
	stop()
	<-located
	log.Info("server stopped")
}
