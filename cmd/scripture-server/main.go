package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/theimaginaryfoundation/ask-scriptures/insight"
	"github.com/theimaginaryfoundation/ask-scriptures/insight/app"
)

func main() {
	cfg, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
	cfg.ResolveAPIKey(os.Getenv)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(ctx, cfg.Settings)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
	defer a.Close()

	srv := &server{
		store:     a.Store,
		guide:     a.Guide,
		answerer:  a.Answerer,
		catalog:   insight.DefaultCatalog,
		log:       a.Log,
		exportDir: cfg.ExportDir,
		now:       time.Now,
	}
	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      srv.routes(cfg.Origins(), cfg.RequestTimeout),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.Log.Info("listening", "addr", cfg.Addr, "store", cfg.StoreKind)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Log.Error("server stopped", "error", err)
			a.Close()
			os.Exit(1)
		}
	case <-ctx.Done():
		a.Log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			a.Log.Error("shutdown", "error", err)
		}
	}
}

func parseFlags(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := defaultConfig()
	fs.SetOutput(os.Stderr)
	fs.StringVar(&cfg.ConfigPath, "config", "", "Optional YAML file of flag values (command-line flags win)")
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "Listen address")
	fs.StringVar(&cfg.CORSOrigins, "cors-origins", cfg.CORSOrigins, "Comma-separated allowed CORS origins")
	fs.DurationVar(&cfg.RequestTimeout, "request-timeout", cfg.RequestTimeout, "Per-request handler timeout")
	fs.StringVar(&cfg.ExportDir, "export-dir", cfg.ExportDir, "Directory for journal export shards")
	cfg.Settings.RegisterFlags(fs)

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if cfg.ConfigPath != "" {
		if err := app.ApplyConfigFile(fs, cfg.ConfigPath); err != nil {
			return Config{}, err
		}
	}
	return cfg, nil
}
