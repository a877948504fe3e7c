package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"time"

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, err := app.Open(ctx, cfg.Settings)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
	defer a.Close()

	if cfg.SessionID != "" {
		if err := a.Store.SetActiveSession(ctx, cfg.SessionID); err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(2)
		}
	}

	c := &chat{
		store:     a.Store,
		guide:     a.Guide,
		rng:       rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 1)),
		out:       os.Stdout,
		exportDir: cfg.ExportDir,
		maxBytes:  cfg.MaxBytes,
	}
	if err := c.run(ctx, os.Stdin); err != nil && ctx.Err() == nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func parseFlags(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := defaultConfig()
	fs.SetOutput(os.Stderr)
	fs.StringVar(&cfg.ConfigPath, "config", "", "Optional YAML file of flag values (command-line flags win)")
	fs.StringVar(&cfg.SessionID, "session", "", "Resume this session id")
	fs.StringVar(&cfg.ExportDir, "export-dir", cfg.ExportDir, "Directory for /export journal shards")
	fs.IntVar(&cfg.MaxBytes, "max-bytes", cfg.MaxBytes, "Max UTF-8 bytes per journal shard file")
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
