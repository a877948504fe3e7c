// Package app wires a logger, a persisted store and an answerer into a ready Guide.
// Both binaries start from here.
package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/theimaginaryfoundation/ask-scriptures/insight/conversation"
	"github.com/theimaginaryfoundation/ask-scriptures/insight/logger"
	"github.com/theimaginaryfoundation/ask-scriptures/insight/provider"
	"github.com/theimaginaryfoundation/ask-scriptures/insight/store"
)

const (
	StoreJSON   = "json"
	StoreSQLite = "sqlite"
	StoreMemory = "memory"

	// GroqBaseURL is Groq's OpenAI-compatible endpoint.
	GroqBaseURL = "https://api.groq.com/openai/v1/"
)

// Settings are the options shared by every binary.
type Settings struct {
	StoreKind string
	StorePath string

	APIKey     string
	BaseURL    string
	Model      string
	Structured bool
	Timeout    time.Duration
	CannedPath string
	// Offline answers from the canned table only, even when an API key is present.
	Offline bool

	LogMode   string
	LogLevel  string
	LogRedact bool
	HashSalt  string
}

func DefaultSettings() Settings {
	return Settings{
		StoreKind: StoreJSON,
		StorePath: filepath.FromSlash("data/ask-scriptures.json"),
		BaseURL:   GroqBaseURL,
		Model:     provider.DefaultModel,
		Timeout:   60 * time.Second,
		LogMode:   "dev",
		LogLevel:  "info",
		LogRedact: true,
	}
}

// RegisterFlags binds s to fs. Current field values become the flag defaults.
func (s *Settings) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&s.StoreKind, "store", s.StoreKind, "State backend: json, sqlite or memory")
	fs.StringVar(&s.StorePath, "store-path", s.StorePath, "Path of the json file or sqlite database")
	fs.StringVar(&s.APIKey, "api-key", "", "API key (default: $GROQ_API_KEY, then $OPENAI_API_KEY)")
	fs.StringVar(&s.BaseURL, "base-url", s.BaseURL, "OpenAI-compatible API base URL")
	fs.StringVar(&s.Model, "model", s.Model, "Chat model")
	fs.BoolVar(&s.Structured, "structured", s.Structured, "Request JSON-schema answers (endpoint must support structured output)")
	fs.DurationVar(&s.Timeout, "timeout", s.Timeout, "Per-request timeout for the answer endpoint")
	fs.StringVar(&s.CannedPath, "canned", s.CannedPath, "Optional YAML file replacing the built-in canned answers")
	fs.BoolVar(&s.Offline, "offline", s.Offline, "Answer from canned answers only")
	fs.StringVar(&s.LogMode, "log-mode", s.LogMode, "Log encoding: dev or prod")
	fs.StringVar(&s.LogLevel, "log-level", s.LogLevel, "Log level: debug, info, warn or error")
	fs.BoolVar(&s.LogRedact, "log-redact", s.LogRedact, "Scrub secrets, question text and session ids from logs")
	fs.StringVar(&s.HashSalt, "log-hash-salt", s.HashSalt, "Salt for hashed session ids in logs")
}

// ResolveAPIKey fills an empty APIKey from getenv.
func (s *Settings) ResolveAPIKey(getenv func(string) string) {
	if s.APIKey != "" {
		return
	}
	for _, k := range []string{"GROQ_API_KEY", "OPENAI_API_KEY"} {
		if v := strings.TrimSpace(getenv(k)); v != "" {
			s.APIKey = v
			return
		}
	}
}

func (s Settings) Validate() error {
	switch s.StoreKind {
	case StoreJSON, StoreSQLite:
		if s.StorePath == "" {
			return errors.New("missing -store-path")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown -store %q (want json, sqlite or memory)", s.StoreKind)
	}
	if s.Model == "" {
		return errors.New("missing -model")
	}
	if s.Timeout < 0 {
		return errors.New("timeout must be >= 0")
	}
	return nil
}

// App holds the wired components. Close releases the store backend and flushes the log.
type App struct {
	Log      *logger.Logger
	Store    *store.Store
	Answerer provider.Answerer
	Guide    *conversation.Guide

	closers []func() error
}

// Open builds the logger, loads state from the configured backend and assembles the Guide.
// Without an API key, or with Offline set, answers come from the canned table.
func Open(ctx context.Context, s Settings) (*App, error) {
	log, err := logger.New(s.LogMode, s.LogLevel, logger.Options{Redact: s.LogRedact, HashSalt: s.HashSalt})
	if err != nil {
		return nil, err
	}
	a, err := OpenWithLogger(ctx, s, log)
	if err != nil {
		log.Sync()
		return nil, err
	}
	a.closers = append(a.closers, func() error { log.Sync(); return nil })
	return a, nil
}

// OpenWithLogger is Open with a caller-supplied logger.
func OpenWithLogger(ctx context.Context, s Settings, log *logger.Logger) (*App, error) {
	a := &App{Log: log}

	p, err := a.persister(ctx, s)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(ctx, p, store.WithLogger(log))
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Store = st

	ans, err := buildAnswerer(s, log)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Answerer = ans
	a.Guide = conversation.NewGuide(st, ans, conversation.WithLogger(log))

	log.Info("state loaded",
		"store", s.StoreKind,
		"sessions", len(st.Sessions()),
		"total_questions", st.Profile().TotalQuestions,
	)
	return a, nil
}

func (a *App) persister(ctx context.Context, s Settings) (store.Persister, error) {
	switch s.StoreKind {
	case StoreJSON:
		return store.JSONFilePersister{Path: s.StorePath, Pretty: true, Backup: true}, nil
	case StoreSQLite:
		p, err := store.OpenSQLite(ctx, s.StorePath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, p.Close)
		return p, nil
	case StoreMemory:
		return &store.MemoryPersister{}, nil
	default:
		return nil, fmt.Errorf("unknown store %q", s.StoreKind)
	}
}

func buildAnswerer(s Settings, log *logger.Logger) (provider.Answerer, error) {
	canned := provider.DefaultCanned()
	if s.CannedPath != "" {
		c, err := provider.LoadCanned(s.CannedPath)
		if err != nil {
			return nil, fmt.Errorf("canned answers: %w", err)
		}
		canned = c
	}
	if s.Offline || s.APIKey == "" {
		log.Warn("no answer endpoint configured, using canned answers", "offline", s.Offline)
		return canned, nil
	}
	primary := &provider.OpenAIAnswerer{
		Client:     provider.NewClient(s.APIKey, s.BaseURL, s.Timeout),
		Model:      s.Model,
		Retry:      provider.DefaultRetryPolicy,
		Structured: s.Structured,
		Label:      "Bhagavad Gita",
		Log:        log,
	}
	return &provider.FallbackAnswerer{Primary: primary, Fallback: canned, Log: log}, nil
}

// Close runs the registered closers in reverse order and joins their errors.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// ApplyConfigFile reads a YAML mapping of flag name to value from path and sets every flag
// of fs that was not given on the command line. Lists are joined with commas.
func ApplyConfigFile(fs *flag.FlagSet, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config file: %w", err)
	}
	return applyConfig(fs, b, path)
}
