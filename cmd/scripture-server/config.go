package main

import (
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/theimaginaryfoundation/ask-scriptures/insight/app"
)

type Config struct {
	app.Settings

	ConfigPath     string
	Addr           string
	CORSOrigins    string
	RequestTimeout time.Duration
	ExportDir      string
}

func (c Config) Validate() error {
	if err := c.Settings.Validate(); err != nil {
		return err
	}
	if c.Addr == "" {
		return errors.New("missing -addr")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("request-timeout must be > 0")
	}
	if c.ExportDir == "" {
		return errors.New("missing -export-dir")
	}
	return nil
}

// Origins splits the comma-separated CORS origin list.
func (c Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

func defaultConfig() Config {
	return Config{
		Settings:       app.DefaultSettings(),
		Addr:           ":5000",
		CORSOrigins:    "*",
		RequestTimeout: 90 * time.Second,
		ExportDir:      filepath.FromSlash("data/journal"),
	}
}
