package main

import (
	"errors"
	"path/filepath"

	"github.com/theimaginaryfoundation/ask-scriptures/insight/app"
)

type Config struct {
	app.Settings

	ConfigPath string
	SessionID  string
	ExportDir  string
	MaxBytes   int
}

func (c Config) Validate() error {
	if err := c.Settings.Validate(); err != nil {
		return err
	}
	if c.ExportDir == "" {
		return errors.New("missing -export-dir")
	}
	if c.MaxBytes <= 0 {
		return errors.New("max-bytes must be > 0")
	}
	return nil
}

func defaultConfig() Config {
	s := app.DefaultSettings()
	// The terminal owns stdout; keep logs to warnings unless asked.
	s.LogLevel = "warn"
	return Config{
		Settings:  s,
		ExportDir: filepath.FromSlash("data/journal"),
		MaxBytes:  100 * 1024,
	}
}
