// Package config holds the process configuration and its hot-reload path.
// Grounded on 1ureka-roj1's internal/config/config.go — that teacher config
// is a flat struct with no parser of its own, so the key=value loader and
// fsnotify watch below are this package's own addition, built in the same
// flat-struct spirit.
package config

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/tinyreactor/tinyreactor/internal/logx"
)

// Config is the process-wide tunable set, per SPEC_FULL.md §3 (expansion).
type Config struct {
	ListenAddr    string
	ReusePort     bool
	WorkerCount   int
	HighWaterMark int
	PollTimeoutMS int
	LogLevel      string
}

// Load parses a flat "key = value" file. Unknown keys are rejected; this is
// a configuration file, not a freeform property bag.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	cfg := &Config{
		ReusePort:     false,
		WorkerCount:   0,
		HighWaterMark: 64 * 1024 * 1024,
		PollTimeoutMS: 10000,
		LogLevel:      "info",
	}

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("config: %s:%d: missing '='", path, lineNo)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		if err := cfg.set(key, value); err != nil {
			return nil, fmt.Errorf("config: %s:%d: %w", path, lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	return cfg, nil
}

func (c *Config) set(key, value string) error {
	switch key {
	case "listen_addr":
		c.ListenAddr = value
	case "reuse_port":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("reuse_port: %w", err)
		}
		c.ReusePort = b
	case "worker_count":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("worker_count: %w", err)
		}
		c.WorkerCount = n
	case "high_water_mark":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("high_water_mark: %w", err)
		}
		c.HighWaterMark = n
	case "poll_timeout_ms":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("poll_timeout_ms: %w", err)
		}
		c.PollTimeoutMS = n
	case "log_level":
		c.LogLevel = value
	default:
		return fmt.Errorf("unknown key %q", key)
	}
	return nil
}

// Watch follows path's containing directory with fsnotify (editors replace
// files by rename rather than writing in place, so the directory — not the
// file — must be watched) and re-Loads on any write/create event naming
// path, invoking onReload with the freshly parsed Config. Only HighWaterMark
// and LogLevel are meant to be consumed after startup; a changed ListenAddr
// or WorkerCount is logged and otherwise ignored by the caller.
func Watch(ctx context.Context, path string, onReload func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: fsnotify: %w", err)
	}

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("config: watch %s: %w", dir, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != filepath.Clean(path) {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				cfg, err := Load(path)
				if err != nil {
					logx.Warning("config: reload %s failed: %v", path, err)
					continue
				}
				onReload(cfg)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logx.Warning("config: watcher error: %v", err)
			}
		}
	}()

	return nil
}
