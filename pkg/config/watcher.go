// Copyright 2026 © The Gnosis Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Watcher polls the config file, plus the active profile overlay when
// one is set, and rebuilds the configuration whenever either changes.
// Polling instead of inotify keeps it working across editors that
// replace the file on save and across bind mounts.
type Watcher struct {
	path     string
	profile  string
	interval time.Duration

	mu        sync.RWMutex
	states    map[string]fileState
	config    *Config
	listeners []func(*Config)

	stop chan struct{}
	done chan struct{}
}

// fileState is the polled fingerprint of one watched file.
type fileState struct {
	modTime time.Time
	size    int64
}

func (s fileState) equal(o fileState) bool {
	return s.modTime.Equal(o.modTime) && s.size == o.size
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithWatchInterval sets the polling interval.
func WithWatchInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithWatchProfile also watches the profile overlay file and applies it
// on every reload, mirroring LoadWithProfile.
func WithWatchProfile(profile string) WatcherOption {
	return func(w *Watcher) {
		w.profile = profile
	}
}

// NewWatcher creates a watcher for the given config file and loads the
// initial configuration, available through Config right away.
func NewWatcher(path string, opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: time.Second,
		states:   make(map[string]fileState),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	for _, p := range w.watched() {
		if info, err := os.Stat(p); err == nil {
			w.states[p] = fileState{modTime: info.ModTime(), size: info.Size()}
		}
	}

	cfg, err := LoadWithProfile(w.path, w.profile)
	if err != nil {
		return nil, err
	}
	w.config = cfg
	return w, nil
}

// watched lists the files the poll loop fingerprints. The profile
// overlay is included even before it exists on disk, so creating it
// later counts as a change.
func (w *Watcher) watched() []string {
	var paths []string
	if w.path != "" {
		paths = append(paths, w.path)
	}
	if pp := profileCandidate(w.path, w.profile); pp != "" {
		paths = append(paths, pp)
	}
	return paths
}

// OnChange registers fn to run after every successful reload.
func (w *Watcher) OnChange(fn func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners = append(w.listeners, fn)
}

// Config returns the most recently loaded configuration.
func (w *Watcher) Config() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.config
}

// Start launches the poll loop. It runs until ctx is cancelled or Stop
// is called.
func (w *Watcher) Start(ctx context.Context) {
	go w.loop(ctx)
}

// Stop terminates the poll loop and waits for it to exit.
func (w *Watcher) Stop() {
	close(w.stop)
	<-w.done
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case <-ticker.C:
			if w.poll() {
				w.reload()
			}
		}
	}
}

// poll re-fingerprints the watched files and reports whether any was
// created, rewritten or removed since the previous tick.
func (w *Watcher) poll() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	changed := false
	for _, path := range w.watched() {
		info, err := os.Stat(path)
		if err != nil {
			if _, had := w.states[path]; had {
				delete(w.states, path)
				changed = true
			}
			continue
		}
		next := fileState{modTime: info.ModTime(), size: info.Size()}
		if prev, had := w.states[path]; !had || !prev.equal(next) {
			w.states[path] = next
			changed = true
		}
	}
	return changed
}

// reload rebuilds the configuration from scratch. On failure the
// previous configuration stays in place and listeners are not called.
func (w *Watcher) reload() {
	slog.Info("config.changed", "path", w.path)

	cfg, err := LoadWithProfile(w.path, w.profile)
	if err != nil {
		slog.Error("config.reload_failed", "path", w.path, "error", err)
		return
	}

	w.mu.Lock()
	w.config = cfg
	listeners := make([]func(*Config), len(w.listeners))
	copy(listeners, w.listeners)
	w.mu.Unlock()

	for _, fn := range listeners {
		fn(cfg)
	}
}

// WatchConfig loads the configuration at configPath and starts a
// watcher on it, returning both the running watcher and the initial
// config.
func WatchConfig(ctx context.Context, configPath string, opts ...WatcherOption) (*Watcher, *Config, error) {
	w, err := NewWatcher(configPath, opts...)
	if err != nil {
		return nil, nil, err
	}
	w.Start(ctx)
	return w, w.Config(), nil
}
