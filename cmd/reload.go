package cmd

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// watchConfig calls onChange with every valid reload of path until ctx is
// done. The directory is watched rather than the file because editors often
// replace a file instead of writing it in place. Invalid edits are logged
// and skipped.
func watchConfig(ctx context.Context, path string, onChange func(Config)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		_ = watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				cfg, err := LoadConfig(abs)
				if err == nil {
					err = cfg.Validate()
				}
				if err != nil {
					logrus.Warnf("ignoring config change: %v", err)
					continue
				}
				onChange(cfg)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logrus.Warnf("watching config: %v", err)
			}
		}
	}()
	return nil
}

// configReloadedMsg carries a reloaded config into the watch view's update loop.
type configReloadedMsg struct{ cfg Config }

// retune applies the live-tunable parts of cfg to the session. Cast, seed,
// LLM endpoint and trace sinks only take effect on restart.
func (s *session) retune(cfg Config) error {
	if err := s.Sim.Retune(cfg.Simulation); err != nil {
		return err
	}
	return s.Manager.Tune(cfg.Dialogue)
}
