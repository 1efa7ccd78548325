package server

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/etnz/valuation"
	"github.com/fsnotify/fsnotify"
)

// reloadDelay debounces the burst of events of a single save.
const reloadDelay = 200 * time.Millisecond

// Watch reloads the model file into e whenever it changes on disk, until ctx
// is cancelled. A reload resets the history of e; a file that does not decode
// is ignored, as is a content equal to the present model.
//
// The directory is watched rather than the file: editors often save by
// renaming a temporary file over it.
func Watch(ctx context.Context, file string, e *valuation.Editor, logger *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	abs, err := filepath.Abs(file)
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return err
	}
	logger.Info("watcher: started", slog.String("file", abs))

	var (
		timer  *time.Timer
		reload <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reload:
			reloadFile(abs, e, logger)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Name != abs || ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDelay)
				reload = timer.C
			} else {
				timer.Reset(reloadDelay)
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

func reloadFile(file string, e *valuation.Editor, logger *slog.Logger) {
	f, err := os.Open(file)
	if err != nil {
		logger.Warn("watcher: read failed", slog.String("file", file), slog.String("error", err.Error()))
		return
	}
	defer f.Close()
	s, err := valuation.DecodeSnapshot(f)
	if err != nil {
		logger.Warn("watcher: decode failed", slog.String("file", file), slog.String("error", err.Error()))
		return
	}
	if s.Equal(e.Present()) {
		return
	}
	e.Reset(s)
	logger.Info("watcher: model reloaded", slog.String("file", file))
}
