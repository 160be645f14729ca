package pipeline

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchLoop observes the data directory and schedules a rebuild once events
// stop arriving for the debounce window. A watcher that cannot start logs
// and gives up; interval and manual triggers still work without it.
func (r *Refresher) watchLoop(ctx context.Context) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		r.logger.Error("file watcher unavailable", "error", err)
		return
	}
	defer w.Close()

	if err := w.Add(r.opts.WatchDir); err != nil {
		r.logger.Error("watch data dir failed", "error", err, "dir", r.opts.WatchDir)
		return
	}
	r.logger.Info("watching data dir", "dir", r.opts.WatchDir, "debounce", r.opts.Debounce)

	var debounce *time.Timer
	var settled <-chan time.Time
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if debounce == nil {
				debounce = time.NewTimer(r.opts.Debounce)
				settled = debounce.C
			} else {
				debounce.Reset(r.opts.Debounce)
			}

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			r.logger.Warn("file watcher error", "error", err)

		case <-settled:
			select {
			case r.triggers <- trigger{reason: "watch"}:
			default:
			}
		}
	}
}
