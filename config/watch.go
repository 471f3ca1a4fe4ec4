package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DirWatcher calls a function when files in a directory change. Bursts of
// events, such as an editor's atomic save, are coalesced into one call.
type DirWatcher struct {
	dir      string
	match    func(name string) bool
	fn       func()
	debounce time.Duration
	logger   zerolog.Logger
	watcher  *fsnotify.Watcher
	stopCh   chan struct{}
	stopOnce sync.Once
}

// WatchDir starts watching dir. fn runs once per burst of create, write,
// remove or rename events on files accepted by match.
func WatchDir(dir string, match func(name string) bool, fn func(), logger zerolog.Logger) (*DirWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch directory: %w", err)
	}

	w := &DirWatcher{
		dir:      dir,
		match:    match,
		fn:       fn,
		debounce: 100 * time.Millisecond,
		logger:   logger,
		watcher:  watcher,
		stopCh:   make(chan struct{}),
	}
	go w.loop()

	logger.Info().Str("dir", dir).Msg("watching directory for changes")
	return w, nil
}

// Stop stops watching. It is safe to call twice.
func (w *DirWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.watcher.Close()
	})
}

func (w *DirWatcher) loop() {
	var timer *time.Timer
	var fire <-chan time.Time

	const ops = fsnotify.Create | fsnotify.Write | fsnotify.Remove | fsnotify.Rename

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&ops == 0 || (w.match != nil && !w.match(event.Name)) {
				continue
			}
			w.logger.Debug().
				Str("event", event.Op.String()).
				Str("file", event.Name).
				Msg("watched file changed")

			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.fn()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Str("dir", w.dir).Msg("directory watcher error")

		case <-w.stopCh:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}
