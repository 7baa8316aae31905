package persistency

import (
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 100 * time.Millisecond

// fileWatcher wakes every observation stream when the backend file changes
// under another process. Local commits already notify through the hub; for
// those the streams' own fingerprinting turns the extra wakeup into a no-op.
type fileWatcher struct {
	watcher *fsnotify.Watcher
	done    chan struct{}
}

func newFileWatcher(path string, hub *changeHub, closed <-chan struct{}, logger *slog.Logger) (*fileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory, not the file: the WAL file appears and disappears
	// across checkpoints, and some platforms drop file-level watches on
	// rename.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return nil, err
	}

	base := filepath.Base(path)
	names := map[string]struct{}{
		base:          {},
		base + "-wal": {},
	}

	fw := &fileWatcher{watcher: watcher, done: make(chan struct{})}
	go fw.run(names, hub, closed, logger)
	return fw, nil
}

func (f *fileWatcher) run(names map[string]struct{}, hub *changeHub, closed <-chan struct{}, logger *slog.Logger) {
	defer close(f.done)

	var timer *time.Timer
	var pending <-chan time.Time

	for {
		select {
		case <-closed:
			if timer != nil {
				timer.Stop()
			}
			return
		case event, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if _, watched := names[filepath.Base(event.Name)]; !watched {
				continue
			}
			// Arm once and let further events ride the same timer; bursts of
			// page writes collapse into a single wakeup.
			if pending == nil {
				timer = time.NewTimer(watchDebounce)
				pending = timer.C
			}
		case <-pending:
			timer, pending = nil, nil
			hub.notifyAll()
		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("database file watch error", "err", err)
		}
	}
}

func (f *fileWatcher) close() error {
	err := f.watcher.Close()
	<-f.done
	return err
}
