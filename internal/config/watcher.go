package config

import (
	"github.com/fsnotify/fsnotify"

	"github.com/oba-ldap/obacore/internal/logging"
)

// Watcher reloads a Config whenever its source file changes, replacing the
// teacher's poll-and-stat FileWatcher (internal/acl/watcher.go in the
// source this is adapted from) with a real inotify/kqueue watch.
type Watcher struct {
	path    string
	fsw     *fsnotify.Watcher
	log     logging.Logger
	onLoad  func(*Config)
	stopped chan struct{}
}

// NewWatcher starts watching path and invokes onLoad with freshly parsed
// configuration on every write/create/rename event.
func NewWatcher(path string, log logging.Logger, onLoad func(*Config)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(path); err != nil {
		fsw.Close()
		return nil, err
	}
	if log == nil {
		log = logging.Nop()
	}
	w := &Watcher{path: path, fsw: fsw, log: log, onLoad: onLoad, stopped: make(chan struct{})}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	defer close(w.stopped)
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			cfg, err := Load(w.path)
			if err != nil {
				w.log.Warn("config reload failed", "path", w.path, "error", err)
				continue
			}
			w.onLoad(cfg)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("config watcher error", "error", err)
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	err := w.fsw.Close()
	<-w.stopped
	return err
}
