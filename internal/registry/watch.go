package registry

import (
	"github.com/fsnotify/fsnotify"

	"github.com/mini0405/shardproxy/internal/poolcore"
)

// ReloadFunc parses the config file at path into a fresh pool list,
// ready to hand to KickReplacement.
type ReloadFunc func(path string) ([]*poolcore.Pool, error)

// Watcher owns the fsnotify handle backing WatchConfig, so the caller
// can stop it on shutdown.
type Watcher struct {
	fsw *fsnotify.Watcher
}

// Close stops the underlying filesystem watch.
func (w *Watcher) Close() error {
	if w == nil || w.fsw == nil {
		return nil
	}
	return w.fsw.Close()
}

// WatchConfig watches path for writes and, on each one, reloads it via
// load and drives the resulting pool list through KickReplacement.
// Errors from load or KickReplacement are reported through onErr rather
// than stopping the watch. A bad edit to the config file should not
// kill the watcher, just skip that reload.
func (r *Registry) WatchConfig(path string, load ReloadFunc, onErr func(error)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(path); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	go func() {
		for {
			select {
			case ev, ok := <-fsw.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				next, err := load(path)
				if err != nil {
					if onErr != nil {
						onErr(err)
					}
					continue
				}
				if err := r.KickReplacement(next); err != nil && onErr != nil {
					onErr(err)
				}
			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				if onErr != nil {
					onErr(err)
				}
			}
		}
	}()

	return &Watcher{fsw: fsw}, nil
}
