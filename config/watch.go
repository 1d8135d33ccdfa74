package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce coalesces editor write bursts into one reload
const watchDebounce = 200 * time.Millisecond

// Watcher monitors a configuration file and delivers reloaded configs
type Watcher struct {
	loader  *Loader
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// Watch monitors the configuration file for changes and invokes callback
// with each successfully reloaded configuration. A change that fails to
// load or validate is reported through onError and the previous
// configuration stays in effect.
func (l *Loader) Watch(path string, callback func(*Config), onError func(error)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create config watcher: %w", err)
	}

	// Watch the directory, not the file: editors and orchestrators
	// replace config files by rename, which drops a file-level watch
	dir := filepath.Dir(path)
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch config dir: %w", err)
	}

	w := &Watcher{
		loader:  l,
		watcher: fw,
		done:    make(chan struct{}),
	}

	target := filepath.Clean(path)
	go w.run(target, callback, onError)

	return w, nil
}

// Close stops watching
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}

func (w *Watcher) run(target string, callback func(*Config), onError func(error)) {
	var timer *time.Timer
	reload := make(chan struct{}, 1)

	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(watchDebounce, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})
		case <-reload:
			config, err := w.loader.Load(target)
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			callback(config)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if onError != nil {
				onError(fmt.Errorf("config watcher: %w", err))
			}
		}
	}
}
