package config

import (
	"path/filepath"

	"aistrack/ais/log"
	"aistrack/gogroup"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
)

// Watch reloads path whenever it changes and hands every valid result to
// apply. Invalid files are logged and skipped, keeping the last good
// settings. The watch runs in g until g is canceled.
func Watch(g gogroup.GoGroup, path string, apply func(Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "unable to watch")
	}
	path = filepath.Clean(path)
	// Editors replace files by renaming, so watch the directory
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return errors.Wrapf(err, "unable to watch %v", path)
	}
	log.Info("watching config file: %v", path)

	g.Go(func(g gogroup.GoGroup) error {
		defer watcher.Close()
		for {
			select {
			case <-g.Done():
				return nil
			case ev, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if filepath.Clean(ev.Name) != path || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				c, err := Load(path)
				if err != nil {
					log.Error("config not reloaded: %v", err)
					continue
				}
				log.Notice("config reloaded from %v", path)
				apply(c)
			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				log.Warn("config watch: %v", err)
			}
		}
	})
	return nil
}
