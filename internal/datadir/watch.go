// Package datadir watches the data roots for changes so caches drop
// stale entries ahead of their TTL. Watching is best effort; when the
// platform or the tree defeats fsnotify the caches still expire on
// their own.
package datadir

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/keibalab/umadata/internal/target"
)

// Watcher invalidates reader caches when files under the data roots
// change.
type Watcher struct {
	reader *target.Reader
	log    zerolog.Logger
	fsw    *fsnotify.Watcher
}

// Watch starts watching every directory under the given roots. The
// returned Watcher stops when ctx is cancelled. A nil Watcher with a
// nil error means watching is unavailable; callers fall back to TTL
// expiry alone.
func Watch(ctx context.Context, reader *target.Reader, log zerolog.Logger, roots ...string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		log.Warn().Err(err).Msg("filesystem watching unavailable, relying on cache TTL")
		return nil, nil
	}

	w := &Watcher{reader: reader, log: log, fsw: fsw}
	dirs := 0
	for _, root := range roots {
		n, err := w.addTree(root)
		if err != nil {
			log.Warn().Err(err).Str("root", root).Msg("partial watch of data root")
		}
		dirs += n
	}
	log.Info().Int("dirs", dirs).Msg("watching data roots")

	go w.run(ctx)
	return w, nil
}

// addTree registers root and every directory below it, returning how
// many directories were added.
func (w *Watcher) addTree(root string) (int, error) {
	added := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			return err
		}
		added++
		return nil
	})
	return added, err
}

func (w *Watcher) run(ctx context.Context) {
	defer w.fsw.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("watch error")
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	// Any change inside a directory invalidates its cached listing.
	w.reader.Dirs().Invalidate(filepath.Dir(ev.Name))

	switch {
	case ev.Op.Has(fsnotify.Create):
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if _, err := w.addTree(ev.Name); err != nil {
				w.log.Warn().Err(err).Str("dir", ev.Name).Msg("watch new directory")
			}
			w.reader.Dirs().Invalidate(ev.Name)
			return
		}
		w.reader.DropFile(ev.Name)
	case ev.Op.Has(fsnotify.Write), ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
		w.reader.DropFile(ev.Name)
	}
}
