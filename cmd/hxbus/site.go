package main

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/pthm/hxbus/lib/decl"
)

// site holds the page declarations of a directory, keyed by name.
type site struct {
	dir     string
	pattern string
	logger  zerolog.Logger

	mu   sync.RWMutex
	docs map[string]*decl.Document
}

func loadSite(dir, pattern string, logger zerolog.Logger) (*site, error) {
	s := &site{dir: dir, pattern: pattern, logger: logger}
	if err := s.reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// reload parses every declaration again. The previous set is kept when
// any file fails to parse.
func (s *site) reload() error {
	docs, err := decl.LoadGlob(os.DirFS(s.dir), s.pattern)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.docs = docs
	s.mu.Unlock()
	s.logger.Info().Int("pages", len(docs)).Str("dir", s.dir).Msg("pages loaded")
	return nil
}

func (s *site) get(name string) (*decl.Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[name]
	return doc, ok
}

func (s *site) names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.docs))
	for name := range s.docs {
		out = append(out, name)
	}
	return out
}

// watch reloads the site whenever a declaration under dir changes, until
// ctx is done.
func (s *site) watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	// fsnotify does not watch recursively.
	err = filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
	if err != nil {
		w.Close()
		return err
	}

	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&fsnotify.Create != 0 {
					if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
						_ = w.Add(ev.Name)
						continue
					}
				}
				if !isDeclaration(ev.Name) {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				if err := s.reload(); err != nil {
					s.logger.Error().Err(err).Str("file", ev.Name).Msg("reload failed, keeping previous pages")
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				s.logger.Error().Err(err).Msg("watcher error")
			}
		}
	}()
	return nil
}

func isDeclaration(name string) bool {
	return strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
}
