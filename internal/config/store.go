package config

import (
	"log/slog"
	"os"

	"github.com/FocuswithJustin/promptfix/internal/cache"
)

// Store caches the loaded configuration for one path. Current reloads when
// the file's size or modification time changes and publishes a new Loaded
// value; a published value is never modified.
type Store struct {
	path   string
	logger *slog.Logger
	snap   *cache.Snapshot[*Loaded]
}

// NewStore creates a Store for path. Nothing is read until Current.
func NewStore(path string, logger *slog.Logger) *Store {
	return &Store{
		path:   path,
		logger: logger,
		snap:   cache.New[*Loaded](),
	}
}

// Current returns the configuration for the file as it is now. reloaded is
// true when the file was read on this call.
func (s *Store) Current() (loaded *Loaded, reloaded bool) {
	return s.snap.Get(s.stamp(), func() *Loaded {
		return Load(s.path, s.logger)
	})
}

func (s *Store) stamp() cache.Stamp {
	if s.path == "" {
		return cache.Stamp{Missing: true}
	}
	info, err := os.Stat(s.path)
	if err != nil {
		return cache.Stamp{Missing: true}
	}
	return cache.Stamp{Size: info.Size(), ModTime: info.ModTime()}
}
