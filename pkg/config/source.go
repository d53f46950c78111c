package config

import (
	"sync"

	"github.com/borgmon/alert-keeper/pkg/models"
	"go.uber.org/zap"
)

// Source re-reads the alert settings from the config file on every Load, so
// edits take effect on the next scheduler tick. A file that cannot be read or
// fails validation leaves the last good settings in place.
type Source struct {
	mu     sync.Mutex
	path   string
	last   *models.Config
	logger *zap.Logger
}

// NewSource creates a Source for path starting from initial.
func NewSource(path string, initial *models.Config, logger *zap.Logger) *Source {
	return &Source{path: path, last: initial, logger: logger}
}

// Load returns the current settings.
func (s *Source) Load() *models.Config {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := read(s.path)
	if err != nil {
		s.logger.Warn("config reload failed, keeping previous settings", zap.Error(err))
		return s.last
	}
	cfg, err := f.Alerts.Settings()
	if err != nil {
		s.logger.Warn("invalid alert settings, keeping previous settings", zap.Error(err))
		return s.last
	}
	s.last = cfg
	return cfg
}
