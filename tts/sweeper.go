package tts

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Sweeper removes generated audio once callers can no longer be fetching it.
type Sweeper struct {
	dir       string
	retention time.Duration
	interval  time.Duration
	now       func() time.Time
}

func NewSweeper(dir string, retention time.Duration) *Sweeper {
	interval := time.Minute
	if retention > 0 && retention < interval {
		interval = retention
	}
	return &Sweeper{dir: dir, retention: retention, interval: interval, now: time.Now}
}

// Sweep deletes mp3 files older than the retention window, except the
// welcome greeting. It returns how many files were removed.
func (s *Sweeper) Sweep() int {
	if s.retention <= 0 {
		return 0
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("dir", s.dir).Msg("⚠️ Audio sweep failed")
		}
		return 0
	}

	cutoff := s.now().Add(-s.retention)
	removed := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || name == WelcomeFile {
			continue
		}
		if !strings.HasSuffix(name, ".mp3") && !strings.HasPrefix(name, ".tts-") {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
			log.Warn().Err(err).Str("file", name).Msg("⚠️ Failed to remove audio")
			continue
		}
		removed++
	}
	return removed
}

// Run sweeps periodically until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	if s.retention <= 0 {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				log.Info().Int("removed", n).Msg("🧹 Removed old audio files")
			}
		}
	}
}
