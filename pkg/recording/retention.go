package recording

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// PurgeOlderThan removes stopped recording sessions, and their exported zip
// archives, whose directories are older than maxAge. Active sessions are
// never touched. Returns the number of sessions removed.
func (m *Manager) PurgeOlderThan(maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		return 0, nil
	}
	root := filepath.Join(m.cfg.BaseDir, "session")
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, m.classifyIOError(err, "read recording root")
	}

	cutoff := time.Now().Add(-maxAge)
	var removed int
	var errs error
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			errs = errors.Join(errs, err)
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		id := strings.TrimSuffix(entry.Name(), ".zip")
		if m.isActive(id) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(root, entry.Name())); err != nil {
			errs = errors.Join(errs, err)
			continue
		}
		if entry.IsDir() {
			m.mu.Lock()
			delete(m.sessions, id)
			m.mu.Unlock()
			_ = m.store.Delete(id)
			removed++
			m.logger.Info("recording_purged",
				slog.String("recording_session_id", id),
				slog.Time("cutoff", cutoff))
		}
	}
	return removed, errs
}

func (m *Manager) isActive(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	return ok && s.active
}
