package recording

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/andratama/lisan/pkg/frames"
	"github.com/andratama/lisan/pkg/media"
)

func agedSession(t *testing.T, m *Manager, age time.Duration) media.RecordingSession {
	t.Helper()
	id, err := m.StartRecording("call-1", "es", "en")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	m.EnqueueOriginal(id, testFrame(frames.DirectionOutgoing))
	meta := waitForFiles(t, m, id, 1)
	if err := m.StopRecording(id); err != nil {
		t.Fatalf("stop: %v", err)
	}
	old := time.Now().Add(-age)
	if err := os.Chtimes(meta.Path, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	return meta
}

func TestPurgeRemovesOldSessions(t *testing.T) {
	store := media.NewMemoryStore()
	m := NewManager(Config{BaseDir: t.TempDir()}, store)
	defer m.Close()

	meta := agedSession(t, m, 48*time.Hour)

	removed, err := m.PurgeOlderThan(24 * time.Hour)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, err := os.Stat(meta.Path); !os.IsNotExist(err) {
		t.Fatalf("session directory still present")
	}
	if _, ok := store.Get(meta.ID); ok {
		t.Fatalf("metadata still in store")
	}
}

func TestPurgeKeepsRecentSessions(t *testing.T) {
	m := NewManager(Config{BaseDir: t.TempDir()}, nil)
	defer m.Close()

	meta := agedSession(t, m, time.Hour)
	removed, err := m.PurgeOlderThan(24 * time.Hour)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if removed != 0 {
		t.Fatalf("removed = %d, want 0", removed)
	}
	if _, err := os.Stat(meta.Path); err != nil {
		t.Fatalf("recent session should survive: %v", err)
	}
}

func TestPurgeSkipsActiveSessions(t *testing.T) {
	m := NewManager(Config{BaseDir: t.TempDir()}, nil)
	defer m.Close()

	id, err := m.StartRecording("call-1", "es", "en")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	dir := filepath.Join(m.cfg.BaseDir, "session", id)
	old := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(dir, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	removed, err := m.PurgeOlderThan(24 * time.Hour)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if removed != 0 {
		t.Fatalf("active session was purged")
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("active session directory removed: %v", err)
	}
}

func TestPurgeRemovesExportedArchives(t *testing.T) {
	m := NewManager(Config{BaseDir: t.TempDir()}, nil)
	defer m.Close()

	meta := agedSession(t, m, 48*time.Hour)
	archive, err := m.ExportSession(meta.ID)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	old := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(archive, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	if _, err := m.PurgeOlderThan(24 * time.Hour); err != nil {
		t.Fatalf("purge: %v", err)
	}
	if _, err := os.Stat(archive); !os.IsNotExist(err) {
		t.Fatalf("archive still present")
	}
}
