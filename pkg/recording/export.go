package recording

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/andratama/lisan/pkg/errorsx"
)

// ExportSession bundles a stopped session's WAV files and metadata into a
// single zip archive next to the session directory, returning the archive
// path.
func (m *Manager) ExportSession(sessionID string) (string, error) {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if ok && s.active {
		m.mu.Unlock()
		return "", errorsx.Wrap(fmt.Errorf("%w: recording session %s still active", errorsx.ErrIO, sessionID), errorsx.ReasonRecordingIO)
	}
	m.mu.Unlock()

	dir := filepath.Join(m.cfg.BaseDir, "session", sessionID)
	if ok {
		dir = s.dir
	}
	if _, err := os.Stat(dir); err != nil {
		return "", m.classifyIOError(err, "locate recording")
	}

	archivePath := filepath.Join(m.cfg.BaseDir, "session", sessionID+".zip")
	out, err := os.Create(archivePath)
	if err != nil {
		return "", m.classifyIOError(err, "create archive")
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	err = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		w, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(w, f)
		return err
	})
	if err != nil {
		_ = zw.Close()
		_ = os.Remove(archivePath)
		return "", m.classifyIOError(err, "write archive")
	}
	if err := zw.Close(); err != nil {
		_ = os.Remove(archivePath)
		return "", m.classifyIOError(err, "finalize archive")
	}
	return archivePath, nil
}
