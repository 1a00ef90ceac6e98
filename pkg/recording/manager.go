// Package recording captures original and translated call audio to WAV files
// on a background worker, so the capture path never waits on disk.
package recording

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/andratama/lisan/pkg/convert"
	"github.com/andratama/lisan/pkg/errorsx"
	"github.com/andratama/lisan/pkg/frames"
	"github.com/andratama/lisan/pkg/logging"
	"github.com/andratama/lisan/pkg/media"
)

const (
	categoryOriginal   = "original"
	categoryTranslated = "translated"

	defaultQueueSize = 512
	defaultIdleSleep = 20 * time.Millisecond

	metadataFile = "metadata.json"
)

type Config struct {
	BaseDir   string
	QueueSize int
	IdleSleep time.Duration
}

type task struct {
	sessionID string
	category  string
	frame     frames.AudioFrame
}

type session struct {
	meta    media.RecordingSession
	dir     string
	active  bool
	pending sync.WaitGroup
	files   []string
}

// Manager owns the recording worker and all active recording sessions. A
// session that fails its storage probe is reported once and then disabled;
// enqueues against it are silently dropped so the call keeps running.
type Manager struct {
	cfg    Config
	store  media.SessionStore
	logger *slog.Logger

	queue   chan task
	stopCh  chan struct{}
	done    chan struct{}
	dropped atomic.Int64

	mu       sync.Mutex
	sessions map[string]*session
}

func NewManager(cfg Config, store media.SessionStore) *Manager {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.IdleSleep <= 0 {
		cfg.IdleSleep = defaultIdleSleep
	}
	if store == nil {
		store = media.NewMemoryStore()
	}
	m := &Manager{
		cfg:      cfg,
		store:    store,
		logger:   logging.NewComponentLogger(slog.Default(), "recording"),
		queue:    make(chan task, cfg.QueueSize),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
		sessions: make(map[string]*session),
	}
	go m.worker()
	return m
}

// StartRecording probes storage before anything is enqueued, so permission
// problems surface at the start of the call rather than mid-stream.
func (m *Manager) StartRecording(callID, sourceLanguage, targetLanguage string) (string, error) {
	id := uuid.New().String()
	dir := filepath.Join(m.cfg.BaseDir, "session", id)

	if err := m.probe(dir); err != nil {
		m.logger.Error("recording_start_failed",
			slog.String("call_id", callID),
			slog.String("error", err.Error()))
		return "", err
	}

	s := &session{
		meta: media.RecordingSession{
			ID:             id,
			CallID:         callID,
			StartedAt:      time.Now(),
			SourceLanguage: sourceLanguage,
			TargetLanguage: targetLanguage,
			Path:           dir,
		},
		dir:    dir,
		active: true,
	}
	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	if err := m.store.Put(s.meta); err != nil {
		m.logger.Warn("recording_metadata_store_error", slog.String("error", err.Error()))
	}
	m.logger.Info("recording_started",
		slog.String("call_id", callID),
		slog.String("recording_session_id", id),
		slog.String("dir", dir))
	return id, nil
}

func (m *Manager) probe(dir string) error {
	for _, sub := range []string{categoryOriginal, categoryTranslated} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return m.classifyIOError(err, "create recording directory")
		}
	}
	probePath := filepath.Join(dir, ".probe")
	if err := os.WriteFile(probePath, []byte("ok"), 0o644); err != nil {
		return m.classifyIOError(err, "write probe")
	}
	_ = os.Remove(probePath)
	return nil
}

func (m *Manager) classifyIOError(err error, op string) error {
	if os.IsPermission(err) {
		return errorsx.Wrap(fmt.Errorf("%w: %s: %v", errorsx.ErrPermission, op, err), errorsx.ReasonRecordingPermission)
	}
	return errorsx.Wrap(fmt.Errorf("%w: %s: %v", errorsx.ErrIO, op, err), errorsx.ReasonRecordingIO)
}

// EnqueueOriginal queues pre-translation audio. Never blocks; a full queue
// drops the frame and counts it.
func (m *Manager) EnqueueOriginal(sessionID string, frame frames.AudioFrame) {
	m.enqueue(sessionID, categoryOriginal, frame)
}

// EnqueueTranslated queues post-translation audio.
func (m *Manager) EnqueueTranslated(sessionID string, frame frames.AudioFrame) {
	m.enqueue(sessionID, categoryTranslated, frame)
}

func (m *Manager) enqueue(sessionID, category string, frame frames.AudioFrame) {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if !ok || !s.active {
		m.mu.Unlock()
		return
	}
	s.pending.Add(1)
	m.mu.Unlock()

	select {
	case m.queue <- task{sessionID: sessionID, category: category, frame: frame}:
	default:
		s.pending.Done()
		m.dropped.Add(1)
		m.logger.Warn("recording_queue_full",
			slog.String("recording_session_id", sessionID),
			slog.Int64("dropped_total", m.dropped.Load()))
	}
}

// Dropped reports how many frames were discarded because the queue was full.
func (m *Manager) Dropped() int64 { return m.dropped.Load() }

// StopRecording stops accepting frames, waits for queued ones to reach disk,
// then finalizes metadata.json.
func (m *Manager) StopRecording(sessionID string) error {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		return errorsx.Wrap(fmt.Errorf("%w: unknown recording session %s", errorsx.ErrIO, sessionID), errorsx.ReasonRecordingIO)
	}
	if !s.active {
		m.mu.Unlock()
		return nil
	}
	s.active = false
	m.mu.Unlock()

	s.pending.Wait()

	m.mu.Lock()
	s.meta.StoppedAt = time.Now()
	s.meta.Files = append([]string(nil), s.files...)
	meta := s.meta
	m.mu.Unlock()

	if err := m.writeMetadata(s.dir, meta); err != nil {
		return err
	}
	if err := m.store.Put(meta); err != nil {
		m.logger.Warn("recording_metadata_store_error", slog.String("error", err.Error()))
	}
	m.logger.Info("recording_stopped",
		slog.String("recording_session_id", sessionID),
		slog.Int("files", len(meta.Files)))
	return nil
}

func (m *Manager) writeMetadata(dir string, meta media.RecordingSession) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return errorsx.Wrap(fmt.Errorf("%w: encode metadata: %v", errorsx.ErrIO, err), errorsx.ReasonRecordingIO)
	}
	if err := os.WriteFile(filepath.Join(dir, metadataFile), data, 0o644); err != nil {
		return m.classifyIOError(err, "write metadata")
	}
	return nil
}

// Session returns the metadata snapshot for a recording session.
func (m *Manager) Session(sessionID string) (media.RecordingSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return media.RecordingSession{}, false
	}
	meta := s.meta
	meta.Files = append([]string(nil), s.files...)
	return meta, true
}

// DeleteSession removes a stopped session's files and metadata.
func (m *Manager) DeleteSession(sessionID string) error {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if ok && s.active {
		m.mu.Unlock()
		return errorsx.Wrap(fmt.Errorf("%w: recording session %s still active", errorsx.ErrIO, sessionID), errorsx.ReasonRecordingIO)
	}
	delete(m.sessions, sessionID)
	m.mu.Unlock()

	dir := filepath.Join(m.cfg.BaseDir, "session", sessionID)
	if ok {
		dir = s.dir
	}
	if err := os.RemoveAll(dir); err != nil {
		return m.classifyIOError(err, "delete recording")
	}
	return m.store.Delete(sessionID)
}

// Close stops the worker after the queue drains. Call once, at shutdown.
func (m *Manager) Close() {
	close(m.stopCh)
	<-m.done
}

func (m *Manager) worker() {
	defer close(m.done)
	for {
		select {
		case t := <-m.queue:
			m.writeTask(t)
		default:
			select {
			case t := <-m.queue:
				m.writeTask(t)
			case <-m.stopCh:
				// Drain whatever is still queued before exiting.
				for {
					select {
					case t := <-m.queue:
						m.writeTask(t)
					default:
						return
					}
				}
			case <-time.After(m.cfg.IdleSleep):
			}
		}
	}
}

func (m *Manager) writeTask(t task) {
	m.mu.Lock()
	s, ok := m.sessions[t.sessionID]
	m.mu.Unlock()
	if !ok {
		return
	}
	defer s.pending.Done()

	payload, err := convert.EncodeWAVFrame(t.frame)
	if err != nil {
		m.logger.Error("recording_encode_error",
			slog.String("recording_session_id", t.sessionID),
			slog.String("error", err.Error()))
		return
	}

	name := m.fileName(t, s)
	path := filepath.Join(s.dir, t.category, name)
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		m.logger.Error("recording_write_error",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return
	}

	m.mu.Lock()
	s.files = append(s.files, filepath.Join(t.category, name))
	m.mu.Unlock()
}

// fileName builds <direction>_<category>_<lang>_<HHmmss_SSS>.wav. Original
// audio is tagged with the source language, translated with the target.
func (m *Manager) fileName(t task, s *session) string {
	lang := s.meta.SourceLanguage
	if t.category == categoryTranslated {
		lang = s.meta.TargetLanguage
	}
	if lang == "" {
		lang = "und"
	}
	now := t.frame.CapturedAt()
	if now.IsZero() {
		now = time.Now()
	}
	stamp := fmt.Sprintf("%s_%03d", now.Format("150405"), now.Nanosecond()/int(time.Millisecond))
	return fmt.Sprintf("%s_%s_%s_%s.wav", t.frame.Direction(), t.category, lang, stamp)
}
