// Package translator coordinates one translation pipeline per active call:
// two provider sessions, one per speech direction, fed from the call's media
// transport and injected back in place of the original audio.
package translator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/andratama/lisan/pkg/adapters/translate"
	"github.com/andratama/lisan/pkg/convert"
	"github.com/andratama/lisan/pkg/errorsx"
	"github.com/andratama/lisan/pkg/frames"
	"github.com/andratama/lisan/pkg/logging"
	"github.com/andratama/lisan/pkg/media"
	"github.com/andratama/lisan/pkg/metrics"
	"github.com/andratama/lisan/pkg/negotiate"
	"github.com/andratama/lisan/pkg/recording"
	"github.com/andratama/lisan/pkg/redact"
	"github.com/andratama/lisan/pkg/transports"
)

const defaultChunk = 20 * time.Millisecond

type StatusKind string

const (
	StatusStarted          StatusKind = "started"
	StatusPassthrough      StatusKind = "passthrough"
	StatusDegraded         StatusKind = "degraded"
	StatusLanguageDetected StatusKind = "language_detected"
	StatusStopped          StatusKind = "stopped"
)

// StatusEvent reports a call-level or direction-level pipeline change.
type StatusEvent struct {
	CallID    string
	Direction frames.Direction // empty for call-level events
	Kind      StatusKind
	Reason    string
	Language  string
	At        time.Time
}

// Call binds a call to its media transport and negotiation outcome.
type Call struct {
	ID        string
	Transport media.MediaTransport
	Outcome   negotiate.Outcome
}

// CallConfig carries the per-call translation settings.
type CallConfig struct {
	LocalLanguage  string
	RemoteLanguage string
	Voice          string
	// RecordingID, when set, taps original and translated audio into the
	// recording manager under that session.
	RecordingID string
	// ChunkDuration is the audio slice sent per provider append. Defaults
	// to 20ms.
	ChunkDuration time.Duration
}

// Options are the optional collaborators of an Orchestrator.
type Options struct {
	Recorder *recording.Manager
	Observer metrics.Observer
	// DetectLanguage enables the acoustic detector on each direction; a
	// consensus that disagrees with the configured source language is
	// surfaced as a status event, never acted on automatically.
	DetectLanguage bool
}

type Orchestrator struct {
	provider  translate.Provider
	converter *convert.Converter
	recorder  *recording.Manager
	observer  metrics.Observer
	detect    bool
	logger    *slog.Logger

	transcripts chan frames.TranscriptFrame
	status      chan StatusEvent

	mu    sync.Mutex
	calls map[string]*callRun
}

type callRun struct {
	id          string
	cancel      context.CancelFunc
	directions  []*direction
	recordingID string
	wg          sync.WaitGroup
}

func New(provider translate.Provider, converter *convert.Converter, opts Options) *Orchestrator {
	observer := opts.Observer
	if observer == nil {
		observer = metrics.NoopObserver{}
	}
	return &Orchestrator{
		provider:    provider,
		converter:   converter,
		recorder:    opts.Recorder,
		observer:    observer,
		detect:      opts.DetectLanguage,
		logger:      logging.NewComponentLogger(slog.Default(), "translator"),
		transcripts: make(chan frames.TranscriptFrame, 512),
		status:      make(chan StatusEvent, 64),
		calls:       make(map[string]*callRun),
	}
}

// Transcripts streams source and translated transcripts from all calls.
func (o *Orchestrator) Transcripts() <-chan frames.TranscriptFrame { return o.transcripts }

// Status streams pipeline lifecycle events from all calls.
func (o *Orchestrator) Status() <-chan StatusEvent { return o.status }

// Start brings up translation for a call according to its negotiation
// outcome. A same-language pair or a non-translating outcome leaves the call
// in passthrough; that is a recorded decision, not a failure. A direction
// whose session cannot connect is degraded; the call itself always proceeds.
func (o *Orchestrator) Start(ctx context.Context, call Call, cfg CallConfig) error {
	if call.ID == "" || call.Transport == nil {
		return errorsx.Wrap(fmt.Errorf("%w: call id and transport are required", errorsx.ErrNegotiationMismatch), errorsx.ReasonNegotiationMismatch)
	}
	if cfg.ChunkDuration <= 0 {
		cfg.ChunkDuration = defaultChunk
	}

	o.mu.Lock()
	if _, exists := o.calls[call.ID]; exists {
		o.mu.Unlock()
		return fmt.Errorf("call %s already started", call.ID)
	}
	run := &callRun{id: call.ID, recordingID: cfg.RecordingID}
	o.calls[call.ID] = run
	o.mu.Unlock()

	if cfg.LocalLanguage == cfg.RemoteLanguage {
		o.logger.Info("call_passthrough",
			slog.String("call_id", call.ID),
			slog.String("reason", "languages_equal"),
			slog.String("language", cfg.LocalLanguage))
		o.emitStatus(StatusEvent{CallID: call.ID, Kind: StatusPassthrough, Reason: "languages_equal", Language: cfg.LocalLanguage, At: time.Now()})
		o.record(metrics.EventCallPassthrough, call.ID, "", map[string]string{"reason": "languages_equal"})
		return nil
	}
	if !call.Outcome.Decision.Translates() {
		o.logger.Info("call_passthrough",
			slog.String("call_id", call.ID),
			slog.String("decision", string(call.Outcome.Decision)),
			slog.String("reason", string(call.Outcome.Reason)))
		o.emitStatus(StatusEvent{CallID: call.ID, Kind: StatusPassthrough, Reason: string(call.Outcome.Reason), At: time.Now()})
		o.record(metrics.EventCallPassthrough, call.ID, "", map[string]string{"reason": string(call.Outcome.Reason)})
		return nil
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	run.cancel = cancel

	specs := []struct {
		dir     frames.Direction
		source  string
		target  string
		capture <-chan frames.AudioFrame
		inject  func(frames.AudioFrame) error
	}{
		{frames.DirectionOutgoing, cfg.LocalLanguage, cfg.RemoteLanguage, call.Transport.LocalCaptured(), call.Transport.InjectOutgoing},
		{frames.DirectionIncoming, cfg.RemoteLanguage, cfg.LocalLanguage, call.Transport.RemoteDecoded(), call.Transport.InjectIncoming},
	}

	for _, spec := range specs {
		d := newDirection(o, run, spec.dir, spec.source, spec.target, spec.capture, spec.inject, call.Transport.Format(), cfg)
		if spec.dir == frames.DirectionOutgoing {
			if c, ok := call.Transport.(transports.PlayoutClearer); ok {
				d.clear = c.ClearRemotePlayout
			}
		}
		run.directions = append(run.directions, d)

		if err := d.session.Connect(ctx); err != nil {
			o.degrade(run, d, "connect_failed", err)
			continue
		}
		d.start(runCtx)
	}

	o.logger.Info("call_translation_started",
		slog.String("call_id", call.ID),
		slog.String("local_language", cfg.LocalLanguage),
		slog.String("remote_language", cfg.RemoteLanguage),
		slog.String("provider", o.provider.Name()))
	o.emitStatus(StatusEvent{CallID: call.ID, Kind: StatusStarted, At: time.Now()})
	o.record(metrics.EventCallStarted, call.ID, "", map[string]string{"provider": o.provider.Name()})
	return nil
}

func (o *Orchestrator) newSession(callID string, dir frames.Direction, source, target string, cfg CallConfig) (translate.Session, string) {
	sessionID := uuid.New().String()
	return o.provider.NewSession(translate.Config{
		CallID:         callID,
		SessionID:      sessionID,
		Direction:      dir,
		SourceLanguage: source,
		TargetLanguage: target,
		Voice:          cfg.Voice,
		Format:         o.converter.Canonical(),
	}), sessionID
}

// ActiveCalls lists the ids of calls currently registered.
func (o *Orchestrator) ActiveCalls() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	ids := make([]string, 0, len(o.calls))
	for id := range o.calls {
		ids = append(ids, id)
	}
	return ids
}

// Stop tears down a call's pipeline: stop feeding, drain recordings,
// disconnect. Safe to call from any state and more than once.
func (o *Orchestrator) Stop(callID string) error {
	o.mu.Lock()
	run, ok := o.calls[callID]
	if ok {
		delete(o.calls, callID)
	}
	o.mu.Unlock()
	if !ok {
		return nil
	}

	for _, d := range run.directions {
		d.queue.PushControl(frames.NewControlFrame(d.sessionID, frames.ControlStop, nil))
	}
	if run.cancel != nil {
		run.cancel()
	}
	run.wg.Wait()
	for _, d := range run.directions {
		_ = d.session.Disconnect()
	}

	if run.recordingID != "" && o.recorder != nil {
		if err := o.recorder.StopRecording(run.recordingID); err != nil {
			o.logger.Warn("recording_stop_error",
				slog.String("call_id", callID),
				slog.String("error", err.Error()))
		}
	}

	o.logger.Info("call_translation_stopped", slog.String("call_id", callID))
	o.emitStatus(StatusEvent{CallID: callID, Kind: StatusStopped, At: time.Now()})
	o.record(metrics.EventCallStopped, callID, "", nil)
	return nil
}

// degrade turns off one direction and reports it. The sibling direction and
// the call keep running.
func (o *Orchestrator) degrade(run *callRun, d *direction, reason string, err error) {
	if !d.degraded.CompareAndSwap(false, true) {
		return
	}
	_ = d.session.Disconnect()

	attrs := []any{
		slog.String("call_id", run.id),
		slog.String("direction", string(d.dir)),
		slog.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	o.logger.Warn("direction_degraded", attrs...)
	o.emitStatus(StatusEvent{CallID: run.id, Direction: d.dir, Kind: StatusDegraded, Reason: reason, At: time.Now()})
	o.record(metrics.EventDirectionDegraded, run.id, d.dir, map[string]string{"reason": reason})
}

func (o *Orchestrator) emitStatus(ev StatusEvent) {
	select {
	case o.status <- ev:
	default:
	}
}

func (o *Orchestrator) emitTranscript(f frames.TranscriptFrame) {
	if redact.Enabled() {
		if masked := redact.Text(f.Text()); masked != f.Text() {
			f = frames.NewTranscriptFrame(f.Meta()[frames.MetaSessionID], masked, f.IsFinal(), f.Confidence(), f.Language(), f.Meta())
		}
	}
	select {
	case o.transcripts <- f:
	default:
	}
}

func (o *Orchestrator) record(name, callID string, dir frames.Direction, tags map[string]string) {
	if tags == nil {
		tags = map[string]string{}
	}
	tags["call_id"] = callID
	if dir != "" {
		tags["direction"] = string(dir)
	}
	o.observer.RecordEvent(metrics.MetricsEvent{Name: name, Time: time.Now(), Value: 1, Tags: tags})
}
