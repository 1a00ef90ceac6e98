package translator

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/andratama/lisan/pkg/adapters/translate"
	"github.com/andratama/lisan/pkg/audio"
	"github.com/andratama/lisan/pkg/errorsx"
	"github.com/andratama/lisan/pkg/frames"
	"github.com/andratama/lisan/pkg/langdetect"
	"github.com/andratama/lisan/pkg/metrics"
	"github.com/andratama/lisan/pkg/priority"
)

const sendIdleSleep = 5 * time.Millisecond

// direction owns one half of a call's pipeline: capture, buffer, convert,
// send, and the inverse inject path for the provider's translated audio.
type direction struct {
	orch *Orchestrator
	run  *callRun

	dir       frames.Direction
	source    string
	target    string
	sessionID string

	capture   <-chan frames.AudioFrame
	inject    func(frames.AudioFrame) error
	wire      frames.PCMFormat
	chunk     time.Duration
	recording string

	// clear, when set, drops audio already queued toward the remote party.
	// Called at speech start so a fresh translation replaces a stale one.
	clear func() error

	session  translate.Session
	buffer   *audio.Buffer
	queue    *priority.Queue
	detector *langdetect.Detector

	degraded     atomic.Bool
	lastDetected string
}

func newDirection(o *Orchestrator, run *callRun, dir frames.Direction, source, target string,
	capture <-chan frames.AudioFrame, inject func(frames.AudioFrame) error,
	wire frames.PCMFormat, cfg CallConfig) *direction {

	session, sessionID := o.newSession(run.id, dir, source, target, cfg)
	d := &direction{
		orch:      o,
		run:       run,
		dir:       dir,
		source:    source,
		target:    target,
		sessionID: sessionID,
		capture:   capture,
		inject:    inject,
		wire:      wire,
		chunk:     cfg.ChunkDuration,
		recording: cfg.RecordingID,
		session:   session,
		buffer:    audio.NewBuffer(sessionID, wire, dir),
		queue:     priority.New(16, 256, 4),
	}
	if o.detect {
		d.detector = langdetect.New()
	}
	return d
}

func (d *direction) start(ctx context.Context) {
	d.run.wg.Add(3)
	go d.captureLoop(ctx)
	go d.sendLoop(ctx)
	go d.monitorLoop(ctx)
}

// captureLoop moves captured audio into the frame buffer. It never blocks on
// provider I/O; an overflowing buffer poisons the direction instead.
func (d *direction) captureLoop(ctx context.Context) {
	defer d.run.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-d.capture:
			if !ok {
				return
			}
			if d.degraded.Load() {
				continue
			}
			if err := d.buffer.Push(frame.RawPayload()); err != nil {
				if errors.Is(err, errorsx.ErrBufferOverflow) {
					d.orch.record(metrics.EventBufferOverflow, d.run.id, d.dir, nil)
					d.orch.degrade(d.run, d, "buffer_overflow", err)
				}
			}
		}
	}
}

// sendLoop drains the queue, control lane first, then refills the low lane
// with fixed chunks cut off the buffer and converted to the canonical format.
// Control frames always jump queued audio, so a stop is never stuck behind a
// backlog.
func (d *direction) sendLoop(ctx context.Context) {
	defer d.run.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if f, ok := d.queue.Pop(); ok {
			switch fr := f.(type) {
			case frames.ControlFrame:
				if fr.Code() == frames.ControlStop {
					return
				}
			case frames.AudioFrame:
				d.sendToProvider(fr)
			}
			continue
		}

		chunk, ok := d.buffer.TryTakeChunk(d.chunk)
		if !ok {
			time.Sleep(sendIdleSleep)
			continue
		}
		if d.degraded.Load() {
			continue
		}

		canonical, err := d.orch.converter.ToCanonical(chunk, d.wire)
		if err != nil {
			d.orch.logger.Error("capture_convert_error",
				slog.String("call_id", d.run.id),
				slog.String("direction", string(d.dir)),
				slog.String("error", err.Error()))
			continue
		}

		d.observeLanguage(canonical)

		if !d.queue.PushAudio(canonical) {
			d.orch.record(metrics.EventBufferOverflow, d.run.id, d.dir, map[string]string{"stage": "send_queue"})
		}
	}
}

// sendToProvider taps one canonical chunk into the recording and appends it
// to the provider session.
func (d *direction) sendToProvider(frame frames.AudioFrame) {
	if d.recording != "" && d.orch.recorder != nil {
		d.orch.recorder.EnqueueOriginal(d.recording, frame)
	}
	if err := d.session.SendAudio(frame); err != nil {
		d.orch.logger.Warn("provider_send_error",
			slog.String("call_id", d.run.id),
			slog.String("direction", string(d.dir)),
			slog.String("error", err.Error()))
		return
	}
	d.orch.record(metrics.EventFrameSent, d.run.id, d.dir, nil)
}

// observeLanguage feeds the detector and reports a consensus that disagrees
// with the configured source language. Detection is advisory only.
func (d *direction) observeLanguage(frame frames.AudioFrame) {
	if d.detector == nil {
		return
	}
	d.detector.Detect(frame)
	lang, ok := d.detector.Consensus()
	if !ok || lang == d.source || lang == d.lastDetected {
		return
	}
	d.lastDetected = lang
	d.orch.logger.Info("language_mismatch_detected",
		slog.String("call_id", d.run.id),
		slog.String("direction", string(d.dir)),
		slog.String("configured", d.source),
		slog.String("detected", lang))
	d.orch.emitStatus(StatusEvent{
		CallID: d.run.id, Direction: d.dir,
		Kind: StatusLanguageDetected, Language: lang, At: time.Now(),
	})
	d.orch.record(metrics.EventLanguageDetected, d.run.id, d.dir, map[string]string{"language": lang})
}

// monitorLoop forwards provider output and watches for session failure. It
// also carries translated audio back to the transport, replacing the
// original stream.
func (d *direction) monitorLoop(ctx context.Context) {
	defer d.run.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return

		case frame := <-d.session.Audio():
			out, err := d.orch.converter.FromCanonical(frame, d.wire)
			if err != nil {
				d.orch.logger.Error("inject_convert_error",
					slog.String("call_id", d.run.id),
					slog.String("direction", string(d.dir)),
					slog.String("error", err.Error()))
				continue
			}
			if err := d.inject(out); err != nil {
				d.orch.logger.Warn("inject_error",
					slog.String("call_id", d.run.id),
					slog.String("direction", string(d.dir)),
					slog.String("error", err.Error()))
				continue
			}
			if d.recording != "" && d.orch.recorder != nil {
				d.orch.recorder.EnqueueTranslated(d.recording, frame)
			}
			d.orch.record(metrics.EventFrameInjected, d.run.id, d.dir, nil)

		case transcript := <-d.session.Transcripts():
			d.orch.emitTranscript(transcript)

		case change := <-d.session.StateChanges():
			if change.To == translate.StateDetectingSpeech && d.clear != nil {
				_ = d.clear()
			}
			if change.To == translate.StateError {
				d.orch.degrade(d.run, d, "session_error", nil)
			}

		case err := <-d.session.Errors():
			d.orch.degrade(d.run, d, "provider_error", err)
		}
	}
}
