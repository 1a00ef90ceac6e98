// Package lisan is the embedding surface for host softphones: one Engine
// built from config, holding the provider, converter, recorder and
// orchestrator, with explicit handles instead of process-wide state.
package lisan

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

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
	"github.com/andratama/lisan/pkg/resilience"
	"github.com/andratama/lisan/pkg/translator"
)

type Engine struct {
	cfg       Config
	provider  translate.Provider
	converter *convert.Converter
	recorder  *recording.Manager
	orch      *translator.Orchestrator
	observer  metrics.Observer
	async     *metrics.AsyncObserver
	signaling negotiate.HeaderSignaling
	logger    *slog.Logger

	metricsFile *os.File
}

// NewEngine wires the full pipeline from config. The returned engine owns
// its collaborators; Drain releases them.
func NewEngine(cfg Config) (*Engine, error) {
	return NewEngineWithRegistry(cfg, DefaultRegistry())
}

func NewEngineWithRegistry(cfg Config, registry *ProviderRegistry) (*Engine, error) {
	slog.SetDefault(logging.InitLogger(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat))

	base, err := registry.Build(cfg.Provider.Provider, cfg.Provider.Settings)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:       cfg,
		converter: convert.New(frames.Canonical16K),
		observer:  metrics.NoopObserver{},
		logger:    logging.NewComponentLogger(slog.Default(), "engine"),
	}

	if cfg.Metrics.JSONLPath != "" {
		f, err := os.OpenFile(cfg.Metrics.JSONLPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open metrics file: %w", err)
		}
		e.metricsFile = f
		e.async = metrics.NewAsyncObserver(metrics.NewJSONLObserver(f), 1024)
		e.observer = e.async
		if rate := cfg.Metrics.SampleRate; rate > 0 && rate < 1 {
			e.observer = metrics.NewSamplingObserver(e.async, rate)
		}
	}

	redact.SetEnabled(cfg.Privacy.RedactPII)

	if cfg.Recording.Enabled {
		e.recorder = recording.NewManager(recording.Config{
			BaseDir:   cfg.Recording.Dir,
			QueueSize: cfg.Recording.QueueSize,
		}, media.NewMemoryStore())
		if days := cfg.Recording.RetentionDays; days > 0 {
			purged, err := e.recorder.PurgeOlderThan(time.Duration(days) * 24 * time.Hour)
			if err != nil {
				e.logger.Warn("recording_purge_error", slog.String("error", err.Error()))
			}
			if purged > 0 {
				e.logger.Info("recording_purged_on_start", slog.Int("sessions", purged))
			}
		}
	}

	e.provider = &retryingProvider{
		inner:   base,
		policy:  connectPolicy(cfg.Connect),
		breaker: resilience.NewCircuitBreaker(cfg.Connect.MaxAttempts, 0),
	}
	e.orch = translator.New(e.provider, e.converter, translator.Options{
		Recorder:       e.recorder,
		Observer:       e.observer,
		DetectLanguage: cfg.Detection.Enabled,
	})

	e.logger.Info("engine_ready",
		slog.String("provider", base.Name()),
		slog.String("local_language", cfg.Language.Local),
		slog.Bool("recording", cfg.Recording.Enabled),
		slog.Bool("detection", cfg.Detection.Enabled))
	return e, nil
}

func connectPolicy(cfg ConnectConfig) resilience.RetryPolicy {
	policy := resilience.NewRetryPolicy(cfg.MaxAttempts, time.Duration(cfg.BackoffMS)*time.Millisecond)
	policy.Retryable = func(err error) bool {
		// A rate-limited endpoint will not recover within our backoff.
		return !resilience.IsRateLimit(err)
	}
	return policy
}

// LocalCapability is what this endpoint advertises during call setup.
func (e *Engine) LocalCapability() negotiate.Capability {
	return negotiate.Capability{
		Supports: true,
		Language: e.cfg.Language.Local,
		Enabled:  e.cfg.Negotiation.Enabled,
	}
}

// AdvertiseCapability writes the local capability onto outbound signaling
// headers.
func (e *Engine) AdvertiseCapability(headers map[string]string) {
	e.signaling.WriteLocalCapability(headers, e.LocalCapability())
}

// Negotiate reads the remote capability from signaling headers and decides
// the call's translation posture.
func (e *Engine) Negotiate(remoteHeaders map[string]string) negotiate.Outcome {
	remote := e.signaling.ReadRemoteCapability(remoteHeaders)
	outcome := negotiate.Decide(e.LocalCapability(), remote)
	e.logger.Info("negotiation_decided",
		slog.String("decision", string(outcome.Decision)),
		slog.String("reason", string(outcome.Reason)),
		slog.String("remote_language", remote.Language))
	return outcome
}

// StartCall brings up translation for one call. Recording failures disable
// recording for the call but never block it.
func (e *Engine) StartCall(ctx context.Context, callID string, transport media.MediaTransport, outcome negotiate.Outcome, remoteLanguage string) error {
	recID := ""
	if e.recorder != nil && outcome.Decision.Translates() {
		id, err := e.recorder.StartRecording(callID, e.cfg.Language.Local, remoteLanguage)
		if err != nil {
			e.logger.Warn("recording_unavailable",
				slog.String("call_id", callID),
				slog.String("error", err.Error()))
		} else {
			recID = id
		}
	}
	return e.orch.Start(ctx, translator.Call{
		ID:        callID,
		Transport: transport,
		Outcome:   outcome,
	}, translator.CallConfig{
		LocalLanguage:  e.cfg.Language.Local,
		RemoteLanguage: remoteLanguage,
		Voice:          e.cfg.Language.Voice,
		RecordingID:    recID,
	})
}

// StopCall tears down one call's pipeline and finalizes its recording.
func (e *Engine) StopCall(callID string) error {
	return e.orch.Stop(callID)
}

// Transcripts streams transcripts from all active calls.
func (e *Engine) Transcripts() <-chan frames.TranscriptFrame { return e.orch.Transcripts() }

// Status streams pipeline lifecycle events from all active calls.
func (e *Engine) Status() <-chan translator.StatusEvent { return e.orch.Status() }

// Recorder exposes recording export and deletion. Nil when recording is
// disabled.
func (e *Engine) Recorder() *recording.Manager { return e.recorder }

// Drain stops every active call, the recording worker and the metrics
// pipeline. It satisfies the lifecycle runner's Drainer.
func (e *Engine) Drain() error {
	for _, id := range e.orch.ActiveCalls() {
		_ = e.orch.Stop(id)
	}
	if e.recorder != nil {
		e.recorder.Close()
	}
	if e.async != nil {
		e.async.Close()
	}
	if e.metricsFile != nil {
		_ = e.metricsFile.Close()
	}
	e.logger.Info("engine_drained")
	return nil
}

// retryingProvider adds the engine's connect retry policy around every
// session it builds. A failed attempt is reset to IDLE before the next one,
// matching the session transition rules. The circuit breaker is shared across
// sessions so a rate-limited endpoint is not hammered by each new call.
type retryingProvider struct {
	inner   translate.Provider
	policy  resilience.RetryPolicy
	breaker *resilience.CircuitBreaker
}

func (p *retryingProvider) Name() string { return p.inner.Name() }

func (p *retryingProvider) NewSession(cfg translate.Config) translate.Session {
	return &retryingSession{Session: p.inner.NewSession(cfg), policy: p.policy, breaker: p.breaker}
}

type retryingSession struct {
	translate.Session
	policy  resilience.RetryPolicy
	breaker *resilience.CircuitBreaker
}

func (s *retryingSession) Connect(ctx context.Context) error {
	if !s.breaker.Allow() {
		return errorsx.Wrap(
			fmt.Errorf("%w: provider cooling down for %s", errorsx.ErrConnection, s.breaker.RetryAfter().Round(time.Second)),
			errorsx.ReasonProviderRateLimit)
	}
	err := s.policy.Do(ctx, func() error {
		err := s.Session.Connect(ctx)
		if err != nil {
			_ = s.Session.Disconnect()
		}
		return err
	})
	if err != nil {
		s.breaker.OnError(err)
		return err
	}
	s.breaker.OnSuccess()
	return nil
}
