package langdetect

import (
	"log/slog"
	"sync"

	"github.com/andratama/lisan/pkg/convert"
	"github.com/andratama/lisan/pkg/frames"
	"github.com/andratama/lisan/pkg/logging"
)

const (
	// confidenceFloor is the minimum similarity for a candidate to count.
	confidenceFloor = 0.6
	// historySize bounds the rolling detection history.
	historySize = 10
	// consensusWindow / consensusMin: a language is stable once at least 2 of
	// the last 5 detections agree. Damps single-frame misclassification.
	consensusWindow = 5
	consensusMin    = 2

	// minEnergy gates detection on silence and line noise.
	minEnergy = 0.01
)

// Candidate is one detection result.
type Candidate struct {
	Language   string
	Confidence float64
}

// Detector classifies the spoken language of PCM chunks with a handful of
// acoustic heuristics. False detections are expected; callers must treat the
// output as a hint and stay prepared to re-detect.
type Detector struct {
	mu       sync.Mutex
	profiles []profile
	history  []Candidate
	logger   *slog.Logger
}

func New() *Detector {
	return &Detector{
		profiles: defaultProfiles,
		logger:   logging.NewComponentLogger(slog.Default(), "langdetect"),
	}
}

// Detect extracts acoustic features from the frame and scores them against the
// per-language reference profiles. It returns false for silence, non-canonical
// payloads it cannot read, or any match below the confidence floor.
func (d *Detector) Detect(frame frames.AudioFrame) (Candidate, bool) {
	format := frame.Format()
	if format.Encoding != frames.EncodingPCM16 || format.Channels != 1 {
		return Candidate{}, false
	}
	samples := convert.BytesToSamples(frame.RawPayload())
	v := extractFeatures(samples, format.SampleRate)
	if v.Energy < minEnergy {
		return Candidate{}, false
	}

	var best Candidate
	for _, p := range d.profiles {
		if score := p.similarity(v); score > best.Confidence {
			best = Candidate{Language: p.Language, Confidence: score}
		}
	}
	if best.Confidence < confidenceFloor {
		return Candidate{}, false
	}

	d.mu.Lock()
	d.history = append(d.history, best)
	if len(d.history) > historySize {
		d.history = d.history[len(d.history)-historySize:]
	}
	d.mu.Unlock()

	d.logger.Debug("language_candidate",
		slog.String("language", best.Language),
		slog.Float64("confidence", best.Confidence))
	return best, true
}

// Consensus returns the language agreed on by at least 2 of the last 5
// detections, if any. Ties go to the more recent language.
func (d *Detector) Consensus() (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	window := d.history
	if len(window) > consensusWindow {
		window = window[len(window)-consensusWindow:]
	}
	if len(window) < consensusMin {
		return "", false
	}

	counts := make(map[string]int, len(window))
	lastSeen := make(map[string]int, len(window))
	for i, c := range window {
		counts[c.Language]++
		lastSeen[c.Language] = i
	}

	bestLang := ""
	bestCount := 0
	for lang, n := range counts {
		if n > bestCount || (n == bestCount && lastSeen[lang] > lastSeen[bestLang]) {
			bestLang = lang
			bestCount = n
		}
	}
	if bestCount < consensusMin {
		return "", false
	}
	return bestLang, true
}

// History returns a copy of the rolling detection history.
func (d *Detector) History() []Candidate {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Candidate, len(d.history))
	copy(out, d.history)
	return out
}

// Reset clears the rolling history, e.g. when a call ends.
func (d *Detector) Reset() {
	d.mu.Lock()
	d.history = nil
	d.mu.Unlock()
}
