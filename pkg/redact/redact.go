// Package redact masks personal data in surfaced transcripts. Audio on disk
// is governed by recording retention instead; this covers only text that
// leaves the pipeline through transcript channels and logs.
package redact

import (
	"regexp"
	"strings"
	"sync/atomic"
)

var enabled atomic.Bool

var (
	emailRe = regexp.MustCompile(`(?i)[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}`)
	// numberRe matches any run of 8 to 19 digits with optional single
	// separators; classifyNumber decides what the run looks like.
	numberRe = regexp.MustCompile(`\+?\d(?:[ \-]?\d){7,18}`)
)

// metaKeys are frame metadata fields that carry caller identity.
var metaKeys = []string{"from_number", "to_number", "caller_id"}

// SetEnabled toggles PII redaction process-wide.
func SetEnabled(v bool) {
	enabled.Store(v)
}

// Enabled returns true when redaction is active.
func Enabled() bool {
	return enabled.Load()
}

// Text masks emails, phone numbers and card-like digit runs when enabled.
func Text(in string) string {
	if !enabled.Load() || strings.TrimSpace(in) == "" {
		return in
	}
	out := emailRe.ReplaceAllString(in, "[REDACTED_EMAIL]")
	return numberRe.ReplaceAllStringFunc(out, classifyNumber)
}

// classifyNumber labels one matched digit run. A plus prefix always means a
// phone number, even with 13 or more digits; only bare long runs are treated
// as card-like.
func classifyNumber(m string) string {
	digits := 0
	for _, r := range m {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	if !strings.HasPrefix(m, "+") && digits >= 13 {
		return "[REDACTED_NUMBER]"
	}
	return "[REDACTED_PHONE]"
}

// Meta masks the identity fields of a frame metadata map in place and
// returns it.
func Meta(meta map[string]string) map[string]string {
	if !enabled.Load() || meta == nil {
		return meta
	}
	for _, key := range metaKeys {
		if _, ok := meta[key]; ok {
			meta[key] = "[REDACTED]"
		}
	}
	return meta
}
