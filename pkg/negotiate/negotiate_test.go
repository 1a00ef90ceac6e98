package negotiate

import (
	"testing"
)

func TestDecisionTableAllCombinations(t *testing.T) {
	type state struct{ support, enabled bool }
	states := []state{
		{false, false},
		{false, true},
		{true, false},
		{true, true},
	}

	expect := func(local, remote state) Decision {
		switch {
		case !local.support && !remote.support:
			return NotSupported
		case local.support && !remote.support:
			return LocalOnly
		case !local.support && remote.support:
			return RemoteOnly
		case !local.enabled || !remote.enabled:
			return SupportedButDisabled
		default:
			return FullySupported
		}
	}

	for _, l := range states {
		for _, r := range states {
			local := Capability{Supports: l.support, Enabled: l.enabled, Language: "es"}
			remote := Capability{Supports: r.support, Enabled: r.enabled, Language: "en"}
			out := Decide(local, remote)
			want := expect(l, r)
			if out.Decision != want {
				t.Fatalf("local=%+v remote=%+v: got %s, want %s", l, r, out.Decision, want)
			}
			if out.Decision.Translates() != (want == FullySupported) {
				t.Fatalf("only FULLY_SUPPORTED may create sessions, got %s translating", out.Decision)
			}
		}
	}
}

func TestDecisionReasons(t *testing.T) {
	cases := []struct {
		name   string
		local  Capability
		remote Capability
		reason Reason
	}{
		{"neither", Capability{}, Capability{}, ReasonNotSupportedEither},
		{"local only", Capability{Supports: true, Enabled: true}, Capability{}, ReasonLocalOnly},
		{"remote only", Capability{}, Capability{Supports: true, Enabled: true}, ReasonRemoteOnly},
		{"policy", Capability{Supports: true, Enabled: true}, Capability{Supports: true, Enabled: false}, ReasonDisabledByPolicy},
		{"full", Capability{Supports: true, Enabled: true}, Capability{Supports: true, Enabled: true}, ReasonNone},
	}
	for _, tc := range cases {
		if out := Decide(tc.local, tc.remote); out.Reason != tc.reason {
			t.Fatalf("%s: got reason %q, want %q", tc.name, out.Reason, tc.reason)
		}
	}
}

func TestHeaderRoundTrip(t *testing.T) {
	in := Capability{Supports: true, Language: "es", Enabled: true}
	headers := EncodeHeaders(in)

	if headers[HeaderSupport] != "true" || headers[HeaderEnabled] != "true" || headers[HeaderLanguage] != "es" {
		t.Fatalf("unexpected header encoding: %v", headers)
	}

	out := DecodeHeaders(headers)
	if out != in {
		t.Fatalf("round trip changed capability: %+v -> %+v", in, out)
	}
}

func TestDecodeHeadersCaseInsensitiveAndAbsent(t *testing.T) {
	out := DecodeHeaders(map[string]string{
		"translation-support": "TRUE",
		"TRANSLATION-LANGUAGE": "ES",
	})
	if !out.Supports || out.Language != "es" || out.Enabled {
		t.Fatalf("unexpected decode: %+v", out)
	}

	legacy := DecodeHeaders(map[string]string{"User-Agent": "oldphone/1.0"})
	if legacy.Supports || legacy.Enabled {
		t.Fatalf("legacy peer must decode as unsupported: %+v", legacy)
	}
	if Decide(Capability{Supports: true, Enabled: true, Language: "es"}, legacy).Decision != LocalOnly {
		t.Fatalf("legacy peer must yield LOCAL_ONLY")
	}
}

func TestSDPAttribute(t *testing.T) {
	attr := EncodeSDPAttribute(Capability{Supports: true, Language: "fr", Enabled: true})
	if attr != "translation:fr" {
		t.Fatalf("unexpected attribute: %q", attr)
	}
	lang, err := DecodeSDPAttribute(attr)
	if err != nil || lang != "fr" {
		t.Fatalf("decode failed: %q %v", lang, err)
	}
	if attr := EncodeSDPAttribute(Capability{}); attr != "" {
		t.Fatalf("unsupported capability must not emit an attribute, got %q", attr)
	}
	if _, err := DecodeSDPAttribute("rtpmap:0 PCMU/8000"); err == nil {
		t.Fatalf("foreign attribute must not decode")
	}
	if _, err := DecodeSDPAttribute("translation:"); err == nil {
		t.Fatalf("empty language must not decode")
	}
}
