package negotiate

import (
	"fmt"
	"strings"
)

// Header field names carried in the call-setup signaling.
const (
	HeaderSupport  = "Translation-Support"
	HeaderLanguage = "Translation-Language"
	HeaderEnabled  = "Translation-Enabled"
)

// sdpAttributePrefix is the media-description attribute carrying the language.
const sdpAttributePrefix = "translation:"

// EncodeHeaders renders a capability as signaling header fields.
func EncodeHeaders(c Capability) map[string]string {
	return map[string]string{
		HeaderSupport:  formatBool(c.Supports),
		HeaderLanguage: c.Language,
		HeaderEnabled:  formatBool(c.Enabled),
	}
}

// DecodeHeaders parses capability fields out of signaling headers. Header
// names are matched case-insensitively; absent fields read as false/empty,
// which yields a harmless NOT_SUPPORTED posture for legacy peers.
func DecodeHeaders(headers map[string]string) Capability {
	var c Capability
	for name, value := range headers {
		switch strings.ToLower(name) {
		case strings.ToLower(HeaderSupport):
			c.Supports = parseBool(value)
		case strings.ToLower(HeaderLanguage):
			c.Language = strings.ToLower(strings.TrimSpace(value))
		case strings.ToLower(HeaderEnabled):
			c.Enabled = parseBool(value)
		}
	}
	return c
}

// EncodeSDPAttribute renders the media-level attribute, e.g. "translation:es".
func EncodeSDPAttribute(c Capability) string {
	if !c.Supports || c.Language == "" {
		return ""
	}
	return sdpAttributePrefix + c.Language
}

// DecodeSDPAttribute extracts the language from a media attribute line.
func DecodeSDPAttribute(attr string) (string, error) {
	attr = strings.TrimSpace(attr)
	if !strings.HasPrefix(attr, sdpAttributePrefix) {
		return "", fmt.Errorf("not a translation attribute: %q", attr)
	}
	lang := strings.ToLower(strings.TrimPrefix(attr, sdpAttributePrefix))
	if lang == "" {
		return "", fmt.Errorf("translation attribute missing language")
	}
	return lang, nil
}

func formatBool(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

func parseBool(v string) bool {
	return strings.EqualFold(strings.TrimSpace(v), "true")
}
