package negotiate

// HeaderSignaling maps capabilities onto plain signaling headers. It
// satisfies the media.SignalingHooks seam for any stack that exposes call
// setup messages as key/value headers.
type HeaderSignaling struct{}

func (HeaderSignaling) ReadRemoteCapability(headers map[string]string) Capability {
	return DecodeHeaders(headers)
}

func (HeaderSignaling) WriteLocalCapability(headers map[string]string, capability Capability) {
	for name, value := range EncodeHeaders(capability) {
		headers[name] = value
	}
}
