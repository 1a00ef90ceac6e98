// Package transports holds the optional call-control seams a media transport
// may implement beyond the media.MediaTransport audio path.
package transports

import "context"

// OutboundDialer initiates an outbound call whose media will be routed
// through the transport.
type OutboundDialer interface {
	Dial(ctx context.Context, to, from string) (callID string, err error)
}

// PlayoutClearer can discard audio already queued toward the remote party,
// used when a fresh translated response replaces a stale one.
type PlayoutClearer interface {
	ClearRemotePlayout() error
}

// ReadyReporter exposes readiness metadata (e.g. webhook URLs) for
// informational logging only.
type ReadyReporter interface {
	ReadyFields() map[string]any
}
