package monitor

import "context"

// MessageTypeSSOCheck is the cross-frame message type the probe target page
// posts to its parent.
const MessageTypeSSOCheck = "sso-check"

// Message is one parent-directed cross-frame message. Origin is the sender
// origin as reported by the environment; the monitor drops messages whose
// origin differs from the configured application origin.
type Message struct {
	Type   string `json:"type"`
	SSO    bool   `json:"sso"`
	Origin string `json:"-"`
}

// ProbeLauncher abstracts the hidden-frame mechanism of the silent SSO
// probe. Launch navigates an invisible frame to authURL (a prompt=none
// authorization URL whose redirect target posts a [Message] back) and
// streams received messages. The returned stop function tears the frame
// down; calling it after the race is decided is the only cleanup — the
// frame load itself is never aborted mid-flight.
type ProbeLauncher interface {
	Launch(ctx context.Context, authURL string) (<-chan Message, func(), error)
}
