package signaling

import "encoding/json"

// Message types for the preview signaling protocol.
const (
	TypeRegister         = "register"
	TypeRegistered       = "registered"
	TypeOffer            = "offer"
	TypeAnswer           = "answer"
	TypeICECandidate     = "ice-candidate"
	TypePing             = "ping"
	TypePong             = "pong"
	TypeError            = "error"
	TypePeerDisconnected = "peer-disconnected"
)

// ClientType distinguishes the capturing publisher from a preview viewer.
const (
	ClientTypePublisher = "publisher"
	ClientTypeViewer    = "viewer"
)

// Message is the envelope for all signaling messages.
type Message struct {
	Type       string          `json:"type"`
	ID         string          `json:"id,omitempty"`
	ClientType string          `json:"clientType,omitempty"`
	From       string          `json:"from,omitempty"`
	Target     string          `json:"target,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	PeerID     string          `json:"peerId,omitempty"`
	Msg        string          `json:"message,omitempty"`
	Timestamp  int64           `json:"timestamp,omitempty"`
}
