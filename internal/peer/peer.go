package peer

import (
	"encoding/json"
	"log"

	"github.com/pion/webrtc/v4"
)

// ICEServers is the default ICE server configuration.
var ICEServers = []webrtc.ICEServer{
	{URLs: []string{"stun:stun.l.google.com:19302", "stun:stun1.l.google.com:19302"}},
}

// FramesLabel names the preview DataChannel. Both sides create it as a
// negotiated channel with framesID, so the viewer's offer carries it.
const FramesLabel = "frames"

const framesID uint16 = 0

// Signaler relays SDP and ICE messages to the remote peer.
type Signaler interface {
	SendOffer(target string, payload json.RawMessage) error
	SendAnswer(target string, payload json.RawMessage) error
	SendICECandidate(target string, payload json.RawMessage) error
}

// NewPeerConnection creates a configured PeerConnection.
func NewPeerConnection(servers []webrtc.ICEServer) (*webrtc.PeerConnection, error) {
	cfg := webrtc.Configuration{
		ICEServers: servers,
	}
	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, err
	}
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		log.Printf("peer connection state: %s", state.String())
	})
	return pc, nil
}

// createFramesChannel opens the unordered, zero-retransmit frames channel:
// a late preview frame is worthless.
func createFramesChannel(pc *webrtc.PeerConnection) (*webrtc.DataChannel, error) {
	ordered := false
	maxRetransmits := uint16(0)
	negotiated := true
	id := framesID
	return pc.CreateDataChannel(FramesLabel, &webrtc.DataChannelInit{
		Ordered:        &ordered,
		MaxRetransmits: &maxRetransmits,
		Negotiated:     &negotiated,
		ID:             &id,
	})
}

func relayCandidates(pc *webrtc.PeerConnection, sig Signaler, target func() string) {
	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		to := target()
		if to == "" {
			return
		}
		data, err := json.Marshal(c.ToJSON())
		if err != nil {
			log.Printf("marshal ICE candidate: %v", err)
			return
		}
		_ = sig.SendICECandidate(to, data)
	})
}

func addCandidate(pc *webrtc.PeerConnection, payload json.RawMessage) error {
	var candidate webrtc.ICECandidateInit
	if err := json.Unmarshal(payload, &candidate); err != nil {
		return err
	}
	return pc.AddICECandidate(candidate)
}
