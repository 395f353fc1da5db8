package peer

import (
	"encoding/json"
	"log"

	"github.com/pion/webrtc/v4"

	"github.com/junsooki/ScreenPub/internal/transport"
)

// Viewer is the receiving side of the preview.
type Viewer struct {
	pc        *webrtc.PeerConnection
	sig       Signaler
	transport *transport.DataChannelTransport
	previewID string
}

// NewViewer creates a Viewer that will connect to previewID.
func NewViewer(sig Signaler, previewID string, servers []webrtc.ICEServer) (*Viewer, error) {
	pc, err := NewPeerConnection(servers)
	if err != nil {
		return nil, err
	}
	framesDC, err := createFramesChannel(pc)
	if err != nil {
		pc.Close()
		return nil, err
	}
	framesDC.OnOpen(func() {
		log.Println("frames data channel open")
	})

	v := &Viewer{
		pc:        pc,
		sig:       sig,
		transport: transport.NewDataChannelTransport(framesDC),
		previewID: previewID,
	}
	relayCandidates(pc, sig, func() string { return previewID })
	return v, nil
}

// Transport returns the DataChannelTransport frames arrive on.
func (v *Viewer) Transport() *transport.DataChannelTransport {
	return v.transport
}

// Connect initiates the WebRTC connection by creating and sending an offer.
func (v *Viewer) Connect() error {
	offer, err := v.pc.CreateOffer(nil)
	if err != nil {
		return err
	}
	if err := v.pc.SetLocalDescription(offer); err != nil {
		return err
	}
	offerJSON, err := json.Marshal(offer)
	if err != nil {
		return err
	}
	return v.sig.SendOffer(v.previewID, offerJSON)
}

// HandleAnswer processes an incoming SDP answer.
func (v *Viewer) HandleAnswer(payload json.RawMessage) error {
	var answer webrtc.SessionDescription
	if err := json.Unmarshal(payload, &answer); err != nil {
		return err
	}
	return v.pc.SetRemoteDescription(answer)
}

// HandleICECandidate adds a remote ICE candidate.
func (v *Viewer) HandleICECandidate(payload json.RawMessage) error {
	return addCandidate(v.pc, payload)
}

// Close shuts down the peer connection.
func (v *Viewer) Close() error {
	return v.pc.Close()
}
