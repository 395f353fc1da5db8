package peer

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/junsooki/ScreenPub/internal/transport"
)

// Source is the publisher side of the preview. It answers viewer offers and
// attaches the frames channel to the Preview transport once it opens. A new
// offer replaces the current viewer.
type Source struct {
	sig     Signaler
	preview *transport.Preview
	servers []webrtc.ICEServer

	mu     sync.Mutex
	pc     *webrtc.PeerConnection
	peerID string
}

// NewSource creates a Source feeding preview.
func NewSource(sig Signaler, preview *transport.Preview, servers []webrtc.ICEServer) *Source {
	return &Source{sig: sig, preview: preview, servers: servers}
}

// PeerID returns the viewer currently being served, if any.
func (s *Source) PeerID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peerID
}

// HandleOffer processes an incoming offer from a viewer.
func (s *Source) HandleOffer(from string, payload json.RawMessage) error {
	var offer webrtc.SessionDescription
	if err := json.Unmarshal(payload, &offer); err != nil {
		return fmt.Errorf("decode offer: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()

	pc, err := NewPeerConnection(s.servers)
	if err != nil {
		return err
	}
	framesDC, err := createFramesChannel(pc)
	if err != nil {
		pc.Close()
		return err
	}
	framesDC.OnOpen(func() {
		log.Printf("preview: frames channel open to %s", from)
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.pc == pc {
			s.preview.Attach(transport.NewDataChannelTransport(framesDC))
		}
	})
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		if state != webrtc.PeerConnectionStateFailed && state != webrtc.PeerConnectionStateDisconnected {
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.pc == pc {
			log.Printf("preview: viewer %s %s", from, state)
			s.closeLocked()
		}
	})
	relayCandidates(pc, s.sig, func() string { return from })

	s.pc = pc
	s.peerID = from

	if err := pc.SetRemoteDescription(offer); err != nil {
		s.closeLocked()
		return fmt.Errorf("set remote description: %w", err)
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		s.closeLocked()
		return fmt.Errorf("create answer: %w", err)
	}
	if err := pc.SetLocalDescription(answer); err != nil {
		s.closeLocked()
		return fmt.Errorf("set local description: %w", err)
	}
	answerJSON, err := json.Marshal(answer)
	if err != nil {
		s.closeLocked()
		return err
	}
	return s.sig.SendAnswer(from, answerJSON)
}

// HandleICECandidate adds a remote ICE candidate from the current viewer.
func (s *Source) HandleICECandidate(from string, payload json.RawMessage) error {
	s.mu.Lock()
	pc, peerID := s.pc, s.peerID
	s.mu.Unlock()
	if pc == nil || from != peerID {
		return nil
	}
	return addCandidate(pc, payload)
}

// HandleDisconnect drops the viewer if it is the current one.
func (s *Source) HandleDisconnect(peerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if peerID == s.peerID {
		s.closeLocked()
	}
}

// Close shuts down the current peer connection.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
	return nil
}

func (s *Source) closeLocked() {
	if s.pc == nil {
		return
	}
	s.preview.Attach(nil)
	pc := s.pc
	s.pc = nil
	s.peerID = ""
	go pc.Close()
}
