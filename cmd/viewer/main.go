package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/junsooki/ScreenPub/internal/config"
	"github.com/junsooki/ScreenPub/internal/decoder"
	"github.com/junsooki/ScreenPub/internal/display"
	"github.com/junsooki/ScreenPub/internal/logutil"
	"github.com/junsooki/ScreenPub/internal/peer"
	"github.com/junsooki/ScreenPub/internal/signaling"
)

func main() {
	cfg, err := config.ParseViewerArgs(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "viewer: %v\n", err)
		os.Exit(2)
	}
	logutil.Setup(false)

	log.Printf("ScreenPub viewer starting")
	log.Printf("  Viewer ID:  %s", cfg.ViewerID)
	log.Printf("  Signaling:  %s", cfg.SignalingURL)
	log.Printf("  Preview:    %s", cfg.PreviewID)

	dec := decoder.NewJPEGDecoder()
	disp := display.NewEbitenDisplay("ScreenPub preview: " + cfg.PreviewID)

	var (
		mu         sync.Mutex
		viewerPeer *peer.Viewer
	)
	current := func() *peer.Viewer {
		mu.Lock()
		defer mu.Unlock()
		return viewerPeer
	}
	logDecode := logutil.Every(5 * time.Second)

	var sig *signaling.Client
	sig = signaling.NewClient(cfg.SignalingURL, cfg.ViewerID, signaling.ClientTypeViewer, signaling.Handler{
		OnRegistered: func() {
			log.Println("Registered with signaling server")

			v, err := peer.NewViewer(sig, cfg.PreviewID, peer.ICEServers)
			if err != nil {
				log.Printf("create viewer peer: %v", err)
				disp.Stop()
				return
			}
			v.Transport().OnFrame(func(data []byte) {
				img, err := dec.Decode(data)
				if err != nil {
					if logDecode() {
						log.Printf("decode frame: %v", err)
					}
					return
				}
				disp.SetFrame(img)
			})
			mu.Lock()
			viewerPeer = v
			mu.Unlock()

			if err := v.Connect(); err != nil {
				log.Printf("viewer connect: %v", err)
			}
		},
		OnAnswer: func(from string, payload json.RawMessage) {
			if v := current(); v != nil {
				if err := v.HandleAnswer(payload); err != nil {
					log.Printf("handle answer: %v", err)
				}
			}
		},
		OnICECandidate: func(from string, payload json.RawMessage) {
			if v := current(); v != nil {
				if err := v.HandleICECandidate(payload); err != nil {
					log.Printf("handle ICE candidate: %v", err)
				}
			}
		},
		OnPeerDisconnected: func(peerID string) {
			if peerID == cfg.PreviewID {
				log.Printf("Publisher %s went away", peerID)
				disp.Stop()
			}
		},
		OnError: func(msg string) {
			log.Printf("signaling error: %s", msg)
		},
	})

	if err := sig.Connect(context.Background()); err != nil {
		log.Fatalf("signaling connect: %v", err)
	}
	defer sig.Close()
	go func() {
		<-sig.Done()
		disp.Stop()
	}()

	// Ebitengine RunGame must be on the main goroutine.
	if err := disp.Run(); err != nil {
		log.Fatalf("display: %v", err)
	}

	if v := current(); v != nil {
		v.Close()
	}
}
