package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"image"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/junsooki/ScreenPub/internal/camera"
	"github.com/junsooki/ScreenPub/internal/capture"
	"github.com/junsooki/ScreenPub/internal/config"
	"github.com/junsooki/ScreenPub/internal/logutil"
	"github.com/junsooki/ScreenPub/internal/peer"
	"github.com/junsooki/ScreenPub/internal/publisher"
	"github.com/junsooki/ScreenPub/internal/signaling"
	"github.com/junsooki/ScreenPub/internal/transport"
	"github.com/junsooki/ScreenPub/internal/window"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.ParsePublisherArgs(args, os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "screenpub: %v\n", err)
		return 2
	}
	logutil.Setup(cfg.Debug)

	master, _ := cfg.MasterAddress()
	topics := camera.TopicsFor(cfg.Namespace)

	log.Printf("ScreenPub starting")
	log.Printf("  Window:     %q", cfg.Window)
	log.Printf("  Rate:       %d Hz", cfg.Rate)
	log.Printf("  Region:     %s", regionString(cfg.Region))
	log.Printf("  Master:     %s", master)
	log.Printf("  Node:       %s", cfg.NodeName)
	if cfg.PublishRaw {
		log.Printf("  Raw:        %s", topics.Raw)
	}
	if cfg.PublishCompressed {
		log.Printf("  Compressed: %s (quality %d)", topics.Compressed, cfg.Quality)
	}
	log.Printf("  Info:       %s", topics.Info)
	if cfg.SignalingURL != "" {
		log.Printf("  Preview:    %s as %s", cfg.SignalingURL, cfg.PreviewID)
	}

	mode := window.MatchSubstring
	if cfg.ExactMatch {
		mode = window.MatchExact
	}
	locator := window.NewLocator(window.NewSystemBackend(), window.Options{
		Mode:       mode,
		IgnoreCase: cfg.IgnoreCase,
		Timeout:    cfg.FindTimeout,
	})

	loop, err := publisher.New(locator, openSession(cfg, master, topics), publisher.Options{
		Rate:              cfg.Rate,
		FrameID:           cfg.FrameID,
		Quality:           cfg.Quality,
		PublishRaw:        cfg.PublishRaw,
		PublishCompressed: cfg.PublishCompressed,
	})
	if err != nil {
		log.Printf("publisher: %v", err)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = loop.Run(ctx, publisher.Target{
		Title:  cfg.Window,
		Region: cfg.Region.Rect(),
		Raise:  cfg.RaiseToFront,
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("screenpub: %v", err)
		return 1
	}
	log.Println("Shut down cleanly")
	return 0
}

// openSession returns the OpenFunc that acquires the capturer and every
// transport once the window has been resolved.
func openSession(cfg *config.Config, master string, topics camera.Topics) publisher.OpenFunc {
	return func(ctx context.Context, rect image.Rectangle) (*publisher.Session, error) {
		capturer, err := capture.NewScreenCapturer()
		if err != nil {
			return nil, err
		}

		ros, err := transport.NewROS(transport.ROSConfig{
			NodeName:          cfg.NodeName,
			NodeNamespace:     cfg.NodeNamespace,
			MasterAddress:     master,
			Host:              cfg.Host,
			Topics:            topics,
			PublishRaw:        cfg.PublishRaw,
			PublishCompressed: cfg.PublishCompressed,
		})
		if err != nil {
			capturer.Close()
			return nil, err
		}
		log.Printf("Registered %s with ROS master %s", cfg.NodeName, master)

		if cfg.SignalingURL == "" || !cfg.PublishCompressed {
			if cfg.SignalingURL != "" {
				log.Printf("preview disabled: it mirrors the compressed stream")
			}
			return publisher.NewSession(capturer, ros), nil
		}

		preview, err := startPreview(ctx, cfg)
		if err != nil {
			// The preview is optional; ROS publishing goes on without it.
			log.Printf("preview: %v", err)
			return publisher.NewSession(capturer, ros), nil
		}
		return publisher.NewSession(capturer, transport.Fanout{ros, preview}), nil
	}
}

// previewLink is the Preview transport together with the signaling client
// and peer that feed it.
type previewLink struct {
	*transport.Preview
	source *peer.Source
	sig    *signaling.Client
}

func (p *previewLink) Close() error {
	return errors.Join(p.source.Close(), p.sig.Close(), p.Preview.Close())
}

func startPreview(ctx context.Context, cfg *config.Config) (*previewLink, error) {
	preview := transport.NewPreview()
	var source *peer.Source

	sig := signaling.NewClient(cfg.SignalingURL, cfg.PreviewID, signaling.ClientTypePublisher, signaling.Handler{
		OnRegistered: func() {
			log.Printf("Registered with signaling server. Preview ID: %s", cfg.PreviewID)
		},
		OnOffer: func(from string, payload json.RawMessage) {
			log.Printf("Received offer from %s", from)
			if err := source.HandleOffer(from, payload); err != nil {
				log.Printf("handle offer: %v", err)
			}
		},
		OnICECandidate: func(from string, payload json.RawMessage) {
			if err := source.HandleICECandidate(from, payload); err != nil {
				log.Printf("handle ICE candidate: %v", err)
			}
		},
		OnPeerDisconnected: func(peerID string) {
			source.HandleDisconnect(peerID)
		},
		OnError: func(msg string) {
			log.Printf("signaling error: %s", msg)
		},
	})
	source = peer.NewSource(sig, preview, peer.ICEServers)

	if err := sig.Connect(ctx); err != nil {
		return nil, err
	}
	return &previewLink{Preview: preview, source: source, sig: sig}, nil
}

func regionString(r config.Region) string {
	if s := r.String(); s != "" {
		return s
	}
	return "whole window"
}
