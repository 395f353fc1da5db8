package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ParsePublisherArgs builds the publisher configuration from args (without
// the program name). Sources, lowest precedence first: defaults, YAML config
// file, environment, ROS remapping arguments, flags. It returns
// flag.ErrHelp when help was requested.
func ParsePublisherArgs(args []string, out io.Writer) (*Config, error) {
	LoadDotenv()

	args, remaps := splitRemaps(args)
	args = joinRegionArgs(args)

	cfg := Default()
	path := configPath(args)
	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyRemaps(remaps)

	fs := flag.NewFlagSet("screenpub", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: screenpub [flags] WINDOW\n\n")
		fmt.Fprintf(fs.Output(), "Captures the window whose title contains WINDOW and publishes it on ROS.\n\nFlags:\n")
		fs.PrintDefaults()
	}

	noRaw := !cfg.PublishRaw
	noCompressed := !cfg.PublishCompressed
	var configFile string

	intVar(fs, &cfg.Rate, cfg.Rate, "Rate at which to publish captured images (FPS)", "r", "rate")
	stringVar(fs, &cfg.Namespace, cfg.Namespace, "Namespace to publish images in", "n", "namespace")
	boolVar(fs, &cfg.RaiseToFront, cfg.RaiseToFront, "Raise the window to the front before capturing", "f", "raise-to-front")
	intVar(fs, &cfg.Quality, cfg.Quality, "JPEG quality (1-100)", "q", "quality")
	fs.BoolVar(&noRaw, "no-raw", noRaw, "Disable the image_rect_color publisher")
	fs.BoolVar(&noCompressed, "no-compressed", noCompressed, "Disable the compressed publisher")
	fs.Var(&cfg.Region, "region", "Region to capture relative to the window: \"x y w h\"")
	fs.StringVar(&cfg.FrameID, "frame-id", cfg.FrameID, "Frame id of the published messages")
	fs.BoolVar(&cfg.ExactMatch, "exact", cfg.ExactMatch, "Require the window title to match exactly")
	fs.BoolVar(&cfg.IgnoreCase, "ignore-case", cfg.IgnoreCase, "Match the window title case-insensitively")
	fs.DurationVar(&cfg.FindTimeout, "find-timeout", cfg.FindTimeout, "How long to keep looking for the window")
	fs.StringVar(&cfg.MasterURI, "master", cfg.MasterURI, "ROS master URI (ROS_MASTER_URI)")
	fs.StringVar(&cfg.Host, "ip", cfg.Host, "Address advertised to other ROS nodes (ROS_IP)")
	fs.StringVar(&cfg.NodeName, "name", cfg.NodeName, "ROS node name")
	fs.StringVar(&configFile, "config", path, "YAML config file")
	fs.StringVar(&cfg.SignalingURL, "signaling", cfg.SignalingURL, "Signaling server WebSocket URL for the WebRTC preview (disabled if empty)")
	fs.StringVar(&cfg.PreviewID, "preview-id", cfg.PreviewID, "Preview ID announced to viewers (auto-generated if empty)")
	fs.BoolVar(&cfg.Debug, "debug", cfg.Debug, "Enable debug logging")

	positional, err := parseInterleaved(fs, args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrArgument, err)
	}
	switch len(positional) {
	case 0:
	case 1:
		cfg.Window = positional[0]
	default:
		return nil, fmt.Errorf("%w: expected one WINDOW argument, got %q", ErrArgument, positional)
	}
	cfg.PublishRaw = !noRaw
	cfg.PublishCompressed = !noCompressed

	if cfg.SignalingURL != "" && cfg.PreviewID == "" {
		cfg.PreviewID = fmt.Sprintf("screenpub-%s", randomID())
	}
	if err := cfg.Validate(); err != nil {
		fs.Usage()
		return nil, err
	}
	return cfg, nil
}

// ViewerConfig holds configuration for the preview viewer.
type ViewerConfig struct {
	SignalingURL string
	ViewerID     string
	PreviewID    string
}

// ParseViewerArgs parses flags for the viewer binary.
func ParseViewerArgs(args []string, out io.Writer) (*ViewerConfig, error) {
	LoadDotenv()

	cfg := &ViewerConfig{}
	signaling := os.Getenv(EnvSignaling)
	if signaling == "" {
		signaling = "ws://localhost:8080"
	}

	fs := flag.NewFlagSet("viewer", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.StringVar(&cfg.SignalingURL, "signaling", signaling, "Signaling server WebSocket URL")
	fs.StringVar(&cfg.ViewerID, "id", "", "Viewer ID (auto-generated if empty)")
	fs.StringVar(&cfg.PreviewID, "preview", "", "Preview ID of the publisher to watch (required)")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrArgument, err)
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("%w: unexpected arguments %q", ErrArgument, fs.Args())
	}
	if cfg.PreviewID == "" {
		return nil, fmt.Errorf("%w: -preview is required", ErrArgument)
	}
	if cfg.ViewerID == "" {
		cfg.ViewerID = fmt.Sprintf("viewer-%s", randomID())
	}
	return cfg, nil
}

// parseInterleaved lets positional arguments appear between flags. Everything
// after "--" is positional.
func parseInterleaved(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		rest := fs.Args()
		if len(rest) == 0 {
			return positional, nil
		}
		consumed := len(args) - len(rest)
		if consumed > 0 && args[consumed-1] == "--" {
			return append(positional, rest...), nil
		}
		positional = append(positional, rest[0])
		args = rest[1:]
	}
}

// joinRegionArgs folds the four-value form "--region x y w h" into a single
// flag value.
func joinRegionArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		a := args[i]
		if (a == "--region" || a == "-region") && i+4 < len(args) && allInts(args[i+1:i+5]) {
			out = append(out, a, strings.Join(args[i+1:i+5], " "))
			i += 4
			continue
		}
		out = append(out, a)
	}
	return out
}

func allInts(s []string) bool {
	for _, v := range s {
		if _, err := strconv.Atoi(v); err != nil {
			return false
		}
	}
	return true
}

// configPath finds --config before flags are parsed, so the file can sit
// below flags in precedence.
func configPath(args []string) string {
	for i, a := range args {
		if a == "--" {
			break
		}
		name := strings.TrimLeft(a, "-")
		if name == a {
			continue
		}
		if v, ok := strings.CutPrefix(name, "config="); ok {
			return v
		}
		if name == "config" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func intVar(fs *flag.FlagSet, p *int, value int, usage string, names ...string) {
	for _, n := range names {
		fs.IntVar(p, n, value, usage)
	}
}

func stringVar(fs *flag.FlagSet, p *string, value, usage string, names ...string) {
	for _, n := range names {
		fs.StringVar(p, n, value, usage)
	}
}

func boolVar(fs *flag.FlagSet, p *bool, value bool, usage string, names ...string) {
	for _, n := range names {
		fs.BoolVar(p, n, value, usage)
	}
}
