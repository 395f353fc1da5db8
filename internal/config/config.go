package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/junsooki/ScreenPub/internal/camera"
	"github.com/junsooki/ScreenPub/internal/encoder"
)

// ErrArgument reports invalid command-line or configuration input.
var ErrArgument = errors.New("invalid argument")

const (
	DefaultNodeName  = "screen_capture_publisher"
	DefaultMasterURI = "http://localhost:11311"
	defaultROSPort   = "11311"
)

// Config holds the publisher configuration.
type Config struct {
	Window            string        `yaml:"window"`
	Rate              int           `yaml:"rate"`
	Namespace         string        `yaml:"namespace"`
	PublishRaw        bool          `yaml:"publish_raw"`
	PublishCompressed bool          `yaml:"publish_compressed"`
	RaiseToFront      bool          `yaml:"raise_to_front"`
	Region            Region        `yaml:"region"`
	Quality           int           `yaml:"quality"`
	FrameID           string        `yaml:"frame_id"`
	ExactMatch        bool          `yaml:"exact"`
	IgnoreCase        bool          `yaml:"ignore_case"`
	FindTimeout       time.Duration `yaml:"find_timeout"`

	NodeName      string `yaml:"node_name"`
	NodeNamespace string `yaml:"node_namespace"`
	MasterURI     string `yaml:"master"`
	// Host is the address advertised to other ROS nodes.
	Host string `yaml:"ip"`

	SignalingURL string `yaml:"signaling"`
	PreviewID    string `yaml:"preview_id"`

	Debug bool `yaml:"debug"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Rate:              30,
		Namespace:         "capture",
		PublishRaw:        true,
		PublishCompressed: true,
		Quality:           encoder.DefaultQuality,
		FrameID:           camera.DefaultFrameID,
		FindTimeout:       5 * time.Second,
		NodeName:          DefaultNodeName,
		MasterURI:         DefaultMasterURI,
	}
}

// MasterAddress returns the host:port of the ROS master.
func (c *Config) MasterAddress() (string, error) {
	return masterAddress(c.MasterURI)
}

func masterAddress(uri string) (string, error) {
	hostport := uri
	if strings.Contains(uri, "://") {
		u, err := url.Parse(uri)
		if err != nil {
			return "", fmt.Errorf("%w: master URI %q: %v", ErrArgument, uri, err)
		}
		hostport = u.Host
	}
	if hostport == "" {
		return "", fmt.Errorf("%w: master URI %q has no host", ErrArgument, uri)
	}
	if _, _, err := net.SplitHostPort(hostport); err != nil {
		hostport = net.JoinHostPort(strings.Trim(hostport, "[]"), defaultROSPort)
	}
	return hostport, nil
}

// Validate checks the configuration after all sources are applied.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Window) == "" {
		return fmt.Errorf("%w: WINDOW title is required", ErrArgument)
	}
	if c.Rate < 1 {
		return fmt.Errorf("%w: rate must be positive, got %d", ErrArgument, c.Rate)
	}
	if c.Quality < 1 || c.Quality > 100 {
		return fmt.Errorf("%w: quality must be 1-100, got %d", ErrArgument, c.Quality)
	}
	if !c.PublishRaw && !c.PublishCompressed {
		return fmt.Errorf("%w: --no-raw and --no-compressed leave nothing to publish", ErrArgument)
	}
	if strings.TrimSpace(c.Namespace) == "" {
		return fmt.Errorf("%w: namespace is empty", ErrArgument)
	}
	if c.FindTimeout < 0 {
		return fmt.Errorf("%w: find timeout is negative", ErrArgument)
	}
	if _, err := c.MasterAddress(); err != nil {
		return err
	}
	if c.NodeName == "" || strings.Contains(c.NodeName, "/") {
		return fmt.Errorf("%w: node name %q must be non-empty and contain no slash", ErrArgument, c.NodeName)
	}
	c.NodeNamespace = normalizeNamespace(c.NodeNamespace)
	return nil
}

// normalizeNamespace turns "robot1", "robot1/" and "/robot1/" into "/robot1"
// as rospy does. Empty stays empty so the ROS client falls back to "/".
func normalizeNamespace(ns string) string {
	ns = strings.TrimSpace(ns)
	if ns == "" {
		return ""
	}
	ns = "/" + strings.Trim(ns, "/")
	return ns
}

// Region is a capture rectangle relative to the window: x y width height.
type Region struct {
	X, Y, Width, Height int
}

// Rect returns the region as a rectangle, or the zero rectangle if unset.
func (r Region) Rect() image.Rectangle {
	if r == (Region{}) {
		return image.Rectangle{}
	}
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

func (r *Region) String() string {
	if r == nil || *r == (Region{}) {
		return ""
	}
	return fmt.Sprintf("%d %d %d %d", r.X, r.Y, r.Width, r.Height)
}

// Set parses "x y w h", also accepting commas as separators.
func (r *Region) Set(s string) error {
	fields := strings.FieldsFunc(s, func(c rune) bool { return c == ',' || c == ' ' })
	if len(fields) != 4 {
		return fmt.Errorf("region needs 4 integers (x y w h), got %q", s)
	}
	var v [4]int
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return fmt.Errorf("region value %q: %v", f, err)
		}
		v[i] = n
	}
	if v[2] <= 0 || v[3] <= 0 {
		return fmt.Errorf("region width and height must be positive, got %dx%d", v[2], v[3])
	}
	*r = Region{X: v[0], Y: v[1], Width: v[2], Height: v[3]}
	return nil
}

// UnmarshalYAML accepts either "x y w h" or a sequence of four integers.
func (r *Region) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.SequenceNode {
		var v []int
		if err := n.Decode(&v); err != nil {
			return err
		}
		parts := make([]string, len(v))
		for i, x := range v {
			parts[i] = strconv.Itoa(x)
		}
		return r.Set(strings.Join(parts, " "))
	}
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}
	return r.Set(s)
}

func randomID() string {
	b := make([]byte, 4)
	rand.Read(b)
	return hex.EncodeToString(b)
}
