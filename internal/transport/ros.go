package transport

import (
	"fmt"
	"log"

	"github.com/bluenviron/goroslib/v2"
	"github.com/bluenviron/goroslib/v2/pkg/msgs/sensor_msgs"

	"github.com/junsooki/ScreenPub/internal/camera"
)

// ROSConfig configures the ROS node and its publishers.
type ROSConfig struct {
	NodeName string
	// Namespace of the node itself; topic names are resolved against it.
	NodeNamespace string
	MasterAddress string
	// Host is the address other nodes use to reach this one (ROS_IP).
	Host              string
	Topics            camera.Topics
	PublishRaw        bool
	PublishCompressed bool
}

// topic is the part of *goroslib.Publisher the ROS transport uses.
type topic interface {
	Write(msg interface{})
	Close()
}

// ROS publishes ticks as sensor_msgs over TCPROS. A nil topic is a disabled
// stream.
type ROS struct {
	node       *goroslib.Node
	raw        topic
	compressed topic
	info       topic
}

// NewROS registers a node with the ROS master and advertises the enabled
// topics. camera_info is advertised when either image stream is enabled.
func NewROS(cfg ROSConfig) (*ROS, error) {
	node, err := goroslib.NewNode(goroslib.NodeConf{
		Namespace:     cfg.NodeNamespace,
		Name:          cfg.NodeName,
		MasterAddress: cfg.MasterAddress,
		Host:          cfg.Host,
	})
	if err != nil {
		return nil, fmt.Errorf("ros node: %w", err)
	}

	r := &ROS{node: node}
	advertise := func(name string, msg interface{}) (topic, error) {
		p, err := goroslib.NewPublisher(goroslib.PublisherConf{
			Node:  node,
			Topic: name,
			Msg:   msg,
		})
		if err != nil {
			return nil, fmt.Errorf("advertise %s: %w", name, err)
		}
		log.Printf("Advertised %s", name)
		return p, nil
	}

	if cfg.PublishRaw {
		if r.raw, err = advertise(cfg.Topics.Raw, &sensor_msgs.Image{}); err != nil {
			r.Close()
			return nil, err
		}
	}
	if cfg.PublishCompressed {
		if r.compressed, err = advertise(cfg.Topics.Compressed, &sensor_msgs.CompressedImage{}); err != nil {
			r.Close()
			return nil, err
		}
	}
	if cfg.PublishRaw || cfg.PublishCompressed {
		if r.info, err = advertise(cfg.Topics.Info, &sensor_msgs.CameraInfo{}); err != nil {
			r.Close()
			return nil, err
		}
	}
	return r, nil
}

// Publish writes each message present in m to its topic. Messages for
// disabled streams are dropped.
func (r *ROS) Publish(m *camera.Messages) error {
	if r.raw != nil && m.Raw != nil {
		r.raw.Write(m.Raw)
	}
	if r.compressed != nil && m.Compressed != nil {
		r.compressed.Write(m.Compressed)
	}
	if r.info != nil && m.Info != nil {
		r.info.Write(m.Info)
	}
	return nil
}

// Close unadvertises the topics and unregisters the node.
func (r *ROS) Close() error {
	for _, p := range []topic{r.info, r.compressed, r.raw} {
		if p != nil {
			p.Close()
		}
	}
	r.raw, r.compressed, r.info = nil, nil, nil
	if r.node != nil {
		r.node.Close()
		r.node = nil
	}
	return nil
}
