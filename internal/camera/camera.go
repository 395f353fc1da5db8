// Package camera assembles the ROS image and calibration messages published
// for every captured frame.
package camera

import (
	"path"
	"time"

	"github.com/bluenviron/goroslib/v2/pkg/msgs/sensor_msgs"
	"github.com/bluenviron/goroslib/v2/pkg/msgs/std_msgs"

	"github.com/junsooki/ScreenPub/internal/capture"
)

const (
	// DefaultFrameID is the TF frame of the published images.
	DefaultFrameID = "camera_rgb_optical_frame"

	// The captures are comparable to a rectified colour image.
	baseTopic = "image_rect_color"

	DistortionModel = "plumb_bob"
)

// Topics names the three streams of one publisher instance.
type Topics struct {
	Raw        string
	Compressed string
	Info       string
}

// TopicsFor returns the topics under namespace ns.
func TopicsFor(ns string) Topics {
	base := path.Join(ns, baseTopic)
	return Topics{
		Raw:        base,
		Compressed: base + "/compressed",
		Info:       base + "/camera_info",
	}
}

// Messages holds everything published for one tick. Raw and Compressed are
// nil when the corresponding stream is disabled.
type Messages struct {
	Raw        *sensor_msgs.Image
	Compressed *sensor_msgs.CompressedImage
	Info       *sensor_msgs.CameraInfo
}

// Builder stamps frames into Messages. It keeps the static CameraInfo and the
// header sequence counter.
type Builder struct {
	frameID string
	info    sensor_msgs.CameraInfo
	seq     uint32
}

// NewBuilder creates a Builder for frames of the given size.
func NewBuilder(frameID string, width, height int) *Builder {
	if frameID == "" {
		frameID = DefaultFrameID
	}
	return &Builder{
		frameID: frameID,
		info:    NewCameraInfo(frameID, width, height),
	}
}

// Build assembles the messages for f. f must already be in RGB order. The
// raw image shares f.Pix. jpeg may be nil to skip the compressed image.
// Every message carries the same stamp, sequence number and frame id.
func (b *Builder) Build(f *capture.Frame, jpeg []byte, format string, stamp time.Time, raw bool) *Messages {
	b.seq++
	hdr := std_msgs.Header{
		Seq:     b.seq,
		Stamp:   stamp,
		FrameId: b.frameID,
	}

	m := &Messages{}
	if raw {
		m.Raw = &sensor_msgs.Image{
			Header:   hdr,
			Height:   uint32(f.Height),
			Width:    uint32(f.Width),
			Encoding: f.Order.String(),
			Step:     uint32(f.Stride()),
			Data:     f.Pix,
		}
	}
	if jpeg != nil {
		m.Compressed = &sensor_msgs.CompressedImage{
			Header: hdr,
			Format: format,
			Data:   jpeg,
		}
	}
	if m.Raw != nil || m.Compressed != nil {
		info := b.info
		info.Header = hdr
		m.Info = &info
	}
	return m
}

// NewCameraInfo returns a calibration message for an ideal pinhole camera
// with its principal point and focal length at half the image size.
func NewCameraInfo(frameID string, width, height int) sensor_msgs.CameraInfo {
	w, h := float64(width)/2, float64(height)/2
	return sensor_msgs.CameraInfo{
		Header:          std_msgs.Header{FrameId: frameID},
		Height:          uint32(height),
		Width:           uint32(width),
		DistortionModel: DistortionModel,
		D:               []float64{0, 0, 0, 0, 0},
		K: [9]float64{
			w, 0, w,
			0, h, h,
			0, 0, 1,
		},
		R: [9]float64{
			1, 0, 0,
			0, 1, 0,
			0, 0, 1,
		},
		P: [12]float64{
			w, 0, w, 0,
			0, h, h, 0,
			0, 0, 1, 0,
		},
	}
}
