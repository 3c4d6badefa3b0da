// Package camera provides camera calibration types and the projection
// matrix derivation used to align virtual geometry with the physical camera.
package camera

import (
	"github.com/cockroachdb/errors"
)

// ID identifies a physical camera on the device.
type ID int

const (
	Color ID = iota // RGB camera
	Depth           // depth camera
)

// String returns the string representation of the camera ID.
func (id ID) String() string {
	switch id {
	case Color:
		return "color"
	case Depth:
		return "depth"
	default:
		return "unknown"
	}
}

// Intrinsics holds the calibration parameters of a camera. Captured once per
// connection and read-only thereafter.
type Intrinsics struct {
	// Focal lengths in pixels.
	FocalX float64
	FocalY float64

	// Principal point in pixel coordinates (image-space y grows downward).
	CenterX float64
	CenterY float64

	// Sensor resolution in pixels.
	Width  int
	Height int
}

// Validate checks that the intrinsics describe a usable camera.
func (in Intrinsics) Validate() error {
	if in.FocalX <= 0 || in.FocalY <= 0 {
		return errors.Newf("non-positive focal length: fx=%v fy=%v", in.FocalX, in.FocalY)
	}
	if in.Width <= 0 || in.Height <= 0 {
		return errors.Newf("non-positive resolution: %dx%d", in.Width, in.Height)
	}
	return nil
}
