package session

import (
	"context"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/martinezdelprenois/meshbuilder/internal/domain/camera"
	"github.com/martinezdelprenois/meshbuilder/internal/domain/mesh"
)

// ServiceConfig configures the tracking service connection. Low-latency IMU
// integration is necessary for precise alignment of virtual objects with the
// camera image.
type ServiceConfig struct {
	LowLatencyIMU bool
	SmoothPose    bool
	Depth         bool
	ColorCamera   bool
}

// PointCloud is a depth measurement event.
type PointCloud struct {
	Timestamp float64 // service clock, seconds
	Points    []mgl32.Vec3
}

// ImageFrame is a camera image event. Pixel data stays with the service; the
// reconstruction side only needs the frame metadata.
type ImageFrame struct {
	Timestamp float64
	Camera    camera.ID
	Width     int
	Height    int
}

// StatusEvent is a generic service status notification.
type StatusEvent struct {
	Timestamp time.Time
	Key       string
	Value     string
}

// EventListener receives tracking service events.
//
// Delivery contract: all methods are invoked on the service's callback
// goroutine, never on the render loop or the control goroutine.
// Implementations must hand data off and return quickly; they must not call
// back into the session controller.
type EventListener interface {
	OnPointCloud(pc PointCloud)
	OnImageFrame(f ImageFrame)
	OnStatus(ev StatusEvent)
}

// Service is the motion-tracking/depth service collaborator.
type Service interface {
	// Version returns the service version, checked against the minimum
	// supported version before connecting.
	Version() int

	Connect(ctx context.Context, cfg ServiceConfig) error

	// Disconnect closes the connection. After Disconnect returns, the
	// service must not invoke the registered listener again.
	Disconnect() error

	CameraIntrinsics(id camera.ID) (camera.Intrinsics, error)

	// SetListener registers the event listener. Must be called before
	// events are expected, i.e. between Connect and the first depth frame.
	SetListener(l EventListener)
}

// Reconstructor is the scene-reconstruction collaborator. Point-cloud and
// image-frame events are forwarded to it from the service listener; it hands
// finished mesh batches to the handler on its own callback goroutine.
type Reconstructor interface {
	SetColorCalibration(in camera.Intrinsics)
	SetDepthCalibration(in camera.Intrinsics)

	// SetMeshHandler registers the mesh batch callback. The handler is
	// invoked on the reconstructor's callback goroutine and must not block.
	SetMeshHandler(fn func(b mesh.Batch))

	OnPointCloud(pc PointCloud)
	OnImageFrame(f ImageFrame)

	Start() error
	Stop() error
	Reset() error
	Release() error
}

// CoordinateFrame identifies a pose reference frame.
type CoordinateFrame int

const (
	FrameStartOfService CoordinateFrame = iota
	FrameDevice
)

// PoseStatus is the validity status of a pose query result.
type PoseStatus int

const (
	PoseInitializing PoseStatus = iota
	PoseValid
	PoseInvalid
)

// String returns the string representation of the pose status.
func (s PoseStatus) String() string {
	switch s {
	case PoseInitializing:
		return "initializing"
	case PoseValid:
		return "valid"
	case PoseInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// PoseProvider answers pose queries against the tracking service.
type PoseProvider interface {
	// TransformAtTime returns the base-to-target transform at time t
	// (0 means the latest available), corrected for the device-to-display
	// rotation. A non-valid status means the caller should keep its last
	// pose; it is never fatal.
	TransformAtTime(t float64, base, target CoordinateFrame, rotation int) (mgl32.Mat4, PoseStatus)
}

// Renderer is the rendering engine collaborator. All methods are invoked
// from the render loop only.
type Renderer interface {
	SetProjectionMatrix(m mgl32.Mat4)
	IsProjectionConfigured() bool
	UpdateViewMatrix(m mgl32.Mat4)
	UpdateMesh(s mesh.Submesh)
	ClearMeshes()
}

// Display reports the device-to-display rotation, read once per connect and
// immutable until the next connect.
type Display interface {
	// Rotation returns the screen rotation in 90 degree steps (0..3).
	Rotation() int
}
