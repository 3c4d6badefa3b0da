package sim

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	zlog "github.com/rs/zerolog/log"

	"github.com/martinezdelprenois/meshbuilder/internal/app/session"
	"github.com/martinezdelprenois/meshbuilder/internal/domain/camera"
)

// Fixed calibration of the simulated device cameras.
var (
	colorIntrinsics = camera.Intrinsics{
		FocalX:  1042.7,
		FocalY:  1042.1,
		CenterX: 637.3,
		CenterY: 364.2,
		Width:   1280,
		Height:  720,
	}
	depthIntrinsics = camera.Intrinsics{
		FocalX:  217.0,
		FocalY:  217.8,
		CenterX: 111.1,
		CenterY: 85.9,
		Width:   224,
		Height:  172,
	}
)

// Service simulates the motion-tracking/depth service. It implements
// session.Service, session.PoseProvider and session.Display.
//
// While connected, a callback goroutine delivers point-cloud and image-frame
// events to the registered listener at the configured rates. Pose queries
// follow a horizontal orbit around the scene origin.
type Service struct {
	mu sync.Mutex

	settings  ServiceSettings
	listener  session.EventListener
	connected bool
	startedAt time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a simulated service from free-form settings.
func NewService(settings map[string]any) (*Service, error) {
	var s ServiceSettings
	if err := decodeSettings(settings, &s); err != nil {
		return nil, errors.Wrap(err, "service settings")
	}
	return &Service{settings: s}, nil
}

// Version implements session.Service.
func (s *Service) Version() int {
	return s.settings.Version
}

// Rotation implements session.Display.
func (s *Service) Rotation() int {
	return s.settings.Rotation
}

// SetListener implements session.Service.
func (s *Service) SetListener(l session.EventListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listener = l
}

// Connect opens the simulated connection and starts the event loop.
func (s *Service) Connect(ctx context.Context, cfg session.ServiceConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.settings.PermissionGranted {
		return session.ErrPermissionDenied
	}
	if s.connected {
		return errors.New("already connected")
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.connected = true
	s.startedAt = time.Now()

	go s.eventLoop(loopCtx, done)

	zlog.Debug().
		Bool("depth", cfg.Depth).
		Bool("color_camera", cfg.ColorCamera).
		Bool("low_latency_imu", cfg.LowLatencyIMU).
		Bool("smooth_pose", cfg.SmoothPose).
		Msg("sim: service connected")
	return nil
}

// Disconnect stops the event loop. The listener is not invoked again after
// Disconnect returns.
func (s *Service) Disconnect() error {
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return errors.New("not connected")
	}
	s.connected = false
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	cancel()
	<-done
	zlog.Debug().Msg("sim: service disconnected")
	return nil
}

// CameraIntrinsics implements session.Service.
func (s *Service) CameraIntrinsics(id camera.ID) (camera.Intrinsics, error) {
	switch id {
	case camera.Color:
		return colorIntrinsics, nil
	case camera.Depth:
		return depthIntrinsics, nil
	default:
		return camera.Intrinsics{}, errors.Newf("unknown camera id %d", id)
	}
}

// TransformAtTime implements session.PoseProvider. The device orbits the
// scene origin at a fixed height, looking inward; the rotation correction is
// applied as a roll about the view axis.
func (s *Service) TransformAtTime(t float64, base, target session.CoordinateFrame, rotation int) (mgl32.Mat4, session.PoseStatus) {
	s.mu.Lock()
	connected := s.connected
	startedAt := s.startedAt
	dropout := s.settings.PoseDropout
	s.mu.Unlock()

	if !connected {
		return mgl32.Ident4(), session.PoseInvalid
	}
	if dropout > 0 && rand.Float64() < dropout {
		return mgl32.Ident4(), session.PoseInvalid
	}

	elapsed := time.Since(startedAt).Seconds()
	if t > 0 {
		elapsed = t
	}
	angle := 2 * math.Pi * elapsed / s.settings.OrbitPeriodSec
	r := float32(s.settings.OrbitRadius)

	eye := mgl32.Vec3{r * float32(math.Sin(angle)), 1.4, r * float32(math.Cos(angle))}
	view := mgl32.LookAtV(eye, mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 1, 0})

	if rotation != 0 {
		roll := mgl32.HomogRotate3DZ(float32(rotation) * math.Pi / 2)
		view = roll.Mul4(view)
	}
	return view, session.PoseValid
}

// eventLoop delivers depth and camera events until the context is cancelled.
// The done channel is passed in because Disconnect clears s.done before
// waiting on it.
func (s *Service) eventLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	cloudTick := time.NewTicker(time.Duration(float64(time.Second) / s.settings.PointCloudRateHz))
	defer cloudTick.Stop()
	frameTick := time.NewTicker(time.Duration(float64(time.Second) / s.settings.FrameRateHz))
	defer frameTick.Stop()

	s.emitStatus("service_ready", "true")

	for {
		select {
		case <-ctx.Done():
			return
		case <-cloudTick.C:
			s.emitPointCloud()
		case <-frameTick.C:
			s.emitImageFrame()
		}
	}
}

func (s *Service) currentListener() (session.EventListener, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listener, s.startedAt
}

func (s *Service) emitPointCloud() {
	l, startedAt := s.currentListener()
	if l == nil {
		return
	}

	ts := time.Since(startedAt).Seconds()
	points := make([]mgl32.Vec3, s.settings.PointsPerCloud)
	for i := range points {
		// Points scattered over the floor plane around the origin.
		points[i] = mgl32.Vec3{
			float32(rand.Float64()*4 - 2),
			float32(rand.Float64() * 0.05),
			float32(rand.Float64()*4 - 2),
		}
	}
	l.OnPointCloud(session.PointCloud{Timestamp: ts, Points: points})
}

func (s *Service) emitImageFrame() {
	l, startedAt := s.currentListener()
	if l == nil {
		return
	}
	l.OnImageFrame(session.ImageFrame{
		Timestamp: time.Since(startedAt).Seconds(),
		Camera:    camera.Color,
		Width:     colorIntrinsics.Width,
		Height:    colorIntrinsics.Height,
	})
}

func (s *Service) emitStatus(key, value string) {
	l, _ := s.currentListener()
	if l == nil {
		return
	}
	l.OnStatus(session.StatusEvent{Timestamp: time.Now(), Key: key, Value: value})
}
