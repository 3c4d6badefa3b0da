package session

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/martinezdelprenois/meshbuilder/internal/app/mailbox"
	"github.com/martinezdelprenois/meshbuilder/internal/domain/camera"
	"github.com/martinezdelprenois/meshbuilder/internal/domain/mesh"
)

// Errors
var (
	ErrVersionMismatch  = errors.New("service version below minimum supported")
	ErrPermissionDenied = errors.New("dataset permission denied")
	ErrNotConnected     = errors.New("session is not connected")
	ErrInvalidState     = errors.New("invalid session state")
)

// Config holds controller configuration.
type Config struct {
	MinServiceVersion int           // Minimum supported tracking service version
	Service           ServiceConfig // Connection options passed to the service
}

// Deps are the collaborators the controller drives. All of them outlive the
// controller; connections are opened and closed through them per session.
type Deps struct {
	Service       Service
	Reconstructor Reconstructor
	Poses         PoseProvider
	Display       Display
	Renderer      Renderer
	Mailbox       *mailbox.Mailbox
}

// Controller owns the session state machine and the exclusive lock that
// serializes (dis)connection against in-flight use from the render loop.
type Controller struct {
	mu sync.Mutex

	state     State
	sessionID string

	svc      Service
	recon    Reconstructor
	poses    PoseProvider
	display  Display
	renderer Renderer
	box      *mailbox.Mailbox

	// Snapshot taken at connect, immutable until the next connect.
	intrinsics camera.Intrinsics
	rotation   int

	config Config

	// Status events are drained off the callback goroutine onto eventCh and
	// logged from a controller-owned goroutine.
	eventCh chan StatusEvent
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewController creates a new session controller.
func NewController(config Config, deps Deps) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		state:    StateDisconnected,
		svc:      deps.Service,
		recon:    deps.Reconstructor,
		poses:    deps.Poses,
		display:  deps.Display,
		renderer: deps.Renderer,
		box:      deps.Mailbox,
		config:   config,
		eventCh:  make(chan StatusEvent, 16),
		ctx:      ctx,
		cancel:   cancel,
	}
	go c.drainStatusEvents()
	return c
}

// State returns the current session state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SessionID returns the ID assigned to the current connection. Empty while
// disconnected.
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.Connected() {
		return ""
	}
	return c.sessionID
}

// Connect opens the service connection, snapshots the camera calibration,
// wires the reconstruction pipeline and starts it. On any collaborator
// failure the state machine reverts to Disconnected with no partial state
// retained; the surrounding host decides whether to retry.
func (c *Controller) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateDisconnected {
		return errors.Wrapf(ErrInvalidState, "connect in state %s", c.state)
	}
	c.state = StateConnecting

	if err := c.connectLocked(ctx); err != nil {
		c.state = StateDisconnected
		zlog.Error().Err(err).Msg("session: connect failed")
		return err
	}

	c.sessionID = uuid.New().String()
	c.state = StateConnected
	zlog.Info().
		Str("session_id", c.sessionID).
		Int("rotation", c.rotation).
		Msg("session: connected")
	return nil
}

func (c *Controller) connectLocked(ctx context.Context) error {
	if v := c.svc.Version(); v < c.config.MinServiceVersion {
		return errors.Wrapf(ErrVersionMismatch, "service version %d, minimum %d",
			v, c.config.MinServiceVersion)
	}

	if err := c.svc.Connect(ctx, c.config.Service); err != nil {
		return errors.Wrap(err, "service connect")
	}

	// The connection is open from here on, so any later failure tears it
	// down again before reporting: no partial state is retained.
	if err := c.startupLocked(); err != nil {
		if derr := c.svc.Disconnect(); derr != nil {
			zlog.Warn().Err(derr).Msg("session: teardown after failed connect")
		}
		return err
	}
	return nil
}

// startupLocked configures the reconstruction pipeline on a freshly opened
// connection: calibration, mesh handoff, event listeners, start.
func (c *Controller) startupLocked() error {
	color, err := c.svc.CameraIntrinsics(camera.Color)
	if err != nil {
		return errors.Wrap(err, "color camera intrinsics")
	}
	if err := color.Validate(); err != nil {
		return errors.Wrap(err, "color camera intrinsics")
	}
	depth, err := c.svc.CameraIntrinsics(camera.Depth)
	if err != nil {
		return errors.Wrap(err, "depth camera intrinsics")
	}

	c.recon.SetColorCalibration(color)
	c.recon.SetDepthCalibration(depth)
	c.recon.SetMeshHandler(func(b mesh.Batch) {
		c.box.Publish(&b)
	})

	c.svc.SetListener(&serviceListener{c: c})

	if err := c.recon.Start(); err != nil {
		return errors.Wrap(err, "start reconstruction")
	}

	c.intrinsics = color
	c.rotation = c.display.Rotation()
	return nil
}

// Disconnect stops reconstruction, closes the connection and clears staged
// render state. Teardown is best effort: failing steps are logged, the rest
// still run, and local state always ends Disconnected. Holding the session
// lock for the duration serializes teardown against in-flight frame
// preparation.
func (c *Controller) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.Connected() {
		return errors.Wrapf(ErrNotConnected, "disconnect in state %s", c.state)
	}

	if err := c.recon.Stop(); err != nil {
		zlog.Warn().Err(err).Msg("session: stop reconstruction")
	}
	if err := c.svc.Disconnect(); err != nil {
		zlog.Warn().Err(err).Msg("session: service disconnect")
	}
	if err := c.recon.Reset(); err != nil {
		zlog.Warn().Err(err).Msg("session: reset reconstruction")
	}
	if err := c.recon.Release(); err != nil {
		zlog.Warn().Err(err).Msg("session: release reconstruction")
	}

	c.renderer.ClearMeshes()
	c.box.Drain()
	c.intrinsics = camera.Intrinsics{}
	c.rotation = 0
	c.state = StateDisconnected
	zlog.Info().Str("session_id", c.sessionID).Msg("session: disconnected")
	return nil
}

// Pause suspends reconstruction without tearing down the connection. Already
// published mesh batches stay in the mailbox. No-op when already paused.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pauseLocked()
}

func (c *Controller) pauseLocked() error {
	switch c.state {
	case StatePaused:
		return nil
	case StateConnected:
	default:
		return errors.Wrapf(ErrNotConnected, "pause in state %s", c.state)
	}

	if err := c.recon.Stop(); err != nil {
		return errors.Wrap(err, "stop reconstruction")
	}
	c.state = StatePaused
	zlog.Info().Msg("session: reconstruction paused")
	return nil
}

// Resume restarts reconstruction from the current scene state. Missed frames
// are not replayed. No-op when already running.
func (c *Controller) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resumeLocked()
}

func (c *Controller) resumeLocked() error {
	switch c.state {
	case StateConnected:
		return nil
	case StatePaused:
	default:
		return errors.Wrapf(ErrNotConnected, "resume in state %s", c.state)
	}

	if err := c.recon.Start(); err != nil {
		return errors.Wrap(err, "start reconstruction")
	}
	c.state = StateConnected
	zlog.Info().Msg("session: reconstruction resumed")
	return nil
}

// TogglePause implements the single pause/resume control action.
func (c *Controller) TogglePause() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateConnected:
		return c.pauseLocked()
	case StatePaused:
		return c.resumeLocked()
	default:
		return errors.Wrapf(ErrNotConnected, "toggle pause in state %s", c.state)
	}
}

// RequestClear resets the reconstruction scene state and flags the pending
// render clear. Idempotent while a clear is already pending; the render loop
// consumes the flag on its next tick.
func (c *Controller) RequestClear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.Connected() {
		return errors.Wrapf(ErrNotConnected, "clear in state %s", c.state)
	}

	if err := c.recon.Reset(); err != nil {
		return errors.Wrap(err, "reset reconstruction")
	}
	c.box.RequestClear()
	return nil
}

// Connection is the view of session state handed to a frame preparation while
// the session lock is held.
type Connection struct {
	Intrinsics camera.Intrinsics
	Rotation   int
	Poses      PoseProvider
}

// WithConnection runs fn under the session lock if the session currently has
// an open connection, and reports whether fn ran. Holding the lock for the
// duration of fn keeps disconnect from tearing collaborators down while they
// are in use; fn must stay bounded (at most one pose query).
func (c *Controller) WithConnection(fn func(conn Connection)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.Connected() {
		return false
	}
	fn(Connection{
		Intrinsics: c.intrinsics,
		Rotation:   c.rotation,
		Poses:      c.poses,
	})
	return true
}

// Start is the host resume hook: it connects the session.
func (c *Controller) Start(ctx context.Context) error {
	return c.Connect(ctx)
}

// Stop is the host pause hook: it disconnects if a connection is open.
func (c *Controller) Stop() {
	if c.State().Connected() {
		_ = c.Disconnect()
	}
}

// Close releases the controller and stops the status event drain. The
// controller must not be used afterwards.
func (c *Controller) Close() {
	c.Stop()
	c.cancel()
}

// drainStatusEvents logs service status events off the callback goroutine.
func (c *Controller) drainStatusEvents() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case ev := <-c.eventCh:
			zlog.Debug().
				Str("key", ev.Key).
				Str("value", ev.Value).
				Msg("session: service status")
		}
	}
}

// serviceListener forwards service events to the reconstruction pipeline.
// Invoked on the service's callback goroutine; it must not take the session
// lock or block.
type serviceListener struct {
	c *Controller
}

func (l *serviceListener) OnPointCloud(pc PointCloud) {
	l.c.recon.OnPointCloud(pc)
}

func (l *serviceListener) OnImageFrame(f ImageFrame) {
	l.c.recon.OnImageFrame(f)
}

func (l *serviceListener) OnStatus(ev StatusEvent) {
	select {
	case l.c.eventCh <- ev:
	default:
		// Channel full, drop the event. Status events are diagnostics only.
	}
}
