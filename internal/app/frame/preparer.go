// Package frame provides the per-tick render preparation that merges session
// state, pose tracking and reconstructed meshes into the rendering engine.
package frame

import (
	zlog "github.com/rs/zerolog/log"

	"github.com/martinezdelprenois/meshbuilder/internal/app/mailbox"
	"github.com/martinezdelprenois/meshbuilder/internal/app/session"
	"github.com/martinezdelprenois/meshbuilder/internal/domain/camera"
)

// Config holds preparer configuration.
type Config struct {
	NearPlane float32 // Near clip plane in meters
	FarPlane  float32 // Far clip plane in meters
}

// Preparer runs once per render tick. All methods are called from the render
// loop only; cross-goroutine input arrives through the session controller's
// lock and the mailbox.
type Preparer struct {
	ctrl     *session.Controller
	renderer session.Renderer
	box      *mailbox.Mailbox
	config   Config

	// Render-loop local counters, no synchronization needed.
	projectionConfigures uint64
	ticks                uint64
	poseSkips            uint64
}

// NewPreparer creates a new frame preparer.
func NewPreparer(ctrl *session.Controller, renderer session.Renderer, box *mailbox.Mailbox, config Config) *Preparer {
	if config.NearPlane <= 0 {
		config.NearPlane = camera.DefaultNearPlane
	}
	if config.FarPlane <= config.NearPlane {
		config.FarPlane = camera.DefaultFarPlane
	}
	return &Preparer{
		ctrl:     ctrl,
		renderer: renderer,
		box:      box,
		config:   config,
	}
}

// PrepareFrame assembles the render state for one tick.
//
// Under the session lock it gates on connection state, lazily configures the
// projection matrix and queries the device pose. Outside the lock it applies
// the pending clear and forwards the latest mesh batch. When the session has
// no open connection the whole tick is a no-op. Never returns an error:
// per-frame failures are logged and rendering continues with stale data.
func (p *Preparer) PrepareFrame() {
	p.ticks++

	ok := p.ctrl.WithConnection(func(conn session.Connection) {
		// Match the scene projection to the camera calibration, once per
		// connection.
		if !p.renderer.IsProjectionConfigured() {
			proj := camera.ProjectionFromIntrinsics(conn.Intrinsics, p.config.NearPlane, p.config.FarPlane)
			p.renderer.SetProjectionMatrix(proj)
			p.projectionConfigures++
		}

		// Device pose at the current display time, corrected for screen
		// rotation. An invalid pose keeps the previous view matrix.
		view, status := conn.Poses.TransformAtTime(0,
			session.FrameStartOfService, session.FrameDevice, conn.Rotation)
		if status == session.PoseValid {
			p.renderer.UpdateViewMatrix(view)
		} else {
			p.poseSkips++
			zlog.Warn().Stringer("status", status).Msg("frame: cannot get latest device pose")
		}
	})
	if !ok {
		return
	}

	// Mesh state updates do not touch the collaborators, so they run outside
	// the session lock.
	if p.box.TakeClear() {
		p.renderer.ClearMeshes()
	}
	if batch, ok := p.box.TakeIfPresent(); ok {
		for _, sub := range batch.Submeshes {
			if sub.FaceCount() > 0 {
				p.renderer.UpdateMesh(sub)
			}
		}
	}
}

// Stats is a snapshot of preparer counters.
type Stats struct {
	Ticks                uint64
	ProjectionConfigures uint64
	PoseSkips            uint64
}

// Stats returns the per-tick counters. Call from the render loop only.
func (p *Preparer) Stats() Stats {
	return Stats{
		Ticks:                p.ticks,
		ProjectionConfigures: p.projectionConfigures,
		PoseSkips:            p.poseSkips,
	}
}
