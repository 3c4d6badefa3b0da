package sim

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	zlog "github.com/rs/zerolog/log"

	"github.com/martinezdelprenois/meshbuilder/internal/app/session"
	"github.com/martinezdelprenois/meshbuilder/internal/domain/camera"
	"github.com/martinezdelprenois/meshbuilder/internal/domain/mesh"
)

// Errors
var (
	ErrReleased = errors.New("reconstructor has been released")
)

// Reconstructor simulates scene reconstruction over a square grid of surface
// patches. It implements session.Reconstructor.
//
// Coverage grows with the number of point clouds consumed: cells the scanner
// has not reached yet produce submeshes with zero faces. Reset drops all
// accumulated coverage, so the next batches start from an empty scene.
type Reconstructor struct {
	mu sync.Mutex

	settings ReconstructorSettings

	colorCal camera.Intrinsics
	depthCal camera.Intrinsics
	handler  func(b mesh.Batch)

	running  bool
	released bool

	// Scene accumulation state.
	seq        uint64
	clouds     uint64 // point clouds consumed since the last reset
	pointsSeen uint64
	frames     uint64

	cancel context.CancelFunc
	done   chan struct{}
}

// NewReconstructor creates a simulated reconstructor from free-form settings.
func NewReconstructor(settings map[string]any) (*Reconstructor, error) {
	var s ReconstructorSettings
	if err := decodeSettings(settings, &s); err != nil {
		return nil, errors.Wrap(err, "reconstructor settings")
	}
	return &Reconstructor{settings: s}, nil
}

// SetColorCalibration implements session.Reconstructor.
func (r *Reconstructor) SetColorCalibration(in camera.Intrinsics) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.colorCal = in
}

// SetDepthCalibration implements session.Reconstructor.
func (r *Reconstructor) SetDepthCalibration(in camera.Intrinsics) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.depthCal = in
}

// SetMeshHandler implements session.Reconstructor.
func (r *Reconstructor) SetMeshHandler(fn func(b mesh.Batch)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handler = fn
}

// OnPointCloud consumes a forwarded depth event. Ignored while stopped.
func (r *Reconstructor) OnPointCloud(pc session.PointCloud) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return
	}
	r.clouds++
	r.pointsSeen += uint64(len(pc.Points))
}

// OnImageFrame consumes a forwarded camera frame. Ignored while stopped.
func (r *Reconstructor) OnImageFrame(f session.ImageFrame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return
	}
	r.frames++
}

// Start begins producing mesh batches on the callback goroutine.
func (r *Reconstructor) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.released {
		return ErrReleased
	}
	if r.running {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	r.cancel = cancel
	r.done = done
	r.running = true

	go r.meshLoop(ctx, done)
	zlog.Debug().Msg("sim: reconstruction started")
	return nil
}

// Stop suspends mesh production. Scene state is kept.
func (r *Reconstructor) Stop() error {
	r.mu.Lock()
	if r.released {
		r.mu.Unlock()
		return ErrReleased
	}
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()

	cancel()
	<-done
	zlog.Debug().Msg("sim: reconstruction stopped")
	return nil
}

// Reset drops all accumulated scene state. Legal while running or stopped.
func (r *Reconstructor) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return ErrReleased
	}
	r.clouds = 0
	r.pointsSeen = 0
	r.frames = 0
	zlog.Debug().Msg("sim: reconstruction reset")
	return nil
}

// Release stops the reconstructor and makes it unusable.
func (r *Reconstructor) Release() error {
	if err := r.Stop(); err != nil && !errors.Is(err, ErrReleased) {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.released = true
	return nil
}

// Stats is a snapshot of reconstruction counters.
type ReconStats struct {
	Clouds  uint64
	Points  uint64
	Frames  uint64
	Batches uint64
}

// Stats returns the current counters.
func (r *Reconstructor) Stats() ReconStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return ReconStats{
		Clouds:  r.clouds,
		Points:  r.pointsSeen,
		Frames:  r.frames,
		Batches: r.seq,
	}
}

// Calibration returns the color and depth intrinsics pushed at connect time.
func (r *Reconstructor) Calibration() (color, depth camera.Intrinsics) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.colorCal, r.depthCal
}

// meshLoop emits a batch per interval while there is coverage to report.
// The done channel is passed in because Stop clears r.done before waiting.
func (r *Reconstructor) meshLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	tick := time.NewTicker(time.Duration(r.settings.MeshIntervalMs) * time.Millisecond)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			r.mu.Lock()
			if r.clouds == 0 || r.handler == nil {
				r.mu.Unlock()
				continue
			}
			batch := r.buildBatchLocked()
			handler := r.handler
			r.mu.Unlock()

			handler(batch)
		}
	}
}

// buildBatchLocked assembles the current scene as one submesh per grid cell.
// Must be called with r.mu held.
func (r *Reconstructor) buildBatchLocked() mesh.Batch {
	n := r.settings.GridCells
	cell := float32(r.settings.CellSize)
	covered := r.clouds // one more cell covered per consumed cloud

	subs := make([]mesh.Submesh, 0, n*n)
	for i := 0; i < n*n; i++ {
		if uint64(i) >= covered {
			// No depth data for this cell yet: no visual content.
			subs = append(subs, mesh.Submesh{ID: i})
			continue
		}

		row, col := i/n, i%n
		x0 := (float32(col) - float32(n)/2) * cell
		z0 := (float32(row) - float32(n)/2) * cell
		h := 0.05 * float32(math.Sin(float64(i)+float64(r.seq)*0.1))

		subs = append(subs, mesh.Submesh{
			ID: i,
			Vertices: []mgl32.Vec3{
				{x0, h, z0},
				{x0 + cell, h, z0},
				{x0 + cell, h, z0 + cell},
				{x0, h, z0 + cell},
			},
			Normals: []mgl32.Vec3{
				{0, 1, 0}, {0, 1, 0}, {0, 1, 0}, {0, 1, 0},
			},
			Faces: [][3]uint32{{0, 1, 2}, {0, 2, 3}},
		})
	}

	r.seq++
	return mesh.Batch{
		Seq:        r.seq,
		ProducedAt: time.Now(),
		Submeshes:  subs,
	}
}
