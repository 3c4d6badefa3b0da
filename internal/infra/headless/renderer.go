// Package headless provides a rendering engine stand-in that records what it
// is asked to draw. It backs the demo binary's stats display and assertions
// in tests.
package headless

import (
	"sync"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/martinezdelprenois/meshbuilder/internal/domain/mesh"
)

// Renderer implements session.Renderer. Safe for concurrent use, although
// the render loop is expected to be the only caller of the update methods.
type Renderer struct {
	mu sync.Mutex

	projection    mgl32.Mat4
	projectionSet bool

	view    mgl32.Mat4
	viewSet bool

	// Last face count per submesh ID; a mesh update replaces the patch.
	patchFaces map[int]int

	viewUpdates uint64
	meshUpdates uint64
	clears      uint64
}

// New creates an empty headless renderer.
func New() *Renderer {
	return &Renderer{
		patchFaces: make(map[int]int),
	}
}

// SetProjectionMatrix implements session.Renderer.
func (r *Renderer) SetProjectionMatrix(m mgl32.Mat4) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.projection = m
	r.projectionSet = true
}

// IsProjectionConfigured implements session.Renderer.
func (r *Renderer) IsProjectionConfigured() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.projectionSet
}

// UpdateViewMatrix implements session.Renderer.
func (r *Renderer) UpdateViewMatrix(m mgl32.Mat4) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.view = m
	r.viewSet = true
	r.viewUpdates++
}

// UpdateMesh implements session.Renderer.
func (r *Renderer) UpdateMesh(s mesh.Submesh) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patchFaces[s.ID] = s.FaceCount()
	r.meshUpdates++
}

// ClearMeshes implements session.Renderer. The projection configuration is
// kept: it belongs to the renderer, not to the accumulated geometry.
func (r *Renderer) ClearMeshes() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patchFaces = make(map[int]int)
	r.clears++
}

// Stats is a snapshot of the recorded render state.
type Stats struct {
	ProjectionSet bool
	Projection    mgl32.Mat4
	ViewSet       bool
	View          mgl32.Mat4
	Patches       int
	TotalFaces    int
	ViewUpdates   uint64
	MeshUpdates   uint64
	Clears        uint64
}

// Snapshot returns the current render state.
func (r *Renderer) Snapshot() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	total := 0
	for _, faces := range r.patchFaces {
		total += faces
	}
	return Stats{
		ProjectionSet: r.projectionSet,
		Projection:    r.projection,
		ViewSet:       r.viewSet,
		View:          r.view,
		Patches:       len(r.patchFaces),
		TotalFaces:    total,
		ViewUpdates:   r.viewUpdates,
		MeshUpdates:   r.meshUpdates,
		Clears:        r.clears,
	}
}
