package headless

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"

	"github.com/martinezdelprenois/meshbuilder/internal/domain/mesh"
)

func TestRenderer_ProjectionConfiguration(t *testing.T) {
	r := New()
	assert.False(t, r.IsProjectionConfigured())

	proj := mgl32.Perspective(mgl32.DegToRad(60), 16.0/9.0, 0.1, 100)
	r.SetProjectionMatrix(proj)

	assert.True(t, r.IsProjectionConfigured())
	assert.Equal(t, proj, r.Snapshot().Projection)
}

func TestRenderer_MeshAccumulation(t *testing.T) {
	r := New()

	r.UpdateMesh(mesh.Submesh{ID: 0, Faces: [][3]uint32{{0, 1, 2}}})
	r.UpdateMesh(mesh.Submesh{ID: 1, Faces: [][3]uint32{{0, 1, 2}, {1, 2, 3}}})

	snap := r.Snapshot()
	assert.Equal(t, 2, snap.Patches)
	assert.Equal(t, 3, snap.TotalFaces)

	// A patch update replaces, not accumulates.
	r.UpdateMesh(mesh.Submesh{ID: 1, Faces: [][3]uint32{{0, 1, 2}}})
	snap = r.Snapshot()
	assert.Equal(t, 2, snap.Patches)
	assert.Equal(t, 2, snap.TotalFaces)
	assert.Equal(t, uint64(3), snap.MeshUpdates)
}

func TestRenderer_ClearKeepsProjection(t *testing.T) {
	r := New()
	r.SetProjectionMatrix(mgl32.Ident4())
	r.UpdateMesh(mesh.Submesh{ID: 0, Faces: [][3]uint32{{0, 1, 2}}})

	r.ClearMeshes()

	snap := r.Snapshot()
	assert.Equal(t, 0, snap.Patches)
	assert.Equal(t, uint64(1), snap.Clears)
	assert.True(t, snap.ProjectionSet)
}

func TestRenderer_ViewUpdates(t *testing.T) {
	r := New()

	v := mgl32.Translate3D(0, 0, -2)
	r.UpdateViewMatrix(v)

	snap := r.Snapshot()
	assert.True(t, snap.ViewSet)
	assert.Equal(t, v, snap.View)
	assert.Equal(t, uint64(1), snap.ViewUpdates)
}
