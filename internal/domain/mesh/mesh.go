// Package mesh provides the reconstructed mesh domain types.
package mesh

import (
	"time"

	"github.com/go-gl/mathgl/mgl32"
)

// Submesh is a single reconstructed surface patch.
//
// Ownership: a submesh is owned by the reconstruction side until the
// containing batch is published; after that it must not be mutated.
type Submesh struct {
	// ID identifies the spatial grid cell this patch covers. Patches with
	// the same ID replace each other in the renderer.
	ID int

	Vertices []mgl32.Vec3
	Normals  []mgl32.Vec3

	// Faces holds triangle vertex indices. A submesh with no faces carries
	// no visual content.
	Faces [][3]uint32
}

// FaceCount returns the number of triangle faces.
func (s Submesh) FaceCount() int {
	return len(s.Faces)
}

// Batch is the full set of surface patches produced by one reconstruction
// pass. Only the most recent batch is meaningful; older batches are
// superseded, never merged.
type Batch struct {
	Seq        uint64
	ProducedAt time.Time
	Submeshes  []Submesh
}

// TotalFaces returns the face count summed over all submeshes.
func (b *Batch) TotalFaces() int {
	total := 0
	for _, s := range b.Submeshes {
		total += s.FaceCount()
	}
	return total
}

// HasContent reports whether at least one submesh has visible geometry.
func (b *Batch) HasContent() bool {
	for _, s := range b.Submeshes {
		if s.FaceCount() > 0 {
			return true
		}
	}
	return false
}
