package camera

import "github.com/go-gl/mathgl/mgl32"

// Default clip planes for the AR projection, in meters.
const (
	DefaultNearPlane = 0.1
	DefaultFarPlane  = 100
)

// FrustumBounds derives the off-axis frustum side bounds at the near plane
// from camera intrinsics. The vertical offset sign is flipped because
// image-space y grows downward while projection-space y grows upward.
//
// Reference: http://ksimek.github.io/2013/06/03/calibrated_cameras_in_opengl/
func FrustumBounds(in Intrinsics, near float32) (left, right, bottom, top float32) {
	xScale := near / float32(in.FocalX)
	yScale := near / float32(in.FocalY)
	xOffset := float32(in.CenterX-float64(in.Width)/2) * xScale
	yOffset := -float32(in.CenterY-float64(in.Height)/2) * yScale

	halfW := float32(in.Width) / 2 * xScale
	halfH := float32(in.Height) / 2 * yScale

	return -halfW - xOffset, halfW - xOffset, -halfH - yOffset, halfH - yOffset
}

// ProjectionFromIntrinsics builds a perspective projection matrix that
// reproduces the camera's true optical center and focal length, so virtual
// geometry lines up pixel-accurately with the camera image. Pure function;
// the caller caches the result and recomputes only when intrinsics change.
func ProjectionFromIntrinsics(in Intrinsics, near, far float32) mgl32.Mat4 {
	left, right, bottom, top := FrustumBounds(in, near)
	return mgl32.Frustum(left, right, bottom, top, near, far)
}
