package camera

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrustumBounds_CenteredPrincipalPoint(t *testing.T) {
	in := Intrinsics{
		FocalX:  600,
		FocalY:  600,
		CenterX: 320,
		CenterY: 240,
		Width:   640,
		Height:  480,
	}
	near := float32(0.1)

	left, right, bottom, top := FrustumBounds(in, near)

	xScale := near / 600
	yScale := near / 600

	// Principal point at the image center: offsets vanish and the frustum
	// is symmetric.
	assert.InDelta(t, -320*xScale, left, 1e-7)
	assert.InDelta(t, 320*xScale, right, 1e-7)
	assert.InDelta(t, -240*yScale, bottom, 1e-7)
	assert.InDelta(t, 240*yScale, top, 1e-7)
	assert.InDelta(t, 0, left+right, 1e-7)
	assert.InDelta(t, 0, bottom+top, 1e-7)
}

func TestFrustumBounds_OffsetPrincipalPoint(t *testing.T) {
	tests := []struct {
		name   string
		cx, cy float64
	}{
		{name: "shifted left and up", cx: 300, cy: 220},
		{name: "shifted right and down", cx: 350.5, cy: 260.25},
		{name: "centered", cx: 320, cy: 240},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := Intrinsics{
				FocalX:  600,
				FocalY:  600,
				CenterX: tt.cx,
				CenterY: tt.cy,
				Width:   640,
				Height:  480,
			}
			near := float32(0.1)

			left, right, bottom, top := FrustumBounds(in, near)

			xScale := near / float32(in.FocalX)
			yScale := near / float32(in.FocalY)
			xOffset := float32(tt.cx-320) * xScale
			yOffset := -float32(tt.cy-240) * yScale

			// The bounds stay symmetric about the offset point:
			// left+right = -2*xOffset, bottom+top = -2*yOffset.
			assert.InDelta(t, -2*xOffset, left+right, 1e-6)
			assert.InDelta(t, -2*yOffset, bottom+top, 1e-6)

			// And the spread matches the sensor extent at the near plane.
			assert.InDelta(t, 640*xScale, right-left, 1e-6)
			assert.InDelta(t, 480*yScale, top-bottom, 1e-6)
		})
	}
}

func TestProjectionFromIntrinsics_MatchesFrustum(t *testing.T) {
	in := Intrinsics{
		FocalX:  1042.7,
		FocalY:  1042.1,
		CenterX: 637.3,
		CenterY: 364.2,
		Width:   1280,
		Height:  720,
	}

	got := ProjectionFromIntrinsics(in, 0.1, 100)

	left, right, bottom, top := FrustumBounds(in, 0.1)
	want := mgl32.Frustum(left, right, bottom, top, 0.1, 100)
	assert.Equal(t, want, got)
}

func TestProjectionFromIntrinsics_Pure(t *testing.T) {
	in := Intrinsics{
		FocalX:  600,
		FocalY:  600,
		CenterX: 320,
		CenterY: 240,
		Width:   640,
		Height:  480,
	}

	first := ProjectionFromIntrinsics(in, 0.1, 100)
	second := ProjectionFromIntrinsics(in, 0.1, 100)
	assert.Equal(t, first, second)
}

func TestIntrinsics_Validate(t *testing.T) {
	valid := Intrinsics{FocalX: 600, FocalY: 600, CenterX: 320, CenterY: 240, Width: 640, Height: 480}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(in *Intrinsics)
	}{
		{name: "zero focal x", mutate: func(in *Intrinsics) { in.FocalX = 0 }},
		{name: "negative focal y", mutate: func(in *Intrinsics) { in.FocalY = -1 }},
		{name: "zero width", mutate: func(in *Intrinsics) { in.Width = 0 }},
		{name: "negative height", mutate: func(in *Intrinsics) { in.Height = -480 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			assert.Error(t, in.Validate())
		})
	}
}
