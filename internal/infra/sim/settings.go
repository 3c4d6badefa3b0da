// Package sim provides simulated tracking and reconstruction collaborators.
//
// The real service is device hardware; these stand-ins drive the full
// pipeline for the demo binary and for tests, with injectable failure modes.
package sim

import (
	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

// ServiceSettings configures the simulated tracking service.
type ServiceSettings struct {
	// Version reported by the service. Set it below the session's minimum
	// to exercise the version gate.
	Version int `mapstructure:"version" default:"11925" validate:"gte=0"`

	// PermissionGranted simulates the dataset permission grant.
	PermissionGranted bool `mapstructure:"permission_granted" default:"true"`

	// Rotation is the simulated device-to-display rotation in 90 degree
	// steps.
	Rotation int `mapstructure:"rotation" default:"0" validate:"gte=0,lte=3"`

	PointCloudRateHz float64 `mapstructure:"point_cloud_rate_hz" default:"10" validate:"gt=0,lte=120"`
	FrameRateHz      float64 `mapstructure:"frame_rate_hz" default:"30" validate:"gt=0,lte=120"`
	PointsPerCloud   int     `mapstructure:"points_per_cloud" default:"256" validate:"gte=1"`

	// Pose orbit parameters.
	OrbitRadius    float64 `mapstructure:"orbit_radius" default:"2" validate:"gt=0"`
	OrbitPeriodSec float64 `mapstructure:"orbit_period_sec" default:"12" validate:"gt=0"`

	// PoseDropout is the fraction of pose queries answered with an invalid
	// status.
	PoseDropout float64 `mapstructure:"pose_dropout" default:"0" validate:"gte=0,lte=1"`
}

// ReconstructorSettings configures the simulated scene reconstructor.
type ReconstructorSettings struct {
	MeshIntervalMs int     `mapstructure:"mesh_interval_ms" default:"500" validate:"gt=0"`
	GridCells      int     `mapstructure:"grid_cells" default:"4" validate:"gte=1,lte=64"`
	CellSize       float64 `mapstructure:"cell_size" default:"0.5" validate:"gt=0"`
}

// decodeSettings decodes free-form settings into out and validates the
// result. Defaults are applied first so that explicit false values survive
// the decode.
func decodeSettings(settings map[string]any, out any) error {
	if err := defaults.Set(out); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  out,
		TagName: "mapstructure",
	})
	if err != nil {
		return errors.Wrap(err, "failed to create decoder")
	}
	if err := decoder.Decode(settings); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}
	if err := validator.New().Struct(out); err != nil {
		return errors.Wrap(err, "settings validation failed")
	}
	return nil
}
