package scene

import "github.com/df07/go-raymarcher/pkg/core"

// CameraConfig positions a look-at camera
type CameraConfig struct {
	Center core.Vec3 `json:"center"` // Eye position
	LookAt core.Vec3 `json:"lookAt"` // Point the camera faces
	Up     core.Vec3 `json:"up"`     // Approximate up direction
	VFov   float64   `json:"vfov"`   // Vertical field of view in degrees
}

// DefaultCameraConfig looks at the origin from slightly above
func DefaultCameraConfig() CameraConfig {
	return CameraConfig{
		Center: core.NewVec3(0, 1, 6),
		LookAt: core.NewVec3(0, 0, 0),
		Up:     core.NewVec3(0, 1, 0),
		VFov:   45,
	}
}

// MergeCameraConfig returns base with every non-zero field of override applied
func MergeCameraConfig(base, override CameraConfig) CameraConfig {
	result := base
	if override.Center != (core.Vec3{}) {
		result.Center = override.Center
	}
	if override.LookAt != (core.Vec3{}) {
		result.LookAt = override.LookAt
	}
	if override.Up != (core.Vec3{}) {
		result.Up = override.Up
	}
	if override.VFov != 0 {
		result.VFov = override.VFov
	}
	return result
}

// Sanitize fixes configurations that cannot produce a view: a field of view
// outside (0,180), an eye on its target, or up parallel to the view direction
func (c CameraConfig) Sanitize() CameraConfig {
	if !(c.VFov > 0 && c.VFov < 180) {
		c.VFov = DefaultCameraConfig().VFov
	}

	forward := c.LookAt.Subtract(c.Center)
	if forward.LengthSquared() == 0 || !forward.IsFinite() {
		c.LookAt = c.Center.Add(core.NewVec3(0, 0, -1))
		forward = core.NewVec3(0, 0, -1)
	}

	if c.Up.Normalize().Cross(forward.Normalize()).LengthSquared() < 1e-12 {
		c.Up = core.NewVec3(0, 1, 0)
		if forward.Normalize().Cross(c.Up).LengthSquared() < 1e-12 {
			c.Up = core.NewVec3(0, 0, -1)
		}
	}
	return c
}
