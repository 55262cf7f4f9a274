package scene

import (
	"fmt"
	"math"

	"github.com/df07/go-raymarcher/pkg/core"
)

// builtinScene pairs scene metadata with its parameter constructor
type builtinScene struct {
	info  SceneInfo
	build func() Parameters
}

var builtinScenes = []builtinScene{
	{
		info: SceneInfo{
			ID:          "default",
			Name:        "Default Scene",
			Description: "Ring of smooth-blended spheres around a rounded box",
		},
		build: NewDefaultScene,
	},
	{
		info: SceneInfo{
			ID:          "single-sphere",
			Name:        "Single Sphere",
			Description: "One sphere straight ahead of a camera at the origin",
		},
		build: NewSingleSphereScene,
	},
	{
		info: SceneInfo{
			ID:          "repeat",
			Name:        "Infinite Repeat",
			Description: "Spheres and spinning boxes repeated across the ground",
		},
		build: NewRepeatScene,
	},
	{
		info: SceneInfo{
			ID:          "boxes",
			Name:        "Blended Boxes",
			Description: "Rounded boxes melted together with a reflective sphere",
		},
		build: NewBoxesScene,
	},
}

// BuiltinScenes returns metadata for every built-in scene in display order
func BuiltinScenes() []SceneInfo {
	infos := make([]SceneInfo, len(builtinScenes))
	for i, s := range builtinScenes {
		info := s.info
		info.DisplayName = info.Name
		info.Group = builtinGroup
		info.Type = "builtin"
		infos[i] = info
	}
	return infos
}

// NewScene returns the parameters of a built-in scene by ID
func NewScene(id string) (Parameters, error) {
	for _, s := range builtinScenes {
		if s.info.ID == id {
			return s.build(), nil
		}
	}
	return Parameters{}, fmt.Errorf("unknown scene %q", id)
}

// NewDefaultScene creates a ring of eight palette-colored spheres, each
// orbiting at its own rate, smooth-blended around a rounded center box
func NewDefaultScene() Parameters {
	p := DefaultParameters()
	p.Camera = CameraConfig{
		Center: core.NewVec3(0, 2.5, 7),
		LookAt: core.NewVec3(0, -0.3, 0),
		Up:     core.NewVec3(0, 1, 0),
		VFov:   40,
	}

	const ringRadius = 2.0
	const count = 8
	for i := range count {
		angle := 2 * math.Pi * float64(i) / count
		p.Primitives = append(p.Primitives, PrimitiveConfig{
			Type:   PrimitiveSphere,
			Center: core.NewVec3(ringRadius*math.Cos(angle), -0.4, ringRadius*math.Sin(angle)),
			Radius: 0.5,
			Spin:   float64(i),
			Color:  float64(i) / (count - 1),
		})
	}

	p.Primitives = append(p.Primitives, PrimitiveConfig{
		Type:     PrimitiveBox,
		Center:   core.NewVec3(0, -0.3, 0),
		Size:     core.NewVec3(0.6, 0.6, 0.6),
		Rounding: 0.1,
		Color:    0.5,
	})

	return p
}

// NewSingleSphereScene places a unit sphere five units down -Z from a camera
// at the origin, with no ground
func NewSingleSphereScene() Parameters {
	p := DefaultParameters()
	p.Camera = CameraConfig{
		Center: core.NewVec3(0, 0, 0),
		LookAt: core.NewVec3(0, 0, -1),
		Up:     core.NewVec3(0, 1, 0),
		VFov:   60,
	}
	p.Ground.Enabled = false
	p.Accuracy = 0.01
	p.MaxIterations = 128
	p.MaxDistance = 100
	p.Primitives = []PrimitiveConfig{
		{Type: PrimitiveSphere, Center: core.NewVec3(0, 0, -5), Radius: 1, Color: 0.6},
	}
	return p
}

// NewRepeatScene folds one sphere and one spinning box across the XZ plane
func NewRepeatScene() Parameters {
	p := DefaultParameters()
	p.Camera = CameraConfig{
		Center: core.NewVec3(0, 3, 8),
		LookAt: core.NewVec3(0, 0, 0),
		Up:     core.NewVec3(0, 1, 0),
		VFov:   50,
	}
	p.RepeatInterval = core.NewVec3(4, 0, 4)
	p.MaxDistance = 60
	p.MaxIterations = 192
	p.Smoothing = 0.3
	p.ReflectionCount = 0
	p.Primitives = []PrimitiveConfig{
		{Type: PrimitiveSphere, Center: core.NewVec3(0, 0, 0), Radius: 0.8, Repeat: true, Color: 0.1},
		{Type: PrimitiveBox, Center: core.NewVec3(0, -0.6, 0), Size: core.NewVec3(1.2, 0.2, 0.4), Rounding: 0.05, Repeat: true, Spin: 1, Color: 0.7},
	}
	return p
}

// NewBoxesScene smooth-blends a row of rounded boxes with a sphere resting on
// top, using two reflection bounces
func NewBoxesScene() Parameters {
	p := DefaultParameters()
	p.Camera = CameraConfig{
		Center: core.NewVec3(1.5, 2, 5),
		LookAt: core.NewVec3(0, 0, 0),
		Up:     core.NewVec3(0, 1, 0),
		VFov:   45,
	}
	p.Smoothing = 0.6
	p.ReflectionCount = 2
	p.ReflectionIntensity = 0.4
	for i, x := range []float64{-1.5, 0, 1.5} {
		p.Primitives = append(p.Primitives, PrimitiveConfig{
			Type:     PrimitiveBox,
			Center:   core.NewVec3(x, -0.5, 0),
			Size:     core.NewVec3(0.5, 0.5, 0.5),
			Rounding: 0.15,
			Color:    0.2 + 0.2*float64(i),
		})
	}
	p.Primitives = append(p.Primitives, PrimitiveConfig{
		Type:   PrimitiveSphere,
		Center: core.NewVec3(0, 0.5, 0),
		Radius: 0.6,
		Color:  0.9,
	})
	return p
}
