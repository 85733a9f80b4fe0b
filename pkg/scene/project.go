package scene

// SceneScale converts centered screen pixels to scene units.
const SceneScale = 0.1

// Vec3 is a point in scene space. The overlay plane is Y = 0.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Projector is the screen projection exposed by the map.
type Projector interface {
	Project(lat, lng float64) (x, y float64)
	Size() (w, h float64)
}

// ToScene projects a coordinate through p, centers it on the screen midpoint
// and scales it into scene space. The result is never cached.
func ToScene(p Projector, lat, lng float64) Vec3 {
	px, py := p.Project(lat, lng)
	w, h := p.Size()
	return Vec3{
		X: (px - w/2) * SceneScale,
		Y: 0,
		Z: (py - h/2) * SceneScale,
	}
}
