package rigid

import "github.com/go-gl/mathgl/mgl64"

type GizmoType int

const (
	GizmoLine GizmoType = iota
	GizmoCube
	GizmoPoint
)

// Gizmo is one debug-draw primitive emitted by the engine: contact points,
// contact normals, and broadphase bounds. Gizmos are wireframe hints for the
// host's renderer; the engine never draws anything itself.
type Gizmo struct {
	Type  GizmoType
	Color [4]float32

	Position mgl64.Vec3
	LineEnd  mgl64.Vec3 // for GizmoLine
	Scale    mgl64.Vec3 // for GizmoCube
}

// DebugSink receives debug geometry during a step. Supplied by the host;
// when nil, the engine skips all debug emission.
type DebugSink interface {
	Gizmo(g Gizmo)
}

func NewGizmoLine(start, end mgl64.Vec3, color [4]float32) Gizmo {
	return Gizmo{
		Type:     GizmoLine,
		Position: start,
		LineEnd:  end,
		Color:    color,
	}
}

func NewGizmoCube(center, size mgl64.Vec3, color [4]float32) Gizmo {
	return Gizmo{
		Type:     GizmoCube,
		Position: center,
		Scale:    size,
		Color:    color,
	}
}

func NewGizmoPoint(pos mgl64.Vec3, color [4]float32) Gizmo {
	return Gizmo{
		Type:     GizmoPoint,
		Position: pos,
		Color:    color,
	}
}

var (
	gizmoContactColor = [4]float32{1, 0.2, 0.2, 1}
	gizmoNormalColor  = [4]float32{0.2, 1, 0.2, 1}
	gizmoAABBColor    = [4]float32{0.3, 0.5, 1, 1}
)

// GizmoRecorder is a DebugSink that buffers everything it receives. Useful
// for tests and for hosts that drain gizmos once per frame.
type GizmoRecorder struct {
	Gizmos []Gizmo
}

func (r *GizmoRecorder) Gizmo(g Gizmo) {
	r.Gizmos = append(r.Gizmos, g)
}

// Reset clears the buffer, keeping its capacity.
func (r *GizmoRecorder) Reset() {
	r.Gizmos = r.Gizmos[:0]
}
