package rigid

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Determinants below this magnitude are treated as singular. Bodies with a
// degenerate inertia tensor hit this in NewDynamicBody.
const singularDetEps = 1e-3

// Inverse3 inverts m by cofactor expansion. Returns ErrSingularMatrix when
// |det| < 1e-3 instead of silently producing garbage the way a plain division
// would.
func Inverse3(m mgl64.Mat3) (mgl64.Mat3, error) {
	det := m.Det()
	if math.Abs(det) < singularDetEps {
		return mgl64.Mat3{}, ErrSingularMatrix
	}

	inv := 1.0 / det
	// Cofactor matrix, transposed (adjugate), scaled by 1/det.
	// mgl64.Mat3 is column-major: m[col*3+row].
	return mgl64.Mat3{
		(m[4]*m[8] - m[7]*m[5]) * inv,
		(m[7]*m[2] - m[1]*m[8]) * inv,
		(m[1]*m[5] - m[4]*m[2]) * inv,
		(m[6]*m[5] - m[3]*m[8]) * inv,
		(m[0]*m[8] - m[6]*m[2]) * inv,
		(m[3]*m[2] - m[0]*m[5]) * inv,
		(m[3]*m[7] - m[6]*m[4]) * inv,
		(m[6]*m[1] - m[0]*m[7]) * inv,
		(m[0]*m[4] - m[3]*m[1]) * inv,
	}, nil
}

// Outer3 returns the outer product a ⊗ b.
func Outer3(a, b mgl64.Vec3) mgl64.Mat3 {
	return mgl64.Mat3FromCols(
		a.Mul(b.X()),
		a.Mul(b.Y()),
		a.Mul(b.Z()),
	)
}

// CFrame is an affine frame: a position plus a 3x3 rotation.
type CFrame struct {
	Position mgl64.Vec3
	Rotation mgl64.Mat3
}

// QuatFromMat3 converts a pure rotation matrix to a unit quaternion.
func QuatFromMat3(m mgl64.Mat3) mgl64.Quat {
	m4 := mgl64.Mat4FromCols(
		m.Col(0).Vec4(0),
		m.Col(1).Vec4(0),
		m.Col(2).Vec4(0),
		mgl64.Vec4{0, 0, 0, 1},
	)
	return mgl64.Mat4ToQuat(m4).Normalize()
}

// CFrameFromQuat builds a frame from a position and unit quaternion.
func CFrameFromQuat(pos mgl64.Vec3, rot mgl64.Quat) CFrame {
	return CFrame{Position: pos, Rotation: rot.Mat4().Mat3()}
}

// IdentCFrame returns the identity frame at the origin.
func IdentCFrame() CFrame {
	return CFrame{Rotation: mgl64.Ident3()}
}

// Mul transforms a point into the parent space: rotation then translation.
func (cf CFrame) Mul(v mgl64.Vec3) mgl64.Vec3 {
	return cf.Rotation.Mul3x1(v).Add(cf.Position)
}

// MulVec rotates a direction without translating it.
func (cf CFrame) MulVec(v mgl64.Vec3) mgl64.Vec3 {
	return cf.Rotation.Mul3x1(v)
}

// Compose returns the frame equivalent to applying other, then cf.
func (cf CFrame) Compose(other CFrame) CFrame {
	return CFrame{
		Position: cf.Mul(other.Position),
		Rotation: cf.Rotation.Mul3(other.Rotation),
	}
}

func minVec3(a, b mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{math.Min(a.X(), b.X()), math.Min(a.Y(), b.Y()), math.Min(a.Z(), b.Z())}
}

func maxVec3(a, b mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{math.Max(a.X(), b.X()), math.Max(a.Y(), b.Y()), math.Max(a.Z(), b.Z())}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
