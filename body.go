package rigid

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

const (
	bodyFlagStatic uint32 = 1 << iota
	bodyFlagSleeping
)

// Body is a simulated rigid body: one hull, kinematic and inertial state,
// material coefficients, and the cached world AABB the broadphase tracks.
// Callers may write Force, Torque, velocities, and material fields between
// steps; transform fields are written by integration.
type Body struct {
	ID   uuid.UUID
	Hull *Hull
	Size mgl64.Vec3

	Position mgl64.Vec3
	Rotation mgl64.Quat

	Velocity        mgl64.Vec3
	AngularVelocity mgl64.Vec3
	Momentum        mgl64.Vec3
	AngularMomentum mgl64.Vec3
	Force           mgl64.Vec3
	Torque          mgl64.Vec3

	Mass    float64
	InvMass float64

	inertiaLocal    mgl64.Mat3
	invInertiaLocal mgl64.Mat3
	InvInertiaWorld mgl64.Mat3

	Restitution float64
	Friction    float64
	Beta        float64

	SleepTimer float64
	flags      uint32

	AABBMin mgl64.Vec3
	AABBMax mgl64.Vec3

	node int32 // broadphase leaf slot, 0 when unregistered
}

// NewStaticBody builds an immovable body: infinite mass, zero inverse
// inertia. Velocities on static bodies are ignored by integration.
func NewStaticBody(shape *Shape, cf CFrame, size mgl64.Vec3) *Body {
	b := newBody(shape, cf, size)
	b.Mass = math.Inf(1)
	b.InvMass = 0
	b.flags |= bodyFlagStatic
	return b
}

// NewDynamicBody builds a moving body with mass = hull volume x density and
// the cube-inertia approximation I = (m/12) diag(y²+z², x²+z², x²+y²).
// Returns ErrSingularMatrix when the size yields a degenerate tensor.
func NewDynamicBody(shape *Shape, cf CFrame, size mgl64.Vec3, density float64) (*Body, error) {
	b := newBody(shape, cf, size)

	volume := shape.Volume() * size.X() * size.Y() * size.Z()
	b.Mass = volume * density
	b.InvMass = 1.0 / b.Mass

	x2 := size.X() * size.X()
	y2 := size.Y() * size.Y()
	z2 := size.Z() * size.Z()
	b.inertiaLocal = mgl64.Diag3(mgl64.Vec3{
		b.Mass / 12.0 * (y2 + z2),
		b.Mass / 12.0 * (x2 + z2),
		b.Mass / 12.0 * (x2 + y2),
	})

	inv, err := Inverse3(b.inertiaLocal)
	if err != nil {
		return nil, err
	}
	b.invInertiaLocal = inv
	b.updateWorldInertia()
	return b, nil
}

func newBody(shape *Shape, cf CFrame, size mgl64.Vec3) *Body {
	b := &Body{
		ID:          uuid.New(),
		Size:        size,
		Position:    cf.Position,
		Rotation:    QuatFromMat3(cf.Rotation),
		Restitution: 0.0,
		Friction:    0.3,
		Beta:        1.0,
	}
	b.Hull = NewHull(shape, cf, size)
	b.AABBMin, b.AABBMax = b.Hull.AABB()
	return b
}

// Static reports whether the body is immovable.
func (b *Body) Static() bool {
	return b.flags&bodyFlagStatic != 0
}

// Sleeping reports whether integration currently skips the body.
func (b *Body) Sleeping() bool {
	return b.flags&bodyFlagSleeping != 0
}

// Wake clears the sleep state and idle timer.
func (b *Body) Wake() {
	b.flags &^= bodyFlagSleeping
	b.SleepTimer = 0
}

func (b *Body) sleep() {
	b.flags |= bodyFlagSleeping
	b.Velocity = mgl64.Vec3{}
	b.AngularVelocity = mgl64.Vec3{}
}

// ApplyImpulse changes linear velocity immediately and wakes the body.
func (b *Body) ApplyImpulse(impulse mgl64.Vec3) {
	if b.Static() {
		return
	}
	b.Wake()
	b.Velocity = b.Velocity.Add(impulse.Mul(b.InvMass))
}

// ApplyAngularImpulse changes angular velocity through the world-space
// inverse inertia and wakes the body.
func (b *Body) ApplyAngularImpulse(impulse mgl64.Vec3) {
	if b.Static() {
		return
	}
	b.Wake()
	b.AngularVelocity = b.AngularVelocity.Add(b.InvInertiaWorld.Mul3x1(impulse))
}

// Transform returns the body's frame, rebuilt from position and rotation.
func (b *Body) Transform() CFrame {
	return CFrameFromQuat(b.Position, b.Rotation)
}

// SetTransform teleports the body and refreshes hull caches and AABB.
func (b *Body) SetTransform(cf CFrame) {
	b.Position = cf.Position
	b.Rotation = QuatFromMat3(cf.Rotation)
	b.syncHull()
	if !b.Static() {
		b.updateWorldInertia()
	}
}

func (b *Body) syncHull() {
	b.Hull.SetTransform(CFrameFromQuat(b.Position, b.Rotation))
	b.AABBMin, b.AABBMax = b.Hull.AABB()
}

// updateWorldInertia rebuilds I⁻¹ in world space: R · I_local⁻¹ · Rᵀ.
func (b *Body) updateWorldInertia() {
	r := b.Rotation.Mat4().Mat3()
	b.InvInertiaWorld = r.Mul3(b.invInertiaLocal).Mul3(r.Transpose())
}

// integrateForces advances velocities from gravity and the accumulated
// force/torque, then clears the accumulators. Momenta track the result.
func (b *Body) integrateForces(dt float64, gravity mgl64.Vec3) {
	if b.Static() || b.Sleeping() {
		b.Force = mgl64.Vec3{}
		b.Torque = mgl64.Vec3{}
		return
	}
	accel := gravity.Add(b.Force.Mul(b.InvMass))
	b.Velocity = b.Velocity.Add(accel.Mul(dt))
	b.AngularVelocity = b.AngularVelocity.Add(b.InvInertiaWorld.Mul3x1(b.Torque).Mul(dt))
	b.Force = mgl64.Vec3{}
	b.Torque = mgl64.Vec3{}
	b.updateMomenta()
}

// integrateVelocities advances position and orientation, then refreshes the
// world inertia, hull caches, and AABB.
func (b *Body) integrateVelocities(dt float64) {
	if b.Static() || b.Sleeping() {
		return
	}
	b.Position = b.Position.Add(b.Velocity.Mul(dt))

	if b.AngularVelocity.LenSqr() > 0 {
		spin := mgl64.Quat{W: 0, V: b.AngularVelocity.Mul(0.5 * dt)}
		b.Rotation = b.Rotation.Add(spin.Mul(b.Rotation)).Normalize()
	}

	b.updateWorldInertia()
	b.updateMomenta()
	b.syncHull()
}

func (b *Body) updateMomenta() {
	b.Momentum = b.Velocity.Mul(b.Mass)
	r := b.Rotation.Mat4().Mat3()
	inertiaWorld := r.Mul3(b.inertiaLocal).Mul3(r.Transpose())
	b.AngularMomentum = inertiaWorld.Mul3x1(b.AngularVelocity)
}

// fatAABB returns the body's AABB expanded by pad on every side.
func (b *Body) fatAABB(pad float64) (mgl64.Vec3, mgl64.Vec3) {
	p := mgl64.Vec3{pad, pad, pad}
	return b.AABBMin.Sub(p), b.AABBMax.Add(p)
}

// PartProperties describes one part for SystemProperties.
type PartProperties struct {
	Mass    float64
	Center  mgl64.Vec3
	Inertia mgl64.Mat3
}

// SystemProperties composes parts into an aggregate mass, mass-weighted
// centroid, and inertia about that centroid via the parallel-axis theorem:
//
//	I_sys = Σ [ I_part + m (‖r‖²·E − r⊗r) ],  r = part.Center − centroid
func SystemProperties(parts []PartProperties) (float64, mgl64.Vec3, mgl64.Mat3) {
	totalMass := 0.0
	weighted := mgl64.Vec3{}
	for _, p := range parts {
		totalMass += p.Mass
		weighted = weighted.Add(p.Center.Mul(p.Mass))
	}
	if totalMass == 0 {
		return 0, mgl64.Vec3{}, mgl64.Mat3{}
	}
	centroid := weighted.Mul(1.0 / totalMass)

	inertia := mgl64.Mat3{}
	for _, p := range parts {
		r := p.Center.Sub(centroid)
		shift := mgl64.Ident3().Mul(r.LenSqr()).Sub(Outer3(r, r)).Mul(p.Mass)
		inertia = inertia.Add(p.Inertia).Add(shift)
	}
	return totalMass, centroid, inertia
}
