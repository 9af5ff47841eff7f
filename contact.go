package rigid

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

type jacobianKind uint8

const (
	jacobianNormal jacobianKind = iota
	jacobianTangent
)

// Jacobian is one velocity-constraint row: linear and angular terms for both
// bodies, the effective mass of the row, a bias, and the impulse accumulated
// across solver sweeps.
type Jacobian struct {
	kind jacobianKind

	linA mgl64.Vec3
	angA mgl64.Vec3
	linB mgl64.Vec3
	angB mgl64.Vec3

	effMass     float64
	bias        float64
	accumulated float64
}

// Contact couples one manifold point between two bodies: a normal row for
// non-penetration and two tangent rows for Coulomb friction.
type Contact struct {
	A, B *Body

	Normal mgl64.Vec3
	RA     mgl64.Vec3 // world offset from A's center to the contact point
	RB     mgl64.Vec3
	Depth  float64

	Friction float64

	jn, jt, jb Jacobian
}

// NewContact builds the three constraint rows for a manifold point. dt feeds
// the Baumgarte term so the positional correction is framerate-independent;
// beta scales it, slop is the penetration the bias ignores.
func NewContact(a, b *Body, point ManifoldPoint, normal mgl64.Vec3, dt, beta, slop float64) *Contact {
	c := &Contact{
		A:        a,
		B:        b,
		Normal:   normal,
		RA:       point.Position.Sub(a.Position),
		RB:       point.Position.Sub(b.Position),
		Depth:    point.Depth,
		Friction: a.Friction * b.Friction,
	}

	c.jn = c.buildRow(normal, jacobianNormal)

	// Restitution from the pre-solve approach velocity, Baumgarte from depth.
	vRel := b.Velocity.Add(b.AngularVelocity.Cross(c.RB)).
		Sub(a.Velocity).Sub(a.AngularVelocity.Cross(c.RA))
	restitution := a.Restitution * b.Restitution
	pen := math.Max(point.Depth-slop, 0)
	c.jn.bias = restitution*vRel.Dot(normal) - (beta*a.Beta*b.Beta/dt)*pen

	tangent, bitangent := frictionBasis(normal)
	c.jt = c.buildRow(tangent, jacobianTangent)
	c.jb = c.buildRow(bitangent, jacobianTangent)

	return c
}

// buildRow assembles J = [-u, -(rA x u), u, rB x u] and its effective mass.
func (c *Contact) buildRow(u mgl64.Vec3, kind jacobianKind) Jacobian {
	raxu := c.RA.Cross(u)
	rbxu := c.RB.Cross(u)

	k := c.A.InvMass + c.B.InvMass +
		raxu.Dot(c.A.InvInertiaWorld.Mul3x1(raxu)) +
		rbxu.Dot(c.B.InvInertiaWorld.Mul3x1(rbxu))

	return Jacobian{
		kind:    kind,
		linA:    u.Mul(-1),
		angA:    raxu.Mul(-1),
		linB:    u,
		angB:    rbxu,
		effMass: 1.0 / k,
	}
}

// frictionBasis returns two orthonormal directions perpendicular to n. Near
// vertical normals snap to the world X/Z axes so stacked boxes slide along
// stable directions.
func frictionBasis(n mgl64.Vec3) (mgl64.Vec3, mgl64.Vec3) {
	if math.Abs(n.Y()) > 0.99 {
		return mgl64.Vec3{1, 0, 0}, mgl64.Vec3{0, 0, 1}
	}
	tangent := mgl64.Vec3{n.Z(), 0, -n.X()}.Normalize()
	bitangent := tangent.Cross(n).Normalize()
	return tangent, bitangent
}

// solveRow applies one sequential-impulse update for a row, clamping the
// accumulated impulse into [lo, hi] and feeding only the difference back
// into the bodies.
func (c *Contact) solveRow(j *Jacobian, lo, hi float64) {
	a, b := c.A, c.B

	jv := j.linA.Dot(a.Velocity) + j.angA.Dot(a.AngularVelocity) +
		j.linB.Dot(b.Velocity) + j.angB.Dot(b.AngularVelocity)

	lambda := -(jv + j.bias) * j.effMass

	prev := j.accumulated
	j.accumulated = clamp(prev+lambda, lo, hi)
	applied := j.accumulated - prev

	a.Velocity = a.Velocity.Add(j.linA.Mul(a.InvMass * applied))
	a.AngularVelocity = a.AngularVelocity.Add(a.InvInertiaWorld.Mul3x1(j.angA.Mul(applied)))
	b.Velocity = b.Velocity.Add(j.linB.Mul(b.InvMass * applied))
	b.AngularVelocity = b.AngularVelocity.Add(b.InvInertiaWorld.Mul3x1(j.angB.Mul(applied)))
}

// solve runs one sweep over the contact: normal row first, then the two
// friction rows bounded by the current accumulated normal impulse.
func (c *Contact) solve() {
	c.solveRow(&c.jn, 0, math.Inf(1))

	bound := c.Friction * c.jn.accumulated
	c.solveRow(&c.jt, -bound, bound)
	c.solveRow(&c.jb, -bound, bound)
}

// NormalImpulse returns the accumulated non-penetration impulse.
func (c *Contact) NormalImpulse() float64 { return c.jn.accumulated }

// FrictionImpulses returns the accumulated tangent and bitangent impulses.
func (c *Contact) FrictionImpulses() (float64, float64) {
	return c.jt.accumulated, c.jb.accumulated
}

// SolveContacts iterates sequential impulses over every contact. Convergence
// comes from accumulated-impulse clamping: each sweep may add or remove
// impulse, but the running totals always respect the friction pyramid and
// the unilateral normal bound.
func SolveContacts(contacts []*Contact, iterations int) {
	for it := 0; it < iterations; it++ {
		for _, c := range contacts {
			c.solve()
		}
	}
}
