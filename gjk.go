package rigid

import "github.com/go-gl/mathgl/mgl64"

// SupportFunc maps a world direction to the extreme point of a convex set
// along that direction.
type SupportFunc func(dir mgl64.Vec3) mgl64.Vec3

const (
	gjkMaxIterations = 8
	gjkEps           = 1e-9
)

// simplex holds 1-4 Minkowski-difference points; pts[n-1] is the newest.
type simplex struct {
	pts [4]mgl64.Vec3
	n   int
}

func (s *simplex) push(p mgl64.Vec3) {
	s.pts[s.n] = p
	s.n++
}

func (s *simplex) set(pts ...mgl64.Vec3) {
	s.n = len(pts)
	copy(s.pts[:], pts)
}

// minkowskiSupport samples the Minkowski difference A - B along dir.
func minkowskiSupport(suppA, suppB SupportFunc, dir mgl64.Vec3) mgl64.Vec3 {
	return suppA(dir).Sub(suppB(dir.Mul(-1)))
}

// IsColliding reports whether two convex sets overlap, by testing whether
// their Minkowski difference encloses the origin. Each refinement takes a
// support point along the current direction; a point that fails to pass the
// origin proves separation without finishing the simplex.
func IsColliding(suppA, suppB SupportFunc, seed mgl64.Vec3) bool {
	if seed.LenSqr() < gjkEps {
		seed = mgl64.Vec3{1, 0, 0}
	}

	var s simplex
	a := minkowskiSupport(suppA, suppB, seed)
	s.push(a)
	dir := a.Mul(-1)
	if dir.LenSqr() < gjkEps {
		return true // touching at a point
	}

	for i := 0; i < gjkMaxIterations; i++ {
		a = minkowskiSupport(suppA, suppB, dir)
		if a.Dot(dir) <= gjkEps {
			return false
		}
		s.push(a)
		if nextSimplex(&s, &dir) {
			return true
		}
		if dir.LenSqr() < gjkEps {
			return true
		}
	}
	return false
}

// nextSimplex reduces the simplex to the feature closest to the origin and
// points dir at the origin from it. Returns true when a tetrahedron encloses
// the origin.
func nextSimplex(s *simplex, dir *mgl64.Vec3) bool {
	switch s.n {
	case 2:
		simplexLine(s, dir)
	case 3:
		simplexTriangle(s, dir)
	case 4:
		return simplexTetrahedron(s, dir)
	}
	return false
}

func simplexLine(s *simplex, dir *mgl64.Vec3) {
	a := s.pts[1] // newest
	b := s.pts[0]
	ab := b.Sub(a)
	ao := a.Mul(-1)
	// The new point passed the origin, so the closest feature is the segment.
	*dir = ab.Cross(ao).Cross(ab)
	if dir.LenSqr() < gjkEps {
		// Origin on the segment line; any perpendicular works.
		*dir = anyPerpendicular(ab)
	}
}

func simplexTriangle(s *simplex, dir *mgl64.Vec3) {
	a := s.pts[2] // newest
	b := s.pts[1]
	c := s.pts[0]
	ab := b.Sub(a)
	ac := c.Sub(a)
	ao := a.Mul(-1)
	abc := ab.Cross(ac)

	if abc.Cross(ac).Dot(ao) > 0 {
		if ac.Dot(ao) > 0 {
			s.set(c, a)
			*dir = ac.Cross(ao).Cross(ac)
		} else {
			s.set(b, a)
			simplexLine(s, dir)
		}
		return
	}
	if ab.Cross(abc).Dot(ao) > 0 {
		s.set(b, a)
		simplexLine(s, dir)
		return
	}
	if abc.Dot(ao) > 0 {
		s.set(c, b, a)
		*dir = abc
	} else {
		s.set(b, c, a)
		*dir = abc.Mul(-1)
	}
}

func simplexTetrahedron(s *simplex, dir *mgl64.Vec3) bool {
	a := s.pts[3] // newest
	b := s.pts[2]
	c := s.pts[1]
	d := s.pts[0]
	ab := b.Sub(a)
	ac := c.Sub(a)
	ad := d.Sub(a)
	ao := a.Mul(-1)

	abc := ab.Cross(ac)
	acd := ac.Cross(ad)
	adb := ad.Cross(ab)

	if abc.Dot(ao) > 0 {
		s.set(c, b, a)
		simplexTriangle(s, dir)
		return false
	}
	if acd.Dot(ao) > 0 {
		s.set(d, c, a)
		simplexTriangle(s, dir)
		return false
	}
	if adb.Dot(ao) > 0 {
		s.set(b, d, a)
		simplexTriangle(s, dir)
		return false
	}
	return true // origin inside all four faces
}

func anyPerpendicular(v mgl64.Vec3) mgl64.Vec3 {
	axis := mgl64.Vec3{1, 0, 0}
	if v.X()*v.X() > v.Y()*v.Y() {
		axis = mgl64.Vec3{0, 1, 0}
	}
	return v.Cross(axis)
}

// ClosestSimplex runs the same refinement against a single combined support
// function, steering toward the origin, and returns the final simplex
// points. Neither Collide nor the world's narrowphase calls it.
func ClosestSimplex(support SupportFunc, seed mgl64.Vec3) []mgl64.Vec3 {
	if seed.LenSqr() < gjkEps {
		seed = mgl64.Vec3{1, 0, 0}
	}

	var s simplex
	a := support(seed)
	s.push(a)
	dir := a.Mul(-1)

	for i := 0; i < gjkMaxIterations; i++ {
		if dir.LenSqr() < gjkEps {
			break
		}
		a = support(dir)
		// No progress toward the origin means the current feature is closest.
		if a.Dot(dir)-s.pts[s.n-1].Dot(dir) <= gjkEps {
			break
		}
		s.push(a)
		if nextSimplex(&s, &dir) {
			break
		}
	}

	out := make([]mgl64.Vec3, s.n)
	copy(out, s.pts[:s.n])
	return out
}
