package rigid

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

const (
	facePlanarEps = 1e-4
	convexityEps  = 1e-4
)

// Face is a CCW-ordered vertex loop with its outward local-space normal.
type Face struct {
	Vertices []int
	Normal   mgl64.Vec3
}

// Edge is an undirected edge between two vertices, bordered by exactly two
// faces. F0 is the face that walks V0 -> V1 in its loop.
type Edge struct {
	V0, V1 int
	F0, F1 int
}

// Shape is an immutable convex polyhedron descriptor. One Shape is shared by
// any number of hulls and bodies; all fields are read-only after NewShape.
type Shape struct {
	Vertices []mgl64.Vec3
	Faces    []Face
	Edges    []Edge
}

// NewShape validates a vertex/face soup and derives per-face planes and edge
// adjacency. Faces are ordered vertex-index loops; normals are computed from
// the winding (Newell's method), so the caller's winding must be CCW seen
// from outside. Returns ErrInvalidShape for non-convex, degenerate, or
// non-manifold input.
func NewShape(vertices []mgl64.Vec3, faces [][]int) (*Shape, error) {
	if len(vertices) < 4 || len(faces) < 4 {
		return nil, fmt.Errorf("%w: need at least 4 vertices and 4 faces, got %d/%d",
			ErrInvalidShape, len(vertices), len(faces))
	}

	s := &Shape{
		Vertices: vertices,
		Faces:    make([]Face, len(faces)),
	}

	for fi, loop := range faces {
		if len(loop) < 3 {
			return nil, fmt.Errorf("%w: face %d has %d vertices", ErrInvalidShape, fi, len(loop))
		}
		for _, vi := range loop {
			if vi < 0 || vi >= len(vertices) {
				return nil, fmt.Errorf("%w: face %d references vertex %d", ErrInvalidShape, fi, vi)
			}
		}

		// Newell normal. Robust for any planar polygon, zero for degenerate ones.
		var n mgl64.Vec3
		for i := range loop {
			cur := vertices[loop[i]]
			next := vertices[loop[(i+1)%len(loop)]]
			n = n.Add(cur.Cross(next))
		}
		if n.LenSqr() < 1e-12 {
			return nil, fmt.Errorf("%w: face %d is degenerate", ErrInvalidShape, fi)
		}
		n = n.Normalize()

		w := n.Dot(vertices[loop[0]])
		for _, vi := range loop[1:] {
			if math.Abs(n.Dot(vertices[vi])-w) > facePlanarEps {
				return nil, fmt.Errorf("%w: face %d is not planar", ErrInvalidShape, fi)
			}
		}

		// Convexity: every hull vertex sits on or behind every face plane.
		for vi, v := range vertices {
			if n.Dot(v)-w > convexityEps {
				return nil, fmt.Errorf("%w: vertex %d is outside face %d (non-convex)",
					ErrInvalidShape, vi, fi)
			}
		}

		s.Faces[fi] = Face{Vertices: loop, Normal: n}
	}

	if err := s.buildEdges(); err != nil {
		return nil, err
	}
	return s, nil
}

// buildEdges derives undirected edges with face adjacency. A closed manifold
// with outward CCW winding walks every edge exactly once in each direction.
func (s *Shape) buildEdges() error {
	type edgeKey struct{ lo, hi int }
	seen := make(map[edgeKey]int)

	for fi, f := range s.Faces {
		for i := range f.Vertices {
			v0 := f.Vertices[i]
			v1 := f.Vertices[(i+1)%len(f.Vertices)]
			if v0 == v1 {
				return fmt.Errorf("%w: face %d repeats vertex %d", ErrInvalidShape, fi, v0)
			}
			key := edgeKey{lo: min(v0, v1), hi: max(v0, v1)}
			if ei, ok := seen[key]; ok {
				e := &s.Edges[ei]
				if e.F1 != -1 {
					return fmt.Errorf("%w: edge %d-%d borders more than two faces",
						ErrInvalidShape, key.lo, key.hi)
				}
				if e.V0 == v0 {
					// Same direction twice means inconsistent winding.
					return fmt.Errorf("%w: edge %d-%d walked twice in the same direction",
						ErrInvalidShape, v0, v1)
				}
				e.F1 = fi
			} else {
				seen[key] = len(s.Edges)
				s.Edges = append(s.Edges, Edge{V0: v0, V1: v1, F0: fi, F1: -1})
			}
		}
	}

	for _, e := range s.Edges {
		if e.F1 == -1 {
			return fmt.Errorf("%w: edge %d-%d borders only one face (open mesh)",
				ErrInvalidShape, e.V0, e.V1)
		}
	}
	return nil
}

// Volume computes the local-space volume by fanning tetrahedra from the
// origin over every face.
func (s *Shape) Volume() float64 {
	total := 0.0
	for _, f := range s.Faces {
		v0 := s.Vertices[f.Vertices[0]]
		for i := 1; i+1 < len(f.Vertices); i++ {
			v1 := s.Vertices[f.Vertices[i]]
			v2 := s.Vertices[f.Vertices[i+1]]
			total += v0.Dot(v1.Cross(v2))
		}
	}
	return total / 6.0
}

// BoxShape returns the canonical unit cube, vertices at ±0.5, ready to be
// scaled by a hull size.
func BoxShape() *Shape {
	verts := []mgl64.Vec3{
		{-0.5, -0.5, -0.5}, // 0
		{0.5, -0.5, -0.5},  // 1
		{0.5, 0.5, -0.5},   // 2
		{-0.5, 0.5, -0.5},  // 3
		{-0.5, -0.5, 0.5},  // 4
		{0.5, -0.5, 0.5},   // 5
		{0.5, 0.5, 0.5},    // 6
		{-0.5, 0.5, 0.5},   // 7
	}
	faces := [][]int{
		{2, 6, 5, 1}, // +X
		{7, 3, 0, 4}, // -X
		{7, 6, 2, 3}, // +Y
		{0, 1, 5, 4}, // -Y
		{6, 7, 4, 5}, // +Z
		{3, 2, 1, 0}, // -Z
	}
	s, err := NewShape(verts, faces)
	if err != nil {
		panic(err) // canned descriptor, cannot fail
	}
	return s
}

// Hull is a world-space instance of a Shape: the shared descriptor plus a
// transform and per-axis size, with cached world vertices, face normals,
// plane offsets, and AABB. The caches are rebuilt whenever the transform
// changes.
type Hull struct {
	Shape *Shape
	Size  mgl64.Vec3

	cf          CFrame
	worldVerts  []mgl64.Vec3
	worldNorms  []mgl64.Vec3
	faceOffsets []float64
	aabbMin     mgl64.Vec3
	aabbMax     mgl64.Vec3
}

// NewHull instantiates shape at the given frame, scaled per-axis by size.
func NewHull(shape *Shape, cf CFrame, size mgl64.Vec3) *Hull {
	h := &Hull{
		Shape:       shape,
		Size:        size,
		worldVerts:  make([]mgl64.Vec3, len(shape.Vertices)),
		worldNorms:  make([]mgl64.Vec3, len(shape.Faces)),
		faceOffsets: make([]float64, len(shape.Faces)),
	}
	h.SetTransform(cf)
	return h
}

// Transform returns the hull's current frame.
func (h *Hull) Transform() CFrame {
	return h.cf
}

// Center returns the world position of the hull frame.
func (h *Hull) Center() mgl64.Vec3 {
	return h.cf.Position
}

// SetTransform moves the hull and rebuilds the world-space caches.
func (h *Hull) SetTransform(cf CFrame) {
	h.cf = cf

	h.aabbMin = mgl64.Vec3{math.Inf(1), math.Inf(1), math.Inf(1)}
	h.aabbMax = mgl64.Vec3{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
	for i, v := range h.Shape.Vertices {
		scaled := mgl64.Vec3{v.X() * h.Size.X(), v.Y() * h.Size.Y(), v.Z() * h.Size.Z()}
		world := cf.Mul(scaled)
		h.worldVerts[i] = world
		h.aabbMin = minVec3(h.aabbMin, world)
		h.aabbMax = maxVec3(h.aabbMax, world)
	}

	for i, f := range h.Shape.Faces {
		// Non-uniform scale bends face normals; recompute from the world loop.
		var n mgl64.Vec3
		for j := range f.Vertices {
			cur := h.worldVerts[f.Vertices[j]]
			next := h.worldVerts[f.Vertices[(j+1)%len(f.Vertices)]]
			n = n.Add(cur.Cross(next))
		}
		n = n.Normalize()
		h.worldNorms[i] = n
		h.faceOffsets[i] = n.Dot(h.worldVerts[f.Vertices[0]])
	}
}

// AABB returns the tight world bounds of the hull.
func (h *Hull) AABB() (mgl64.Vec3, mgl64.Vec3) {
	return h.aabbMin, h.aabbMax
}

// Support returns the world vertex maximizing dot(v, dir). O(V) scan; hulls
// are small enough that hill climbing never paid for itself.
func (h *Hull) Support(dir mgl64.Vec3) mgl64.Vec3 {
	best := h.worldVerts[0]
	bestDot := best.Dot(dir)
	for _, v := range h.worldVerts[1:] {
		if d := v.Dot(dir); d > bestDot {
			bestDot = d
			best = v
		}
	}
	return best
}

// FacePolygon appends face fi's world vertices to out and returns it,
// preserving the CCW winding.
func (h *Hull) FacePolygon(fi int, out []mgl64.Vec3) []mgl64.Vec3 {
	for _, vi := range h.Shape.Faces[fi].Vertices {
		out = append(out, h.worldVerts[vi])
	}
	return out
}

// FaceNormal returns the world normal of face fi.
func (h *Hull) FaceNormal(fi int) mgl64.Vec3 {
	return h.worldNorms[fi]
}

// FacePlane returns the world plane (normal, offset) of face fi.
func (h *Hull) FacePlane(fi int) (mgl64.Vec3, float64) {
	return h.worldNorms[fi], h.faceOffsets[fi]
}

// QueryEdge returns the world endpoints of edge ei.
func (h *Hull) QueryEdge(ei int) (mgl64.Vec3, mgl64.Vec3) {
	e := h.Shape.Edges[ei]
	return h.worldVerts[e.V0], h.worldVerts[e.V1]
}

// QueryFaceDirections finds the face of h whose plane is most separating
// against other: for each face plane (n, w) it probes other's support in -n
// and measures dot(n, p) - w. A positive best distance means the hulls are
// disjoint along that face normal.
func (h *Hull) QueryFaceDirections(other *Hull) (int, float64) {
	bestFace := -1
	bestDist := math.Inf(-1)
	for fi := range h.Shape.Faces {
		n := h.worldNorms[fi]
		p := other.Support(n.Mul(-1))
		dist := n.Dot(p) - h.faceOffsets[fi]
		if dist > bestDist {
			bestDist = dist
			bestFace = fi
		}
	}
	return bestFace, bestDist
}

// QueryEdgeDirections scans edge pairs for the most separating cross-product
// axis. Pairs whose normals do not form a face on the Minkowski difference
// (Gauss-map test) are pruned before any axis is built.
func (h *Hull) QueryEdgeDirections(other *Hull) (float64, int, int) {
	bestDist := math.Inf(-1)
	bestA, bestB := -1, -1
	center := h.Center()

	for ai, ea := range h.Shape.Edges {
		a0 := h.worldVerts[ea.V0]
		a1 := h.worldVerts[ea.V1]
		dirA := a1.Sub(a0)
		na0 := h.worldNorms[ea.F0]
		na1 := h.worldNorms[ea.F1]

		for bi, eb := range other.Shape.Edges {
			b0 := other.worldVerts[eb.V0]
			b1 := other.worldVerts[eb.V1]
			dirB := b1.Sub(b0)
			nb0 := other.worldNorms[eb.F0].Mul(-1)
			nb1 := other.worldNorms[eb.F1].Mul(-1)

			// F0 walks V0 -> V1, so cross(b, a) is -dirA and, with other's
			// normals negated, cross(d, c) is -dirB; the shared sign cancels.
			if !isMinkowskiFace(na0, na1, dirA, nb0, nb1, dirB) {
				continue
			}

			axis := dirA.Cross(dirB)
			if axis.LenSqr() < 1e-10 {
				continue // near-parallel edges, no usable axis
			}
			axis = axis.Normalize()
			if axis.Dot(a0.Sub(center)) < 0 {
				axis = axis.Mul(-1)
			}

			dist := axis.Dot(b0) - axis.Dot(a0)
			if dist > bestDist {
				bestDist = dist
				bestA = ai
				bestB = bi
			}
		}
	}
	return bestDist, bestA, bestB
}

// isMinkowskiFace tests whether the arcs (a,b) and (c,d) on the Gauss map
// intersect, i.e. the edge pair contributes a face to the Minkowski sum. The
// caller passes the second hull's normals negated.
func isMinkowskiFace(a, b, bxa, c, d, dxc mgl64.Vec3) bool {
	cba := c.Dot(bxa)
	dba := d.Dot(bxa)
	adc := a.Dot(dxc)
	bdc := b.Dot(dxc)
	return cba*dba < 0 && adc*bdc < 0 && cba*bdc > 0
}
