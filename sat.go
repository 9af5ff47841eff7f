package rigid

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

const (
	// Separations above this are treated as disjoint.
	satEps = 1e-4
	// Quantization scale for manifold point deduplication.
	manifoldHashScale = 10000.0
	// Manifolds never exceed this many points.
	manifoldCap = 4
)

// ManifoldPoint is one world-space contact point with its penetration depth.
type ManifoldPoint struct {
	Position mgl64.Vec3
	Depth    float64
}

// Manifold is the contact set between two hulls: a shared normal pointing
// from A toward B and at most four points.
type Manifold struct {
	Normal mgl64.Vec3
	Points []ManifoldPoint
}

// Collide runs the SAT pipeline on two hulls: both face-direction queries,
// the edge-direction query, then either a clipped face manifold or a single
// edge-edge point. The face axes win ties against the edge axis; preferring
// faces keeps resting contacts from flickering between near-equal axes.
func Collide(a, b *Hull) (Manifold, bool) {
	faceA, distA := a.QueryFaceDirections(b)
	if distA > satEps {
		return Manifold{}, false
	}
	faceB, distB := b.QueryFaceDirections(a)
	if distB > satEps {
		return Manifold{}, false
	}
	distE, edgeA, edgeB := a.QueryEdgeDirections(b)
	if distE > satEps {
		return Manifold{}, false
	}

	if distA >= distE || distB >= distE {
		if distA >= distB {
			return collideFaces(a, b, faceA, false)
		}
		return collideFaces(b, a, faceB, true)
	}
	return collideEdges(a, b, edgeA, edgeB, distE)
}

// collideFaces builds a face manifold with ref's face refFace as reference.
// Both clip directions contribute candidates: the reference polygon clipped
// into the incident face's side prism, and the incident polygon clipped into
// the reference face's. flip reverses the manifold normal so it always runs
// A to B for the caller.
func collideFaces(ref, inc *Hull, refFace int, flip bool) (Manifold, bool) {
	n := ref.FaceNormal(refFace)

	incFace := mostAntiParallelFace(inc, n)

	onRef := clipAgainstAdjacent(ref.FacePolygon(refFace, nil), inc, incFace)
	onInc := clipAgainstAdjacent(inc.FacePolygon(incFace, nil), ref, refFace)

	incN, incW := inc.FacePlane(incFace)
	refN, refW := ref.FacePlane(refFace)

	var candidates []ManifoldPoint
	for _, p := range onRef {
		// Reference-face points penetrate by how far they sit behind the
		// incident plane.
		depth := -(incN.Dot(p) - incW)
		if depth < -satEps {
			continue
		}
		candidates = append(candidates, ManifoldPoint{Position: p, Depth: math.Max(depth, 0)})
	}
	for _, p := range onInc {
		depth := -(refN.Dot(p) - refW)
		if depth < -satEps {
			continue
		}
		candidates = append(candidates, ManifoldPoint{Position: p, Depth: math.Max(depth, 0)})
	}
	if len(candidates) == 0 {
		return Manifold{}, false
	}

	if len(candidates) > manifoldCap {
		candidates = reduceManifold(candidates, n)
	}
	candidates = dedupeManifold(candidates)

	if flip {
		n = n.Mul(-1)
	}
	return Manifold{Normal: n, Points: candidates}, true
}

// mostAntiParallelFace picks the face of h whose normal opposes dir most.
func mostAntiParallelFace(h *Hull, dir mgl64.Vec3) int {
	best := 0
	bestDot := math.Inf(1)
	for fi := range h.Shape.Faces {
		if d := h.FaceNormal(fi).Dot(dir); d < bestDot {
			bestDot = d
			best = fi
		}
	}
	return best
}

// clipAgainstAdjacent clips poly against the planes of every face of h that
// shares an edge with face fi, Sutherland-Hodgman style. An empty result
// means the polygons do not overlap in the contact prism.
func clipAgainstAdjacent(poly []mgl64.Vec3, h *Hull, fi int) []mgl64.Vec3 {
	for _, e := range h.Shape.Edges {
		var side int
		switch fi {
		case e.F0:
			side = e.F1
		case e.F1:
			side = e.F0
		default:
			continue
		}
		n, w := h.FacePlane(side)
		poly = clipPolygonPlane(poly, n, w)
		if len(poly) == 0 {
			return nil
		}
	}
	return poly
}

// clipPolygonPlane keeps the part of poly behind the plane (n, w). Crossing
// segments are cut at the parametric intersection t = (w - n·vk)/(n·vj - n·vk).
func clipPolygonPlane(poly []mgl64.Vec3, n mgl64.Vec3, w float64) []mgl64.Vec3 {
	out := make([]mgl64.Vec3, 0, len(poly)+1)
	for i := range poly {
		vk := poly[i]
		vj := poly[(i+1)%len(poly)]
		vkd := n.Dot(vk)
		vjd := n.Dot(vj)

		if vkd-w <= 0 {
			out = append(out, vk)
		}
		if (vkd-w)*(vjd-w) < 0 {
			t := (w - vkd) / (vjd - vkd)
			out = append(out, vk.Add(vj.Sub(vk).Mul(t)))
		}
	}
	return out
}

// reduceManifold keeps the four points that best preserve the contact area:
// an anchor, the farthest point from it, and the two extremes of signed
// triangle area on either side.
func reduceManifold(pts []ManifoldPoint, normal mgl64.Vec3) []ManifoldPoint {
	a := pts[len(pts)-1]

	b := pts[0]
	bestDist := math.Inf(-1)
	for _, p := range pts {
		if d := p.Position.Sub(a.Position).LenSqr(); d > bestDist {
			bestDist = d
			b = p
		}
	}

	c, d := pts[0], pts[0]
	maxArea := math.Inf(-1)
	minArea := math.Inf(1)
	ab := b.Position.Sub(a.Position)
	for _, p := range pts {
		area := ab.Cross(p.Position.Sub(a.Position)).Dot(normal)
		if area > maxArea {
			maxArea = area
			c = p
		}
		if area < minArea {
			minArea = area
			d = p
		}
	}

	return []ManifoldPoint{a, b, c, d}
}

// dedupeManifold merges points that land on the same cell of a 1/10000
// lattice. Clipping from both directions produces coincident points along
// shared edges; the quantized hash collapses them regardless of float noise.
func dedupeManifold(pts []ManifoldPoint) []ManifoldPoint {
	type cell [3]int64
	seen := make(map[cell]struct{}, len(pts))
	out := pts[:0]
	for _, p := range pts {
		key := cell{
			int64(math.Floor(p.Position.X() * manifoldHashScale)),
			int64(math.Floor(p.Position.Y() * manifoldHashScale)),
			int64(math.Floor(p.Position.Z() * manifoldHashScale)),
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, p)
	}
	return out
}

// collideEdges builds a one-point manifold at the closest approach of the
// two witness edges.
func collideEdges(a, b *Hull, edgeA, edgeB int, dist float64) (Manifold, bool) {
	if edgeA < 0 || edgeB < 0 {
		return Manifold{}, false
	}
	p0, p1 := a.QueryEdge(edgeA)
	q0, q1 := b.QueryEdge(edgeB)

	onA, onB := closestSegmentPoints(p0, p1, q0, q1)

	axis := p1.Sub(p0).Cross(q1.Sub(q0))
	if axis.LenSqr() < 1e-10 {
		return Manifold{}, false
	}
	axis = axis.Normalize()
	if axis.Dot(onB.Sub(a.Center())) < 0 {
		axis = axis.Mul(-1)
	}

	return Manifold{
		Normal: axis,
		Points: []ManifoldPoint{{
			Position: onA.Add(onB).Mul(0.5),
			Depth:    math.Max(-dist, 0),
		}},
	}, true
}

// closestSegmentPoints returns the closest pair of points on segments a0-a1
// and b0-b1, clamping both parameters into the segments.
func closestSegmentPoints(a0, a1, b0, b1 mgl64.Vec3) (mgl64.Vec3, mgl64.Vec3) {
	ab := a1.Sub(a0)
	cd := b1.Sub(b0)
	r := a0.Sub(b0)

	abxcd := ab.Cross(cd)
	denom := abxcd.LenSqr()
	if denom < 1e-12 {
		// Parallel segments; fall back to projecting b0 onto a.
		t := clamp(-r.Dot(ab)/ab.LenSqr(), 0, 1)
		onA := a0.Add(ab.Mul(t))
		s := clamp(onA.Sub(b0).Dot(cd)/cd.LenSqr(), 0, 1)
		return onA, b0.Add(cd.Mul(s))
	}

	t1 := clamp(-r.Cross(cd).Dot(abxcd)/denom, 0, 1)
	cdxab := cd.Cross(ab)
	t2 := clamp(r.Cross(ab).Dot(cdxab)/cdxab.LenSqr(), 0, 1)

	return a0.Add(ab.Mul(t1)), b0.Add(cd.Mul(t2))
}
