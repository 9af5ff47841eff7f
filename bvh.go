package rigid

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

type nodeFlag uint8

const (
	nodeBranch nodeFlag = iota
	nodeLeaf
)

const nullNode int32 = 0

// bvhNode is one slot in the tree slab. Slots are 1-based so that index 0
// can serve as the null link; freed slots chain through the free field.
type bvhNode struct {
	flag   nodeFlag
	min    mgl64.Vec3
	max    mgl64.Vec3
	center mgl64.Vec3

	left   int32
	right  int32
	parent int32
	free   int32

	body *Body
}

// surfaceArea is the SAH metric xy + xz + yz (half the true surface area;
// only ratios matter).
func surfaceArea(min, max mgl64.Vec3) float64 {
	d := max.Sub(min)
	return d.X()*d.Y() + d.X()*d.Z() + d.Y()*d.Z()
}

func aabbOverlap(aMin, aMax, bMin, bMax mgl64.Vec3) bool {
	return aMin.X() <= bMax.X() && aMax.X() >= bMin.X() &&
		aMin.Y() <= bMax.Y() && aMax.Y() >= bMin.Y() &&
		aMin.Z() <= bMax.Z() && aMax.Z() >= bMin.Z()
}

// bvh is a dynamic bounding-volume hierarchy over body fat AABBs. Leaves hold
// bodies; branches hold unions. One instance is owned by a world and shares
// its traversal queue.
type bvh struct {
	nodes    []bvhNode
	freeHead int32
	root     int32
	pad      float64
	queue    *nodeQueue
}

func newBVH(pad float64, queuePow uint) *bvh {
	return &bvh{
		nodes: make([]bvhNode, 1), // slot 0 is the null node
		pad:   pad,
		queue: newNodeQueue(queuePow),
	}
}

// allocNode returns a free slot, recycling the freelist before growing the
// slab.
func (t *bvh) allocNode() int32 {
	if t.freeHead != nullNode {
		idx := t.freeHead
		t.freeHead = t.nodes[idx].free
		t.nodes[idx] = bvhNode{}
		return idx
	}
	t.nodes = append(t.nodes, bvhNode{})
	return int32(len(t.nodes) - 1)
}

func (t *bvh) freeNode(idx int32) {
	t.nodes[idx] = bvhNode{free: t.freeHead}
	t.freeHead = idx
}

func (t *bvh) setLeaf(idx int32, body *Body, min, max mgl64.Vec3) {
	n := &t.nodes[idx]
	n.flag = nodeLeaf
	n.body = body
	n.min = min
	n.max = max
	n.center = min.Add(max).Mul(0.5)
}

// insert registers a body with a fat AABB and returns its leaf slot.
func (t *bvh) insert(body *Body) int32 {
	min, max := body.fatAABB(t.pad)
	leaf := t.allocNode()
	t.setLeaf(leaf, body, min, max)
	t.insertLeaf(leaf)
	return leaf
}

// insertLeaf attaches an existing leaf slot using Catto's branch-and-bound
// sibling search, then refits and rotates up the spine.
func (t *bvh) insertLeaf(leaf int32) {
	if t.root == nullNode {
		t.root = leaf
		t.nodes[leaf].parent = nullNode
		return
	}

	lMin := t.nodes[leaf].min
	lMax := t.nodes[leaf].max

	idx := t.root
	for t.nodes[idx].flag == nodeBranch {
		n := &t.nodes[idx]

		combined := surfaceArea(minVec3(n.min, lMin), maxVec3(n.max, lMax))
		directCost := 2 * combined
		inheritCost := 2 * (combined - surfaceArea(n.min, n.max))

		costChild := func(c int32) float64 {
			child := &t.nodes[c]
			merged := surfaceArea(minVec3(child.min, lMin), maxVec3(child.max, lMax))
			if child.flag == nodeLeaf {
				return merged + inheritCost
			}
			return merged - surfaceArea(child.min, child.max) + inheritCost
		}
		costLeft := costChild(n.left)
		costRight := costChild(n.right)

		if directCost < costLeft && directCost < costRight {
			break
		}
		if costLeft < costRight {
			idx = n.left
		} else {
			idx = n.right
		}
	}

	// Wrap the chosen sibling and the new leaf under a fresh branch.
	sibling := idx
	oldParent := t.nodes[sibling].parent
	branch := t.allocNode()
	bn := &t.nodes[branch]
	bn.flag = nodeBranch
	bn.parent = oldParent
	bn.left = sibling
	bn.right = leaf
	t.refitNode(branch)

	t.nodes[sibling].parent = branch
	t.nodes[leaf].parent = branch

	if oldParent == nullNode {
		t.root = branch
	} else if t.nodes[oldParent].left == sibling {
		t.nodes[oldParent].left = branch
	} else {
		t.nodes[oldParent].right = branch
	}

	t.refitUpward(t.nodes[branch].parent)
}

// remove deletes a body's leaf slot from the tree and the slab.
func (t *bvh) remove(leaf int32) {
	t.detachLeaf(leaf)
	t.freeNode(leaf)
}

// detachLeaf splices a leaf out of the tree, promoting its sibling into the
// parent's slot. The leaf slot itself stays allocated.
func (t *bvh) detachLeaf(leaf int32) {
	if leaf == t.root {
		t.root = nullNode
		t.nodes[leaf].parent = nullNode
		return
	}

	parent := t.nodes[leaf].parent
	var sibling int32
	if t.nodes[parent].left == leaf {
		sibling = t.nodes[parent].right
	} else {
		sibling = t.nodes[parent].left
	}

	grand := t.nodes[parent].parent
	t.nodes[sibling].parent = grand
	if grand == nullNode {
		t.root = sibling
	} else if t.nodes[grand].left == parent {
		t.nodes[grand].left = sibling
	} else {
		t.nodes[grand].right = sibling
	}
	t.freeNode(parent)
	t.refitUpward(grand)
}

// update re-seats a body's leaf when its tight AABB escapes the stored fat
// AABB. Returns true when the leaf moved.
func (t *bvh) update(leaf int32) bool {
	n := &t.nodes[leaf]
	b := n.body
	if b.AABBMin.X() >= n.min.X() && b.AABBMin.Y() >= n.min.Y() && b.AABBMin.Z() >= n.min.Z() &&
		b.AABBMax.X() <= n.max.X() && b.AABBMax.Y() <= n.max.Y() && b.AABBMax.Z() <= n.max.Z() {
		return false
	}
	t.detachLeaf(leaf)
	min, max := b.fatAABB(t.pad)
	t.setLeaf(leaf, b, min, max)
	t.insertLeaf(leaf)
	return true
}

// refitNode rebuilds a branch AABB from its children.
func (t *bvh) refitNode(idx int32) {
	n := &t.nodes[idx]
	l := &t.nodes[n.left]
	r := &t.nodes[n.right]
	n.min = minVec3(l.min, r.min)
	n.max = maxVec3(l.max, r.max)
	n.center = n.min.Add(n.max).Mul(0.5)
}

// refitUpward walks ancestors from idx to the root, refitting bounds and
// applying one rotation at each level.
func (t *bvh) refitUpward(idx int32) {
	for idx != nullNode {
		t.refitNode(idx)
		t.rotate(idx)
		idx = t.nodes[idx].parent
	}
}

// rotate performs a single sibling-swap improvement at x: the sibling s of x
// under its grandparent can trade places with one of x's children when the
// swap shrinks the branch. Comparing the three pairings (s,l), (s,r), (l,r)
// picks the grouping with the smallest union area.
func (t *bvh) rotate(x int32) {
	n := &t.nodes[x]
	if n.flag != nodeBranch || n.parent == nullNode {
		return
	}
	grand := n.parent
	var s int32
	if t.nodes[grand].left == x {
		s = t.nodes[grand].right
	} else {
		s = t.nodes[grand].left
	}

	l, r := n.left, n.right
	saSL := unionArea(t, s, l)
	saSR := unionArea(t, s, r)
	saLR := unionArea(t, l, r)

	if saLR <= saSL && saLR <= saSR {
		return
	}

	// The winning pair stays under x; the leftover child swaps out to the
	// grandparent.
	out := r
	if saSR < saSL {
		out = l
	}

	if t.nodes[grand].left == x {
		t.nodes[grand].right = out
	} else {
		t.nodes[grand].left = out
	}
	t.nodes[out].parent = grand

	if n.left == out {
		n.left = s
	} else {
		n.right = s
	}
	t.nodes[s].parent = x

	t.refitNode(x)
}

func unionArea(t *bvh, a, b int32) float64 {
	na := &t.nodes[a]
	nb := &t.nodes[b]
	return surfaceArea(minVec3(na.min, nb.min), maxVec3(na.max, nb.max))
}

// query reports every leaf whose fat AABB overlaps [min, max], breadth-first.
func (t *bvh) query(min, max mgl64.Vec3, out []*Body) ([]*Body, error) {
	if t.root == nullNode {
		return out, nil
	}
	q := t.queue
	q.clear()
	if err := q.enqueue(t.root); err != nil {
		return out, err
	}
	for !q.empty() {
		idx := q.dequeue()
		n := &t.nodes[idx]
		if !aabbOverlap(n.min, n.max, min, max) {
			continue
		}
		if n.flag == nodeLeaf {
			out = append(out, n.body)
			continue
		}
		if err := q.enqueue(n.left); err != nil {
			return out, err
		}
		if err := q.enqueue(n.right); err != nil {
			return out, err
		}
	}
	return out, nil
}

// RayHit is one leaf intersected by a trace, with the entry parameter along
// the ray (0 at the origin, 1 at origin+dir).
type RayHit struct {
	Body *Body
	TMin float64
}

// trace walks the tree with a slab test against each AABB expanded by half
// of size, reporting leaves whose entry parameter lies within [0, 1]. dir is
// the full displacement of the ray, not a unit direction.
func (t *bvh) trace(origin, dir, size mgl64.Vec3, out []RayHit) ([]RayHit, error) {
	if t.root == nullNode {
		return out, nil
	}
	invDir := mgl64.Vec3{1.0 / dir.X(), 1.0 / dir.Y(), 1.0 / dir.Z()}
	half := size.Mul(0.5)

	q := t.queue
	q.clear()
	if err := q.enqueue(t.root); err != nil {
		return out, err
	}
	for !q.empty() {
		idx := q.dequeue()
		n := &t.nodes[idx]

		tMin, tMax := slabTest(n.min.Sub(half), n.max.Add(half), origin, invDir)
		if tMax < tMin || tMax < 0 || tMin > 1 {
			continue
		}
		if n.flag == nodeLeaf {
			if tMin >= 0 {
				out = append(out, RayHit{Body: n.body, TMin: tMin})
			}
			continue
		}
		if err := q.enqueue(n.left); err != nil {
			return out, err
		}
		if err := q.enqueue(n.right); err != nil {
			return out, err
		}
	}
	return out, nil
}

// slabTest intersects a ray with an AABB, returning the entry and exit
// parameters. Zero direction components produce ±Inf through invDir, which
// the min/max folding handles.
func slabTest(min, max, origin, invDir mgl64.Vec3) (float64, float64) {
	tMin := math.Inf(-1)
	tMax := math.Inf(1)
	for i := 0; i < 3; i++ {
		t1 := (min[i] - origin[i]) * invDir[i]
		t2 := (max[i] - origin[i]) * invDir[i]
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		if t1 > tMin {
			tMin = t1
		}
		if t2 < tMax {
			tMax = t2
		}
	}
	return tMin, tMax
}

// leafCount walks the tree and counts live leaves. Test and debug helper.
func (t *bvh) leafCount() int {
	if t.root == nullNode {
		return 0
	}
	count := 0
	var walk func(int32)
	walk = func(idx int32) {
		n := &t.nodes[idx]
		if n.flag == nodeLeaf {
			count++
			return
		}
		walk(n.left)
		walk(n.right)
	}
	walk(t.root)
	return count
}
