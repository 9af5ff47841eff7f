package rigid

import "math"

const (
	sahBins = 8
	// Branches whose bounds cost at most this fraction of the root's are
	// dissolved and rebuilt by the incremental insert heuristic.
	bonsaiPruneRatio = 0.05
	// Axes flatter than this contribute no useful bins.
	buildAxisMinExtent = 1e-2
)

type buildRange struct {
	node int32
	lo   int
	hi   int
}

// build bulk-loads the tree from pre-allocated leaf slots using a binned
// surface-area heuristic. The leaves slice is partitioned in place. Returns
// ErrEmptyPartition when called with no leaves.
func (t *bvh) build(leaves []int32) error {
	if len(leaves) == 0 {
		return ErrEmptyPartition
	}
	if len(leaves) == 1 {
		t.root = leaves[0]
		t.nodes[leaves[0]].parent = nullNode
		return nil
	}

	t.root = t.allocNode()
	t.nodes[t.root].flag = nodeBranch

	work := []buildRange{{node: t.root, lo: 0, hi: len(leaves) - 1}}
	for len(work) > 0 {
		rng := work[0]
		work = work[1:]

		n := &t.nodes[rng.node]
		n.min = t.nodes[leaves[rng.lo]].min
		n.max = t.nodes[leaves[rng.lo]].max
		for i := rng.lo + 1; i <= rng.hi; i++ {
			ln := &t.nodes[leaves[i]]
			n.min = minVec3(n.min, ln.min)
			n.max = maxVec3(n.max, ln.max)
		}
		n.center = n.min.Add(n.max).Mul(0.5)

		mid := t.partitionSAH(leaves, rng.lo, rng.hi)
		if mid <= rng.lo || mid > rng.hi {
			mid = (rng.lo+rng.hi)/2 + 1
		}

		attach := func(lo, hi int) int32 {
			if lo == hi {
				t.nodes[leaves[lo]].parent = rng.node
				return leaves[lo]
			}
			child := t.allocNode()
			t.nodes[child].flag = nodeBranch
			t.nodes[child].parent = rng.node
			work = append(work, buildRange{node: child, lo: lo, hi: hi})
			return child
		}
		// attach may grow the slab, so re-take the node pointer.
		left := attach(rng.lo, mid-1)
		right := attach(mid, rng.hi)
		t.nodes[rng.node].left = left
		t.nodes[rng.node].right = right
	}
	return nil
}

// partitionSAH bins leaf centers along each sufficiently wide axis, sweeps
// bin boundaries for the cheapest split, and partitions leaves[lo..hi] in
// place. Returns the index of the first right-side leaf, or lo when every
// axis is too flat to bin.
func (t *bvh) partitionSAH(leaves []int32, lo, hi int) int {
	count := hi - lo + 1

	bestCost := math.Inf(1)
	bestAxis := -1
	bestSplit := 0

	var minProj, extent [3]float64
	for axis := 0; axis < 3; axis++ {
		minP := math.Inf(1)
		maxP := math.Inf(-1)
		for i := lo; i <= hi; i++ {
			c := t.nodes[leaves[i]].center[axis]
			minP = math.Min(minP, c)
			maxP = math.Max(maxP, c)
		}
		minProj[axis] = minP
		extent[axis] = maxP - minP
		if extent[axis] <= buildAxisMinExtent {
			continue
		}

		var binMin, binMax [sahBins][3]float64
		var binCount [sahBins]int
		for b := range binMin {
			for k := 0; k < 3; k++ {
				binMin[b][k] = math.Inf(1)
				binMax[b][k] = math.Inf(-1)
			}
		}
		for i := lo; i <= hi; i++ {
			ln := &t.nodes[leaves[i]]
			b := t.binIndex(ln.center[axis], minProj[axis], extent[axis])
			binCount[b]++
			for k := 0; k < 3; k++ {
				binMin[b][k] = math.Min(binMin[b][k], ln.min[k])
				binMax[b][k] = math.Max(binMax[b][k], ln.max[k])
			}
		}

		// Left-to-right prefix costs, then a right-to-left sweep combining
		// them with the suffix.
		var leftArea [sahBins]float64
		var leftCount [sahBins]int
		accMin := [3]float64{math.Inf(1), math.Inf(1), math.Inf(1)}
		accMax := [3]float64{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
		n := 0
		for b := 0; b < sahBins-1; b++ {
			for k := 0; k < 3; k++ {
				accMin[k] = math.Min(accMin[k], binMin[b][k])
				accMax[k] = math.Max(accMax[k], binMax[b][k])
			}
			n += binCount[b]
			leftArea[b] = boundsArea(accMin, accMax)
			leftCount[b] = n
		}

		accMin = [3]float64{math.Inf(1), math.Inf(1), math.Inf(1)}
		accMax = [3]float64{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
		n = 0
		for b := sahBins - 1; b >= 1; b-- {
			for k := 0; k < 3; k++ {
				accMin[k] = math.Min(accMin[k], binMin[b][k])
				accMax[k] = math.Max(accMax[k], binMax[b][k])
			}
			n += binCount[b]
			nl := leftCount[b-1]
			if nl == 0 || n == 0 {
				continue
			}
			cost := 2*leftArea[b-1]*float64(nl) + 2*boundsArea(accMin, accMax)*float64(n)
			if cost < bestCost {
				bestCost = cost
				bestAxis = axis
				bestSplit = b
			}
		}
	}

	if bestAxis < 0 || count < 2 {
		return lo
	}

	// Two-pointer partition along the chosen bin boundary.
	i, j := lo, hi
	for i <= j {
		for i <= j && t.binIndex(t.nodes[leaves[i]].center[bestAxis], minProj[bestAxis], extent[bestAxis]) < bestSplit {
			i++
		}
		for i <= j && t.binIndex(t.nodes[leaves[j]].center[bestAxis], minProj[bestAxis], extent[bestAxis]) >= bestSplit {
			j--
		}
		if i < j {
			leaves[i], leaves[j] = leaves[j], leaves[i]
			i++
			j--
		}
	}
	return i
}

func (t *bvh) binIndex(c, minProj, extent float64) int {
	b := int((c - minProj) * float64(sahBins-1) / extent)
	if b < 0 {
		b = 0
	}
	if b >= sahBins {
		b = sahBins - 1
	}
	return b
}

func boundsArea(min, max [3]float64) float64 {
	dx := max[0] - min[0]
	dy := max[1] - min[1]
	dz := max[2] - min[2]
	return dx*dy + dx*dz + dy*dz
}

// bonsaiPrune rebalances after a bulk build: one bottom-up rotation sweep,
// then every branch whose bounds cost at most 5% of the root's is dissolved
// and its leaves fed back through the incremental insert path. The upper
// levels keep their dense SAH partition; the cheap subtrees get rebuilt by
// the insertion heuristic.
func (t *bvh) bonsaiPrune() {
	if t.root == nullNode || t.nodes[t.root].flag == nodeLeaf {
		return
	}

	t.rotateBottomUp(t.root)

	threshold := bonsaiPruneRatio * surfaceArea(t.nodes[t.root].min, t.nodes[t.root].max)

	// Collect prune roots first; pruning reshapes the tree under us.
	var pruneRoots []int32
	stack := []int32{t.root}
	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := &t.nodes[idx]
		for _, c := range [2]int32{n.left, n.right} {
			child := &t.nodes[c]
			if child.flag != nodeBranch {
				continue
			}
			if surfaceArea(child.min, child.max) > threshold {
				stack = append(stack, c)
			} else {
				pruneRoots = append(pruneRoots, c)
			}
		}
	}

	for _, b := range pruneRoots {
		t.pruneSubtree(b)
	}
}

// rotateBottomUp applies rotate to every branch in post-order.
func (t *bvh) rotateBottomUp(idx int32) {
	n := &t.nodes[idx]
	if n.flag != nodeBranch {
		return
	}
	t.rotateBottomUp(n.left)
	t.rotateBottomUp(n.right)
	t.rotate(idx)
}

// pruneSubtree frees branch and all its internal nodes, promotes the first
// leaf into branch's slot, and re-inserts the remaining leaves one at a time.
func (t *bvh) pruneSubtree(branch int32) {
	var leafSlots, internals []int32
	stack := []int32{branch}
	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := &t.nodes[idx]
		if n.flag == nodeLeaf {
			leafSlots = append(leafSlots, idx)
			continue
		}
		internals = append(internals, idx)
		stack = append(stack, n.left, n.right)
	}

	parent := t.nodes[branch].parent
	first := leafSlots[0]
	t.nodes[first].parent = parent
	if parent == nullNode {
		t.root = first
	} else if t.nodes[parent].left == branch {
		t.nodes[parent].left = first
	} else {
		t.nodes[parent].right = first
	}
	for _, idx := range internals {
		t.freeNode(idx)
	}
	t.refitUpward(parent)

	for _, leaf := range leafSlots[1:] {
		t.insertLeaf(leaf)
	}
}
