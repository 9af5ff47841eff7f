package rigid

import (
	"math"
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func testBodyAt(t *testing.T, pos mgl64.Vec3, size mgl64.Vec3) *Body {
	t.Helper()
	b, err := NewDynamicBody(BoxShape(), CFrame{Position: pos, Rotation: mgl64.Ident3()}, size, 1.0)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

// checkTree verifies structural invariants: parent/child links agree, branch
// bounds contain their children, every slot is reached exactly once, and the
// freelist never intersects the tree.
func checkTree(t *testing.T, tr *bvh) {
	t.Helper()
	inTree := make(map[int32]bool)

	if tr.root != nullNode {
		if tr.nodes[tr.root].parent != nullNode {
			t.Fatalf("root %d has parent %d", tr.root, tr.nodes[tr.root].parent)
		}
		var walk func(int32)
		walk = func(idx int32) {
			if inTree[idx] {
				t.Fatalf("node %d reached twice", idx)
			}
			inTree[idx] = true
			n := &tr.nodes[idx]
			if n.flag == nodeLeaf {
				if n.body == nil {
					t.Fatalf("leaf %d has no body", idx)
				}
				return
			}
			for _, c := range [2]int32{n.left, n.right} {
				if c == nullNode {
					t.Fatalf("branch %d has null child", idx)
				}
				cn := &tr.nodes[c]
				if cn.parent != idx {
					t.Fatalf("child %d parent = %d, want %d", c, cn.parent, idx)
				}
				for k := 0; k < 3; k++ {
					if cn.min[k] < n.min[k]-1e-12 || cn.max[k] > n.max[k]+1e-12 {
						t.Fatalf("branch %d does not contain child %d on axis %d", idx, c, k)
					}
				}
			}
			walk(n.left)
			walk(n.right)
		}
		walk(tr.root)
	}

	for idx := tr.freeHead; idx != nullNode; idx = tr.nodes[idx].free {
		if inTree[idx] {
			t.Fatalf("free node %d is still linked in the tree", idx)
		}
	}
}

func bruteQuery(tr *bvh, bodies []*Body, min, max mgl64.Vec3) map[*Body]bool {
	want := make(map[*Body]bool)
	for _, b := range bodies {
		n := &tr.nodes[b.node]
		if aabbOverlap(n.min, n.max, min, max) {
			want[b] = true
		}
	}
	return want
}

func TestBVHInsertQuery(t *testing.T) {
	tr := newBVH(0.1, 12)
	rng := rand.New(rand.NewSource(7))

	var bodies []*Body
	for i := 0; i < 200; i++ {
		pos := mgl64.Vec3{rng.Float64()*40 - 20, rng.Float64()*40 - 20, rng.Float64()*40 - 20}
		b := testBodyAt(t, pos, mgl64.Vec3{1, 1, 1})
		b.node = tr.insert(b)
		bodies = append(bodies, b)
	}
	checkTree(t, tr)
	if got := tr.leafCount(); got != 200 {
		t.Fatalf("leafCount = %d, want 200", got)
	}

	for trial := 0; trial < 50; trial++ {
		c := mgl64.Vec3{rng.Float64()*40 - 20, rng.Float64()*40 - 20, rng.Float64()*40 - 20}
		h := mgl64.Vec3{rng.Float64() * 5, rng.Float64() * 5, rng.Float64() * 5}
		min, max := c.Sub(h), c.Add(h)

		found, err := tr.query(min, max, nil)
		if err != nil {
			t.Fatal(err)
		}
		want := bruteQuery(tr, bodies, min, max)
		if len(found) != len(want) {
			t.Fatalf("trial %d: query returned %d, brute force %d", trial, len(found), len(want))
		}
		for _, b := range found {
			if !want[b] {
				t.Fatalf("trial %d: query returned body not in brute-force set", trial)
			}
		}
	}
}

func TestBVHQueryOverflow(t *testing.T) {
	tr := newBVH(0.1, 0) // capacity 1: any branch expansion overflows
	for i := 0; i < 2; i++ {
		b := testBodyAt(t, mgl64.Vec3{float64(i), 0, 0}, mgl64.Vec3{1, 1, 1})
		b.node = tr.insert(b)
	}
	if _, err := tr.query(mgl64.Vec3{-100, -100, -100}, mgl64.Vec3{100, 100, 100}, nil); err == nil {
		t.Fatal("expected queue overflow on a tiny traversal queue")
	}
}

func TestBVHRemove(t *testing.T) {
	tr := newBVH(0.1, 12)
	var bodies []*Body
	for i := 0; i < 20; i++ {
		b := testBodyAt(t, mgl64.Vec3{float64(i) * 3, 0, 0}, mgl64.Vec3{1, 1, 1})
		b.node = tr.insert(b)
		bodies = append(bodies, b)
	}

	for i, b := range bodies {
		if i%2 == 0 {
			tr.remove(b.node)
			b.node = nullNode
		}
	}
	checkTree(t, tr)
	if got := tr.leafCount(); got != 10 {
		t.Fatalf("leafCount = %d, want 10", got)
	}

	found, err := tr.query(mgl64.Vec3{-1000, -1000, -1000}, mgl64.Vec3{1000, 1000, 1000}, nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, b := range found {
		if b.node == nullNode {
			t.Fatal("removed body still reachable by query")
		}
	}

	for _, b := range bodies {
		if b.node != nullNode {
			tr.remove(b.node)
			b.node = nullNode
		}
	}
	if tr.root != nullNode {
		t.Fatalf("root = %d after removing every leaf, want null", tr.root)
	}
}

func TestBVHUpdateReseats(t *testing.T) {
	tr := newBVH(0.1, 12)
	b := testBodyAt(t, mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 1, 1})
	b.node = tr.insert(b)
	anchor := testBodyAt(t, mgl64.Vec3{50, 0, 0}, mgl64.Vec3{1, 1, 1})
	anchor.node = tr.insert(anchor)

	// Small drift stays inside the fat AABB.
	b.SetTransform(CFrame{Position: mgl64.Vec3{0.05, 0, 0}, Rotation: mgl64.Ident3()})
	if tr.update(b.node) {
		t.Error("update moved a leaf that never left its fat bounds")
	}

	// A large move must re-seat.
	b.SetTransform(CFrame{Position: mgl64.Vec3{10, 0, 0}, Rotation: mgl64.Ident3()})
	if !tr.update(b.node) {
		t.Error("update did not re-seat after a large move")
	}
	checkTree(t, tr)

	found, err := tr.query(mgl64.Vec3{9, -1, -1}, mgl64.Vec3{11, 1, 1}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 1 || found[0] != b {
		t.Fatalf("query at new position found %d bodies", len(found))
	}
}

func TestBVHBulkBuild(t *testing.T) {
	tr := newBVH(0.1, 12)
	rng := rand.New(rand.NewSource(42))

	var bodies []*Body
	var leaves []int32
	for i := 0; i < 300; i++ {
		pos := mgl64.Vec3{rng.Float64() * 100, rng.Float64() * 100, rng.Float64() * 100}
		b := testBodyAt(t, pos, mgl64.Vec3{1, 1, 1})
		leaf := tr.allocNode()
		min, max := b.fatAABB(tr.pad)
		tr.setLeaf(leaf, b, min, max)
		leaves = append(leaves, leaf)
		bodies = append(bodies, b)
	}
	if err := tr.build(leaves); err != nil {
		t.Fatal(err)
	}
	for _, leaf := range leaves {
		tr.nodes[leaf].body.node = leaf
	}
	checkTree(t, tr)
	if got := tr.leafCount(); got != 300 {
		t.Fatalf("leafCount = %d, want 300", got)
	}

	tr.bonsaiPrune()
	for i := range tr.nodes {
		n := &tr.nodes[i]
		if n.flag == nodeLeaf && n.body != nil {
			n.body.node = int32(i)
		}
	}
	checkTree(t, tr)
	if got := tr.leafCount(); got != 300 {
		t.Fatalf("leafCount after prune = %d, want 300", got)
	}

	for trial := 0; trial < 30; trial++ {
		c := mgl64.Vec3{rng.Float64() * 100, rng.Float64() * 100, rng.Float64() * 100}
		min, max := c.Sub(mgl64.Vec3{8, 8, 8}), c.Add(mgl64.Vec3{8, 8, 8})
		found, err := tr.query(min, max, nil)
		if err != nil {
			t.Fatal(err)
		}
		want := bruteQuery(tr, bodies, min, max)
		if len(found) != len(want) {
			t.Fatalf("trial %d: query %d, brute force %d", trial, len(found), len(want))
		}
	}
}

func TestBVHBuildEmpty(t *testing.T) {
	tr := newBVH(0.1, 12)
	if err := tr.build(nil); err != ErrEmptyPartition {
		t.Fatalf("got %v, want ErrEmptyPartition", err)
	}
}

func TestBVHTrace(t *testing.T) {
	tr := newBVH(0, 12) // no pad, so boxes are exact
	floor := NewStaticBody(BoxShape(), CFrame{Position: mgl64.Vec3{0, 0, 0}, Rotation: mgl64.Ident3()}, mgl64.Vec3{10, 0, 10})
	floor.node = tr.insert(floor)
	aside := NewStaticBody(BoxShape(), CFrame{Position: mgl64.Vec3{100, 0, 0}, Rotation: mgl64.Ident3()}, mgl64.Vec3{1, 1, 1})
	aside.node = tr.insert(aside)

	hits, err := tr.trace(mgl64.Vec3{0, 10, 0}, mgl64.Vec3{0, -20, 0}, mgl64.Vec3{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Fatalf("hits = %d, want 1", len(hits))
	}
	if hits[0].Body != floor {
		t.Fatal("trace hit the wrong body")
	}
	if math.Abs(hits[0].TMin-0.5) > 1e-9 {
		t.Errorf("TMin = %v, want 0.5", hits[0].TMin)
	}

	// Ray pointing away.
	hits, err = tr.trace(mgl64.Vec3{0, 10, 0}, mgl64.Vec3{0, 20, 0}, mgl64.Vec3{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 0 {
		t.Fatalf("upward ray hits = %d, want 0", len(hits))
	}

	// Expanding by size turns a near miss into a hit.
	hits, err = tr.trace(mgl64.Vec3{5.4, 10, 0}, mgl64.Vec3{0, -20, 0}, mgl64.Vec3{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 0 {
		t.Fatalf("near miss hits = %d, want 0", len(hits))
	}
	hits, err = tr.trace(mgl64.Vec3{5.4, 10, 0}, mgl64.Vec3{0, -20, 0}, mgl64.Vec3{1, 1, 1}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Fatalf("expanded trace hits = %d, want 1", len(hits))
	}
}

func TestBVHFreelistReuse(t *testing.T) {
	tr := newBVH(0.1, 12)
	b := testBodyAt(t, mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 1, 1})
	b.node = tr.insert(b)
	c := testBodyAt(t, mgl64.Vec3{5, 0, 0}, mgl64.Vec3{1, 1, 1})
	c.node = tr.insert(c)

	before := len(tr.nodes)
	tr.remove(c.node)
	d := testBodyAt(t, mgl64.Vec3{-5, 0, 0}, mgl64.Vec3{1, 1, 1})
	d.node = tr.insert(d)
	if len(tr.nodes) != before {
		t.Errorf("slab grew from %d to %d despite free slots", before, len(tr.nodes))
	}
	checkTree(t, tr)
}
