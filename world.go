package rigid

import (
	"github.com/go-gl/mathgl/mgl64"
)

// World owns the simulation: the registered bodies, the broadphase tree, and
// the per-step contact scratch. A step is one synchronous sequence; callers
// must not mutate bodies while Step runs.
type World struct {
	cfg   Config
	log   Logger
	debug DebugSink

	bodies []*Body
	tree   *bvh

	// Reused across steps to keep the hot path from reallocating.
	pairScratch    []*Body
	contactScratch []*Contact
}

// NewWorld builds an empty world from cfg.
func NewWorld(cfg Config) *World {
	return &World{
		cfg:  cfg,
		log:  NewNopLogger(),
		tree: newBVH(cfg.AABBPad, cfg.QueuePow),
	}
}

// SetLogger installs a logger. Passing nil restores the silent default.
func (w *World) SetLogger(l Logger) {
	if l == nil {
		l = NewNopLogger()
	}
	w.log = l
}

// SetDebugSink routes debug geometry to sink. Passing nil disables emission.
func (w *World) SetDebugSink(sink DebugSink) {
	w.debug = sink
}

// Bodies returns the live bodies. The slice is owned by the world.
func (w *World) Bodies() []*Body {
	return w.bodies
}

// AddStaticBody registers an immovable body.
func (w *World) AddStaticBody(shape *Shape, cf CFrame, size mgl64.Vec3) *Body {
	b := NewStaticBody(shape, cf, size)
	w.register(b)
	return b
}

// AddDynamicBody registers a moving body with mass from volume and density.
func (w *World) AddDynamicBody(shape *Shape, cf CFrame, size mgl64.Vec3, density float64) (*Body, error) {
	b, err := NewDynamicBody(shape, cf, size, density)
	if err != nil {
		return nil, err
	}
	w.register(b)
	return b, nil
}

func (w *World) register(b *Body) {
	b.node = w.tree.insert(b)
	w.bodies = append(w.bodies, b)
	w.log.Debugf("body %s registered, %d total", b.ID, len(w.bodies))
}

// RemoveBody unregisters a body and frees its broadphase leaf.
func (w *World) RemoveBody(b *Body) {
	if b.node == nullNode {
		return
	}
	w.tree.remove(b.node)
	b.node = nullNode
	for i, other := range w.bodies {
		if other == b {
			last := len(w.bodies) - 1
			w.bodies[i] = w.bodies[last]
			w.bodies = w.bodies[:last]
			break
		}
	}
}

// Rebuild replaces the broadphase with a bulk binned-SAH build over every
// registered body, then runs the bonsai re-pruning pass. Worth calling after
// loading a scene; incremental inserts take over from there.
func (w *World) Rebuild() error {
	if len(w.bodies) == 0 {
		return nil
	}
	tree := newBVH(w.cfg.AABBPad, w.cfg.QueuePow)
	leaves := make([]int32, len(w.bodies))
	for i, b := range w.bodies {
		leaf := tree.allocNode()
		min, max := b.fatAABB(tree.pad)
		tree.setLeaf(leaf, b, min, max)
		leaves[i] = leaf
	}
	if err := tree.build(leaves); err != nil {
		return err
	}
	tree.bonsaiPrune()
	// build permuted the leaves slice; read the slots back from the tree.
	for _, leaf := range leaves {
		tree.nodes[leaf].body.node = leaf
	}
	w.tree = tree
	return nil
}

// Raycast traces a displacement ray against the broadphase, optionally
// expanding every box by half of size. Hits carry the entry parameter along
// dir; dir is the full sweep, so parameters lie in [0, 1].
func (w *World) Raycast(origin, dir, size mgl64.Vec3) ([]RayHit, error) {
	return w.tree.trace(origin, dir, size, nil)
}

// OverlapBox reports every body whose broadphase bounds overlap [min, max].
func (w *World) OverlapBox(min, max mgl64.Vec3) ([]*Body, error) {
	return w.tree.query(min, max, nil)
}

// Step advances the simulation by dt seconds: broadphase refit, pair query,
// force integration, narrowphase, the sequential-impulse solve, and velocity
// integration. iterations <= 0 falls back to the configured count. On error
// the step aborts before any body state changes.
func (w *World) Step(dt float64, iterations int) error {
	if iterations <= 0 {
		iterations = w.cfg.SolverIterations
	}

	// Broadphase first: re-seat leaves whose bodies escaped their fat AABB,
	// then collect candidate pairs. Queries can overflow the traversal
	// queue, and at this point no body has been touched.
	for _, b := range w.bodies {
		if !b.Static() && !b.Sleeping() {
			w.tree.update(b.node)
		}
	}

	pairs, err := w.collectPairs()
	if err != nil {
		return err
	}

	gravity := w.cfg.GravityVec()
	for _, b := range w.bodies {
		b.integrateForces(dt, gravity)
	}

	contacts := w.narrowphase(pairs, dt)

	SolveContacts(contacts, iterations)

	for _, b := range w.bodies {
		b.integrateVelocities(dt)
	}

	w.updateSleep(dt)
	w.emitDebug(contacts)
	return nil
}

type bodyPair struct {
	a, b *Body
}

// collectPairs queries the tree around every awake dynamic body and returns
// each overlapping pair once, ordered by leaf slot for determinism.
func (w *World) collectPairs() ([]bodyPair, error) {
	var pairs []bodyPair
	seen := make(map[[2]int32]struct{})

	for _, a := range w.bodies {
		if a.Static() || a.Sleeping() {
			continue
		}
		w.pairScratch = w.pairScratch[:0]
		found, err := w.tree.query(a.AABBMin, a.AABBMax, w.pairScratch)
		if err != nil {
			return nil, err
		}
		w.pairScratch = found

		for _, b := range found {
			if b == a {
				continue
			}
			key := [2]int32{a.node, b.node}
			first, second := a, b
			if key[0] > key[1] {
				key[0], key[1] = key[1], key[0]
				first, second = b, a
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			pairs = append(pairs, bodyPair{a: first, b: second})
		}
	}
	return pairs, nil
}

// narrowphase runs GJK then SAT on each candidate pair and expands surviving
// manifolds into contacts. A touching pair wakes a sleeping participant.
func (w *World) narrowphase(pairs []bodyPair, dt float64) []*Contact {
	contacts := w.contactScratch[:0]

	for _, pr := range pairs {
		a, b := pr.a, pr.b

		seed := b.Hull.Center().Sub(a.Hull.Center())
		if !IsColliding(a.Hull.Support, b.Hull.Support, seed) {
			continue
		}

		manifold, ok := Collide(a.Hull, b.Hull)
		if !ok {
			continue
		}

		if a.Sleeping() {
			a.Wake()
		}
		if b.Sleeping() {
			b.Wake()
		}

		for _, p := range manifold.Points {
			contacts = append(contacts,
				NewContact(a, b, p, manifold.Normal, dt, w.cfg.BaumgarteFactor, w.cfg.SlopPenetration))
		}
	}

	w.contactScratch = contacts
	return contacts
}

// updateSleep advances idle timers on slow bodies and puts them to sleep
// once they have been slow for long enough.
func (w *World) updateSleep(dt float64) {
	if w.cfg.SleepTime <= 0 {
		return
	}
	thresholdSq := w.cfg.SleepThreshold * w.cfg.SleepThreshold
	for _, b := range w.bodies {
		if b.Static() || b.Sleeping() {
			continue
		}
		if b.Velocity.LenSqr() < thresholdSq && b.AngularVelocity.LenSqr() < thresholdSq {
			b.SleepTimer += dt
			if b.SleepTimer >= w.cfg.SleepTime {
				b.sleep()
				w.log.Debugf("body %s sleeping", b.ID)
			}
		} else {
			b.SleepTimer = 0
		}
	}
}

// emitDebug forwards contact points, normals, and body bounds to the host's
// sink.
func (w *World) emitDebug(contacts []*Contact) {
	if w.debug == nil {
		return
	}
	for _, c := range contacts {
		p := c.A.Position.Add(c.RA)
		w.debug.Gizmo(NewGizmoPoint(p, gizmoContactColor))
		w.debug.Gizmo(NewGizmoLine(p, p.Add(c.Normal), gizmoNormalColor))
	}
	for _, b := range w.bodies {
		center := b.AABBMin.Add(b.AABBMax).Mul(0.5)
		w.debug.Gizmo(NewGizmoCube(center, b.AABBMax.Sub(b.AABBMin), gizmoAABBColor))
	}
}
