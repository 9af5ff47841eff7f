package rigid

import (
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestIsCollidingCubes(t *testing.T) {
	a := unitCubeHull(mgl64.Vec3{0, 0, 0})

	cases := []struct {
		center mgl64.Vec3
		want   bool
	}{
		{mgl64.Vec3{0.9, 0, 0}, true},
		{mgl64.Vec3{0, 0.9, 0}, true},
		{mgl64.Vec3{0.9, 0.9, 0.9}, true},
		{mgl64.Vec3{1.1, 0, 0}, false},
		{mgl64.Vec3{0, 0, 1.1}, false},
		{mgl64.Vec3{1.1, 1.1, 1.1}, false},
		{mgl64.Vec3{5, 5, 5}, false},
	}
	for _, tc := range cases {
		b := unitCubeHull(tc.center)
		seed := tc.center
		if got := IsColliding(a.Support, b.Support, seed); got != tc.want {
			t.Errorf("cube at %v: colliding = %v, want %v", tc.center, got, tc.want)
		}
	}
}

func TestIsCollidingRotated(t *testing.T) {
	a := unitCubeHull(mgl64.Vec3{0, 0, 0})

	// Rotated 45 degrees about Z, a cube reaches sqrt(2)/2 along X.
	b := rotatedCubeHull(mgl64.Vec3{1.15, 0, 0}, 0.785398, mgl64.Vec3{0, 0, 1})
	if !IsColliding(a.Support, b.Support, mgl64.Vec3{1, 0, 0}) {
		t.Error("rotated cube at 1.15 should overlap")
	}
	c := rotatedCubeHull(mgl64.Vec3{1.3, 0, 0}, 0.785398, mgl64.Vec3{0, 0, 1})
	if IsColliding(a.Support, c.Support, mgl64.Vec3{1, 0, 0}) {
		t.Error("rotated cube at 1.3 should be clear")
	}
}

func TestIsCollidingContained(t *testing.T) {
	big := NewHull(BoxShape(), CFrame{Rotation: mgl64.Ident3()}, mgl64.Vec3{10, 10, 10})
	small := unitCubeHull(mgl64.Vec3{1, 1, 1})
	if !IsColliding(big.Support, small.Support, mgl64.Vec3{1, 1, 1}) {
		t.Error("contained hull should collide")
	}
}

func TestIsCollidingAgreesWithAABB(t *testing.T) {
	// Axis-aligned cubes let the exact answer come from interval overlap.
	rng := rand.New(rand.NewSource(3))
	a := unitCubeHull(mgl64.Vec3{0, 0, 0})
	for i := 0; i < 200; i++ {
		c := mgl64.Vec3{rng.Float64()*3 - 1.5, rng.Float64()*3 - 1.5, rng.Float64()*3 - 1.5}
		want := c.X() < 1 && c.X() > -1 && c.Y() < 1 && c.Y() > -1 && c.Z() < 1 && c.Z() > -1
		// Skip grazing configurations where either answer is defensible.
		margin := 0.02
		grazing := false
		for k := 0; k < 3; k++ {
			if d := 1 - c[k]; d > -margin && d < margin {
				grazing = true
			}
			if d := 1 + c[k]; d > -margin && d < margin {
				grazing = true
			}
		}
		if grazing {
			continue
		}
		b := unitCubeHull(c)
		if got := IsColliding(a.Support, b.Support, c); got != want {
			t.Errorf("cube at %v: colliding = %v, want %v", c, got, want)
		}
	}
}

func TestClosestSimplex(t *testing.T) {
	a := unitCubeHull(mgl64.Vec3{0, 0, 0})
	b := unitCubeHull(mgl64.Vec3{3, 0, 0})
	support := func(dir mgl64.Vec3) mgl64.Vec3 {
		return minkowskiSupport(a.Support, b.Support, dir)
	}

	pts := ClosestSimplex(support, mgl64.Vec3{3, 0, 0})
	if len(pts) == 0 {
		t.Fatal("empty simplex")
	}
	// Every simplex point lies on the Minkowski difference, which for these
	// cubes spans x in [-4, -2]: nothing should be on the origin side.
	for _, p := range pts {
		if p.X() > -2+1e-9 || p.X() < -4-1e-9 {
			t.Errorf("simplex point %v outside the difference", p)
		}
	}
}
