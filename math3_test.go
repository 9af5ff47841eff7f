package rigid

import (
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestInverse3Roundtrip(t *testing.T) {
	cases := []mgl64.Mat3{
		mgl64.Ident3(),
		mgl64.Diag3(mgl64.Vec3{2, 3, 4}),
		{2, 1, 0, 1, 3, 1, 0, 1, 4},
		mgl64.QuatRotate(0.7, mgl64.Vec3{0, 1, 0}.Normalize()).Mat4().Mat3(),
	}
	for i, m := range cases {
		inv, err := Inverse3(m)
		if err != nil {
			t.Fatalf("case %d: unexpected error %v", i, err)
		}
		prod := m.Mul3(inv)
		ident := mgl64.Ident3()
		for k := range prod {
			if math.Abs(prod[k]-ident[k]) > 1e-5 {
				t.Errorf("case %d: M*Minv[%d] = %v, want %v", i, k, prod[k], ident[k])
			}
		}
	}
}

func TestInverse3Singular(t *testing.T) {
	_, err := Inverse3(mgl64.Mat3{})
	if !errors.Is(err, ErrSingularMatrix) {
		t.Fatalf("got %v, want ErrSingularMatrix", err)
	}

	// Rank-deficient but nonzero.
	flat := mgl64.Diag3(mgl64.Vec3{1, 1, 0})
	if _, err := Inverse3(flat); !errors.Is(err, ErrSingularMatrix) {
		t.Fatalf("got %v, want ErrSingularMatrix", err)
	}
}

func TestOuter3(t *testing.T) {
	a := mgl64.Vec3{1, 2, 3}
	b := mgl64.Vec3{4, 5, 6}
	m := Outer3(a, b)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			got := m.At(i, j)
			want := a[i] * b[j]
			if math.Abs(got-want) > 1e-12 {
				t.Errorf("outer[%d,%d] = %v, want %v", i, j, got, want)
			}
		}
	}
}

func TestCFrameMul(t *testing.T) {
	rot := mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 0, 1}).Mat4().Mat3()
	cf := CFrame{Position: mgl64.Vec3{10, 0, 0}, Rotation: rot}

	got := cf.Mul(mgl64.Vec3{1, 0, 0})
	want := mgl64.Vec3{10, 1, 0}
	if got.Sub(want).Len() > 1e-9 {
		t.Errorf("Mul = %v, want %v", got, want)
	}

	dir := cf.MulVec(mgl64.Vec3{1, 0, 0})
	if dir.Sub(mgl64.Vec3{0, 1, 0}).Len() > 1e-9 {
		t.Errorf("MulVec = %v, want (0,1,0)", dir)
	}
}

func TestCFrameCompose(t *testing.T) {
	a := CFrame{Position: mgl64.Vec3{1, 0, 0}, Rotation: mgl64.Ident3()}
	rot := mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 1, 0}).Mat4().Mat3()
	b := CFrame{Position: mgl64.Vec3{0, 2, 0}, Rotation: rot}

	ab := a.Compose(b)
	p := ab.Mul(mgl64.Vec3{0, 0, 0})
	want := a.Mul(b.Mul(mgl64.Vec3{0, 0, 0}))
	if p.Sub(want).Len() > 1e-9 {
		t.Errorf("compose position = %v, want %v", p, want)
	}
}

func TestQuatFromMat3Roundtrip(t *testing.T) {
	q := mgl64.QuatRotate(1.1, mgl64.Vec3{1, 2, 0.5}.Normalize())
	m := q.Mat4().Mat3()
	back := QuatFromMat3(m).Mat4().Mat3()
	for i := range m {
		if math.Abs(m[i]-back[i]) > 1e-9 {
			t.Fatalf("roundtrip mat[%d] = %v, want %v", i, back[i], m[i])
		}
	}
}
