package epipolar

import (
	"math"
	"math/rand"
	"testing"
)

func TestFixedScale_Transforms(t *testing.T) {
	t1, t2 := FixedScale{Scale: 0.002}.Transforms(nil)
	if t1 != Diag(0.002, 0.002, 1) || t2 != t1 {
		t.Errorf("transforms = %v, %v", t1, t2)
	}
	t1, _ = FixedScale{}.Transforms(nil)
	if t1 != Diag(DefaultScale, DefaultScale, 1) {
		t.Errorf("zero scale should fall back to default, got %v", t1)
	}
}

func TestIsotropic_Transforms(t *testing.T) {
	pairs := newTestScene().inliers(rand.New(rand.NewSource(2)), 30, 0)
	t1, t2 := Isotropic{}.Transforms(pairs)
	norm := normalizePairs(pairs, t1, t2)

	var cx1, cy1, cx2, cy2, d1, d2 float64
	for _, c := range norm {
		cx1 += c.X1
		cy1 += c.Y1
		cx2 += c.X2
		cy2 += c.Y2
		d1 += math.Hypot(c.X1, c.Y1)
		d2 += math.Hypot(c.X2, c.Y2)
	}
	n := float64(len(norm))
	for name, v := range map[string]float64{"cx1": cx1, "cy1": cy1, "cx2": cx2, "cy2": cy2} {
		if !almostEqual(v/n, 0, 1e-9) {
			t.Errorf("%s = %g, want 0", name, v/n)
		}
	}
	if !almostEqual(d1/n, math.Sqrt2, 1e-9) || !almostEqual(d2/n, math.Sqrt2, 1e-9) {
		t.Errorf("mean distances = %g, %g, want sqrt(2)", d1/n, d2/n)
	}
}

func TestIsotropic_CoincidentPoints(t *testing.T) {
	pairs := []Correspondence{{5, 5, 1, 1}, {5, 5, 1, 1}}
	t1, _ := Isotropic{}.Transforms(pairs)
	if t1[0][0] != 1 || t1[0][2] != -5 || t1[1][2] != -5 {
		t.Errorf("coincident points should translate only, got %v", t1)
	}
}

func TestNewNormalizer(t *testing.T) {
	tests := []struct {
		name    string
		want    Normalizer
		wantErr bool
	}{
		{"", FixedScale{Scale: 0.01}, false},
		{"fixed", FixedScale{Scale: 0.01}, false},
		{"isotropic", Isotropic{}, false},
		{"hartley", Isotropic{}, false},
		{"bogus", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewNormalizer(tt.name, 0.01)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestDenormalize_PreservesConstraint(t *testing.T) {
	s := newTestScene()
	pairs := s.inliers(rand.New(rand.NewSource(9)), 10, 0)
	t1, t2 := Isotropic{}.Transforms(pairs)

	// F expressed in normalized coordinates: fn = t2⁻ᵗ F t1⁻¹. Mapping back
	// must give F again.
	inv := func(m Matrix3) Matrix3 {
		s := m[0][0]
		return Matrix3{{1 / s, 0, -m[0][2] / s}, {0, 1 / s, -m[1][2] / s}, {0, 0, 1}}
	}
	fn := inv(t2).T().Mul(s.F).Mul(inv(t1))
	assertSameModel(t, Denormalize(fn, t1, t2), s.F, 1e-9)
}
