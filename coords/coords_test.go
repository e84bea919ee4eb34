package coords

import (
	"math"
	"testing"
)

func TestTransformChain(t *testing.T) {
	m := Scale(2, 2).Multiply(Translate(10, 5))
	p := m.Transform(Point{X: 3, Y: 4})
	if p.X != 16 || p.Y != 13 {
		t.Errorf("point = %+v", p)
	}
}

func TestInverseRoundTrip(t *testing.T) {
	m := Translate(7, -3).Multiply(Rotate(math.Pi / 6)).Multiply(Scale(1.5, 2))
	inv, err := m.Inverse()
	if err != nil {
		t.Fatal(err)
	}
	p := Point{X: 12.5, Y: -8}
	q := inv.Transform(m.Transform(p))
	if math.Abs(q.X-p.X) > 1e-9 || math.Abs(q.Y-p.Y) > 1e-9 {
		t.Errorf("round trip %+v -> %+v", p, q)
	}
}

func TestSingularMatrix(t *testing.T) {
	if _, err := (Matrix{0, 0, 0, 0, 1, 1}).Inverse(); err == nil {
		t.Error("singular matrix inverted")
	}
}

func TestIdentity(t *testing.T) {
	p := Point{X: 42, Y: -7}
	if got := Identity().Transform(p); got != p {
		t.Errorf("identity moved the point: %+v", got)
	}
}
