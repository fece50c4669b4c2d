package polygon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	square = [][3]float64{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}}

	// L-shape in the xz plane, reflex corner at index 3
	lShape = [][3]float64{
		{0, 0, 0}, {2, 0, 0}, {2, 0, 1}, {1, 0, 1}, {1, 0, 2}, {0, 0, 2},
	}

	// arrow head, reflex corner at index 2
	arrow = [][3]float64{{0, 0, 0}, {2, 1, 0}, {0.5, 0.5, 0}, {1, 2, 0}}
)

func reversed(poly [][3]float64) [][3]float64 {
	rev := make([][3]float64, len(poly))
	for i, p := range poly {
		rev[len(poly)-1-i] = p
	}
	return rev
}

// tilted lifts the xz L-shape onto the plane y = x/2 + z/4.
func tilted() [][3]float64 {
	out := make([][3]float64, len(lShape))
	for i, p := range lShape {
		out[i] = [3]float64{p[0], p[0]/2 + p[2]/4, p[2]}
	}
	return out
}

func triNormal(poly [][3]float64, a, b, c int) r3.Vec {
	pa := r3.Vec{X: poly[a][0], Y: poly[a][1], Z: poly[a][2]}
	pb := r3.Vec{X: poly[b][0], Y: poly[b][1], Z: poly[b][2]}
	pc := r3.Vec{X: poly[c][0], Y: poly[c][1], Z: poly[c][2]}
	return r3.Cross(r3.Sub(pb, pa), r3.Sub(pc, pa))
}

func triArea(poly [][3]float64, tris []int) float64 {
	area := 0.0
	for t := 0; t < len(tris); t += 3 {
		area += r3.Norm(triNormal(poly, tris[t], tris[t+1], tris[t+2])) / 2
	}
	return area
}

func TestIsConvex(t *testing.T) {
	var ec EarClipper

	tests := []struct {
		name string
		poly [][3]float64
		want bool
	}{
		{"triangle", square[:3], true},
		{"square", square, true},
		{"l-shape", lShape, false},
		{"arrow", arrow, false},
		{"collinear corner", [][3]float64{{0, 0, 0}, {1, 0, 0}, {2, 0, 0}, {2, 1, 0}, {0, 1, 0}}, true},
		{"degenerate", [][3]float64{{0, 0, 0}, {1, 0, 0}, {2, 0, 0}, {3, 0, 0}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ec.IsConvex(tt.poly))
		})
	}
}

func TestIsConvexReversedWinding(t *testing.T) {
	var ec EarClipper
	assert.False(t, ec.IsConvex(reversed(lShape)))
}

func TestTriangulateKeepsWinding(t *testing.T) {
	var ec EarClipper

	for name, poly := range map[string][][3]float64{
		"square":           square,
		"l-shape":          lShape,
		"l-shape reversed": reversed(lShape),
		"arrow":            arrow,
		"arrow reversed":   reversed(arrow),
		"tilted l-shape":   tilted(),
	} {
		t.Run(name, func(t *testing.T) {
			tris := ec.Triangulate(poly)
			require.Len(t, tris, 3*(len(poly)-2))

			n := Normal(poly)
			for i := 0; i < len(tris); i += 3 {
				assert.Positive(t, r3.Dot(triNormal(poly, tris[i], tris[i+1], tris[i+2]), n),
					"triangle %d flipped", i/3)
			}
		})
	}
}

func TestTriangulateCoversArea(t *testing.T) {
	var ec EarClipper

	tris := ec.Triangulate(lShape)
	require.NotNil(t, tris)
	assert.InDelta(t, 3.0, triArea(lShape, tris), 1e-9)

	used := make(map[int]bool)
	for _, k := range tris {
		used[k] = true
	}
	assert.Len(t, used, len(lShape))
}

func TestTriangulateAvoidsReflexDiagonal(t *testing.T) {
	var ec EarClipper

	tris := ec.Triangulate(arrow)
	require.Len(t, tris, 6)
	// the only valid diagonal joins the reflex corner with corner 0
	for i := 0; i < len(tris); i += 3 {
		tri := tris[i : i+3]
		assert.Contains(t, tri, 0)
		assert.Contains(t, tri, 2)
	}
}

func TestTriangulateDegenerate(t *testing.T) {
	var ec EarClipper

	assert.Nil(t, ec.Triangulate(square[:2]))
	assert.Equal(t, []int{0, 1, 2}, ec.Triangulate(square[:3]))
	assert.Nil(t, ec.Triangulate([][3]float64{{0, 0, 0}, {1, 0, 0}, {2, 0, 0}, {3, 0, 0}}))
}

func TestNormal(t *testing.T) {
	n := Normal(square)
	assert.InDelta(t, 0, n.X, 1e-12)
	assert.InDelta(t, 0, n.Y, 1e-12)
	assert.InDelta(t, 2, n.Z, 1e-12)
}

func TestTriangulateTiltedPlane(t *testing.T) {
	var ec EarClipper

	poly := tilted()
	tris := ec.Triangulate(poly)
	require.Len(t, tris, 12)

	// projected onto xz the area stays 3
	flat := make([][3]float64, len(poly))
	for i, p := range poly {
		flat[i] = [3]float64{p[0], 0, p[2]}
	}
	assert.InDelta(t, 3.0, triArea(flat, tris), 1e-9)
}

func TestTriangulateSelfIntersecting(t *testing.T) {
	var ec EarClipper

	// bowtie: the two lobes cancel in the Newell normal
	bowtie := [][3]float64{{0, 0, 0}, {1, 1, 0}, {1, 0, 0}, {0, 1, 0}}
	assert.Nil(t, ec.Triangulate(bowtie))
}
