// Package polygon decomposes planar 3D polygons into triangles.
package polygon

import (
	"math"

	"github.com/rclancey/earcut"
	"gonum.org/v1/gonum/spatial/r3"
)

// DefaultEpsilon is the area tolerance of the orientation tests, relative to
// the squared polygon extent.
const DefaultEpsilon = 1e-10

// EarClipper triangulates simple polygons with earcut after projecting them
// into their own plane. The zero value is ready to use.
type EarClipper struct {
	Epsilon float64
}

func toVecs(poly [][3]float64) []r3.Vec {
	out := make([]r3.Vec, len(poly))
	for i, p := range poly {
		out[i] = r3.Vec{X: p[0], Y: p[1], Z: p[2]}
	}
	return out
}

// Normal returns the Newell normal of a polygon ring. Its length is twice the
// area of the projected polygon; it is zero for degenerate rings.
func Normal(poly [][3]float64) r3.Vec {
	return newellNormal(toVecs(poly))
}

func newellNormal(pts []r3.Vec) r3.Vec {
	var n r3.Vec
	for i, p := range pts {
		q := pts[(i+1)%len(pts)]
		n.X += (p.Y - q.Y) * (p.Z + q.Z)
		n.Y += (p.Z - q.Z) * (p.X + q.X)
		n.Z += (p.X - q.X) * (p.Y + q.Y)
	}
	return n
}

// tolerance scales the epsilon with the squared extent of the points, so the
// tests are independent of the model's unit.
func (e EarClipper) tolerance(pts []r3.Vec) float64 {
	eps := e.Epsilon
	if eps <= 0 {
		eps = DefaultEpsilon
	}
	var lo, hi r3.Vec
	for i, p := range pts {
		if i == 0 {
			lo, hi = p, p
			continue
		}
		lo = r3.Vec{X: min(lo.X, p.X), Y: min(lo.Y, p.Y), Z: min(lo.Z, p.Z)}
		hi = r3.Vec{X: max(hi.X, p.X), Y: max(hi.Y, p.Y), Z: max(hi.Z, p.Z)}
	}
	d := r3.Sub(hi, lo)
	return eps * r3.Dot(d, d)
}

// turn is the signed turn at b along a -> b -> c with respect to n.
// Positive for a left turn (convex corner of a ring winding around n).
func turn(a, b, c, n r3.Vec) float64 {
	return r3.Dot(r3.Cross(r3.Sub(b, a), r3.Sub(c, b)), n)
}

// IsConvex reports whether every corner of the ring turns the same way as
// the ring's normal. Collinear corners count as convex; degenerate rings are
// reported convex so that callers fall back to a fan.
func (e EarClipper) IsConvex(poly [][3]float64) bool {
	pts := toVecs(poly)
	if len(pts) <= 3 {
		return true
	}
	n := newellNormal(pts)
	if r3.Norm(n) == 0 {
		return true
	}
	n = r3.Unit(n)
	tol := e.tolerance(pts)

	for i := range pts {
		a := pts[(i+len(pts)-1)%len(pts)]
		c := pts[(i+1)%len(pts)]
		if turn(a, pts[i], c, n) < -tol {
			return false
		}
	}
	return true
}

// planeBasis returns two unit vectors spanning the plane of unit normal n,
// ordered so that u x v = n.
func planeBasis(n r3.Vec) (u, v r3.Vec) {
	axis := r3.Vec{X: 1}
	if math.Abs(n.X) > 0.9 {
		axis = r3.Vec{Y: 1}
	}
	u = r3.Unit(r3.Cross(axis, n))
	v = r3.Cross(n, u)
	return u, v
}

// Triangulate returns 3*(len(poly)-2) corner indices. Every triangle keeps
// the winding of the input ring. It returns nil if the ring cannot be
// triangulated, e.g. when it intersects itself.
func (e EarClipper) Triangulate(poly [][3]float64) []int {
	pts := toVecs(poly)
	switch {
	case len(pts) < 3:
		return nil
	case len(pts) == 3:
		return []int{0, 1, 2}
	}

	n := newellNormal(pts)
	if r3.Norm(n) == 0 {
		return nil
	}
	u, v := planeBasis(r3.Unit(n))

	// counter-clockwise around n maps to counter-clockwise in (u, v)
	coords := make([]float64, 0, 2*len(pts))
	for _, p := range pts {
		coords = append(coords, r3.Dot(p, u), r3.Dot(p, v))
	}

	tris, err := earcut.Earcut(coords, nil, 2)
	if err != nil || len(tris) != 3*(len(pts)-2) {
		return nil
	}

	for t := 0; t < len(tris); t += 3 {
		a, b, c := tris[t], tris[t+1], tris[t+2]
		if a < 0 || b < 0 || c < 0 || a >= len(pts) || b >= len(pts) || c >= len(pts) {
			return nil
		}
		if signedArea(coords, a, b, c) < 0 {
			tris[t+1], tris[t+2] = c, b
		}
	}
	return tris
}

// signedArea is twice the signed area of triangle (a, b, c) in flat 2D
// coords, positive for counter-clockwise.
func signedArea(coords []float64, a, b, c int) float64 {
	ax, ay := coords[2*a], coords[2*a+1]
	bx, by := coords[2*b], coords[2*b+1]
	cx, cy := coords[2*c], coords[2*c+1]
	return (bx-ax)*(cy-ay) - (by-ay)*(cx-ax)
}
