package meshcompiler

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/chewxy/math32"
)

// Default welding tolerances.
const (
	DefaultDoubleEpsilon = 1e-4
	DefaultFloatEpsilon  = float32(1e-4)
)

// VertexCompare decides whether two interleaved vertices are equal.
type VertexCompare interface {
	Equal(v0, v1 []byte, decl *VertexDeclaration) bool
}

// EpsilonCompare compares floating point elements by the summed absolute
// difference of their components and integer elements exactly.
type EpsilonCompare struct {
	DoubleEpsilon float64
	FloatEpsilon  float32
}

// NewVertexCompare returns an EpsilonCompare with the given tolerances.
func NewVertexCompare(doubleEps float64, floatEps float32) EpsilonCompare {
	return EpsilonCompare{DoubleEpsilon: doubleEps, FloatEpsilon: floatEps}
}

// Equal implements VertexCompare.
func (c EpsilonCompare) Equal(v0, v1 []byte, decl *VertexDeclaration) bool {
	for _, el := range decl.elements {
		e0 := v0[el.Offset : el.Offset+el.Size()]
		e1 := v1[el.Offset : el.Offset+el.Size()]

		switch el.Type {
		case Float64:
			diff := 0.0
			for k := 0; k < el.NumComponents; k++ {
				a := math.Float64frombits(binary.LittleEndian.Uint64(e0[k*8:]))
				b := math.Float64frombits(binary.LittleEndian.Uint64(e1[k*8:]))
				diff += math.Abs(a - b)
			}
			if diff > c.DoubleEpsilon {
				return false
			}
		case Float32:
			var diff float32
			for k := 0; k < el.NumComponents; k++ {
				a := math32.Float32frombits(binary.LittleEndian.Uint32(e0[k*4:]))
				b := math32.Float32frombits(binary.LittleEndian.Uint32(e1[k*4:]))
				diff += math32.Abs(a - b)
			}
			if diff > c.FloatEpsilon {
				return false
			}
		default:
			if !bytes.Equal(e0, e1) {
				return false
			}
		}
	}
	return true
}
