// Package meshcompiler turns independently indexed polygon meshes into a single
// interleaved vertex buffer and a triangle index buffer.
package meshcompiler

import "fmt"

// ScalarType is the component type of a vertex element.
type ScalarType uint8

const (
	Float32 ScalarType = iota + 1
	Float64
	Int32
	Uint32
	Int16
	Uint16
	Int8
	Uint8
)

// Size returns the size of one component in bytes.
func (t ScalarType) Size() int {
	switch t {
	case Float64:
		return 8
	case Float32, Int32, Uint32:
		return 4
	case Int16, Uint16:
		return 2
	case Int8, Uint8:
		return 1
	default:
		return 0
	}
}

// IsFloat reports whether t is a floating point type.
func (t ScalarType) IsFloat() bool {
	return t == Float32 || t == Float64
}

// String returns a human-readable type name.
func (t ScalarType) String() string {
	switch t {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Int32:
		return "int32"
	case Uint32:
		return "uint32"
	case Int16:
		return "int16"
	case Uint16:
		return "uint16"
	case Int8:
		return "int8"
	case Uint8:
		return "uint8"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(t))
	}
}

// Usage tags the meaning of a vertex element.
type Usage uint8

const (
	UsagePosition Usage = iota
	UsageNormal
	UsageTexCoord
	UsageColor
	UsageGeneric
)

// String returns a human-readable usage name.
func (u Usage) String() string {
	switch u {
	case UsagePosition:
		return "position"
	case UsageNormal:
		return "normal"
	case UsageTexCoord:
		return "texcoord"
	case UsageColor:
		return "color"
	case UsageGeneric:
		return "generic"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(u))
	}
}

// AutoOffset places an element directly behind the previous one.
const AutoOffset = -1

// VertexElement describes one attribute slot of the interleaved vertex.
type VertexElement struct {
	Usage         Usage
	Type          ScalarType
	NumComponents int
	Offset        int // byte offset inside the vertex
	Name          string
}

// NewElement returns an element with an automatically assigned offset.
func NewElement(usage Usage, typ ScalarType, components int, name string) VertexElement {
	return VertexElement{
		Usage:         usage,
		Type:          typ,
		NumComponents: components,
		Offset:        AutoOffset,
		Name:          name,
	}
}

// Size returns the element size in bytes.
func (e VertexElement) Size() int {
	return e.Type.Size() * e.NumComponents
}

// VertexDeclaration is the ordered layout of the interleaved vertex.
type VertexDeclaration struct {
	elements []VertexElement
	stride   int
}

// NewDeclaration builds a declaration from the given elements.
// Elements with AutoOffset are packed behind their predecessor. If every
// element has offset 0 the whole layout is packed tightly.
func NewDeclaration(elements ...VertexElement) *VertexDeclaration {
	d := &VertexDeclaration{elements: make([]VertexElement, len(elements))}
	copy(d.elements, elements)

	packAll := true
	for _, e := range d.elements {
		if e.Offset != 0 {
			packAll = false
			break
		}
	}

	next := 0
	for i := range d.elements {
		e := &d.elements[i]
		if packAll || e.Offset < 0 {
			e.Offset = next
		}
		next = e.Offset + e.Size()
		if next > d.stride {
			d.stride = next
		}
	}
	return d
}

// DefaultDeclaration returns float3 position, float3 normal, float2 texcoord.
func DefaultDeclaration() *VertexDeclaration {
	return NewDeclaration(
		NewElement(UsagePosition, Float32, 3, "inPosition"),
		NewElement(UsageNormal, Float32, 3, "inNormal"),
		NewElement(UsageTexCoord, Float32, 2, "inTexCoord"),
	)
}

// NumElements returns the number of attribute slots.
func (d *VertexDeclaration) NumElements() int {
	return len(d.elements)
}

// Element returns slot i.
func (d *VertexDeclaration) Element(i int) VertexElement {
	return d.elements[i]
}

// Stride returns the size of one interleaved vertex in bytes.
func (d *VertexDeclaration) Stride() int {
	return d.stride
}

// FindUsage returns the first slot with the given usage, or -1.
func (d *VertexDeclaration) FindUsage(u Usage) int {
	for i, e := range d.elements {
		if e.Usage == u {
			return i
		}
	}
	return -1
}
