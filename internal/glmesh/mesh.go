// Package glmesh uploads compiled meshes to OpenGL and draws them per
// subset.
package glmesh

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"

	"github.com/Faultbox/meshc/pkg/formats"
	"github.com/Faultbox/meshc/pkg/meshcompiler"
)

// ErrEmptyMesh is returned when a mesh has no vertices or triangles.
var ErrEmptyMesh = errors.New("mesh has no triangles")

// Subset is a draw range of the element buffer.
type Subset struct {
	Group      int32
	StartIndex int32
	IndexCount int32
}

// Mesh owns the GPU buffers of one compiled mesh.
type Mesh struct {
	vao        uint32
	vbo        uint32
	ebo        uint32
	indexCount int32
	Subsets    []Subset
}

// attribFormat returns the GL component type of a scalar type and whether
// it is read as an integer attribute.
func attribFormat(t meshcompiler.ScalarType) (glType uint32, integer bool, err error) {
	switch t {
	case meshcompiler.Float32:
		return gl.FLOAT, false, nil
	case meshcompiler.Float64:
		return gl.DOUBLE, false, nil
	case meshcompiler.Int32:
		return gl.INT, true, nil
	case meshcompiler.Uint32:
		return gl.UNSIGNED_INT, true, nil
	case meshcompiler.Int16:
		return gl.SHORT, true, nil
	case meshcompiler.Uint16:
		return gl.UNSIGNED_SHORT, true, nil
	case meshcompiler.Int8:
		return gl.BYTE, true, nil
	case meshcompiler.Uint8:
		return gl.UNSIGNED_BYTE, true, nil
	default:
		return 0, false, fmt.Errorf("unsupported vertex element type %s", t)
	}
}

// subsets converts MSHC subsets into element ranges.
func subsets(m *formats.MSHC) []Subset {
	out := make([]Subset, 0, len(m.Subsets))
	for _, s := range m.Subsets {
		if s.NumTris == 0 {
			continue
		}
		out = append(out, Subset{
			Group:      s.ID,
			StartIndex: int32(s.StartIndex),
			IndexCount: int32(s.NumTris * 3),
		})
	}
	return out
}

// Upload creates a VAO with one interleaved VBO and an element buffer.
// Element i of the declaration is bound to attribute location i.
func Upload(m *formats.MSHC) (*Mesh, error) {
	if m.NumVerts == 0 || len(m.Indices) == 0 {
		return nil, ErrEmptyMesh
	}

	mesh := &Mesh{
		indexCount: int32(len(m.Indices)),
		Subsets:    subsets(m),
	}

	gl.GenVertexArrays(1, &mesh.vao)
	gl.BindVertexArray(mesh.vao)

	gl.GenBuffers(1, &mesh.vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, mesh.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(m.Vertices), unsafe.Pointer(&m.Vertices[0]), gl.STATIC_DRAW)

	stride := int32(m.Stride)
	for i, el := range m.Elements {
		glType, integer, err := attribFormat(meshcompiler.ScalarType(el.Type))
		if err != nil {
			mesh.Delete()
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		loc := uint32(i)
		if integer {
			gl.VertexAttribIPointerWithOffset(loc, int32(el.Components), glType, stride, uintptr(el.Offset))
		} else {
			gl.VertexAttribPointerWithOffset(loc, int32(el.Components), glType, false, stride, uintptr(el.Offset))
		}
		gl.EnableVertexAttribArray(loc)
	}

	gl.GenBuffers(1, &mesh.ebo)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, mesh.ebo)
	gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(m.Indices)*4, unsafe.Pointer(&m.Indices[0]), gl.STATIC_DRAW)

	gl.BindVertexArray(0)
	return mesh, nil
}

// Draw draws every subset, calling before ahead of each one so that the
// caller can set per-subset uniforms. before may be nil.
func (m *Mesh) Draw(before func(i int, s Subset)) {
	gl.BindVertexArray(m.vao)
	if len(m.Subsets) == 0 {
		gl.DrawElements(gl.TRIANGLES, m.indexCount, gl.UNSIGNED_INT, nil)
	}
	for i, s := range m.Subsets {
		if before != nil {
			before(i, s)
		}
		gl.DrawElementsWithOffset(gl.TRIANGLES, s.IndexCount, gl.UNSIGNED_INT, uintptr(s.StartIndex*4))
	}
	gl.BindVertexArray(0)
}

// Delete releases the GPU buffers.
func (m *Mesh) Delete() {
	if m.ebo != 0 {
		gl.DeleteBuffers(1, &m.ebo)
		m.ebo = 0
	}
	if m.vbo != 0 {
		gl.DeleteBuffers(1, &m.vbo)
		m.vbo = 0
	}
	if m.vao != 0 {
		gl.DeleteVertexArrays(1, &m.vao)
		m.vao = 0
	}
}
