package formats

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/Faultbox/meshc/pkg/meshcompiler"
)

// MSHC format errors.
var (
	ErrInvalidMSHCMagic       = errors.New("invalid MSHC magic: expected 'MSHC'")
	ErrUnsupportedMSHCVersion = errors.New("unsupported MSHC version")
	ErrTruncatedMSHCData      = errors.New("truncated MSHC data")
)

// MSHCVersion is the version written by WriteTo.
const MSHCVersion = 1

// MSHCElement describes one interleaved vertex element.
type MSHCElement struct {
	Usage      uint8
	Type       uint8
	Components uint8
	_          uint8
	Offset     uint32
}

// MSHCSubset is a contiguous triangle range of one face group.
type MSHCSubset struct {
	ID         int32
	StartIndex uint32
	NumTris    uint32
}

// MSHC is a compiled mesh ready for upload: one interleaved vertex buffer,
// a triangle list, the subsets and the triangle -> input face map.
type MSHC struct {
	Version  uint32
	Stride   uint32
	NumVerts uint32
	Elements []MSHCElement
	Vertices []byte
	Indices  []uint32
	Subsets  []MSHCSubset
	TriFaces []uint32
}

// NewMSHC collects the output of a built compiler.
func NewMSHC(c *meshcompiler.Compiler) *MSHC {
	decl := c.Declaration()
	m := &MSHC{
		Version:  MSHCVersion,
		Stride:   uint32(decl.Stride()),
		NumVerts: uint32(c.NumVertices()),
		Vertices: c.VertexBytes(),
		Indices:  append([]uint32(nil), c.IndexBuffer()...),
	}
	for i := 0; i < decl.NumElements(); i++ {
		el := decl.Element(i)
		m.Elements = append(m.Elements, MSHCElement{
			Usage:      uint8(el.Usage),
			Type:       uint8(el.Type),
			Components: uint8(el.NumComponents),
			Offset:     uint32(el.Offset),
		})
	}
	for i := 0; i < c.NumSubsets(); i++ {
		s := c.Subset(i)
		m.Subsets = append(m.Subsets, MSHCSubset{
			ID:         int32(s.ID),
			StartIndex: uint32(s.StartIndex),
			NumTris:    uint32(s.NumTris),
		})
	}
	m.TriFaces = make([]uint32, c.NumTriangles())
	for t := range m.TriFaces {
		m.TriFaces[t] = uint32(c.MapToOriginalFaceID(t))
	}
	return m
}

// NumTriangles returns the number of triangles in the index buffer.
func (m *MSHC) NumTriangles() int {
	return len(m.Indices) / 3
}

// Declaration rebuilds the vertex layout.
func (m *MSHC) Declaration() *meshcompiler.VertexDeclaration {
	elements := make([]meshcompiler.VertexElement, len(m.Elements))
	for i, e := range m.Elements {
		elements[i] = meshcompiler.VertexElement{
			Usage:         meshcompiler.Usage(e.Usage),
			Type:          meshcompiler.ScalarType(e.Type),
			NumComponents: int(e.Components),
			Offset:        int(e.Offset),
		}
	}
	return meshcompiler.NewDeclaration(elements...)
}

// Positions returns the float32 positions of every vertex, or nil when the
// layout has no three component float32 position element.
func (m *MSHC) Positions() [][3]float32 {
	for _, e := range m.Elements {
		if meshcompiler.Usage(e.Usage) != meshcompiler.UsagePosition ||
			meshcompiler.ScalarType(e.Type) != meshcompiler.Float32 || e.Components < 3 {
			continue
		}
		out := make([][3]float32, m.NumVerts)
		for v := range out {
			base := v*int(m.Stride) + int(e.Offset)
			for k := 0; k < 3; k++ {
				bits := binary.LittleEndian.Uint32(m.Vertices[base+4*k:])
				out[v][k] = math.Float32frombits(bits)
			}
		}
		return out
	}
	return nil
}

// WriteTo writes the little-endian MSHC encoding of m.
func (m *MSHC) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	cw := &countingWriter{w: bw}
	le := binary.LittleEndian

	cw.write([]byte("MSHC"))
	header := []uint32{
		MSHCVersion, m.Stride, m.NumVerts,
		uint32(m.NumTriangles()), uint32(len(m.Subsets)), uint32(len(m.Elements)),
	}
	for _, data := range []any{header, m.Elements} {
		if cw.err == nil {
			cw.err = binary.Write(cw, le, data)
		}
	}
	cw.write(m.Vertices)
	for _, data := range []any{m.Indices, m.Subsets, m.TriFaces} {
		if cw.err == nil {
			cw.err = binary.Write(cw, le, data)
		}
	}
	if cw.err != nil {
		return cw.n, fmt.Errorf("write MSHC: %w", cw.err)
	}
	return cw.n, bw.Flush()
}

type countingWriter struct {
	w   io.Writer
	n   int64
	err error
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

func (cw *countingWriter) write(p []byte) {
	if cw.err == nil {
		_, cw.err = cw.Write(p)
	}
}

// ParseMSHC parses a compiled mesh from raw bytes.
func ParseMSHC(data []byte) (*MSHC, error) {
	if len(data) < 28 {
		return nil, ErrTruncatedMSHCData
	}
	if string(data[0:4]) != "MSHC" {
		return nil, ErrInvalidMSHCMagic
	}

	r := bytes.NewReader(data[4:])
	var header [6]uint32
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("%w: reading header", ErrTruncatedMSHCData)
	}
	version, stride, numVerts, numTris, numSubsets, numElements :=
		header[0], header[1], header[2], header[3], header[4], header[5]
	if version != MSHCVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedMSHCVersion, version)
	}

	// every section must fit into what is left before allocating it
	need := uint64(numElements)*8 + uint64(numVerts)*uint64(stride) +
		uint64(numTris)*16 + uint64(numSubsets)*12
	if need > uint64(r.Len()) {
		return nil, fmt.Errorf("%w: %d bytes left, %d needed", ErrTruncatedMSHCData, r.Len(), need)
	}

	m := &MSHC{
		Version:  version,
		Stride:   stride,
		NumVerts: numVerts,
		Elements: make([]MSHCElement, numElements),
		Vertices: make([]byte, uint64(numVerts)*uint64(stride)),
		Indices:  make([]uint32, numTris*3),
		Subsets:  make([]MSHCSubset, numSubsets),
		TriFaces: make([]uint32, numTris),
	}
	if err := binary.Read(r, binary.LittleEndian, m.Elements); err != nil {
		return nil, fmt.Errorf("%w: reading elements", ErrTruncatedMSHCData)
	}
	if _, err := io.ReadFull(r, m.Vertices); err != nil {
		return nil, fmt.Errorf("%w: reading vertices", ErrTruncatedMSHCData)
	}
	if err := binary.Read(r, binary.LittleEndian, m.Indices); err != nil {
		return nil, fmt.Errorf("%w: reading indices", ErrTruncatedMSHCData)
	}
	if err := binary.Read(r, binary.LittleEndian, m.Subsets); err != nil {
		return nil, fmt.Errorf("%w: reading subsets", ErrTruncatedMSHCData)
	}
	if err := binary.Read(r, binary.LittleEndian, m.TriFaces); err != nil {
		return nil, fmt.Errorf("%w: reading triangle faces", ErrTruncatedMSHCData)
	}

	for i, idx := range m.Indices {
		if idx >= numVerts {
			return nil, fmt.Errorf("index %d references vertex %d of %d", i, idx, numVerts)
		}
	}
	return m, nil
}
