package meshcompiler

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// VertexString formats an interleaved vertex as "name [c0, c1, ] ..." for
// diagnostics.
func (c *Compiler) VertexString(v []byte) string {
	var sb strings.Builder
	for _, el := range c.decl.elements {
		name := el.Name
		if name == "" {
			name = el.Usage.String()
		}
		sb.WriteString(name)
		sb.WriteString(" [")
		size := el.Type.Size()
		for k := 0; k < el.NumComponents; k++ {
			b := v[el.Offset+k*size:]
			if el.Type.IsFloat() {
				sb.WriteString(strconv.FormatFloat(readFloat(b, el.Type), 'g', -1, 64))
			} else {
				sb.WriteString(strconv.FormatInt(readInt(b, el.Type), 10))
			}
			sb.WriteString(", ")
		}
		sb.WriteString("] ")
	}
	return sb.String()
}

// readFloat32s reads element idx of attribute attr as n float32 components.
func (c *Compiler) readFloat32s(attr, idx, n int) []float32 {
	desc := VertexElement{Type: Float32, NumComponents: n}
	buf := make([]byte, desc.Size())
	c.inputs[attr].element(idx, buf, desc)
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(readFloat(buf[i*4:], Float32))
	}
	return out
}

// Dump writes the internal state of the last build as text.
func (c *Compiler) Dump(w io.Writer) error {
	bw := bufio.NewWriter(w)

	for i, in := range c.inputs {
		fmt.Fprintf(bw, "attribute[%d]: internal %t, count %d, stride %d, attrSize %d\n",
			i, in.internal, in.count, in.stride, in.src.Size())
	}

	fmt.Fprintf(bw, "\n\nfaces %d\nindices %d\n", c.numFaces, c.numIndices)

	if c.weldFace != nil {
		for f := 0; f < c.numFaces; f++ {
			for k := 0; k < c.FaceSize(f); k++ {
				offset := c.faceOffset(f) + k
				fmt.Fprintf(bw, "weldMap[%d, %d] = [%d, %d]\n", f, k, c.weldFace[offset], c.weldCorner[offset])
			}
		}
	}

	for i, v := range c.faceBufSplit {
		fmt.Fprintf(bw, "faceBufSplit[%d] = %d\n", i, v)
	}
	bw.WriteString("\n\n")

	for i, g := range c.faceGroups {
		fmt.Fprintf(bw, "faceGroup[%d] = %d\n", i, g)
	}
	bw.WriteString("\n\n")

	for i, f := range c.faceSortMap {
		fmt.Fprintf(bw, "faceSortMap[%d] = %d\n", i, f)
	}
	bw.WriteString("\n\n")

	for t := 0; t < len(c.indices)/3; t++ {
		fmt.Fprintf(bw, "tri[%d] = %d %d %d\n", t, c.indices[t*3], c.indices[t*3+1], c.indices[t*3+2])
	}
	bw.WriteString("\n\n")

	for i, s := range c.subsets {
		fmt.Fprintf(bw, "subset[%d]: id %d, startIndex %d, numTris %d, numFaces %d, startFace %d\n",
			i, s.ID, s.StartIndex, s.NumTris, s.NumFaces, s.StartFace)
	}
	bw.WriteString("\n\n")

	groups := make([]int, 0, len(c.subsetIDMap))
	for g := range c.subsetIDMap {
		groups = append(groups, g)
	}
	sort.Ints(groups)
	for _, g := range groups {
		fmt.Fprintf(bw, "subsetIDMap[%d] = %d\n", g, c.subsetIDMap[g])
	}
	bw.WriteString("\n\n")

	if c.faceBufSplit != nil {
		for f := 0; f < c.numFaces; f++ {
			for k := 0; k < c.FaceSize(f); k++ {
				fmt.Fprintf(bw, "mapToDrawVertexID[%d, %d] = %d\n", f, k, c.MapToDrawVertexID(f, k))
			}
		}
		bw.WriteString("\n\n")
	}

	if c.vertexMapFace != nil {
		for v := 0; v < c.numDrawVerts; v++ {
			_, f, k := c.MapToOriginalVertexID(v)
			fmt.Fprintf(bw, "mapToOriginalVertexID[%d] = [%d, %d]\n", v, f, k)
		}
	}

	bw.WriteString("\n\nadjacencyVert\n")
	if c.adjacency != nil {
		for v := 0; v < c.adjacency.num(); v++ {
			for k := 0; k < c.adjacency.countOf(v); k++ {
				fmt.Fprintf(bw, "adj[%d][%d] = %d\n", v, k, c.adjacency.adj(v, k))
			}
		}
	}
	bw.WriteString("\n\n")

	vtx := make([]byte, c.decl.Stride())
	for f := 0; f < c.numFaces; f++ {
		for k := 0; k < c.FaceSize(f); k++ {
			clear(vtx)
			c.inputFaceVertexData(f, k, vtx)
			fmt.Fprintf(bw, "data[%d, %d] = %s\n", f, k, c.VertexString(vtx))
		}
	}

	return bw.Flush()
}

// objFaceCorner formats one corner of an OBJ face line.
func objFaceCorner(pos, texc, normal int, hasTexc, hasNormal bool) string {
	switch {
	case hasTexc && hasNormal:
		return fmt.Sprintf("%d/%d/%d", pos, texc, normal)
	case hasNormal:
		return fmt.Sprintf("%d//%d", pos, normal)
	case hasTexc:
		return fmt.Sprintf("%d/%d", pos, texc)
	default:
		return strconv.Itoa(pos)
	}
}

// DumpObj writes the compiled buffers as a Wavefront OBJ file. Every draw
// vertex becomes one v/vt/vn triple.
func (c *Compiler) DumpObj(w io.Writer) error {
	bw := bufio.NewWriter(w)
	hasNormal, hasTexc := c.normalAttr >= 0, c.texcAttr >= 0

	vtx := make([]byte, c.decl.Stride())
	for v := 0; v < c.numDrawVerts; v++ {
		c.Vertex(v, vtx)
		p := c.vertexFloats(vtx, c.posAttr, 3)
		fmt.Fprintf(bw, "v %g %g %g\n", p[0], p[1], p[2])
		if hasNormal {
			n := c.vertexFloats(vtx, c.normalAttr, 3)
			fmt.Fprintf(bw, "vn %g %g %g\n", n[0], n[1], n[2])
		}
		if hasTexc {
			t := c.vertexFloats(vtx, c.texcAttr, 2)
			fmt.Fprintf(bw, "vt %g %g\n", t[0], t[1])
		}
	}

	for t := 0; t < c.numTris; t++ {
		bw.WriteString("f")
		for k := 0; k < 3; k++ {
			i := c.Index(t*3+k) + 1
			bw.WriteString(" ")
			bw.WriteString(objFaceCorner(i, i, i, hasTexc, hasNormal))
		}
		bw.WriteString("\n")
	}
	return bw.Flush()
}

// vertexFloats reads n components of element attr from an interleaved vertex.
func (c *Compiler) vertexFloats(vtx []byte, attr, n int) []float32 {
	el := c.decl.elements[attr]
	out := make([]float32, n)
	size := el.Type.Size()
	for k := 0; k < min(n, el.NumComponents); k++ {
		out[k] = float32(readFloat(vtx[el.Offset+k*size:], el.Type))
	}
	return out
}

// DumpInputObj writes the input mesh as a Wavefront OBJ file.
func (c *Compiler) DumpInputObj(w io.Writer) error {
	if c.faceInput == nil {
		return ErrNoFaceInput
	}
	bw := bufio.NewWriter(w)
	hasNormal, hasTexc := c.normalAttr >= 0, c.texcAttr >= 0

	for i := 0; i < c.numPositions(); i++ {
		p := c.readFloat32s(c.posAttr, i, 3)
		fmt.Fprintf(bw, "v %g %g %g\n", p[0], p[1], p[2])
	}
	if hasTexc {
		for i := 0; i < c.inputs[c.texcAttr].count; i++ {
			t := c.readFloat32s(c.texcAttr, i, 2)
			fmt.Fprintf(bw, "vt %g %g\n", t[0], t[1])
		}
	}
	if hasNormal {
		for i := 0; i < c.inputs[c.normalAttr].count; i++ {
			n := c.readFloat32s(c.normalAttr, i, 3)
			fmt.Fprintf(bw, "vn %g %g %g\n", n[0], n[1], n[2])
		}
	}

	in := c.faceInput
	for f := 0; f < in.NumFaces(); f++ {
		bw.WriteString("f")
		for k := 0; k < in.FaceSize(f); k++ {
			pos := in.SingleFaceAttr(f, k, c.posAttr) + 1
			texc, normal := 0, 0
			if hasTexc {
				texc = in.SingleFaceAttr(f, k, c.texcAttr) + 1
			}
			if hasNormal {
				normal = in.SingleFaceAttr(f, k, c.normalAttr) + 1
			}
			bw.WriteString(" ")
			bw.WriteString(objFaceCorner(pos, texc, normal, hasTexc, hasNormal))
		}
		bw.WriteString("\n")
	}
	return bw.Flush()
}

// DumpInputBin writes the input mesh in a compact little-endian format:
//
//	int32 numFaces, numVerts, numNormals, numTexCoords, faceBufSize
//	int32 faceSize[numFaces]
//	int32 posIndex[faceBufSize], texcIndex[faceBufSize], normalIndex[faceBufSize]
//	float32 pos[numVerts][3], texc[numTexCoords][2], normal[numNormals][3]
//	int32 num, bufSize; int32 start[num]; uint8 count[num]; int32 buf[bufSize]
//
// Index and data blocks of missing attributes are omitted. The trailing
// block is the vertex -> face adjacency.
func (c *Compiler) DumpInputBin(w io.Writer) error {
	if c.faceInput == nil {
		return ErrNoFaceInput
	}
	in := c.faceInput
	bw := bufio.NewWriter(w)
	le := binary.LittleEndian

	numNormals, numTexc := 0, 0
	if c.normalAttr >= 0 {
		numNormals = c.inputs[c.normalAttr].count
	}
	if c.texcAttr >= 0 {
		numTexc = c.inputs[c.texcAttr].count
	}

	numFaces := in.NumFaces()
	faceBufSize := 0
	for f := 0; f < numFaces; f++ {
		faceBufSize += in.FaceSize(f)
	}

	header := []int32{int32(numFaces), int32(c.numPositions()), int32(numNormals), int32(numTexc), int32(faceBufSize)}
	if err := binary.Write(bw, le, header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	sizes := make([]int32, numFaces)
	for f := range sizes {
		sizes[f] = int32(in.FaceSize(f))
	}
	if err := binary.Write(bw, le, sizes); err != nil {
		return fmt.Errorf("write face sizes: %w", err)
	}

	for _, attr := range []int{c.posAttr, c.texcAttr, c.normalAttr} {
		if attr < 0 {
			continue
		}
		idx := make([]int32, 0, faceBufSize)
		for f := 0; f < numFaces; f++ {
			for k := 0; k < in.FaceSize(f); k++ {
				idx = append(idx, int32(in.SingleFaceAttr(f, k, attr)))
			}
		}
		if err := binary.Write(bw, le, idx); err != nil {
			return fmt.Errorf("write face indices: %w", err)
		}
	}

	blocks := []struct{ attr, count, n int }{
		{c.posAttr, c.numPositions(), 3},
		{c.texcAttr, numTexc, 2},
		{c.normalAttr, numNormals, 3},
	}
	for _, b := range blocks {
		if b.attr < 0 {
			continue
		}
		for i := 0; i < b.count; i++ {
			if err := binary.Write(bw, le, c.readFloat32s(b.attr, i, b.n)); err != nil {
				return fmt.Errorf("write vertex data: %w", err)
			}
		}
	}

	adj := c.inputAdjacency()
	counts := make([]uint8, adj.num())
	starts := make([]int32, adj.num())
	for v := range counts {
		counts[v] = uint8(adj.countOf(v))
		starts[v] = int32(adj.start[v])
	}
	buf := make([]int32, len(adj.buf))
	for i, f := range adj.buf {
		buf[i] = int32(f)
	}
	for _, data := range []any{[]int32{int32(adj.num()), int32(len(adj.buf))}, starts, counts, buf} {
		if err := binary.Write(bw, le, data); err != nil {
			return fmt.Errorf("write adjacency: %w", err)
		}
	}

	return bw.Flush()
}

// inputAdjacency returns the vertex -> face adjacency of the face input,
// read from the input when it provides one.
func (c *Compiler) inputAdjacency() *adjacencyList {
	if c.adjacency != nil {
		return c.adjacency
	}
	in := c.faceInput
	numVerts := c.numPositions()
	if in.VertexAdjCount(0) >= 0 {
		return buildAdjacency(numVerts, func(emit func(vertex, item int)) {
			for v := 0; v < numVerts; v++ {
				for k := 0; k < in.VertexAdjCount(v); k++ {
					emit(v, in.VertexAdjFace(v, k))
				}
			}
		})
	}
	return buildAdjacency(numVerts, func(emit func(vertex, item int)) {
		for f := 0; f < in.NumFaces(); f++ {
			for k := 0; k < in.FaceSize(f); k++ {
				emit(in.SingleFaceAttr(f, k, c.posAttr), f)
			}
		}
	})
}

// DumpAdjList writes the vertex -> face adjacency with every list sorted,
// which makes lists from different sources comparable.
func (c *Compiler) DumpAdjList(w io.Writer) error {
	if c.faceInput == nil {
		return ErrNoFaceInput
	}
	bw := bufio.NewWriter(w)
	adj := c.inputAdjacency()

	bw.WriteString("vertex-adjacency: \n")
	var sorted []int
	for v := 0; v < adj.num(); v++ {
		sorted = sorted[:0]
		for k := 0; k < adj.countOf(v); k++ {
			sorted = append(sorted, adj.adj(v, k))
		}
		sort.Ints(sorted)
		for k, f := range sorted {
			fmt.Fprintf(bw, "adj[%d][%d] = %d\n", v, k, f)
		}
	}
	return bw.Flush()
}

// MemoryUsage estimates the bytes held by the compiler's internal buffers,
// not counting borrowed attribute data.
func (c *Compiler) MemoryUsage() int {
	ints := len(c.faceStart) + len(c.faceSize) + len(c.faceGroups) +
		len(c.faceBufSplit) + len(c.faceSortMap) + len(c.triToSortFace) +
		len(c.triOptMap) + len(c.weldFace) + len(c.weldCorner) +
		len(c.vertexMapFace) + len(c.vertexMapCorner) +
		len(c.faceToTriMap) + len(c.faceToTriOffset) + len(c.triToFaceMap) +
		len(c.isolated)

	usage := ints*4 + len(c.indices)*4 + len(c.triIndexBuffer)*8
	usage += len(c.subsets) * 5 * 4
	if c.adjacency != nil {
		usage += c.adjacency.memoryUsage()
	}
	if c.splitter != nil {
		usage += len(c.splitter.splits) * 4
	}
	for _, in := range c.inputs {
		if in.internal {
			usage += len(in.data)
		}
	}
	if c.dense != nil {
		for _, d := range c.dense.faceData {
			usage += len(d) * 4
		}
		usage += (len(c.dense.faceOffset) + len(c.dense.faceSize)) * 4
	}
	return usage
}
