package meshcompiler

// createVertexMap inverts the (face, corner) -> vertex map. Kept isolated
// positions are appended after the connected vertices.
func (c *Compiler) createVertexMap(keepIsolated bool) {
	offsetIso := c.numDrawVerts
	if keepIsolated {
		c.numDrawVerts += c.numIsolatedVerts
	} else {
		c.numIsolatedVerts = 0
	}

	c.vertexMapFace = make([]int, c.numDrawVerts)
	c.vertexMapCorner = make([]int, c.numDrawVerts)
	for i := range c.vertexMapFace {
		c.vertexMapFace[i] = -1
		c.vertexMapCorner[i] = -1
	}

	for f := 0; f < c.numFaces; f++ {
		size := c.FaceSize(f)
		for k := 0; k < size; k++ {
			v := c.inputIndexSplit(f, k)
			c.vertexMapFace[v] = f
			c.vertexMapCorner[v] = k
		}
	}

	// isolated vertices store their position id in place of the face
	for i := 0; i < c.numIsolatedVerts; i++ {
		c.vertexMapFace[offsetIso+i] = c.isolated[i]
	}
}

// createFaceMap builds the triangle -> face map and its inverse.
func (c *Compiler) createFaceMap() {
	c.triToFaceMap = make([]int, c.numTris)
	for t := range c.triToFaceMap {
		id := t
		if c.triOptMap != nil {
			id = c.triOptMap[id]
		}
		if c.triToSortFace != nil {
			id = c.triToSortFace[id]
		}
		c.triToFaceMap[t] = c.sortedFace(id)
	}

	// variable face sizes need an offset table into the packed face -> tri map
	c.faceToTriOffset = nil
	if !c.constantFaceSize {
		c.faceToTriOffset = make([]int, c.numFaces+1)
		offset := 0
		for f := 0; f < c.numFaces; f++ {
			c.faceToTriOffset[f] = offset
			offset += c.faceTriCount(f)
		}
		c.faceToTriOffset[c.numFaces] = offset
	}

	c.faceToTriMap = make([]int, c.numTris)
	for i := range c.faceToTriMap {
		c.faceToTriMap[i] = -1
	}
	for t := 0; t < c.numTris; t++ {
		face := c.triToFaceMap[t]
		offset := c.faceTriOffset(face)
		n := 0
		for n < c.faceTriCount(face)-1 && c.faceToTriMap[offset+n] >= 0 {
			n++
		}
		c.faceToTriMap[offset+n] = t
	}
}

func (c *Compiler) faceTriOffset(face int) int {
	if c.faceToTriOffset == nil {
		return face * (c.maxFaceSize - 2)
	}
	return c.faceToTriOffset[face]
}

// NumVertices returns the number of draw vertices.
func (c *Compiler) NumVertices() int { return c.numDrawVerts }

// NumTriangles returns the number of output triangles.
func (c *Compiler) NumTriangles() int { return c.numTris }

// NumFaces returns the number of input faces of the last build.
func (c *Compiler) NumFaces() int { return c.numFaces }

// NumInputVertices returns the number of input positions.
func (c *Compiler) NumInputVertices() int { return c.numPositions() }

// NumIsolatedVertices returns the number of isolated positions kept in the
// vertex buffer.
func (c *Compiler) NumIsolatedVertices() int { return c.numIsolatedVerts }

// Index returns entry i of the index buffer.
func (c *Compiler) Index(i int) int {
	return int(c.indices[i])
}

// IndexBuffer returns the triangle list. The slice is owned by the compiler.
func (c *Compiler) IndexBuffer() []uint32 {
	return c.indices
}

// MapToOriginalVertexID returns the input position of a draw vertex and the
// face corner it was created from. Isolated vertices report face and corner
// -1.
func (c *Compiler) MapToOriginalVertexID(v int) (pos, face, corner int) {
	if v < c.numDrawVerts-c.numIsolatedVerts {
		face, corner = c.vertexMapFace[v], c.vertexMapCorner[v]
		return c.inputIndex(face, corner, c.posAttr), face, corner
	}
	return c.vertexMapFace[v], -1, -1
}

// MapToOriginalFaceID returns the input face of a triangle.
func (c *Compiler) MapToOriginalFaceID(tri int) int {
	return c.triToFaceMap[tri]
}

// TriangleFaceMap returns the triangle -> face map. The slice is owned by the
// compiler.
func (c *Compiler) TriangleFaceMap() []int {
	return c.triToFaceMap
}

// MapToDrawVertexID returns the draw vertex of a face corner.
func (c *Compiler) MapToDrawVertexID(face, corner int) int {
	return c.inputIndexSplit(face, corner)
}

// MapToDrawTriID returns triangle k of a face and the number of triangles
// the face was split into. tri is -1 if k is out of range.
func (c *Compiler) MapToDrawTriID(face, k int) (tri, numTris int) {
	numTris = c.faceTriCount(face)
	if k < 0 || k >= numTris {
		return -1, numTris
	}
	return c.faceToTriMap[c.faceTriOffset(face)+k], numTris
}

// NumSubsets returns the number of face groups.
func (c *Compiler) NumSubsets() int { return len(c.subsets) }

// Subset returns subset i.
func (c *Compiler) Subset(i int) Subset { return c.subsets[i] }

// FindGroupSubset returns the subset index of a group id, -1 if the group
// has no faces.
func (c *Compiler) FindGroupSubset(group int) int {
	if s, ok := c.subsetIDMap[group]; ok {
		return s
	}
	return -1
}

// TriGroup returns the group id of a triangle.
func (c *Compiler) TriGroup(tri int) int {
	return c.FaceGroup(c.MapToOriginalFaceID(tri))
}

// IsTriangleMesh reports whether every face of the last build is a triangle.
func (c *Compiler) IsTriangleMesh() bool {
	return c.maxFaceSize == 3
}

// IsFaceEdge reports whether edge (0: v0-v1, 1: v1-v2, 2: v2-v0) of a
// triangle lies on the boundary of its polygon rather than inside it.
func (c *Compiler) IsFaceEdge(tri, edge int) bool {
	if c.maxFaceSize <= 3 {
		return true
	}

	face := c.MapToOriginalFaceID(tri)
	size := c.FaceSize(face)

	a := c.Index(tri*3 + edge)
	b := c.Index(tri*3 + (edge+1)%3)
	for e := 0; e < size; e++ {
		v0 := c.MapToDrawVertexID(face, e)
		v1 := c.MapToDrawVertexID(face, (e+1)%size)
		if (v0 == a && v1 == b) || (v0 == b && v1 == a) {
			return true
		}
	}
	return false
}

// Vertex writes the interleaved data of draw vertex id into dst, which must
// hold at least Stride bytes.
func (c *Compiler) Vertex(id int, dst []byte) {
	pos, face, corner := c.MapToOriginalVertexID(id)
	for a := range c.inputs {
		el := c.decl.elements[a]
		idx := pos
		if face >= 0 {
			idx = c.inputIndex(face, corner, a)
		}
		c.inputs[a].element(idx, dst[el.Offset:], el)
	}
}

// VertexBuffer writes count vertices starting at offset into dst and returns
// the number written. A negative count reads to the end of the buffer.
func (c *Compiler) VertexBuffer(dst []byte, offset, count int) int {
	if count < 0 || offset+count > c.numDrawVerts {
		count = c.numDrawVerts - offset
	}
	stride := c.decl.Stride()
	for i := 0; i < count; i++ {
		c.Vertex(offset+i, dst[i*stride:(i+1)*stride])
	}
	return max(count, 0)
}

// VertexBytes returns the complete interleaved vertex buffer.
func (c *Compiler) VertexBytes() []byte {
	buf := make([]byte, c.numDrawVerts*c.decl.Stride())
	c.VertexBuffer(buf, 0, -1)
	return buf
}
