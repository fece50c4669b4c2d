package meshcompiler

// optimize reorders the triangles of every subset and then renumbers the
// draw vertices in order of first use.
func (c *Compiler) optimize() {
	resolved := c.resolvedIndices()
	c.indices = make([]uint32, len(resolved))
	c.triOptMap = make([]int, c.numTris)
	for i := range c.triOptMap {
		c.triOptMap[i] = -1
	}

	for _, s := range c.subsets {
		if s.NumTris == 0 {
			continue
		}
		end := s.StartIndex + s.NumTris*3
		out, triMap := c.optimizer.OptimizeTriangles(resolved[s.StartIndex:end], c.numDrawVerts)
		copy(c.indices[s.StartIndex:end], out)

		startTri := s.StartIndex / 3
		for k := 0; k < s.NumTris; k++ {
			c.triOptMap[startTri+k] = startTri + triMap[k]
		}
	}

	vertexMap := c.optimizer.OptimizeVertices(c.indices, c.numDrawVerts)
	for i, v := range c.indices {
		c.indices[i] = uint32(vertexMap[v])
	}
	for f := 0; f < c.numFaces; f++ {
		size := c.FaceSize(f)
		for k := 0; k < size; k++ {
			c.setInputIndexSplit(f, k, vertexMap[c.inputIndexSplit(f, k)])
		}
	}
}
