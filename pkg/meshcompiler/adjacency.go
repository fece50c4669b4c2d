package meshcompiler

// adjacencyList maps a vertex to the items (faces or triangles) using it.
// All entries live in one packed buffer addressed through start/count.
type adjacencyList struct {
	start []int
	count []int
	buf   []int
}

// buildAdjacency runs visit twice: once to count entries per vertex, once to
// fill the packed buffer at prefix-summed offsets. Vertices outside
// [0, numVerts) are ignored.
func buildAdjacency(numVerts int, visit func(emit func(vertex, item int))) *adjacencyList {
	a := &adjacencyList{
		start: make([]int, numVerts),
		count: make([]int, numVerts),
	}

	visit(func(vertex, _ int) {
		if vertex >= 0 && vertex < numVerts {
			a.count[vertex]++
		}
	})

	total := 0
	for i := range a.count {
		a.start[i] = total
		total += a.count[i]
		a.count[i] = 0
	}

	a.buf = make([]int, total)
	visit(func(vertex, item int) {
		if vertex >= 0 && vertex < numVerts {
			a.buf[a.start[vertex]+a.count[vertex]] = item
			a.count[vertex]++
		}
	})
	return a
}

func (a *adjacencyList) num() int {
	return len(a.start)
}

func (a *adjacencyList) adj(vertex, k int) int {
	return a.buf[a.start[vertex]+k]
}

func (a *adjacencyList) countOf(vertex int) int {
	return a.count[vertex]
}

func (a *adjacencyList) memoryUsage() int {
	return (len(a.start) + len(a.count) + len(a.buf)) * 4
}

// computeAdjacency builds the vertex -> face list unless the face input
// already provides one.
func (c *Compiler) computeAdjacency(force bool) {
	if !force && (c.adjacency != nil || c.faceInput.VertexAdjCount(0) >= 0) {
		return
	}

	c.adjacency = buildAdjacency(c.numPositions(), func(emit func(vertex, item int)) {
		for f := 0; f < c.numFaces; f++ {
			size := c.FaceSize(f)
			for k := 0; k < size; k++ {
				emit(c.inputIndex(f, k, c.posAttr), f)
			}
		}
	})
}

func (c *Compiler) adjVertexFaceCount(vertex int) int {
	if c.adjacency != nil {
		return c.adjacency.countOf(vertex)
	}
	return c.faceInput.VertexAdjCount(vertex)
}

func (c *Compiler) adjVertexFace(vertex, k int) int {
	if c.adjacency != nil {
		return c.adjacency.adj(vertex, k)
	}
	return c.faceInput.VertexAdjFace(vertex, k)
}
