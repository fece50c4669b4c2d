package meshcompiler

// vertexSplitter assigns one draw vertex id to every distinct attribute
// index combination.
//
// Every id owns an entry [next, attr0, attr1, ...] in splits. Ids below
// numBaseVerts are position indices and head the chain of combinations
// split from that position. next is -1 for a never referenced position and
// points to itself at the end of a chain.
type vertexSplitter struct {
	numAttribs   int
	posAttr      int
	numVerts     int // next free id
	numBaseVerts int
	splits       []int
}

func newVertexSplitter(numAttribs, posAttr, numVerts, numWorstCase int) *vertexSplitter {
	if numWorstCase <= 0 {
		numWorstCase = numVerts
	}
	s := &vertexSplitter{
		numAttribs:   numAttribs,
		posAttr:      posAttr,
		numVerts:     numVerts,
		numBaseVerts: numVerts,
		splits:       make([]int, (numAttribs+1)*(numWorstCase+1)),
	}
	for i := range s.splits {
		s.splits[i] = -1
	}
	return s
}

// entry returns the storage of id, growing the backing array if needed.
func (s *vertexSplitter) entry(id int) []int {
	size := s.numAttribs + 1
	end := (id + 1) * size
	if end > len(s.splits) {
		grown := make([]int, max(end, 2*len(s.splits)))
		n := copy(grown, s.splits)
		for i := n; i < len(grown); i++ {
			grown[i] = -1
		}
		s.splits = grown
	}
	return s.splits[id*size : end]
}

// split returns the draw vertex id of an attribute index combination.
func (s *vertexSplitter) split(vertex []int) int {
	pos := vertex[s.posAttr]
	if pos < 0 || pos >= s.numBaseVerts {
		// invalid position index, keep the corner on a vertex of its own
		return s.append(vertex)
	}
	e := s.entry(pos)

	if e[0] < 0 {
		// first reference of this position
		copy(e[1:], vertex)
		e[0] = pos
		return pos
	}

	for {
		if equalInts(e[1:], vertex) {
			return pos
		}
		next := e[0]
		if next == pos {
			break
		}
		pos = next
		e = s.entry(pos)
	}

	newID := s.append(vertex)
	s.entry(pos)[0] = newID
	return newID
}

// append stores vertex under a fresh id.
func (s *vertexSplitter) append(vertex []int) int {
	id := s.numVerts
	s.numVerts++

	e := s.entry(id)
	e[0] = id
	copy(e[1:], vertex)
	return id
}

// isIsolated reports whether a position was never referenced by a face.
func (s *vertexSplitter) isIsolated(pos int) bool {
	return pos < s.numBaseVerts && s.entry(pos)[0] < 0
}

func equalInts(a, b []int) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// splitVertices assigns draw vertex ids to all face corners and removes
// isolated positions from the id range.
func (c *Compiler) splitVertices() {
	numPositions := c.numPositions()

	// heuristic pre-size: the largest surplus of an attribute over positions
	estimated := 0
	numLarger := 0
	for a := range c.inputs {
		if a == c.posAttr {
			continue
		}
		if diff := c.inputs[a].count - numPositions; diff > 0 {
			estimated = max(estimated, diff)
			numLarger++
		}
	}
	if numLarger > 1 {
		estimated = int(float32(estimated) * 1.2)
	}
	// worst case: no corner shares a vertex
	maxSplits := max(c.numIndices-numPositions, 0)
	estimated = min(estimated, maxSplits)

	c.splitter = newVertexSplitter(len(c.inputs), c.posAttr, numPositions, numPositions+estimated)

	c.faceBufSplit = make([]int, c.numIndices)
	for i := range c.faceBufSplit {
		c.faceBufSplit[i] = -1
	}
	c.numDrawVerts = 0

	vertex := make([]int, len(c.inputs))
	for f := 0; f < c.numFaces; f++ {
		size := c.FaceSize(f)
		for k := 0; k < size; k++ {
			c.inputFaceVertexWelded(f, k, vertex)
			c.setInputIndexSplit(f, k, c.splitter.split(vertex))
		}
	}

	c.findIsolatedVertices()
	if c.numIsolatedVerts == 0 {
		return
	}

	// isoFix[id] is minus the number of isolated ids up to id; adding it
	// compacts the id range whatever the position of the isolated ids.
	isoFix := make([]int, c.splitter.numVerts)
	fix := 0
	for i := range isoFix {
		if c.splitter.isIsolated(i) {
			fix--
		}
		isoFix[i] = fix
	}

	c.numDrawVerts = 0
	for f := 0; f < c.numFaces; f++ {
		size := c.FaceSize(f)
		for k := 0; k < size; k++ {
			id := c.inputIndexSplit(f, k)
			c.setInputIndexSplit(f, k, id+isoFix[id])
		}
	}
}

func (c *Compiler) findIsolatedVertices() {
	c.isolated = c.isolated[:0]
	for i := 0; i < c.numPositions(); i++ {
		if c.splitter.isIsolated(i) {
			c.isolated = append(c.isolated, i)
		}
	}
	c.numIsolatedVerts = len(c.isolated)
}
