package meshcompiler

import "go.uber.org/zap"

type weldEntry struct {
	face, corner       int
	refFace, refCorner int
}

// weldList collects the corners of one position and their canonical corner.
// buf caches the interleaved data of every entry so each corner is read once.
type weldList struct {
	entries []weldEntry
	buf     []byte
	stride  int
}

func (l *weldList) reset() {
	l.entries = l.entries[:0]
}

func (l *weldList) add(c *Compiler, face, corner int) {
	n := len(l.entries)
	if need := (n + 1) * l.stride; need > len(l.buf) {
		l.buf = append(l.buf, make([]byte, need-len(l.buf))...)
	}

	v0 := l.buf[n*l.stride : (n+1)*l.stride]
	c.inputFaceVertexData(face, corner, v0)

	e := weldEntry{face: face, corner: corner, refFace: face, refCorner: corner}
	for i := 0; i < n; i++ {
		if c.compare.Equal(v0, l.buf[i*l.stride:(i+1)*l.stride], c.decl) {
			e.refFace, e.refCorner = l.entries[i].refFace, l.entries[i].refCorner
			break
		}
	}
	l.entries = append(l.entries, e)
}

// weldVertices maps every (face, corner) to a canonical corner with equal
// vertex data. Only corners sharing a position are compared.
func (c *Compiler) weldVertices() {
	c.weldFace = make([]int, c.numIndices)
	c.weldCorner = make([]int, c.numIndices)
	for i := range c.weldFace {
		c.weldFace[i] = -1
		c.weldCorner[i] = -1
	}

	numVerts := c.numPositions()
	list := weldList{stride: c.decl.Stride()}
	faulty := false

	for v := 0; v < numVerts && !faulty; v++ {
		list.reset()

		numAdj := c.adjVertexFaceCount(v)
		for k := 0; k < numAdj; k++ {
			face := c.adjVertexFace(v, k)
			corner := c.findCorner(face, v)
			if corner < 0 {
				faulty = true
				break
			}
			if c.weldFace[c.faceOffset(face)+corner] >= 0 {
				continue
			}
			list.add(c, face, corner)
		}
		if faulty {
			break
		}

		for _, e := range list.entries {
			offset := c.faceOffset(e.face) + e.corner
			if c.weldFace[offset] >= 0 {
				continue
			}
			c.weldFace[offset] = e.refFace
			c.weldCorner[offset] = e.refCorner
		}
	}

	if !faulty {
		c.fixWeldMap()
		return
	}

	c.weldFace, c.weldCorner = nil, nil
	if c.adjacency == nil {
		// the face input's adjacency contradicts its faces, use our own
		c.log.Warn("faulty vertex adjacency from face input, recomputing")
		c.computeAdjacency(true)
		c.weldVertices()
		return
	}
	c.log.Error("faulty internal adjacency list, welding skipped",
		zap.Int("positions", numVerts))
}

// findCorner returns the corner of face referencing position v, or -1.
func (c *Compiler) findCorner(face, v int) int {
	if face < 0 || face >= c.numFaces {
		return -1
	}
	size := c.FaceSize(face)
	for m := 0; m < size; m++ {
		if c.inputIndex(face, m, c.posAttr) == v {
			return m
		}
	}
	return -1
}

// fixWeldMap maps corners never reached through adjacency onto themselves.
func (c *Compiler) fixWeldMap() {
	for f := 0; f < c.numFaces; f++ {
		size := c.FaceSize(f)
		for k := 0; k < size; k++ {
			offset := c.faceOffset(f) + k
			if c.weldFace[offset] < 0 {
				c.weldFace[offset] = f
				c.weldCorner[offset] = k
			}
		}
	}
}
