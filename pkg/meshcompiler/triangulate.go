package meshcompiler

import (
	"sort"

	"go.uber.org/zap"
)

type refKind uint8

const (
	refLocal    refKind = iota // corner of the source face
	refResolved                // draw vertex id
)

// cornerRef is a triangle slot before and after corner resolution.
// Triangulation stores face-local corners; they are resolved to draw vertex
// ids only after unsharing has settled which vertex each corner uses.
type cornerRef struct {
	value int32
	kind  refKind
}

func localCorner(k int) cornerRef {
	return cornerRef{value: int32(k), kind: refLocal}
}

func resolvedVertex(v int) cornerRef {
	return cornerRef{value: int32(v), kind: refResolved}
}

func (r cornerRef) isLocal() bool { return r.kind == refLocal }
func (r cornerRef) index() int    { return int(r.value) }

// sortFacesByGroup orders faces by group id and creates one subset per group.
func (c *Compiler) sortFacesByGroup() {
	counts := make(map[int]int)
	for f := 0; f < c.numFaces; f++ {
		counts[c.FaceGroup(f)]++
	}

	groups := make([]int, 0, len(counts))
	for g := range counts {
		groups = append(groups, g)
	}
	sort.Ints(groups)

	c.subsets = make([]Subset, len(groups))
	c.subsetIDMap = make(map[int]int, len(groups))

	startFace := 0
	for i, g := range groups {
		c.subsets[i] = Subset{ID: g, NumFaces: counts[g], StartFace: startFace}
		c.subsetIDMap[g] = i
		startFace += counts[g]
	}

	if len(groups) <= 1 {
		c.faceSortMap = nil
		return
	}

	// stable partition: faces keep their input order inside a group
	c.faceSortMap = make([]int, c.numFaces)
	next := make([]int, len(groups))
	for i := range c.subsets {
		next[i] = c.subsets[i].StartFace
	}
	for f := 0; f < c.numFaces; f++ {
		s := c.subsetIDMap[c.FaceGroup(f)]
		c.faceSortMap[next[s]] = f
		next[s]++
	}
}

// triangulate expands every face into triangles of local corner references,
// in group-sorted face order.
func (c *Compiler) triangulate() {
	numTris := 0
	for f := 0; f < c.numFaces; f++ {
		numTris += c.faceTriCount(f)
	}
	c.numTris = numTris
	c.triIndexBuffer = make([]cornerRef, 0, numTris*3)
	c.triToSortFace = make([]int, 0, numTris)

	var poly [][3]float64
	for sortFace := 0; sortFace < c.numFaces; sortFace++ {
		face := c.sortedFace(sortFace)
		size := c.FaceSize(face)

		switch {
		case size < 3:
			continue
		case size == 3:
			c.emitTri(sortFace, 0, 1, 2)
			continue
		}

		poly = poly[:0]
		for k := 0; k < size; k++ {
			poly = append(poly, c.cornerPosition(face, k))
		}

		if c.decomposer.IsConvex(poly) {
			for k := 2; k < size; k++ {
				c.emitTri(sortFace, 0, k-1, k)
			}
			continue
		}

		tris := c.decomposer.Triangulate(poly)
		if !validTriangulation(tris, size) {
			c.log.Warn("polygon decomposition failed, using fan",
				zap.Int("face", face), zap.Int("size", size))
			for k := 2; k < size; k++ {
				c.emitTri(sortFace, 0, k-1, k)
			}
			continue
		}
		for t := 0; t < len(tris); t += 3 {
			c.emitTri(sortFace, tris[t], tris[t+1], tris[t+2])
		}
	}

	for i := range c.subsets {
		c.subsets[i].NumTris = 0
	}
	for t := 0; t < numTris; t++ {
		group := c.FaceGroup(c.sortedFace(c.triToSortFace[t]))
		c.subsets[c.subsetIDMap[group]].NumTris++
	}
	start := 0
	for i := range c.subsets {
		c.subsets[i].StartIndex = start
		start += c.subsets[i].NumTris * 3
	}
}

func (c *Compiler) emitTri(sortFace, k0, k1, k2 int) {
	c.triToSortFace = append(c.triToSortFace, sortFace)
	c.triIndexBuffer = append(c.triIndexBuffer, localCorner(k0), localCorner(k1), localCorner(k2))
}

// cornerPosition reads the position of a face corner as float64.
func (c *Compiler) cornerPosition(face, corner int) [3]float64 {
	var buf [24]byte
	desc := VertexElement{Type: Float64, NumComponents: 3}
	c.inputs[c.posAttr].element(c.inputIndex(face, corner, c.posAttr), buf[:], desc)
	return [3]float64{
		readFloat(buf[0:], Float64),
		readFloat(buf[8:], Float64),
		readFloat(buf[16:], Float64),
	}
}

func validTriangulation(tris []int, size int) bool {
	if len(tris) != 3*(size-2) {
		return false
	}
	for _, k := range tris {
		if k < 0 || k >= size {
			return false
		}
	}
	return true
}

// resolveTriangulation moves the unshared slot to the provoking position and
// replaces local corners by draw vertex ids.
func (c *Compiler) resolveTriangulation() {
	if c.provokingVertex >= 0 {
		rot := (3 - c.provokingVertex%3) % 3
		for t := 0; t < c.numTris; t++ {
			tri := c.triIndexBuffer[t*3 : t*3+3]
			for r := 0; r < rot; r++ {
				tri[0], tri[1], tri[2] = tri[1], tri[2], tri[0]
			}
		}
	}

	for t := 0; t < c.numTris; t++ {
		face := c.sortedFace(c.triToSortFace[t])
		tri := c.triIndexBuffer[t*3 : t*3+3]
		for k := range tri {
			if tri[k].isLocal() {
				tri[k] = resolvedVertex(c.inputIndexSplit(face, tri[k].index()))
			}
		}
	}
}

// resolvedIndices returns the triangle list as draw vertex ids.
func (c *Compiler) resolvedIndices() []uint32 {
	out := make([]uint32, len(c.triIndexBuffer))
	for i, r := range c.triIndexBuffer {
		out[i] = uint32(r.index())
	}
	return out
}
