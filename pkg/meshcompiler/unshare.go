package meshcompiler

import "sort"

// ringTri is a node of the circular list of triangles of one polygon that
// still lack an owned corner. Nodes link by index into a per-face arena.
type ringTri struct {
	prev, next int
}

type cornerValence struct {
	corner, valence int
}

// forceUnsharedFaceVertex makes sure the first slot of every triangle
// references a vertex no other face uses as its provoking vertex. Other
// faces may still reference it in their remaining slots. Polygons are processed before
// triangles so that triangles may still claim vertices that polygons left
// free. New vertices are appended when a face has no claimable corner.
func (c *Compiler) forceUnsharedFaceVertex() {
	numInitialVerts := c.numDrawVerts

	// vertexUsed[v] is the face owning vertex v, -1 if unclaimed
	vertexUsed := make([]int, numInitialVerts)
	for i := range vertexUsed {
		vertexUsed[i] = -1
	}

	var (
		ring  []ringTri
		prios []cornerValence
	)

	triCounter := 0
	for sortFace := 0; sortFace < c.numFaces; sortFace++ {
		face := c.sortedFace(sortFace)
		size := c.FaceSize(face)

		if size > 3 {
			faceTris := size - 2

			ring = ring[:0]
			for i := 0; i < faceTris; i++ {
				ring = append(ring, ringTri{
					prev: (i + faceTris - 1) % faceTris,
					next: (i + 1) % faceTris,
				})
			}
			if cap(prios) < size {
				prios = make([]cornerValence, size)
			}
			prios = prios[:size]

			tri := func(t int) []cornerRef {
				base := (triCounter + t) * 3
				return c.triIndexBuffer[base : base+3]
			}

			current := 0
			covered := 0
			for covered < faceTris {
				for k := range prios {
					prios[k] = cornerValence{corner: k}
				}

				remaining := faceTris - covered
				for t := 0; t < remaining; t++ {
					for _, ref := range tri(current) {
						prios[ref.index()].valence++
					}
					current = ring[current].next
				}

				sort.SliceStable(prios, func(i, j int) bool {
					return prios[i].valence > prios[j].valence
				})

				goodCorner, goodVertex, bestValence := -1, -1, -1
				for _, p := range prios {
					if p.valence == 0 {
						break
					}
					vertex := c.inputIndexSplit(face, p.corner)
					if vertex >= numInitialVerts || vertexUsed[vertex] == face {
						// already owned by this polygon
						goodCorner, goodVertex = p.corner, vertex
						break
					}
					if vertexUsed[vertex] < 0 && bestValence < p.valence {
						goodCorner, goodVertex, bestValence = p.corner, vertex, p.valence
					}
				}

				if goodCorner < 0 {
					goodCorner = prios[0].corner
					c.setInputIndexSplit(face, goodCorner, c.numDrawVerts)
				} else if goodVertex < numInitialVerts {
					vertexUsed[goodVertex] = face
				}

				for t := 0; t < remaining; t++ {
					refs := tri(current)
					for k, ref := range refs {
						if ref.index() != goodCorner {
							continue
						}
						old := [3]cornerRef{refs[0], refs[1], refs[2]}
						rot := 3 - k
						for i := range old {
							refs[(i+rot)%3] = old[i]
						}
						covered++

						n := ring[current]
						ring[n.prev].next = n.next
						ring[n.next].prev = n.prev
						break
					}
					current = ring[current].next
				}
			}
		}

		triCounter += c.faceTriCount(face)
	}

	triCounter = 0
	for sortFace := 0; sortFace < c.numFaces; sortFace++ {
		face := c.sortedFace(sortFace)
		size := c.FaceSize(face)

		if size == 3 {
			var shared [3]bool
			numShared := 0
			for k := 0; k < 3; k++ {
				vertex := c.inputIndexSplit(face, k)
				if vertex < numInitialVerts && vertexUsed[vertex] >= 0 && vertexUsed[vertex] != face {
					shared[k] = true
					numShared++
				}
			}

			switch {
			case numShared == 3:
				// every corner belongs to a neighbor, add a vertex for this face
				c.setInputIndexSplit(face, 0, c.numDrawVerts)

			case shared[0]:
				rot := 1
				for ; rot < 3; rot++ {
					if !shared[rot] {
						if vertex := c.inputIndexSplit(face, rot); vertex < numInitialVerts {
							vertexUsed[vertex] = face
						}
						break
					}
				}
				refs := c.triIndexBuffer[triCounter*3 : triCounter*3+3]
				for i := range refs {
					refs[i] = localCorner((i + rot) % 3)
				}

			default:
				if vertex := c.inputIndexSplit(face, 0); vertex < numInitialVerts {
					vertexUsed[vertex] = face
				}
			}
		}

		triCounter += c.faceTriCount(face)
	}
}
