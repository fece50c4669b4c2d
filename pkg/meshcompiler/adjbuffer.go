package meshcompiler

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// AdjBorder marks a triangle edge without a neighbor in adjacency index
// buffers.
const AdjBorder = 0xFFFFFFFF

// edgeKey is an undirected edge between two input positions.
type edgeKey struct {
	v0, v1 int
}

func newEdgeKey(a, b int) edgeKey {
	if a > b {
		a, b = b, a
	}
	return edgeKey{a, b}
}

// trianglePositions returns the input position of every index buffer entry.
// Edges are matched on positions so that split vertices still connect.
func (c *Compiler) trianglePositions() []int {
	pos := make([]int, c.numTris*3)
	for i := range pos {
		pos[i], _, _ = c.MapToOriginalVertexID(c.Index(i))
	}
	return pos
}

// initAdjBuffer lays out [v0, opp0, v1, opp1, v2, opp2] per triangle with
// every opposite vertex set to AdjBorder.
func (c *Compiler) initAdjBuffer() []uint32 {
	dst := make([]uint32, c.numTris*6)
	for t := 0; t < c.numTris; t++ {
		for k := 0; k < 3; k++ {
			dst[t*6+k*2] = c.indices[t*3+k]
			dst[t*6+k*2+1] = AdjBorder
		}
	}
	return dst
}

// IndexBufferWithAdjacency returns the triangle list with adjacency, six
// indices per triangle: each corner is followed by the vertex opposite to
// the edge starting at that corner in the neighboring triangle, or
// AdjBorder. Neighbors are found through a hash map of edges.
func (c *Compiler) IndexBufferWithAdjacency() []uint32 {
	dst := c.initAdjBuffer()
	pos := c.trianglePositions()

	type edgeTris struct{ first, second int }
	edges := make(map[edgeKey]edgeTris, c.numTris*3/2)
	order := make([]edgeKey, 0, c.numTris*3/2)

	for t := 0; t < c.numTris; t++ {
		for e := 0; e < 3; e++ {
			key := newEdgeKey(pos[t*3+e], pos[t*3+(e+1)%3])
			if et, ok := edges[key]; ok {
				et.second = t
				edges[key] = et
				continue
			}
			edges[key] = edgeTris{first: t, second: -1}
			order = append(order, key)
		}
	}

	findEdge := func(t int, key edgeKey) int {
		edge := -1
		for e := 0; e < 3; e++ {
			if newEdgeKey(pos[t*3+e], pos[t*3+(e+1)%3]) == key {
				edge = e
			}
		}
		return edge
	}

	for _, key := range order {
		et := edges[key]
		if et.second < 0 {
			continue
		}
		e0 := findEdge(et.first, key)
		e1 := findEdge(et.second, key)
		dst[et.first*6+e0*2+1] = c.indices[et.second*3+(e1+2)%3]
		dst[et.second*6+e1*2+1] = c.indices[et.first*3+(e0+2)%3]
	}
	return dst
}

// triangleAdjacency maps every input position to the output triangles
// using it.
func (c *Compiler) triangleAdjacency(pos []int) *adjacencyList {
	return buildAdjacency(c.numPositions(), func(emit func(vertex, item int)) {
		for i, p := range pos {
			emit(p, i/3)
		}
	})
}

// fillTriangleAdjacency writes the opposite vertices of triangle t0. It only
// writes the slots of t0.
func (c *Compiler) fillTriangleAdjacency(dst []uint32, pos []int, adj *adjacencyList, t0 int) {
	for e0 := 0; e0 < 3; e0++ {
		a := pos[t0*3+e0]
		if a < 0 || a >= adj.num() {
			continue
		}
		key := newEdgeKey(a, pos[t0*3+(e0+1)%3])

		for k := 0; k < adj.countOf(a); k++ {
			t1 := adj.adj(a, k)
			if t1 == t0 {
				continue
			}
			for e1 := 0; e1 < 3; e1++ {
				if newEdgeKey(pos[t1*3+e1], pos[t1*3+(e1+1)%3]) == key {
					dst[t0*6+e0*2+1] = c.indices[t1*3+(e1+2)%3]
				}
			}
		}
	}
}

// IndexBufferWithAdjacencyVertexTri is IndexBufferWithAdjacency computed
// through a position -> triangle adjacency list instead of an edge map.
func (c *Compiler) IndexBufferWithAdjacencyVertexTri() []uint32 {
	dst := c.initAdjBuffer()
	pos := c.trianglePositions()
	adj := c.triangleAdjacency(pos)
	for t := 0; t < c.numTris; t++ {
		c.fillTriangleAdjacency(dst, pos, adj, t)
	}
	return dst
}

// IndexBufferWithAdjacencyParallel is IndexBufferWithAdjacencyVertexTri
// spread over workers goroutines. Every worker owns a disjoint range of
// triangles. workers <= 0 uses GOMAXPROCS.
func (c *Compiler) IndexBufferWithAdjacencyParallel(ctx context.Context, workers int) ([]uint32, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	dst := c.initAdjBuffer()
	pos := c.trianglePositions()
	adj := c.triangleAdjacency(pos)

	const chunk = 1024
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for start := 0; start < c.numTris; start += chunk {
		end := min(start+chunk, c.numTris)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for t := start; t < end; t++ {
				c.fillTriangleAdjacency(dst, pos, adj, t)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return dst, nil
}

// IndexBufferWithAdjacencyBruteForce compares every pair of triangles. It is
// quadratic and serves as a reference for the other builders.
func (c *Compiler) IndexBufferWithAdjacencyBruteForce() []uint32 {
	dst := c.initAdjBuffer()
	pos := c.trianglePositions()

	for t0 := 0; t0 < c.numTris; t0++ {
		for t1 := t0 + 1; t1 < c.numTris; t1++ {
			for e0 := 0; e0 < 3; e0++ {
				k0 := newEdgeKey(pos[t0*3+e0], pos[t0*3+(e0+1)%3])
				for e1 := 0; e1 < 3; e1++ {
					if newEdgeKey(pos[t1*3+e1], pos[t1*3+(e1+1)%3]) != k0 {
						continue
					}
					dst[t0*6+e0*2+1] = c.indices[t1*3+(e1+2)%3]
					dst[t1*6+e1*2+1] = c.indices[t0*3+(e0+2)%3]
				}
			}
		}
	}
	return dst
}
