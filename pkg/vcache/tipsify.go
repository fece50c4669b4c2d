// Package vcache reorders indexed triangle lists for post-transform vertex
// cache locality.
//
// Triangle order follows Tipsify (Sander, Nehab, Barczak: "Fast Triangle
// Reordering for Vertex Locality and Reduced Overdraw", 2007).
package vcache

// Tipsify is a linear time triangle reordering for a vertex cache of
// CacheSize entries. The zero value uses a cache size of 24.
type Tipsify struct {
	CacheSize int
}

// New returns a Tipsify optimizer for the given cache size.
func New(cacheSize int) Tipsify {
	return Tipsify{CacheSize: cacheSize}
}

func (o Tipsify) cacheSize() int {
	if o.CacheSize <= 0 {
		return 24
	}
	return o.CacheSize
}

// vertexCount returns the number of vertex slots needed for indices.
func vertexCount(indices []uint32, numVerts int) int {
	for _, v := range indices {
		numVerts = max(numVerts, int(v)+1)
	}
	return numVerts
}

// OptimizeTriangles returns the triangles of indices in cache friendly order.
// triMap[k] is the input triangle written as output triangle k.
func (o Tipsify) OptimizeTriangles(indices []uint32, numVerts int) ([]uint32, []int) {
	numTris := len(indices) / 3
	numVerts = vertexCount(indices, numVerts)
	cacheSize := o.cacheSize()

	// vertex -> triangle adjacency, packed
	start := make([]int, numVerts+1)
	for _, v := range indices[:numTris*3] {
		start[v+1]++
	}
	for v := 0; v < numVerts; v++ {
		start[v+1] += start[v]
	}
	adj := make([]int, numTris*3)
	fill := make([]int, numVerts)
	copy(fill, start[:numVerts])
	for i, v := range indices[:numTris*3] {
		adj[fill[v]] = i / 3
		fill[v]++
	}

	live := make([]int, numVerts)
	for v := range live {
		live[v] = start[v+1] - start[v]
	}

	cacheTime := make([]int, numVerts)
	timeStamp := cacheSize + 1
	emitted := make([]bool, numTris)
	deadEnd := make([]int, 0, 64)
	candidates := make([]int, 0, 32)

	out := make([]uint32, 0, numTris*3)
	triMap := make([]int, 0, numTris)

	cursor := 0
	nextLive := func() int {
		for len(deadEnd) > 0 {
			d := deadEnd[len(deadEnd)-1]
			deadEnd = deadEnd[:len(deadEnd)-1]
			if live[d] > 0 {
				return d
			}
		}
		for ; cursor < numVerts; cursor++ {
			if live[cursor] > 0 {
				return cursor
			}
		}
		return -1
	}

	f := nextLive()
	for f >= 0 {
		candidates = candidates[:0]
		for _, t := range adj[start[f]:start[f+1]] {
			if emitted[t] {
				continue
			}
			for k := 0; k < 3; k++ {
				v := int(indices[t*3+k])
				deadEnd = append(deadEnd, v)
				candidates = append(candidates, v)
				live[v]--
				if timeStamp-cacheTime[v] > cacheSize {
					cacheTime[v] = timeStamp
					timeStamp++
				}
			}
			emitted[t] = true
			out = append(out, indices[t*3], indices[t*3+1], indices[t*3+2])
			triMap = append(triMap, t)
		}

		// prefer the candidate that stays in the cache longest once all its
		// remaining triangles are emitted
		best, bestPriority := -1, -1
		for _, v := range candidates {
			if live[v] <= 0 {
				continue
			}
			priority := 0
			if age := timeStamp - cacheTime[v]; age+2*live[v] <= cacheSize {
				priority = age
			}
			if priority > bestPriority {
				best, bestPriority = v, priority
			}
		}
		if best < 0 {
			best = nextLive()
		}
		f = best
	}
	return out, triMap
}

// OptimizeVertices returns a renumbering old id -> new id that orders
// vertices by first use in indices. Unreferenced vertices keep their relative
// order behind all referenced ones.
func (o Tipsify) OptimizeVertices(indices []uint32, numVerts int) []int {
	numVerts = vertexCount(indices, numVerts)
	remap := make([]int, numVerts)
	for i := range remap {
		remap[i] = -1
	}
	next := 0
	for _, v := range indices {
		if remap[v] < 0 {
			remap[v] = next
			next++
		}
	}
	for i := range remap {
		if remap[i] < 0 {
			remap[i] = next
			next++
		}
	}
	return remap
}

// ACMR simulates a FIFO vertex cache and returns the average number of
// cache misses per triangle.
func ACMR(indices []uint32, numVerts, cacheSize int) float64 {
	numTris := len(indices) / 3
	if numTris == 0 {
		return 0
	}
	numVerts = vertexCount(indices, numVerts)

	// inCache[v] is the miss count at which v entered the cache, -1 if never
	inCache := make([]int, numVerts)
	for i := range inCache {
		inCache[i] = -1
	}
	misses := 0
	for _, v := range indices[:numTris*3] {
		if t := inCache[v]; t >= 0 && misses-t < cacheSize {
			continue
		}
		inCache[v] = misses
		misses++
	}
	return float64(misses) / float64(numTris)
}
