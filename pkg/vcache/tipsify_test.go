package vcache

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// grid returns a w x h quad grid split into triangles, emitted column by
// column, which is a poor order for a small cache.
func grid(w, h int) ([]uint32, int) {
	var idx []uint32
	vert := func(x, y int) uint32 { return uint32(y*(w+1) + x) }
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			idx = append(idx,
				vert(x, y), vert(x+1, y), vert(x+1, y+1),
				vert(x, y), vert(x+1, y+1), vert(x, y+1))
		}
	}
	return idx, (w + 1) * (h + 1)
}

func sortedTris(idx []uint32) [][3]uint32 {
	tris := make([][3]uint32, len(idx)/3)
	for i := range tris {
		tris[i] = [3]uint32{idx[i*3], idx[i*3+1], idx[i*3+2]}
	}
	sort.Slice(tris, func(i, j int) bool {
		a, b := tris[i], tris[j]
		for k := 0; k < 3; k++ {
			if a[k] != b[k] {
				return a[k] < b[k]
			}
		}
		return false
	})
	return tris
}

func TestOptimizeTrianglesIsPermutation(t *testing.T) {
	idx, numVerts := grid(16, 16)
	out, triMap := New(12).OptimizeTriangles(idx, numVerts)

	require.Len(t, out, len(idx))
	require.Len(t, triMap, len(idx)/3)
	assert.Equal(t, sortedTris(idx), sortedTris(out))

	seen := make(map[int]bool)
	for k, src := range triMap {
		require.False(t, seen[src], "triangle %d emitted twice", src)
		seen[src] = true
		assert.Equal(t, idx[src*3:src*3+3], out[k*3:k*3+3])
	}
}

func TestOptimizeTrianglesImprovesACMR(t *testing.T) {
	idx, numVerts := grid(32, 32)
	before := ACMR(idx, numVerts, 12)
	out, _ := New(12).OptimizeTriangles(idx, numVerts)
	after := ACMR(out, numVerts, 12)

	assert.Less(t, after, before)
}

func TestOptimizeTrianglesDegenerate(t *testing.T) {
	idx := []uint32{0, 0, 1, 1, 2, 3, 0, 1, 2}
	out, triMap := Tipsify{}.OptimizeTriangles(idx, 0)
	assert.Len(t, out, 9)
	assert.ElementsMatch(t, []int{0, 1, 2}, triMap)

	out, triMap = Tipsify{}.OptimizeTriangles(nil, 4)
	assert.Empty(t, out)
	assert.Empty(t, triMap)
}

func TestOptimizeVertices(t *testing.T) {
	remap := Tipsify{}.OptimizeVertices([]uint32{4, 2, 4, 0, 2, 5}, 7)
	// referenced in order 4, 2, 0, 5, then unreferenced 1, 3, 6
	assert.Equal(t, []int{2, 4, 1, 5, 0, 3, 6}, remap)
}

func TestACMR(t *testing.T) {
	tests := []struct {
		name      string
		indices   []uint32
		cacheSize int
		want      float64
	}{
		{"empty", nil, 4, 0},
		{"single", []uint32{0, 1, 2}, 4, 3},
		{"shared edge", []uint32{0, 1, 2, 2, 1, 3}, 4, 2},
		{"evicted", []uint32{0, 1, 2, 3, 4, 5, 0, 1, 2}, 3, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ACMR(tt.indices, 0, tt.cacheSize), 1e-9)
		})
	}
}
