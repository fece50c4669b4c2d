package meshcompiler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoTriangles() testMesh {
	return testMesh{
		pos:   []float32{0, 0, 0, 1, 0, 0, 0, 1, 0, 1, 1, 0},
		faces: [][]int{{0, 1, 2}, {2, 1, 3}},
	}
}

func TestIndexBufferWithAdjacency(t *testing.T) {
	c := buildMesh(t, twoTriangles(), BuildOptions{})
	require.Equal(t, []uint32{0, 1, 2, 2, 1, 3}, c.IndexBuffer())

	want := []uint32{
		0, AdjBorder, 1, 3, 2, AdjBorder,
		2, 0, 1, AdjBorder, 3, AdjBorder,
	}
	assert.Equal(t, want, c.IndexBufferWithAdjacency())
	assert.Equal(t, want, c.IndexBufferWithAdjacencyVertexTri())
	assert.Equal(t, want, c.IndexBufferWithAdjacencyBruteForce())

	got, err := c.IndexBufferWithAdjacencyParallel(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestAdjacencyBuildersAgree(t *testing.T) {
	for name, opts := range map[string]BuildOptions{
		"plain":     {},
		"optimized": {OptimizeVCache: true},
		"per face":  {OptimizeVCache: true, NeedPerFaceAttribute: true},
	} {
		t.Run(name, func(t *testing.T) {
			c := buildMesh(t, gridMesh(12, 9), opts)

			want := c.IndexBufferWithAdjacencyBruteForce()
			require.Len(t, want, c.NumTriangles()*6)
			assert.Equal(t, want, c.IndexBufferWithAdjacency())
			assert.Equal(t, want, c.IndexBufferWithAdjacencyVertexTri())

			got, err := c.IndexBufferWithAdjacencyParallel(context.Background(), 3)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestAdjacencyAcrossSplitVertices(t *testing.T) {
	c := buildMesh(t, cubeMesh(), BuildOptions{Weld: true})
	require.Equal(t, 24, c.NumVertices())

	// the cube is closed, so every edge has a neighbor even though no two
	// faces share a draw vertex
	adj := c.IndexBufferWithAdjacency()
	for i := 1; i < len(adj); i += 2 {
		assert.NotEqual(t, uint32(AdjBorder), adj[i], "slot %d", i)
	}
	assert.Equal(t, adj, c.IndexBufferWithAdjacencyVertexTri())
}

func TestAdjacencyParallelCanceled(t *testing.T) {
	c := buildMesh(t, cubeMesh(), BuildOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.IndexBufferWithAdjacencyParallel(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
}
