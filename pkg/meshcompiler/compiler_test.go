package meshcompiler

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// testMesh is an indexed polygon mesh; nil index lists leave the attribute
// unset for a face.
type testMesh struct {
	pos         []float32
	normals     []float32
	faces       [][]int
	faceNormals [][]int
	groups      []int
}

var cubePositions = []float32{
	0, 0, 0, 1, 0, 0, 0, 1, 0, 1, 1, 0,
	0, 0, 1, 1, 0, 1, 0, 1, 1, 1, 1, 1,
}

var cubeFaces = [][]int{
	{0, 1, 3, 2}, {4, 5, 7, 6},
	{0, 1, 5, 4}, {2, 3, 7, 6},
	{0, 2, 6, 4}, {1, 5, 7, 3},
}

// cubeMesh returns a unit cube of quads with one normal per face.
func cubeMesh() testMesh {
	m := testMesh{
		pos: cubePositions,
		normals: []float32{
			0, 0, -1, 0, 0, 1,
			0, -1, 0, 0, 1, 0,
			-1, 0, 0, 1, 0, 0,
		},
		faces: cubeFaces,
	}
	for f := range m.faces {
		m.faceNormals = append(m.faceNormals, []int{f, f, f, f})
	}
	return m
}

// gridMesh returns a w x h grid of quads in the xy plane.
func gridMesh(w, h int) testMesh {
	var m testMesh
	for y := 0; y <= h; y++ {
		for x := 0; x <= w; x++ {
			m.pos = append(m.pos, float32(x), float32(y), 0)
		}
	}
	v := func(x, y int) int { return y*(w+1) + x }
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			m.faces = append(m.faces, []int{v(x, y), v(x+1, y), v(x+1, y+1), v(x, y+1)})
		}
	}
	return m
}

func newTestCompiler(t *testing.T, decl *VertexDeclaration, opts Options) *Compiler {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = zaptest.NewLogger(t)
	}
	c, err := New(decl, opts)
	require.NoError(t, err)
	return c
}

func (m testMesh) load(c *Compiler) {
	c.SetAttribFloat32(c.posAttr, 3, m.pos)
	if m.normals != nil {
		c.SetAttribFloat32(c.normalAttr, 3, m.normals)
	}
	c.SetNumFaces(len(m.faces), 0)
	for f, idx := range m.faces {
		c.SetFaceVerts(f, idx...)
		if f < len(m.faceNormals) && m.faceNormals[f] != nil {
			c.SetFaceNormals(f, m.faceNormals[f]...)
		}
		if f < len(m.groups) {
			c.SetFaceGroup(f, m.groups[f])
		}
	}
}

func buildMesh(t *testing.T, m testMesh, opts BuildOptions) *Compiler {
	t.Helper()
	c := newTestCompiler(t, DefaultDeclaration(), Options{})
	m.load(c)
	require.NoError(t, c.Build(opts))
	return c
}

func vertexPosition(c *Compiler, v int) [3]float32 {
	buf := make([]byte, c.Declaration().Stride())
	c.Vertex(v, buf)
	el := c.Declaration().Element(c.posAttr)
	var p [3]float32
	for k := range p {
		p[k] = math.Float32frombits(binary.LittleEndian.Uint32(buf[el.Offset+4*k:]))
	}
	return p
}

func TestNewRequiresPosition(t *testing.T) {
	_, err := New(NewDeclaration(NewElement(UsageNormal, Float32, 3, "n")), Options{})
	assert.ErrorIs(t, err, ErrNoPositions)

	_, err = New(nil, Options{})
	assert.ErrorIs(t, err, ErrNoPositions)
}

func TestBuildWithoutFaces(t *testing.T) {
	c := newTestCompiler(t, DefaultDeclaration(), Options{})
	assert.ErrorIs(t, c.Build(BuildOptions{}), ErrNoFaceInput)
}

func TestQuad(t *testing.T) {
	c := buildMesh(t, testMesh{
		pos:   []float32{0, 0, 0, 1, 0, 0, 1, 1, 0, 0, 1, 0},
		faces: [][]int{{0, 1, 2, 3}},
	}, BuildOptions{})

	assert.Equal(t, 2, c.NumTriangles())
	assert.Equal(t, 4, c.NumVertices())
	assert.Equal(t, []uint32{0, 1, 2, 0, 2, 3}, c.IndexBuffer())

	require.Equal(t, 1, c.NumSubsets())
	assert.Equal(t, Subset{ID: -1, StartIndex: 0, NumTris: 2, NumFaces: 1, StartFace: 0}, c.Subset(0))

	for tri := 0; tri < 2; tri++ {
		assert.Equal(t, 0, c.MapToOriginalFaceID(tri))
	}
	tri, n := c.MapToDrawTriID(0, 1)
	assert.Equal(t, 1, tri)
	assert.Equal(t, 2, n)
	tri, _ = c.MapToDrawTriID(0, 2)
	assert.Equal(t, -1, tri)

	assert.False(t, c.IsTriangleMesh())
	assert.True(t, c.IsFaceEdge(0, 0))
	assert.True(t, c.IsFaceEdge(0, 1))
	assert.False(t, c.IsFaceEdge(0, 2), "diagonal of the quad")

	assert.Equal(t, [3]float32{1, 1, 0}, vertexPosition(c, 2))
	assert.NoError(t, c.Verify())
}

func TestWeldSharedEdge(t *testing.T) {
	// every corner has its own normal index; the shared corners carry equal
	// normal values
	m := testMesh{
		pos: []float32{0, 0, 0, 1, 0, 0, 0, 1, 0, 1, 1, 0},
		normals: []float32{
			0, 0, 1, 0, 0, 1, 0, 0, 1,
			0, 0, 1, 0, 0, 1, 0, 0, 1,
		},
		faces:       [][]int{{0, 1, 2}, {1, 3, 2}},
		faceNormals: [][]int{{0, 1, 2}, {3, 4, 5}},
	}

	c := buildMesh(t, m, BuildOptions{})
	assert.Equal(t, 6, c.NumVertices())

	c = buildMesh(t, m, BuildOptions{Weld: true})
	assert.Equal(t, 4, c.NumVertices())
	assert.Equal(t, c.MapToDrawVertexID(0, 1), c.MapToDrawVertexID(1, 0))
	assert.Equal(t, c.MapToDrawVertexID(0, 2), c.MapToDrawVertexID(1, 2))
	assert.True(t, c.IsTriangleMesh())
	assert.NoError(t, c.Verify())
}

func TestWeldKeepsDistinctNormals(t *testing.T) {
	c := buildMesh(t, cubeMesh(), BuildOptions{Weld: true})
	// a cube with face normals cannot share any corner
	assert.Equal(t, 24, c.NumVertices())
	assert.Equal(t, 12, c.NumTriangles())
}

func TestSplitByAttributeIndices(t *testing.T) {
	c := buildMesh(t, cubeMesh(), BuildOptions{})
	assert.Equal(t, 24, c.NumVertices())

	// every distinct (position, normal) pair maps to exactly one vertex
	seen := make(map[[2]int]int)
	for f, face := range cubeFaces {
		for k := range face {
			key := [2]int{face[k], f}
			v := c.MapToDrawVertexID(f, k)
			if prev, ok := seen[key]; ok {
				assert.Equal(t, prev, v)
			}
			seen[key] = v
		}
	}
	assert.Len(t, seen, 24)

	m := cubeMesh()
	m.faceNormals = nil
	c = buildMesh(t, m, BuildOptions{})
	assert.Equal(t, 8, c.NumVertices())
}

func TestRoundTrip(t *testing.T) {
	for name, opts := range map[string]BuildOptions{
		"plain":    {},
		"weld":     {Weld: true},
		"optimize": {OptimizeVCache: true},
		"all":      {Weld: true, OptimizeVCache: true, NeedPerFaceAttribute: true, KeepIsolated: true},
	} {
		t.Run(name, func(t *testing.T) {
			c := buildMesh(t, cubeMesh(), opts)
			for f, face := range cubeFaces {
				for k := range face {
					v := c.MapToDrawVertexID(f, k)
					pos, _, _ := c.MapToOriginalVertexID(v)
					assert.Equal(t, face[k], pos)

					want := [3]float32{cubePositions[face[k]*3], cubePositions[face[k]*3+1], cubePositions[face[k]*3+2]}
					assert.Equal(t, want, vertexPosition(c, v))
				}
			}
			assert.NoError(t, c.Verify())
		})
	}
}

func TestSubsetPartition(t *testing.T) {
	m := cubeMesh()
	m.groups = []int{2, 0, 2, 7, 0, 2}

	c := buildMesh(t, m, BuildOptions{OptimizeVCache: true})
	require.Equal(t, 3, c.NumSubsets())

	start := 0
	ids := []int{0, 2, 7}
	for i := 0; i < c.NumSubsets(); i++ {
		s := c.Subset(i)
		assert.Equal(t, ids[i], s.ID)
		assert.Equal(t, start, s.StartIndex)
		assert.Equal(t, i, c.FindGroupSubset(s.ID))
		for k := 0; k < s.NumTris; k++ {
			assert.Equal(t, s.ID, c.TriGroup(s.StartIndex/3+k))
		}
		start += s.NumTris * 3
	}
	assert.Equal(t, c.NumTriangles()*3, start)
	assert.Equal(t, -1, c.FindGroupSubset(5))
	assert.Equal(t, 3, c.Subset(1).NumFaces)
	assert.NoError(t, c.Verify())
}

func TestTriangleFaceConsistency(t *testing.T) {
	m := gridMesh(4, 3)
	m.faces = append(m.faces, []int{0, 1, 6})
	c := buildMesh(t, m, BuildOptions{OptimizeVCache: true})

	total := 0
	for f := range m.faces {
		_, n := c.MapToDrawTriID(f, 0)
		for k := 0; k < n; k++ {
			tri, _ := c.MapToDrawTriID(f, k)
			assert.Equal(t, f, c.MapToOriginalFaceID(tri))
		}
		total += n
	}
	assert.Equal(t, c.NumTriangles(), total)
}

func TestPerFaceAttributeUnshared(t *testing.T) {
	for name, m := range map[string]testMesh{
		"cube positions only": {pos: cubePositions, faces: cubeFaces},
		"grid":                gridMesh(5, 4),
		"fan of triangles": {
			pos:   []float32{0, 0, 0, 1, 0, 0, 1, 1, 0, 0, 1, 0, -1, 1, 0},
			faces: [][]int{{0, 1, 2}, {0, 2, 3}, {0, 3, 4}, {4, 3, 2, 1}},
		},
	} {
		t.Run(name, func(t *testing.T) {
			c := buildMesh(t, m, BuildOptions{NeedPerFaceAttribute: true, OptimizeVCache: true})
			require.Equal(t, 2, c.ProvokingVertex())

			owner := make(map[uint32]int)
			for tri := 0; tri < c.NumTriangles(); tri++ {
				v := c.IndexBuffer()[tri*3+2]
				face := c.MapToOriginalFaceID(tri)
				if prev, ok := owner[v]; ok {
					assert.Equal(t, prev, face, "provoking vertex %d shared", v)
				}
				owner[v] = face
			}
			assert.NoError(t, c.Verify())
		})
	}
}

func TestPerFaceAttributeSharesNonProvokingSlots(t *testing.T) {
	// both faces use the same three corners; the second face claims a free
	// corner instead of appending a vertex
	m := testMesh{
		pos:   []float32{0, 0, 0, 1, 0, 0, 0, 1, 0},
		faces: [][]int{{0, 1, 2}, {0, 2, 1}},
	}
	c := buildMesh(t, m, BuildOptions{NeedPerFaceAttribute: true})
	require.Equal(t, 2, c.NumTriangles())
	assert.Equal(t, 3, c.NumVertices())

	p0 := c.Index(2)
	p1 := c.Index(5)
	assert.NotEqual(t, p0, p1)
	assert.Contains(t, c.IndexBuffer()[3:5], uint32(p0), "first provoking vertex used by the other face")
	assert.NoError(t, c.Verify())
}

func TestProvokingVertexSlot(t *testing.T) {
	c := newTestCompiler(t, DefaultDeclaration(), Options{})
	m := testMesh{pos: cubePositions, faces: cubeFaces}
	m.load(c)
	c.SetProvokingVertex(0)
	require.NoError(t, c.Build(BuildOptions{NeedPerFaceAttribute: true}))

	assert.Equal(t, 0, c.ProvokingVertex())
	owner := make(map[int]int)
	for tri := 0; tri < c.NumTriangles(); tri++ {
		v := c.Index(tri * 3)
		face := c.MapToOriginalFaceID(tri)
		if prev, ok := owner[v]; ok {
			assert.Equal(t, prev, face, "provoking vertex %d shared", v)
		}
		owner[v] = face
	}
	assert.NoError(t, c.Verify())
}

func TestBuildIdempotent(t *testing.T) {
	c := newTestCompiler(t, DefaultDeclaration(), Options{})
	m := cubeMesh()
	m.groups = []int{1, 1, 0, 0, 1, 0}
	m.load(c)

	opts := BuildOptions{Weld: true, OptimizeVCache: true, NeedPerFaceAttribute: true, KeepIsolated: true}
	require.NoError(t, c.Build(opts))
	numVerts := c.NumVertices()
	indices := append([]uint32(nil), c.IndexBuffer()...)
	var subsets []Subset
	for i := 0; i < c.NumSubsets(); i++ {
		subsets = append(subsets, c.Subset(i))
	}

	require.NoError(t, c.Build(opts))
	assert.Equal(t, numVerts, c.NumVertices())
	assert.Equal(t, indices, c.IndexBuffer())
	for i := range subsets {
		assert.Equal(t, subsets[i], c.Subset(i))
	}
}

func TestIsolatedVertices(t *testing.T) {
	// positions 1 and 5 are not referenced by any face
	m := testMesh{
		pos: []float32{
			0, 0, 0, 9, 9, 9, 1, 0, 0,
			1, 1, 0, 0, 1, 0, 8, 8, 8,
		},
		faces: [][]int{{0, 2, 3}, {0, 3, 4}},
	}

	c := buildMesh(t, m, BuildOptions{})
	assert.Equal(t, 4, c.NumVertices())
	assert.Equal(t, 0, c.NumIsolatedVertices())
	for _, v := range c.IndexBuffer() {
		assert.Less(t, int(v), 4)
	}
	assert.NoError(t, c.Verify())

	c = buildMesh(t, m, BuildOptions{KeepIsolated: true})
	require.Equal(t, 6, c.NumVertices())
	assert.Equal(t, 2, c.NumIsolatedVertices())

	pos, face, corner := c.MapToOriginalVertexID(4)
	assert.Equal(t, []int{1, -1, -1}, []int{pos, face, corner})
	pos, _, _ = c.MapToOriginalVertexID(5)
	assert.Equal(t, 5, pos)
	assert.Equal(t, [3]float32{9, 9, 9}, vertexPosition(c, 4))
	assert.Equal(t, [3]float32{8, 8, 8}, vertexPosition(c, 5))
	assert.NoError(t, c.Verify())
}

// failingDecomposer reports every polygon concave and never triangulates.
type failingDecomposer struct{}

func (failingDecomposer) IsConvex([][3]float64) bool    { return false }
func (failingDecomposer) Triangulate([][3]float64) []int { return nil }

func TestConcavePolygon(t *testing.T) {
	// L-shape with the reflex corner at index 3
	m := testMesh{
		pos: []float32{
			0, 0, 0, 2, 0, 0, 2, 1, 0,
			1, 1, 0, 1, 2, 0, 0, 2, 0,
		},
		faces: [][]int{{0, 1, 2, 3, 4, 5}},
	}

	c := buildMesh(t, m, BuildOptions{NeedPerFaceAttribute: true})
	assert.Equal(t, 4, c.NumTriangles())
	require.NoError(t, c.Verify())

	// a fan from corner 0 would cover the notch; ear clipping must not
	for tri := 0; tri < c.NumTriangles(); tri++ {
		var corners []int
		for k := 0; k < 3; k++ {
			pos, _, _ := c.MapToOriginalVertexID(c.Index(tri*3 + k))
			corners = append(corners, pos)
		}
		assert.False(t, contains(corners, 2) && contains(corners, 4) && contains(corners, 0) && !contains(corners, 3),
			"triangle %v crosses the notch", corners)
	}

	c = newTestCompiler(t, DefaultDeclaration(), Options{Decomposer: failingDecomposer{}})
	m.load(c)
	require.NoError(t, c.Build(BuildOptions{}))
	assert.Equal(t, []uint32{0, 1, 2, 0, 2, 3, 0, 3, 4, 0, 4, 5}, c.IndexBuffer())
}

func contains(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

func TestShortFacesProduceNoTriangles(t *testing.T) {
	m := testMesh{
		pos:   []float32{0, 0, 0, 1, 0, 0, 1, 1, 0},
		faces: [][]int{{0, 1}, {0, 1, 2}},
	}
	c := buildMesh(t, m, BuildOptions{NeedPerFaceAttribute: true})
	assert.Equal(t, 1, c.NumTriangles())
	assert.Equal(t, 1, c.MapToOriginalFaceID(0))
	_, n := c.MapToDrawTriID(0, 0)
	assert.Zero(t, n)
}

// brokenAdjacency wraps a face table with an adjacency oracle that lists
// the wrong faces.
type brokenAdjacency struct {
	*DenseFaceInput
}

func (b brokenAdjacency) VertexAdjCount(vertex int) int { return 1 }
func (b brokenAdjacency) VertexAdjFace(vertex, k int) int {
	return b.NumFaces() + vertex
}

func TestWeldRecoversFromFaultyAdjacency(t *testing.T) {
	in := NewDenseFaceInput(2, 6)
	c := newTestCompiler(t, DefaultDeclaration(), Options{})
	c.SetAttribFloat32(c.posAttr, 3, []float32{0, 0, 0, 1, 0, 0, 0, 1, 0, 1, 1, 0})
	c.SetAttribFloat32(c.normalAttr, 3, []float32{0, 0, 1, 0, 0, 1, 0, 0, 1, 0, 0, 1, 0, 0, 1, 0, 0, 1})
	in.SetFaceData(0, c.posAttr, []int{0, 1, 2})
	in.SetFaceData(0, c.normalAttr, []int{0, 1, 2})
	in.SetFaceData(1, c.posAttr, []int{1, 3, 2})
	in.SetFaceData(1, c.normalAttr, []int{3, 4, 5})
	c.SetFaceInput(brokenAdjacency{in})

	require.NoError(t, c.Build(BuildOptions{Weld: true}))
	assert.Equal(t, 4, c.NumVertices())
	assert.NoError(t, c.Verify())
}

func TestVertexBuffer(t *testing.T) {
	c := buildMesh(t, cubeMesh(), BuildOptions{OptimizeVCache: true})
	stride := c.Declaration().Stride()

	all := c.VertexBytes()
	require.Len(t, all, c.NumVertices()*stride)

	part := make([]byte, 3*stride)
	n := c.VertexBuffer(part, 5, 3)
	assert.Equal(t, 3, n)
	assert.Equal(t, all[5*stride:8*stride], part)

	tail := make([]byte, 10*stride)
	n = c.VertexBuffer(tail, c.NumVertices()-2, 10)
	assert.Equal(t, 2, n)
}

func TestMemoryUsage(t *testing.T) {
	c := buildMesh(t, cubeMesh(), BuildOptions{Weld: true})
	assert.Positive(t, c.MemoryUsage())
}
