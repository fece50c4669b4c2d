package meshcompiler

import (
	"errors"

	"go.uber.org/zap"

	"github.com/Faultbox/meshc/pkg/polygon"
	"github.com/Faultbox/meshc/pkg/vcache"
)

// Compiler errors.
var (
	ErrNoPositions = errors.New("vertex declaration has no position element")
	ErrNoFaceInput = errors.New("no face input data present")
)

// DefaultCacheSize is the vertex cache size used by the default optimizer.
const DefaultCacheSize = 24

// Decomposer splits polygons into triangles.
type Decomposer interface {
	// IsConvex reports whether the polygon ring is convex.
	IsConvex(poly [][3]float64) bool
	// Triangulate returns 3*(len(poly)-2) local corner indices with the
	// winding of the input ring.
	Triangulate(poly [][3]float64) []int
}

// CacheOptimizer reorders triangles and vertices for vertex cache locality.
type CacheOptimizer interface {
	// OptimizeTriangles returns the reordered index list and, for every
	// output triangle, the input triangle it came from.
	OptimizeTriangles(indices []uint32, numVerts int) ([]uint32, []int)
	// OptimizeVertices returns a renumbering old id -> new id.
	OptimizeVertices(indices []uint32, numVerts int) []int
}

// Options configures a Compiler. Zero values select the defaults.
type Options struct {
	Logger         *zap.Logger
	Compare        VertexCompare
	Decomposer     Decomposer
	CacheOptimizer CacheOptimizer
}

// BuildOptions selects the optional passes of Build.
type BuildOptions struct {
	Weld                 bool // merge corners with equal attribute data
	OptimizeVCache       bool // reorder for vertex cache locality
	NeedPerFaceAttribute bool // give every face an unshared provoking vertex
	KeepIsolated         bool // keep positions not referenced by any face
}

// Subset is a contiguous run of triangles sharing one face group.
type Subset struct {
	ID         int // group id
	StartIndex int // first index in the index buffer
	NumTris    int
	NumFaces   int
	StartFace  int // offset in the group-sorted face order
}

// Compiler builds draw buffers from an indexed polygon mesh.
type Compiler struct {
	decl       *VertexDeclaration
	log        *zap.Logger
	compare    VertexCompare
	decomposer Decomposer
	optimizer  CacheOptimizer

	inputs     []attributeInput
	posAttr    int
	normalAttr int
	texcAttr   int

	faceInput  FaceInput
	dense      *DenseFaceInput // owned input, nil when a custom one is plugged in
	faceGroups []int

	// face layout of the current build
	numFaces         int
	numIndices       int
	faceStart        []int
	faceSize         []int
	maxFaceSize      int
	constantFaceSize bool

	// scratch state, released at stage boundaries
	adjacency      *adjacencyList
	weldFace       []int
	weldCorner     []int
	splitter       *vertexSplitter
	faceSortMap    []int
	triIndexBuffer []cornerRef
	triToSortFace  []int
	triOptMap      []int

	faceBufSplit     []int // (face, corner) -> draw vertex
	isolated         []int
	numIsolatedVerts int
	numDrawVerts     int
	numTris          int

	subsets     []Subset
	subsetIDMap map[int]int

	provokingVertex    int
	provokingSetByUser bool
	perFaceAttribute   bool

	indices         []uint32
	vertexMapFace   []int
	vertexMapCorner []int
	triToFaceMap    []int
	faceToTriMap    []int
	faceToTriOffset []int
}

// New creates a compiler for the given vertex layout.
func New(decl *VertexDeclaration, opts Options) (*Compiler, error) {
	if decl == nil || decl.FindUsage(UsagePosition) < 0 {
		return nil, ErrNoPositions
	}

	c := &Compiler{
		decl:            decl,
		log:             opts.Logger,
		compare:         opts.Compare,
		decomposer:      opts.Decomposer,
		optimizer:       opts.CacheOptimizer,
		inputs:          make([]attributeInput, decl.NumElements()),
		posAttr:         decl.FindUsage(UsagePosition),
		normalAttr:      decl.FindUsage(UsageNormal),
		texcAttr:        decl.FindUsage(UsageTexCoord),
		provokingVertex: -1,
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	if c.compare == nil {
		c.compare = NewVertexCompare(DefaultDoubleEpsilon, DefaultFloatEpsilon)
	}
	if c.decomposer == nil {
		c.decomposer = polygon.EarClipper{}
	}
	if c.optimizer == nil {
		c.optimizer = vcache.New(DefaultCacheSize)
	}
	for i := range c.inputs {
		c.inputs[i].src = decl.Element(i)
	}
	return c, nil
}

// Declaration returns the vertex layout.
func (c *Compiler) Declaration() *VertexDeclaration {
	return c.decl
}

// SetFaceInput plugs in a custom face table. Face setters of the compiler
// have no effect while a custom input is used.
func (c *Compiler) SetFaceInput(in FaceInput) {
	c.faceInput = in
	c.dense, _ = in.(*DenseFaceInput)
}

// SetNumFaces creates the internal face table.
func (c *Compiler) SetNumFaces(numFaces, numIndices int) {
	if c.faceInput != nil {
		return
	}
	c.dense = NewDenseFaceInput(numFaces, numIndices)
	c.faceInput = c.dense
}

// SetFaceAttrib sets the indices of attribute attr for one face.
func (c *Compiler) SetFaceAttrib(face, attr int, indices ...int) {
	if attr < 0 || len(indices) == 0 {
		return
	}
	if c.faceInput == nil {
		c.SetNumFaces(0, 0)
	}
	if c.dense == nil {
		c.log.Warn("face setter ignored, custom face input in use", zap.Int("face", face))
		return
	}
	c.dense.SetFaceData(face, attr, indices)
}

// SetFaceVerts sets the position indices of a face.
func (c *Compiler) SetFaceVerts(face int, indices ...int) {
	c.SetFaceAttrib(face, c.posAttr, indices...)
}

// SetFaceNormals sets the normal indices of a face.
func (c *Compiler) SetFaceNormals(face int, indices ...int) {
	c.SetFaceAttrib(face, c.normalAttr, indices...)
}

// SetFaceTexCoords sets the texture coordinate indices of a face.
func (c *Compiler) SetFaceTexCoords(face int, indices ...int) {
	c.SetFaceAttrib(face, c.texcAttr, indices...)
}

// SetFaceGroup assigns a group id (material batch) to a face.
func (c *Compiler) SetFaceGroup(face, group int) {
	n := max(c.numFaces, face+1)
	for len(c.faceGroups) < n {
		c.faceGroups = append(c.faceGroups, -1)
	}
	c.faceGroups[face] = group
}

// FaceGroup returns the group id of a face, -1 if none was set.
func (c *Compiler) FaceGroup(face int) int {
	if face < 0 || face >= len(c.faceGroups) {
		return -1
	}
	return c.faceGroups[face]
}

// SetProvokingVertex selects the triangle slot holding the unshared vertex
// of a face. It only has an effect on per-face attribute builds unless a
// value >= 0 is given explicitly.
func (c *Compiler) SetProvokingVertex(v int) {
	c.provokingVertex = v
	c.provokingSetByUser = true
}

// ProvokingVertex returns the provoking slot of the last build, -1 if none.
func (c *Compiler) ProvokingVertex() int {
	return c.provokingVertex
}

// Build runs the full pipeline. It never fails on data quality issues;
// those are logged and reported by CheckInputData and Verify.
func (c *Compiler) Build(opts BuildOptions) error {
	if c.faceInput == nil {
		return ErrNoFaceInput
	}

	c.prepareData()
	c.perFaceAttribute = opts.NeedPerFaceAttribute

	if opts.Weld {
		c.computeAdjacency(false)
		c.weldVertices()
		c.adjacency = nil
	}

	c.splitVertices()
	c.splitter = nil
	c.weldFace, c.weldCorner = nil, nil

	c.sortFacesByGroup()
	c.triangulate()

	if opts.NeedPerFaceAttribute {
		if c.provokingVertex < 0 {
			c.provokingVertex = 2
		}
		c.provokingVertex %= 3
		c.forceUnsharedFaceVertex()
	}

	c.resolveTriangulation()

	if opts.OptimizeVCache {
		c.optimize()
	} else {
		c.indices = c.resolvedIndices()
	}
	c.triIndexBuffer = nil

	c.createVertexMap(opts.KeepIsolated)
	c.createFaceMap()

	c.triToSortFace = nil
	c.triOptMap = nil
	c.faceSortMap = nil

	c.log.Debug("mesh compiled",
		zap.Int("faces", c.numFaces),
		zap.Int("triangles", c.numTris),
		zap.Int("vertices", c.numDrawVerts),
		zap.Int("subsets", len(c.subsets)),
		zap.Int("isolated", c.numIsolatedVerts),
	)
	return nil
}

func (c *Compiler) prepareData() {
	c.numFaces = c.faceInput.NumFaces()

	// trailing empty faces come from overestimated face counts
	for c.numFaces > 0 && c.faceInput.FaceSize(c.numFaces-1) == 0 {
		c.numFaces--
	}

	c.maxFaceSize = 0
	minFaceSize := 0
	for i := 0; i < c.numFaces; i++ {
		size := c.faceInput.FaceSize(i)
		c.maxFaceSize = max(c.maxFaceSize, size)
		if i == 0 || size < minFaceSize {
			minFaceSize = size
		}
	}

	if c.numFaces > 0 && minFaceSize < 3 {
		c.log.Error("input contains faces with less than 3 corners",
			zap.Int("minFaceSize", minFaceSize))
	}

	c.faceStart, c.faceSize = nil, nil
	if minFaceSize < c.maxFaceSize {
		c.constantFaceSize = false
		c.faceStart = make([]int, c.numFaces)
		c.faceSize = make([]int, c.numFaces)
		offset := 0
		for i := 0; i < c.numFaces; i++ {
			c.faceSize[i] = c.faceInput.FaceSize(i)
			c.faceStart[i] = offset
			offset += c.faceSize[i]
		}
		c.numIndices = offset
	} else {
		c.constantFaceSize = true
		c.numIndices = c.maxFaceSize * c.numFaces
	}

	c.adjacency = nil
	c.weldFace, c.weldCorner = nil, nil
	c.splitter = nil
	c.faceSortMap = nil
	c.triIndexBuffer = nil
	c.triToSortFace = nil
	c.triOptMap = nil
	c.faceBufSplit = nil
	c.isolated = nil
	c.numIsolatedVerts = 0
	c.numDrawVerts = 0
	c.numTris = 0
	c.subsets = nil
	c.subsetIDMap = nil
	c.indices = nil
	c.vertexMapFace, c.vertexMapCorner = nil, nil
	c.triToFaceMap = nil
	c.faceToTriMap = nil
	c.faceToTriOffset = nil

	if !c.provokingSetByUser {
		c.provokingVertex = -1
	}
}

// FaceSize returns the corner count of a face of the current build.
func (c *Compiler) FaceSize(face int) int {
	if c.faceSize == nil {
		return c.maxFaceSize
	}
	return c.faceSize[face]
}

func (c *Compiler) faceOffset(face int) int {
	if c.faceStart == nil {
		return c.maxFaceSize * face
	}
	return c.faceStart[face]
}

// faceTriCount is the number of triangles a face expands to.
func (c *Compiler) faceTriCount(face int) int {
	return max(c.FaceSize(face)-2, 0)
}

func (c *Compiler) inputIndex(face, corner, attr int) int {
	return c.faceInput.SingleFaceAttr(face, corner, attr)
}

// inputFaceVertex fills out with the attribute indices of a corner.
func (c *Compiler) inputFaceVertex(face, corner int, out []int) {
	for a := range c.inputs {
		out[a] = c.inputIndex(face, corner, a)
	}
}

// inputFaceVertexWelded is inputFaceVertex after applying the weld map.
func (c *Compiler) inputFaceVertexWelded(face, corner int, out []int) {
	if c.weldFace != nil {
		offset := c.faceOffset(face) + corner
		face, corner = c.weldFace[offset], c.weldCorner[offset]
	}
	c.inputFaceVertex(face, corner, out)
}

// inputFaceVertexData writes the interleaved vertex of a corner into dst.
func (c *Compiler) inputFaceVertexData(face, corner int, dst []byte) {
	for a := range c.inputs {
		el := c.decl.elements[a]
		c.inputs[a].element(c.inputIndex(face, corner, a), dst[el.Offset:], el)
	}
}

func (c *Compiler) setInputIndexSplit(face, corner, vertex int) {
	if vertex >= c.numDrawVerts {
		c.numDrawVerts = vertex + 1
	}
	c.faceBufSplit[c.faceOffset(face)+corner] = vertex
}

func (c *Compiler) inputIndexSplit(face, corner int) int {
	return c.faceBufSplit[c.faceOffset(face)+corner]
}

// sortedFace maps a group-sorted face id to the input face id.
func (c *Compiler) sortedFace(sortFace int) int {
	if c.faceSortMap == nil {
		return sortFace
	}
	return c.faceSortMap[sortFace]
}

func (c *Compiler) numPositions() int {
	return c.inputs[c.posAttr].count
}
