package meshcompiler

// FaceInput supplies the face table to the compiler.
//
// Implementations may resolve indices lazily. Vertex adjacency is optional:
// VertexAdjCount returns -1 when it is not available and the compiler then
// computes its own.
type FaceInput interface {
	NumFaces() int
	// NumIndices is a hint for the total number of face corners.
	NumIndices() int
	FaceSize(face int) int
	// SingleFaceAttr returns the index of attribute attr at a face corner,
	// or -1 if the face has no data for that attribute.
	SingleFaceAttr(face, corner, attr int) int
	VertexAdjCount(vertex int) int
	VertexAdjFace(vertex, k int) int
}

// DenseFaceInput stores per-attribute index arrays for every face.
type DenseFaceInput struct {
	numFaces   int
	numIndices int
	faceOffset []int
	faceSize   []int
	faceData   [][]int // [attr][offset + corner]
}

// NewDenseFaceInput creates an empty face table with room for numFaces faces
// and numIndices corners. Both are hints; faces can be added beyond them.
func NewDenseFaceInput(numFaces, numIndices int) *DenseFaceInput {
	in := &DenseFaceInput{
		numFaces:   numFaces,
		numIndices: numIndices,
		faceOffset: make([]int, numFaces),
		faceSize:   make([]int, numFaces),
	}
	for i := range in.faceOffset {
		in.faceOffset[i] = -1
	}
	return in
}

func (in *DenseFaceInput) NumFaces() int   { return in.numFaces }
func (in *DenseFaceInput) NumIndices() int { return in.numIndices }

func (in *DenseFaceInput) FaceSize(face int) int {
	if face < 0 || face >= len(in.faceSize) {
		return 0
	}
	return in.faceSize[face]
}

func (in *DenseFaceInput) SingleFaceAttr(face, corner, attr int) int {
	if attr < 0 || attr >= len(in.faceData) || face < 0 || face >= len(in.faceOffset) {
		return -1
	}
	offset := in.faceOffset[face]
	data := in.faceData[attr]
	if offset < 0 || offset+corner >= len(data) {
		return -1
	}
	return data[offset+corner]
}

func (in *DenseFaceInput) VertexAdjCount(vertex int) int  { return -1 }
func (in *DenseFaceInput) VertexAdjFace(vertex, k int) int { return -1 }

// SetFaceData sets the indices of attribute attr for one face.
// The first attribute set for a face decides its offset in the shared
// per-attribute layout; later attributes are written at the same offset.
// A face that grows is moved behind all other faces.
func (in *DenseFaceInput) SetFaceData(face, attr int, indices []int) {
	if face < 0 || attr < 0 {
		return
	}
	if face >= in.numFaces {
		in.numFaces = face + 1
	}
	for len(in.faceOffset) <= face {
		in.faceOffset = append(in.faceOffset, -1)
		in.faceSize = append(in.faceSize, 0)
	}
	for len(in.faceData) <= attr {
		in.faceData = append(in.faceData, nil)
	}
	if in.faceData[attr] == nil {
		in.faceData[attr] = make([]int, 0, in.numIndices)
	}

	if in.faceOffset[face] >= 0 && len(indices) > in.faceSize[face] {
		in.relocate(face)
	}
	in.faceSize[face] = len(indices)

	data := in.faceData[attr]
	offset := in.faceOffset[face]
	if offset < 0 {
		offset = len(data)
		in.faceOffset[face] = offset
	}

	for len(data) < offset+len(indices) {
		data = append(data, -1)
	}
	copy(data[offset:], indices)
	in.faceData[attr] = data

	if sum := offset + len(indices); sum > in.numIndices {
		in.numIndices = sum
	}
}

// relocate moves the corners of face to the end of every attribute array
// unless the face already ends there.
func (in *DenseFaceInput) relocate(face int) {
	offset, size := in.faceOffset[face], in.faceSize[face]
	end := 0
	for _, data := range in.faceData {
		end = max(end, len(data))
	}
	if offset+size >= end {
		return
	}

	for a, data := range in.faceData {
		if data == nil {
			continue
		}
		for len(data) < end {
			data = append(data, -1)
		}
		for k := 0; k < size; k++ {
			data = append(data, data[offset+k])
		}
		in.faceData[a] = data
	}
	in.faceOffset[face] = end
}
