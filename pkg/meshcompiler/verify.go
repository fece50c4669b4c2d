package meshcompiler

import (
	"fmt"
	"io"
	"sort"

	"go.uber.org/multierr"
)

// VerifyError is one inconsistency found by Verify.
type VerifyError struct {
	Check string
	Msg   string
}

func (e *VerifyError) Error() string {
	return e.Check + ": " + e.Msg
}

// verifyCheck is one section of the self check.
type verifyCheck struct {
	name  string
	title string
	run   func(c *Compiler, fail func(format string, args ...any))
}

var verifyChecks = []verifyCheck{
	{"tri-face", "checking draw_tri <-> face mapping", (*Compiler).verifyTriFaceMap},
	{"corner-vertex", "checking (face, corner) -> vbo by comparing vertex data", (*Compiler).verifyCornerVertex},
	{"vertex-corner", "checking vbo -> (face, corner) by comparing vertex data", (*Compiler).verifyVertexCorner},
	{"unshared", "checking unshared per face vertices", (*Compiler).verifyUnshared},
	{"groups", "checking face group sorting", (*Compiler).verifyGroups},
	{"triangulation", "checking triangulation", (*Compiler).verifyTriangulation},
}

// Verify cross-checks the output buffers and id maps of the last build
// against the input. It returns nil or a multierr of *VerifyError.
func (c *Compiler) Verify() error {
	var err error
	c.runVerify(func(check verifyCheck, errs []error) {
		err = multierr.Append(err, multierr.Combine(errs...))
	})
	return err
}

// VerifyReport runs Verify and writes a text report with one section per
// check to w. The returned error is the Verify result, or a write error.
func (c *Compiler) VerifyReport(w io.Writer) error {
	var (
		verr error
		werr error
	)
	c.runVerify(func(check verifyCheck, errs []error) {
		verr = multierr.Append(verr, multierr.Combine(errs...))
		if werr != nil {
			return
		}
		if _, werr = fmt.Fprintf(w, "%s ..\n", check.title); werr != nil {
			return
		}
		for _, e := range errs {
			if _, werr = fmt.Fprintf(w, "error: %s\n", e.(*VerifyError).Msg); werr != nil {
				return
			}
		}
		_, werr = fmt.Fprintf(w, "%d errors found\n\n", len(errs))
	})
	if werr != nil {
		return fmt.Errorf("write verify report: %w", werr)
	}
	return verr
}

func (c *Compiler) runVerify(section func(check verifyCheck, errs []error)) {
	for _, check := range verifyChecks {
		if check.name == "unshared" && !c.perFaceAttribute {
			continue
		}
		var errs []error
		check.run(c, func(format string, args ...any) {
			errs = append(errs, &VerifyError{Check: check.name, Msg: fmt.Sprintf(format, args...)})
		})
		section(check, errs)
	}
}

func (c *Compiler) verifyTriFaceMap(fail func(string, ...any)) {
	for face := 0; face < c.numFaces; face++ {
		_, numTris := c.MapToDrawTriID(face, 0)
		for k := 0; k < numTris; k++ {
			tri, _ := c.MapToDrawTriID(face, k)
			if tri < 0 || tri >= c.numTris {
				fail("face %d -> (numTris: %d, tri %d) out of range", face, numTris, tri)
				continue
			}
			if got := c.MapToOriginalFaceID(tri); got != face {
				fail("face %d -> (numTris: %d, tri %d -> face %d)", face, numTris, tri, got)
			}
		}
	}
}

func (c *Compiler) verifyCornerVertex(fail func(string, ...any)) {
	stride := c.decl.Stride()
	v0 := make([]byte, stride)
	v1 := make([]byte, stride)
	// allow slightly larger errors than the welding tolerance
	cmp := NewVertexCompare(1e-3, 1e-3)

	for face := 0; face < c.numFaces; face++ {
		size := c.FaceSize(face)
		for k := 0; k < size; k++ {
			clear(v0)
			clear(v1)
			c.inputFaceVertexData(face, k, v0)
			vertex := c.MapToDrawVertexID(face, k)
			c.Vertex(vertex, v1)
			if !cmp.Equal(v0, v1, c.decl) {
				fail("(face %d, corner %d) -> vertex %d: %s != %s",
					face, k, vertex, c.VertexString(v0), c.VertexString(v1))
			}
		}
	}
}

func (c *Compiler) verifyVertexCorner(fail func(string, ...any)) {
	stride := c.decl.Stride()
	v0 := make([]byte, stride)
	v1 := make([]byte, stride)

	for vertex := 0; vertex < c.numDrawVerts; vertex++ {
		clear(v0)
		clear(v1)
		pos, face, corner := c.MapToOriginalVertexID(vertex)
		c.Vertex(vertex, v0)
		if face >= 0 {
			c.inputFaceVertexData(face, corner, v1)
		} else {
			for a := range c.inputs {
				el := c.decl.elements[a]
				c.inputs[a].element(pos, v1[el.Offset:], el)
			}
		}
		if !c.compare.Equal(v0, v1, c.decl) {
			fail("vertex %d -> (face %d, corner %d): %s != %s",
				vertex, face, corner, c.VertexString(v0), c.VertexString(v1))
		}
	}
}

func (c *Compiler) verifyUnshared(fail func(string, ...any)) {
	if c.provokingVertex < 0 {
		return
	}
	refs := make(map[int]map[int]struct{})
	for face := 0; face < c.numFaces; face++ {
		_, numTris := c.MapToDrawTriID(face, 0)
		for k := 0; k < numTris; k++ {
			tri, _ := c.MapToDrawTriID(face, k)
			v := c.Index(tri*3 + c.provokingVertex)
			if refs[v] == nil {
				refs[v] = make(map[int]struct{})
			}
			refs[v][face] = struct{}{}
		}
	}

	vertices := make([]int, 0, len(refs))
	for v := range refs {
		vertices = append(vertices, v)
	}
	sort.Ints(vertices)
	for _, v := range vertices {
		if len(refs[v]) <= 1 {
			continue
		}
		faces := make([]int, 0, len(refs[v]))
		for f := range refs[v] {
			faces = append(faces, f)
		}
		sort.Ints(faces)
		fail("vertex %d is referenced by %d faces: %v", v, len(faces), faces)
	}
}

func (c *Compiler) verifyGroups(fail func(string, ...any)) {
	for _, s := range c.subsets {
		for k := 0; k < s.NumTris; k++ {
			face := c.MapToOriginalFaceID(s.StartIndex/3 + k)
			if g := c.FaceGroup(face); g != s.ID {
				fail("face %d with group-id %d was mapped to subset-group %d", face, g, s.ID)
			}
		}
	}
}

func (c *Compiler) verifyTriangulation(fail func(string, ...any)) {
	var facePositions []int
	for face := 0; face < c.numFaces; face++ {
		size := c.FaceSize(face)
		facePositions = facePositions[:0]
		for k := 0; k < size; k++ {
			facePositions = append(facePositions, c.inputIndex(face, k, c.posAttr))
		}

		_, numTris := c.MapToDrawTriID(face, 0)
		for t := 0; t < numTris; t++ {
			tri, _ := c.MapToDrawTriID(face, t)
			if tri < 0 {
				continue
			}

			occurrence := [3]int{-1, -1, -1}
			for k := 0; k < 3; k++ {
				pos, _, _ := c.MapToOriginalVertexID(c.Index(tri*3 + k))
				for m, p := range facePositions {
					if p == pos {
						occurrence[k] = m
						break
					}
				}
				if occurrence[k] < 0 {
					fail("vertex at triangulated face %d at triangle %d at corner %d is not part of the original face", face, t, k)
				}
			}

			inversions := 0
			for k := 0; k < 3; k++ {
				if occurrence[k] > occurrence[(k+1)%3] {
					inversions++
				}
			}
			if inversions > 1 {
				fail("triangulation of face %d at triangle %d has flipped winding order", face, t)
			}
		}
	}
}
