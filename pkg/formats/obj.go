// Package formats reads and writes mesh files used by the meshc tools.
package formats

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/chewxy/math32"

	"github.com/Faultbox/meshc/pkg/meshcompiler"
)

// OBJ format errors.
var (
	ErrInvalidOBJVertex = errors.New("invalid OBJ vertex")
	ErrInvalidOBJFace   = errors.New("invalid OBJ face")
	ErrOBJIndexRange    = errors.New("OBJ index out of range")
)

// OBJFace is one polygon of an OBJ file. Indices are zero based.
// TexCoords and Normals are nil when the face does not reference them.
type OBJFace struct {
	Positions []int
	TexCoords []int
	Normals   []int
	Group     int // material index, -1 before the first usemtl
}

// OBJ holds the indexed attribute streams and faces of a Wavefront OBJ file.
type OBJ struct {
	Positions [][3]float32
	TexCoords [][2]float32
	Normals   [][3]float32
	Faces     []OBJFace
	Materials []string // usemtl names in order of first use
}

// LoadOBJ reads an OBJ file from disk.
func LoadOBJ(path string) (*OBJ, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	obj, err := ParseOBJ(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return obj, nil
}

// ParseOBJ parses v, vt, vn, f and usemtl statements. Everything else is
// ignored. Negative indices count back from the last element read.
func ParseOBJ(r io.Reader) (*OBJ, error) {
	obj := &OBJ{}
	materials := make(map[string]int)
	group := -1

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}

		fields := strings.Fields(line)
		var err error
		switch fields[0] {
		case "v":
			var p [3]float32
			if err = parseFloats(fields[1:], p[:], 3); err == nil {
				obj.Positions = append(obj.Positions, p)
			}
		case "vt":
			var t [2]float32
			if err = parseFloats(fields[1:], t[:], 1); err == nil {
				obj.TexCoords = append(obj.TexCoords, t)
			}
		case "vn":
			var n [3]float32
			if err = parseFloats(fields[1:], n[:], 3); err == nil {
				obj.Normals = append(obj.Normals, n)
			}
		case "f":
			var face OBJFace
			if face, err = obj.parseFace(fields[1:]); err == nil {
				face.Group = group
				obj.Faces = append(obj.Faces, face)
			}
		case "usemtl":
			name := strings.Join(fields[1:], " ")
			id, ok := materials[name]
			if !ok {
				id = len(obj.Materials)
				materials[name] = id
				obj.Materials = append(obj.Materials, name)
			}
			group = id
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return obj, nil
}

// parseFloats reads up to len(dst) values; at least minCount must be present.
func parseFloats(fields []string, dst []float32, minCount int) error {
	if len(fields) < minCount {
		return fmt.Errorf("%w: %d components, need %d", ErrInvalidOBJVertex, len(fields), minCount)
	}
	for i := 0; i < len(dst) && i < len(fields); i++ {
		v, err := strconv.ParseFloat(fields[i], 32)
		if err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidOBJVertex, fields[i])
		}
		dst[i] = float32(v)
	}
	return nil
}

func (o *OBJ) parseFace(corners []string) (OBJFace, error) {
	if len(corners) < 3 {
		return OBJFace{}, fmt.Errorf("%w: %d corners", ErrInvalidOBJFace, len(corners))
	}

	face := OBJFace{Positions: make([]int, len(corners))}
	for k, corner := range corners {
		// v, v/vt, v//vn, v/vt/vn
		parts := strings.Split(corner, "/")
		if len(parts) > 3 || parts[0] == "" {
			return OBJFace{}, fmt.Errorf("%w: corner %q", ErrInvalidOBJFace, corner)
		}

		var err error
		if face.Positions[k], err = resolveIndex(parts[0], len(o.Positions)); err != nil {
			return OBJFace{}, err
		}
		if len(parts) > 1 && parts[1] != "" {
			if face.TexCoords == nil {
				face.TexCoords = filled(len(corners), -1)
			}
			if face.TexCoords[k], err = resolveIndex(parts[1], len(o.TexCoords)); err != nil {
				return OBJFace{}, err
			}
		}
		if len(parts) > 2 && parts[2] != "" {
			if face.Normals == nil {
				face.Normals = filled(len(corners), -1)
			}
			if face.Normals[k], err = resolveIndex(parts[2], len(o.Normals)); err != nil {
				return OBJFace{}, err
			}
		}
	}
	return face, nil
}

// resolveIndex converts a one based or negative relative OBJ index.
func resolveIndex(s string, n int) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: index %q", ErrInvalidOBJFace, s)
	}
	switch {
	case i > 0 && i <= n:
		return i - 1, nil
	case i < 0 && -i <= n:
		return n + i, nil
	default:
		return 0, fmt.Errorf("%w: %d of %d", ErrOBJIndexRange, i, n)
	}
}

func filled(n, v int) []int {
	s := make([]int, n)
	for i := range s {
		s[i] = v
	}
	return s
}

// NumIndices returns the total number of face corners.
func (o *OBJ) NumIndices() int {
	n := 0
	for _, f := range o.Faces {
		n += len(f.Positions)
	}
	return n
}

// Declaration returns a float32 vertex layout holding the attributes this
// mesh provides. A normal slot is added when the file has normals or when
// flatNormals asks for computed face normals.
func (o *OBJ) Declaration(flatNormals bool) *meshcompiler.VertexDeclaration {
	elems := []meshcompiler.VertexElement{
		meshcompiler.NewElement(meshcompiler.UsagePosition, meshcompiler.Float32, 3, "inPosition"),
	}
	if flatNormals || len(o.Normals) > 0 {
		elems = append(elems, meshcompiler.NewElement(meshcompiler.UsageNormal, meshcompiler.Float32, 3, "inNormal"))
	}
	if len(o.TexCoords) > 0 {
		elems = append(elems, meshcompiler.NewElement(meshcompiler.UsageTexCoord, meshcompiler.Float32, 2, "inTexCoord"))
	}
	return meshcompiler.NewDeclaration(elems...)
}

// FaceNormal returns the normalized Newell normal of face f, or zero for a
// degenerate face.
func (o *OBJ) FaceNormal(f int) [3]float32 {
	var n [3]float32
	pos := o.Faces[f].Positions
	for k := range pos {
		a := o.Positions[pos[k]]
		b := o.Positions[pos[(k+1)%len(pos)]]
		n[0] += (a[1] - b[1]) * (a[2] + b[2])
		n[1] += (a[2] - b[2]) * (a[0] + b[0])
		n[2] += (a[0] - b[0]) * (a[1] + b[1])
	}
	l := math32.Sqrt(n[0]*n[0] + n[1]*n[1] + n[2]*n[2])
	if l == 0 {
		return [3]float32{}
	}
	return [3]float32{n[0] / l, n[1] / l, n[2] / l}
}

// Fill passes the mesh to a compiler. Attributes missing from the
// compiler's declaration are skipped. With flatNormals every face gets one
// normal computed from its positions, which pairs with per-face attribute
// builds.
func (o *OBJ) Fill(c *meshcompiler.Compiler, flatNormals bool) {
	decl := c.Declaration()
	posAttr := decl.FindUsage(meshcompiler.UsagePosition)
	normalAttr := decl.FindUsage(meshcompiler.UsageNormal)
	texcAttr := decl.FindUsage(meshcompiler.UsageTexCoord)

	flat := make([]float32, 0, len(o.Positions)*3)
	for _, p := range o.Positions {
		flat = append(flat, p[:]...)
	}
	c.SetAttribFloat32(posAttr, 3, flat)

	if texcAttr >= 0 && len(o.TexCoords) > 0 {
		flat = flat[:0]
		for _, t := range o.TexCoords {
			flat = append(flat, t[:]...)
		}
		c.SetAttribFloat32(texcAttr, 2, flat)
	}

	if normalAttr >= 0 {
		switch {
		case flatNormals:
			flat = flat[:0]
			for f := range o.Faces {
				n := o.FaceNormal(f)
				flat = append(flat, n[:]...)
			}
			c.SetAttribFloat32(normalAttr, 3, flat)
		case len(o.Normals) > 0:
			flat = flat[:0]
			for _, n := range o.Normals {
				flat = append(flat, n[:]...)
			}
			c.SetAttribFloat32(normalAttr, 3, flat)
		}
	}

	c.SetNumFaces(len(o.Faces), o.NumIndices())
	for f, face := range o.Faces {
		c.SetFaceVerts(f, face.Positions...)
		if texcAttr >= 0 && face.TexCoords != nil {
			c.SetFaceTexCoords(f, face.TexCoords...)
		}
		if normalAttr >= 0 {
			if flatNormals {
				c.SetFaceNormals(f, filled(len(face.Positions), f)...)
			} else if face.Normals != nil {
				c.SetFaceNormals(f, face.Normals...)
			}
		}
		if face.Group >= 0 {
			c.SetFaceGroup(f, face.Group)
		}
	}
}
