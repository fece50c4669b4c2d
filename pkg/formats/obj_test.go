package formats

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/Faultbox/meshc/pkg/meshcompiler"
)

const testCubeOBJ = `# unit cube
v 0 0 0
v 1 0 0
v 0 1 0
v 1 1 0
v 0 0 1
v 1 0 1
v 0 1 1
v 1 1 1
vt 0 0
vt 1 0
vt 1 1
vt 0 1
vn 0 0 -1
vn 0 0 1
usemtl red
f 1/1/1 3/4/1 4/3/1 2/2/1
f 5/1/2 6/2/2 8/3/2 7/4/2
usemtl blue
f 1 2 6 5
f 3 7 8 4
usemtl red
f 1//1 5//1 7//1 3//1
f -7 -3 -1 -5
`

func TestParseOBJ(t *testing.T) {
	obj, err := ParseOBJ(strings.NewReader(testCubeOBJ))
	if err != nil {
		t.Fatalf("ParseOBJ failed: %v", err)
	}

	if len(obj.Positions) != 8 || len(obj.TexCoords) != 4 || len(obj.Normals) != 2 {
		t.Fatalf("got %d/%d/%d positions/texcoords/normals, want 8/4/2",
			len(obj.Positions), len(obj.TexCoords), len(obj.Normals))
	}
	if len(obj.Faces) != 6 {
		t.Fatalf("got %d faces, want 6", len(obj.Faces))
	}
	if got := strings.Join(obj.Materials, ","); got != "red,blue" {
		t.Errorf("Materials = %q, want red,blue", got)
	}

	tests := []struct {
		face      int
		positions []int
		texcoords []int
		normals   []int
		group     int
	}{
		{0, []int{0, 2, 3, 1}, []int{0, 3, 2, 1}, []int{0, 0, 0, 0}, 0},
		{2, []int{0, 1, 5, 4}, nil, nil, 1},
		{4, []int{0, 4, 6, 2}, nil, []int{0, 0, 0, 0}, 0},
		{5, []int{1, 5, 7, 3}, nil, nil, 0},
	}
	for _, tt := range tests {
		f := obj.Faces[tt.face]
		if !equalInts(f.Positions, tt.positions) {
			t.Errorf("face %d positions = %v, want %v", tt.face, f.Positions, tt.positions)
		}
		if !equalInts(f.TexCoords, tt.texcoords) {
			t.Errorf("face %d texcoords = %v, want %v", tt.face, f.TexCoords, tt.texcoords)
		}
		if !equalInts(f.Normals, tt.normals) {
			t.Errorf("face %d normals = %v, want %v", tt.face, f.Normals, tt.normals)
		}
		if f.Group != tt.group {
			t.Errorf("face %d group = %d, want %d", tt.face, f.Group, tt.group)
		}
	}

	if n := obj.NumIndices(); n != 24 {
		t.Errorf("NumIndices = %d, want 24", n)
	}
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) || (a == nil) != (b == nil) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestParseOBJ_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"short vertex", "v 1 2\n", ErrInvalidOBJVertex},
		{"bad float", "v 1 x 3\n", ErrInvalidOBJVertex},
		{"two corners", "v 0 0 0\nv 1 0 0\nf 1 2\n", ErrInvalidOBJFace},
		{"bad index", "v 0 0 0\nf 1 a 1\n", ErrInvalidOBJFace},
		{"zero index", "v 0 0 0\nf 0 1 1\n", ErrOBJIndexRange},
		{"forward reference", "v 0 0 0\nf 1 2 3\nv 1 0 0\nv 0 1 0\n", ErrOBJIndexRange},
		{"missing texcoord", "v 0 0 0\nf 1/1 1/1 1/1\n", ErrOBJIndexRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseOBJ(strings.NewReader(tt.input))
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParseOBJ_LineNumber(t *testing.T) {
	_, err := ParseOBJ(strings.NewReader("# header\nv 0 0 0\n\nf 1 1\n"))
	if err == nil || !strings.HasPrefix(err.Error(), "line 4:") {
		t.Errorf("error = %v, want line 4 prefix", err)
	}
}

func TestOBJ_FaceNormal(t *testing.T) {
	obj, err := ParseOBJ(strings.NewReader(testCubeOBJ))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		face int
		want [3]float32
	}{
		{0, [3]float32{0, 0, -1}},
		{1, [3]float32{0, 0, 1}},
		{2, [3]float32{0, -1, 0}},
		{3, [3]float32{0, 1, 0}},
	}
	for _, tt := range tests {
		got := obj.FaceNormal(tt.face)
		for k := range got {
			if math.Abs(float64(got[k]-tt.want[k])) > 1e-6 {
				t.Errorf("FaceNormal(%d) = %v, want %v", tt.face, got, tt.want)
				break
			}
		}
	}
}

func TestOBJ_Fill(t *testing.T) {
	obj, err := ParseOBJ(strings.NewReader(testCubeOBJ))
	if err != nil {
		t.Fatal(err)
	}

	c, err := meshcompiler.New(meshcompiler.DefaultDeclaration(), meshcompiler.Options{})
	if err != nil {
		t.Fatal(err)
	}
	obj.Fill(c, false)
	if err := c.Build(meshcompiler.BuildOptions{Weld: true}); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if c.NumTriangles() != 12 {
		t.Errorf("NumTriangles = %d, want 12", c.NumTriangles())
	}
	if c.NumSubsets() != 2 {
		t.Errorf("NumSubsets = %d, want 2", c.NumSubsets())
	}
	if s := c.Subset(c.FindGroupSubset(0)); s.NumFaces != 4 {
		t.Errorf("group 0 has %d faces, want 4", s.NumFaces)
	}
	if err := c.Verify(); err != nil {
		t.Errorf("Verify: %v", err)
	}
}

func TestOBJ_FillFlatNormals(t *testing.T) {
	obj, err := ParseOBJ(strings.NewReader(testCubeOBJ))
	if err != nil {
		t.Fatal(err)
	}

	c, err := meshcompiler.New(meshcompiler.DefaultDeclaration(), meshcompiler.Options{})
	if err != nil {
		t.Fatal(err)
	}
	obj.Fill(c, true)

	normal := c.Declaration().FindUsage(meshcompiler.UsageNormal)
	if n := c.AttribCount(normal); n != 6 {
		t.Fatalf("normal count = %d, want one per face", n)
	}
	if err := c.Build(meshcompiler.BuildOptions{NeedPerFaceAttribute: true}); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if err := c.Verify(); err != nil {
		t.Errorf("Verify: %v", err)
	}
}

func TestOBJ_Declaration(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		flat   bool
		stride int
		usages []meshcompiler.Usage
	}{
		{"positions only", "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 3\n", false, 12,
			[]meshcompiler.Usage{meshcompiler.UsagePosition}},
		{"flat normals", "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 3\n", true, 24,
			[]meshcompiler.Usage{meshcompiler.UsagePosition, meshcompiler.UsageNormal}},
		{"full", testCubeOBJ, false, 32,
			[]meshcompiler.Usage{meshcompiler.UsagePosition, meshcompiler.UsageNormal, meshcompiler.UsageTexCoord}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj, err := ParseOBJ(strings.NewReader(tt.src))
			if err != nil {
				t.Fatal(err)
			}
			decl := obj.Declaration(tt.flat)
			if decl.Stride() != tt.stride {
				t.Errorf("Stride = %d, want %d", decl.Stride(), tt.stride)
			}
			if decl.NumElements() != len(tt.usages) {
				t.Fatalf("NumElements = %d, want %d", decl.NumElements(), len(tt.usages))
			}
			for i, u := range tt.usages {
				if decl.Element(i).Usage != u {
					t.Errorf("element %d usage = %s, want %s", i, decl.Element(i).Usage, u)
				}
			}
		})
	}
}
