// meshview compiles an OBJ file with flat per-face normals, or loads a
// compiled MSHC file, and shows it in an orbit viewer. Every subset is drawn
// in its own color.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gl/gl/v4.1-core/gl"
	"go.uber.org/zap"

	"github.com/Faultbox/meshc/internal/config"
	"github.com/Faultbox/meshc/internal/glmesh"
	"github.com/Faultbox/meshc/internal/logger"
	"github.com/Faultbox/meshc/internal/viewer"
	"github.com/Faultbox/meshc/pkg/formats"
)

var palette = [][3]float32{
	{0.85, 0.33, 0.31},
	{0.36, 0.72, 0.36},
	{0.26, 0.55, 0.79},
	{0.94, 0.68, 0.31},
	{0.60, 0.45, 0.75},
	{0.33, 0.75, 0.75},
}

func main() {
	fs := flag.NewFlagSet("meshview", flag.ExitOnError)
	flags := config.RegisterFlags(fs)
	fs.Parse(os.Args[1:])

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: meshview [options] <file.obj|file.mshc>")
		os.Exit(1)
	}

	cfg, err := config.Load(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, fs.Arg(0)); err != nil {
		logger.Error("meshview failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

// loadMesh returns the compiled buffers of path.
func loadMesh(cfg *config.Config, path string) (*formats.MSHC, error) {
	if strings.EqualFold(filepath.Ext(path), ".mshc") {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return formats.ParseMSHC(data)
	}

	obj, err := formats.LoadOBJ(path)
	if err != nil {
		return nil, err
	}

	// flat shading needs one unshared provoking vertex per face
	mc, err := cfg.Compile.NewCompiler(obj.Declaration(true), logger.Named("meshcompiler"))
	if err != nil {
		return nil, err
	}
	obj.Fill(mc, true)

	opts := cfg.Compile.BuildOptions()
	opts.NeedPerFaceAttribute = true
	if err := mc.Build(opts); err != nil {
		return nil, fmt.Errorf("build %s: %w", path, err)
	}
	if cfg.Output.Verify {
		if err := mc.Verify(); err != nil {
			return nil, fmt.Errorf("verify %s: %w", path, err)
		}
	}
	return formats.NewMSHC(mc), nil
}

func run(cfg *config.Config, path string) error {
	m, err := loadMesh(cfg, path)
	if err != nil {
		return err
	}
	logger.Info("mesh loaded",
		zap.String("path", path),
		zap.Uint32("vertices", m.NumVerts),
		zap.Int("triangles", m.NumTriangles()),
		zap.Int("subsets", len(m.Subsets)),
	)

	win, err := viewer.New("meshview - "+filepath.Base(path), cfg.Viewer, logger.Named("viewer"))
	if err != nil {
		return err
	}
	defer win.Close()

	if err := gl.Init(); err != nil {
		return fmt.Errorf("gl.Init failed: %w", err)
	}
	logger.Info("OpenGL initialized", zap.String("version", gl.GoStr(gl.GetString(gl.VERSION))))

	program, err := glmesh.CompileProgram(glmesh.FlatVertexShader, glmesh.FlatFragmentShader)
	if err != nil {
		return err
	}
	defer gl.DeleteProgram(program)

	mesh, err := glmesh.Upload(m)
	if err != nil {
		return err
	}
	defer mesh.Delete()

	locMVP := glmesh.Uniform(program, "uMVP")
	locLight := glmesh.Uniform(program, "uLightDir")
	locColor := glmesh.Uniform(program, "uColor")

	cam := viewer.NewOrbitCamera()
	if pts := m.Positions(); pts != nil {
		cam.FitToBounds(viewer.Bounds(pts))
	}

	gl.Enable(gl.DEPTH_TEST)
	gl.ClearColor(0.12, 0.12, 0.14, 1)

	for win.PollEvents(cam) {
		width, height := win.GetSize()
		if height == 0 {
			height = 1
		}
		gl.Viewport(0, 0, int32(width), int32(height))
		gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)

		if win.Wireframe {
			gl.PolygonMode(gl.FRONT_AND_BACK, gl.LINE)
		} else {
			gl.PolygonMode(gl.FRONT_AND_BACK, gl.FILL)
		}

		proj := viewer.Perspective(0.8, float32(width)/float32(height), cam.Distance*0.01, cam.Distance*10)
		mvp := proj.Mul(cam.ViewMatrix())

		gl.UseProgram(program)
		gl.UniformMatrix4fv(locMVP, 1, false, &mvp[0])
		gl.Uniform3f(locLight, -0.4, -0.8, -0.45)
		gl.Uniform3f(locColor, palette[0][0], palette[0][1], palette[0][2])
		mesh.Draw(func(i int, s glmesh.Subset) {
			c := palette[i%len(palette)]
			gl.Uniform3f(locColor, c[0], c[1], c[2])
		})

		win.SwapBuffers()
	}

	return nil
}
