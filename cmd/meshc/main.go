// meshc compiles polygon meshes into GPU-ready vertex and index buffers.
package main

import (
	"bufio"
	"context"
	"encoding/binary"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Faultbox/meshc/internal/config"
	"github.com/Faultbox/meshc/internal/logger"
	"github.com/Faultbox/meshc/pkg/formats"
	"github.com/Faultbox/meshc/pkg/meshcompiler"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "compile", "c":
		err = cmdCompile(args)
	case "info":
		err = cmdInfo(args)
	case "verify":
		err = cmdVerify(args)
	case "dump":
		err = cmdDump(args)
	case "obj":
		err = cmdObj(args)
	case "adjacency", "adj":
		err = cmdAdjacency(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}

	logger.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`meshc - polygon mesh to draw buffer compiler

Usage:
  meshc <command> [options] <file.obj>

Commands:
  compile <file.obj> [output.mshc]  Compile to an MSHC buffer file
  info <file.obj>                   Show compile statistics
  verify <file.obj>                 Check input and self check the output
  dump <file.obj>                   Print compiler state
  obj <file.obj> [output.obj]       Write the compiled triangles as OBJ
  adjacency <file.obj> [output]     Write the index buffer with adjacency

Common options:
  -config <file>      Config file (default ./meshc.yaml)
  -no-weld            Keep every corner as its own vertex
  -no-optimize        Skip vertex cache optimization
  -per-face           Unshared provoking vertex per face
  -provoking <0-2>    Provoking vertex slot
  -debug              Debug logging

Examples:
  meshc compile bunny.obj
  meshc info -format yaml bunny.obj
  meshc verify -per-face bunny.obj
  meshc adjacency -workers 4 bunny.obj bunny.adj`)
}

// tool holds the state shared by every subcommand.
type tool struct {
	cfg  *config.Config
	log  *zap.Logger
	args []string
}

// setup parses the command line of one subcommand, loads the config and
// starts logging.
func setup(name string, args []string, minArgs int, usage string) (*tool, error) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	flags := config.RegisterFlags(fs)
	fs.Parse(args)

	if fs.NArg() < minArgs {
		fmt.Fprintln(os.Stderr, "Usage: meshc "+usage)
		os.Exit(1)
	}

	cfg, err := config.Load(flags)
	if err != nil {
		return nil, err
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	return &tool{cfg: cfg, log: logger.Log, args: fs.Args()}, nil
}

// load reads an OBJ file and feeds it to a new compiler without building.
// Per-face builds get one computed normal per face.
func (cmd *tool) load(path string) (*meshcompiler.Compiler, error) {
	obj, err := formats.LoadOBJ(path)
	if err != nil {
		return nil, err
	}
	cmd.log.Debug("loaded OBJ",
		zap.String("path", path),
		zap.Int("positions", len(obj.Positions)),
		zap.Int("faces", len(obj.Faces)),
		zap.Int("materials", len(obj.Materials)),
	)

	flat := cmd.cfg.Compile.PerFaceAttribute
	mc, err := cmd.cfg.Compile.NewCompiler(obj.Declaration(flat), logger.Named("meshcompiler"))
	if err != nil {
		return nil, err
	}
	obj.Fill(mc, flat)
	return mc, nil
}

// build loads and compiles path. When output verification is enabled a
// failed self check is returned as the error.
func (cmd *tool) build(path string) (*meshcompiler.Compiler, error) {
	mc, err := cmd.load(path)
	if err != nil {
		return nil, err
	}
	if err := mc.Build(cmd.cfg.Compile.BuildOptions()); err != nil {
		return nil, fmt.Errorf("build %s: %w", path, err)
	}
	cmd.log.Info("compiled",
		zap.String("path", path),
		zap.Int("vertices", mc.NumVertices()),
		zap.Int("triangles", mc.NumTriangles()),
		zap.Int("subsets", mc.NumSubsets()),
	)

	if cmd.cfg.Output.Verify {
		if err := mc.Verify(); err != nil {
			return nil, fmt.Errorf("verify %s: %w", path, err)
		}
	}
	return mc, nil
}

// outputPath returns args[1] if given, otherwise the input name with ext
// in the configured output directory.
func (cmd *tool) outputPath(ext string) string {
	if len(cmd.args) > 1 {
		return cmd.args[1]
	}
	in := cmd.args[0]
	base := strings.TrimSuffix(filepath.Base(in), filepath.Ext(in)) + ext
	dir := cmd.cfg.Output.Dir
	if dir == "" {
		dir = filepath.Dir(in)
	}
	return filepath.Join(dir, base)
}

func createFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}
	return os.Create(path)
}

func cmdCompile(args []string) error {
	cmd, err := setup("compile", args, 1, "compile [options] <file.obj> [output.mshc]")
	if err != nil {
		return err
	}

	mc, err := cmd.build(cmd.args[0])
	if err != nil {
		return err
	}

	out := cmd.outputPath(".mshc")
	f, err := createFile(out)
	if err != nil {
		return err
	}
	defer f.Close()

	n, err := formats.NewMSHC(mc).WriteTo(f)
	if err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	fmt.Printf("Wrote %s (%d bytes, %d vertices, %d triangles)\n", out, n, mc.NumVertices(), mc.NumTriangles())
	return f.Close()
}

// meshInfo is the report printed by the info command.
type meshInfo struct {
	File             string       `yaml:"file"`
	Faces            int          `yaml:"faces"`
	InputVertices    int          `yaml:"input_vertices"`
	Vertices         int          `yaml:"vertices"`
	Triangles        int          `yaml:"triangles"`
	IsolatedVertices int          `yaml:"isolated_vertices"`
	Stride           int          `yaml:"stride"`
	TriangleMesh     bool         `yaml:"triangle_mesh"`
	MemoryBytes      int          `yaml:"memory_bytes"`
	Subsets          []subsetInfo `yaml:"subsets"`
}

type subsetInfo struct {
	Group      int `yaml:"group"`
	Faces      int `yaml:"faces"`
	Triangles  int `yaml:"triangles"`
	StartIndex int `yaml:"start_index"`
}

func cmdInfo(args []string) error {
	cmd, err := setup("info", args, 1, "info [options] <file.obj>")
	if err != nil {
		return err
	}

	mc, err := cmd.build(cmd.args[0])
	if err != nil {
		return err
	}

	info := meshInfo{
		File:             cmd.args[0],
		Faces:            mc.NumFaces(),
		InputVertices:    mc.NumInputVertices(),
		Vertices:         mc.NumVertices(),
		Triangles:        mc.NumTriangles(),
		IsolatedVertices: mc.NumIsolatedVertices(),
		Stride:           mc.Declaration().Stride(),
		TriangleMesh:     mc.IsTriangleMesh(),
		MemoryBytes:      mc.MemoryUsage(),
	}
	for i := 0; i < mc.NumSubsets(); i++ {
		s := mc.Subset(i)
		info.Subsets = append(info.Subsets, subsetInfo{
			Group:      s.ID,
			Faces:      s.NumFaces,
			Triangles:  s.NumTris,
			StartIndex: s.StartIndex,
		})
	}

	switch cmd.cfg.Output.Format {
	case "yaml":
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		if err := enc.Encode(info); err != nil {
			return err
		}
		return enc.Close()
	case "text", "":
	default:
		return fmt.Errorf("unknown format %q", cmd.cfg.Output.Format)
	}

	fmt.Printf("File:      %s\n", info.File)
	fmt.Printf("Faces:     %d\n", info.Faces)
	fmt.Printf("Input:     %d positions\n", info.InputVertices)
	fmt.Printf("Vertices:  %d (%d bytes each)\n", info.Vertices, info.Stride)
	fmt.Printf("Triangles: %d\n", info.Triangles)
	if info.IsolatedVertices > 0 {
		fmt.Printf("Isolated:  %d\n", info.IsolatedVertices)
	}
	fmt.Printf("Memory:    %.2f KB\n", float64(info.MemoryBytes)/1024)
	fmt.Println()
	fmt.Println("Subsets:")
	for _, s := range info.Subsets {
		fmt.Printf("  group %-4d %6d faces %6d tris  @%d\n", s.Group, s.Faces, s.Triangles, s.StartIndex)
	}
	return nil
}

func cmdVerify(args []string) error {
	cmd, err := setup("verify", args, 1, "verify [options] <file.obj>")
	if err != nil {
		return err
	}

	mc, err := cmd.load(cmd.args[0])
	if err != nil {
		return err
	}
	if err := mc.CheckInputData(); err != nil {
		return fmt.Errorf("input: %w", err)
	}
	if err := mc.Build(cmd.cfg.Compile.BuildOptions()); err != nil {
		return err
	}

	w := bufio.NewWriter(os.Stdout)
	verr := mc.VerifyReport(w)
	if err := w.Flush(); err != nil {
		return err
	}
	return verr
}

func cmdDump(args []string) error {
	cmd, err := setup("dump", args, 1, "dump [options] <file.obj>")
	if err != nil {
		return err
	}

	mc, err := cmd.build(cmd.args[0])
	if err != nil {
		return err
	}

	w := bufio.NewWriter(os.Stdout)
	if err := mc.Dump(w); err != nil {
		return err
	}
	return w.Flush()
}

func cmdObj(args []string) error {
	cmd, err := setup("obj", args, 1, "obj [options] <file.obj> [output.obj]")
	if err != nil {
		return err
	}

	mc, err := cmd.build(cmd.args[0])
	if err != nil {
		return err
	}

	out := cmd.outputPath(".compiled.obj")
	f, err := createFile(out)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := mc.DumpObj(w); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", out)
	return f.Close()
}

func cmdAdjacency(args []string) error {
	cmd, err := setup("adjacency", args, 1, "adjacency [options] <file.obj> [output]")
	if err != nil {
		return err
	}

	mc, err := cmd.build(cmd.args[0])
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	buf, err := mc.IndexBufferWithAdjacencyParallel(ctx, cmd.cfg.Compile.Workers)
	if err != nil {
		return err
	}

	borders := 0
	for i := 1; i < len(buf); i += 2 {
		if buf[i] == meshcompiler.AdjBorder {
			borders++
		}
	}

	out := cmd.outputPath(".adj")
	f, err := createFile(out)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := binary.Write(w, binary.LittleEndian, buf); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("Wrote %s (%d triangles, %d border edges)\n", out, len(buf)/6, borders)
	return f.Close()
}
