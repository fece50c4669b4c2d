// Package config handles meshc tool configuration loading and management.
package config

import (
	"go.uber.org/zap"

	"github.com/Faultbox/meshc/pkg/meshcompiler"
	"github.com/Faultbox/meshc/pkg/vcache"
)

// Config holds all tool settings.
type Config struct {
	Compile CompileConfig `yaml:"compile"`
	Output  OutputConfig  `yaml:"output"`
	Viewer  ViewerConfig  `yaml:"viewer"`
	Logging LoggingConfig `yaml:"logging"`
}

// CompileConfig holds the compiler passes and their parameters.
type CompileConfig struct {
	Weld             bool    `yaml:"weld"`
	Optimize         bool    `yaml:"optimize"`
	PerFaceAttribute bool    `yaml:"per_face_attribute"`
	KeepIsolated     bool    `yaml:"keep_isolated"`
	ProvokingVertex  int     `yaml:"provoking_vertex"` // -1 = compiler default
	CacheSize        int     `yaml:"cache_size"`
	WeldEpsilon      float64 `yaml:"weld_epsilon"`
	Workers          int     `yaml:"workers"` // adjacency workers, 0 = GOMAXPROCS
}

// OutputConfig holds settings for written results.
type OutputConfig struct {
	Dir    string `yaml:"dir"`    // default directory for compiled files
	Format string `yaml:"format"` // text or yaml, for reports
	Verify bool   `yaml:"verify"` // run the self check after compiling
}

// ViewerConfig holds window and rendering settings of meshview.
type ViewerConfig struct {
	Width     int  `yaml:"width"`
	Height    int  `yaml:"height"`
	VSync     bool `yaml:"vsync"`
	Wireframe bool `yaml:"wireframe"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Compile: CompileConfig{
			Weld:            true,
			Optimize:        true,
			ProvokingVertex: -1,
			CacheSize:       meshcompiler.DefaultCacheSize,
			WeldEpsilon:     meshcompiler.DefaultDoubleEpsilon,
		},
		Output: OutputConfig{
			Format: "text",
		},
		Viewer: ViewerConfig{
			Width:  1280,
			Height: 720,
			VSync:  true,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// BuildOptions returns the compiler passes selected by the config.
func (c CompileConfig) BuildOptions() meshcompiler.BuildOptions {
	return meshcompiler.BuildOptions{
		Weld:                 c.Weld,
		OptimizeVCache:       c.Optimize,
		NeedPerFaceAttribute: c.PerFaceAttribute,
		KeepIsolated:         c.KeepIsolated,
	}
}

// CompilerOptions returns compiler collaborators configured from c.
func (c CompileConfig) CompilerOptions(log *zap.Logger) meshcompiler.Options {
	opts := meshcompiler.Options{
		Logger:         log,
		CacheOptimizer: vcache.New(c.CacheSize),
	}
	if c.WeldEpsilon > 0 {
		opts.Compare = meshcompiler.NewVertexCompare(c.WeldEpsilon, float32(c.WeldEpsilon))
	}
	return opts
}

// NewCompiler creates a compiler for decl with the configured provoking
// vertex and collaborators.
func (c CompileConfig) NewCompiler(decl *meshcompiler.VertexDeclaration, log *zap.Logger) (*meshcompiler.Compiler, error) {
	mc, err := meshcompiler.New(decl, c.CompilerOptions(log))
	if err != nil {
		return nil, err
	}
	if c.ProvokingVertex >= 0 {
		mc.SetProvokingVertex(c.ProvokingVertex)
	}
	return mc, nil
}
