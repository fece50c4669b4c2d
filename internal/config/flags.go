package config

import "flag"

// Flags holds command-line overrides registered on a flag set.
type Flags struct {
	Config       *string
	Debug        *bool
	LogFile      *string
	Weld         *bool
	NoWeld       *bool
	Optimize     *bool
	NoOptimize   *bool
	PerFace      *bool
	KeepIsolated *bool
	Provoking    *int
	CacheSize    *int
	Workers      *int
	Verify       *bool
	Format       *string
	Width        *int
	Height       *int
	Wireframe    *bool
}

// RegisterFlags adds the config overrides to fs. Each tool command owns its
// flag set.
func RegisterFlags(fs *flag.FlagSet) *Flags {
	return &Flags{
		Config:       fs.String("config", "", "Path to config file"),
		Debug:        fs.Bool("debug", false, "Enable debug logging"),
		LogFile:      fs.String("log-file", "", "Write logs to this file"),
		Weld:         fs.Bool("weld", false, "Merge corners with equal vertex data"),
		NoWeld:       fs.Bool("no-weld", false, "Disable welding"),
		Optimize:     fs.Bool("optimize", false, "Reorder for vertex cache locality"),
		NoOptimize:   fs.Bool("no-optimize", false, "Disable cache optimization"),
		PerFace:      fs.Bool("per-face", false, "Give every face an unshared provoking vertex"),
		KeepIsolated: fs.Bool("keep-isolated", false, "Keep positions not used by any face"),
		Provoking:    fs.Int("provoking", -1, "Provoking vertex slot (0-2)"),
		CacheSize:    fs.Int("cache-size", 0, "Vertex cache size"),
		Workers:      fs.Int("workers", 0, "Adjacency workers"),
		Verify:       fs.Bool("verify", false, "Run the self check after compiling"),
		Format:       fs.String("format", "", "Report format (text, yaml)"),
		Width:        fs.Int("width", 0, "Window width"),
		Height:       fs.Int("height", 0, "Window height"),
		Wireframe:    fs.Bool("wireframe", false, "Draw wireframe"),
	}
}

// ConfigPath returns the explicit config path if provided via -config.
func (f *Flags) ConfigPath() string {
	if f == nil {
		return ""
	}
	return *f.Config
}

// apply applies CLI flag overrides to the config.
func (f *Flags) apply(cfg *Config) {
	if f == nil {
		return
	}
	if *f.Debug {
		cfg.Logging.Level = "debug"
	}
	if *f.LogFile != "" {
		cfg.Logging.LogFile = *f.LogFile
	}
	if *f.Weld {
		cfg.Compile.Weld = true
	}
	if *f.NoWeld {
		cfg.Compile.Weld = false
	}
	if *f.Optimize {
		cfg.Compile.Optimize = true
	}
	if *f.NoOptimize {
		cfg.Compile.Optimize = false
	}
	if *f.PerFace {
		cfg.Compile.PerFaceAttribute = true
	}
	if *f.KeepIsolated {
		cfg.Compile.KeepIsolated = true
	}
	if *f.Provoking >= 0 {
		cfg.Compile.ProvokingVertex = *f.Provoking
	}
	if *f.CacheSize > 0 {
		cfg.Compile.CacheSize = *f.CacheSize
	}
	if *f.Workers > 0 {
		cfg.Compile.Workers = *f.Workers
	}
	if *f.Verify {
		cfg.Output.Verify = true
	}
	if *f.Format != "" {
		cfg.Output.Format = *f.Format
	}
	if *f.Width > 0 {
		cfg.Viewer.Width = *f.Width
	}
	if *f.Height > 0 {
		cfg.Viewer.Height = *f.Height
	}
	if *f.Wireframe {
		cfg.Viewer.Wireframe = true
	}
}
