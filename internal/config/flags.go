package config

import "flag"

var (
	flagConfig    = flag.String("config", "", "Path to config file (.yaml or .toml)")
	flagDebug     = flag.Bool("debug", false, "Enable debug logging and image dumps")
	flagMesh      = flag.String("mesh", "", "Path to the reference OBJ mesh")
	flagImage     = flag.String("image", "", "Still image used as the live frame")
	flagSourceDir = flag.String("source-dir", "", "Directory watched for new live frames")
	flagCamera    = flag.Int("camera", -1, "Camera device index used as the live source")
	flagHeadless  = flag.Bool("headless", false, "Compute once and print the score without a window")
	flagRender    = flag.String("render", "", "Offscreen renderer: software or opengl")
	flagToolkit   = flag.String("toolkit", "", "Vision toolkit: opencv or go")
	flagAlgorithm = flag.String("algorithm", "", "Feature detector: akaze or orb")
	flagWidth     = flag.Int("width", 0, "Preview window width")
	flagHeight    = flag.Int("height", 0, "Preview window height")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
		cfg.Debug.DumpViews = true
		cfg.Debug.DumpKeypoints = true
	}
	if *flagMesh != "" {
		cfg.Source.Mesh = *flagMesh
	}
	if *flagImage != "" {
		cfg.Source.Kind = "still"
		cfg.Source.Image = *flagImage
	}
	if *flagSourceDir != "" {
		cfg.Source.Kind = "dir"
		cfg.Source.Dir = *flagSourceDir
	}
	if *flagCamera >= 0 {
		cfg.Source.Kind = "camera"
		cfg.Source.Camera = *flagCamera
	}
	if *flagHeadless {
		cfg.Preview.Headless = true
	}
	if *flagRender != "" {
		cfg.Render.Backend = *flagRender
	}
	if *flagToolkit != "" {
		cfg.Vision.Toolkit = *flagToolkit
	}
	if *flagAlgorithm != "" {
		cfg.Features.Algorithm = *flagAlgorithm
	}
	if *flagWidth > 0 {
		cfg.Preview.Width = *flagWidth
	}
	if *flagHeight > 0 {
		cfg.Preview.Height = *flagHeight
	}
}
