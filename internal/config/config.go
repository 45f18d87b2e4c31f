// Package config handles pipeline configuration loading and management.
package config

import (
	"errors"
	"fmt"
)

// Config holds all pipeline settings.
type Config struct {
	Source   SourceConfig   `yaml:"source" toml:"source"`
	Render   RenderConfig   `yaml:"render" toml:"render"`
	Bake     BakeConfig     `yaml:"bake" toml:"bake"`
	Features FeaturesConfig `yaml:"features" toml:"features"`
	Matcher  MatcherConfig  `yaml:"matcher" toml:"matcher"`
	Vision   VisionConfig   `yaml:"vision" toml:"vision"`
	Preview  PreviewConfig  `yaml:"preview" toml:"preview"`
	Debug    DebugConfig    `yaml:"debug" toml:"debug"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`
}

// SourceConfig selects the CAD model and where live frames come from.
type SourceConfig struct {
	Mesh   string `yaml:"mesh" toml:"mesh"`
	Kind   string `yaml:"kind" toml:"kind"` // still, dir or camera
	Image  string `yaml:"image" toml:"image"`
	Dir    string `yaml:"dir" toml:"dir"`
	Camera int    `yaml:"camera" toml:"camera"`
}

// RenderConfig holds offscreen renderer settings.
type RenderConfig struct {
	Backend string `yaml:"backend" toml:"backend"` // software or opengl
	Width   int    `yaml:"width" toml:"width"`
	Height  int    `yaml:"height" toml:"height"`
}

// BakeConfig describes the ring of reference viewpoints.
type BakeConfig struct {
	Angles []float32  `yaml:"angles" toml:"angles"` // azimuths in degrees
	Eye    [3]float32 `yaml:"eye" toml:"eye"`
	Scale  float32    `yaml:"scale" toml:"scale"`
	FovY   float32    `yaml:"fov_y" toml:"fov_y"` // degrees
	Near   float32    `yaml:"near" toml:"near"`
	Far    float32    `yaml:"far" toml:"far"`
}

// FeaturesConfig holds detector and preprocessing settings.
type FeaturesConfig struct {
	Algorithm            string  `yaml:"algorithm" toml:"algorithm"` // akaze or orb
	ReferenceThreshold   float32 `yaml:"reference_threshold" toml:"reference_threshold"`
	LiveThreshold        float32 `yaml:"live_threshold" toml:"live_threshold"` // 0 keeps the detector default
	ReferenceMaxFeatures int     `yaml:"reference_max_features" toml:"reference_max_features"`
	LiveMaxFeatures      int     `yaml:"live_max_features" toml:"live_max_features"`
	BlurKernel           int     `yaml:"blur_kernel" toml:"blur_kernel"`
	CannyLow             float64 `yaml:"canny_low" toml:"canny_low"`
	CannyHigh            float64 `yaml:"canny_high" toml:"canny_high"`
}

// MatcherConfig holds descriptor matching and verification settings.
type MatcherConfig struct {
	Ratio           float64 `yaml:"ratio" toml:"ratio"`
	MinMatches      int     `yaml:"min_matches" toml:"min_matches"`
	RansacThreshold float64 `yaml:"ransac_threshold" toml:"ransac_threshold"`
	RansacMaxIters  int     `yaml:"ransac_max_iters" toml:"ransac_max_iters"`
	Confidence      float64 `yaml:"confidence" toml:"confidence"`
	Workers         int     `yaml:"workers" toml:"workers"`
	Async           bool    `yaml:"async" toml:"async"`
}

// VisionConfig selects the computer-vision toolkit.
type VisionConfig struct {
	Toolkit string `yaml:"toolkit" toml:"toolkit"` // opencv or go
	Seed    uint64 `yaml:"seed" toml:"seed"`
}

// PreviewConfig holds the live preview window settings.
type PreviewConfig struct {
	Title    string `yaml:"title" toml:"title"`
	Width    int    `yaml:"width" toml:"width"`
	Height   int    `yaml:"height" toml:"height"`
	FPS      int    `yaml:"fps" toml:"fps"`
	VSync    bool   `yaml:"vsync" toml:"vsync"`
	Headless bool   `yaml:"headless" toml:"headless"`
}

// DebugConfig controls optional image dumps.
type DebugConfig struct {
	DumpViews     bool   `yaml:"dump_views" toml:"dump_views"`
	DumpKeypoints bool   `yaml:"dump_keypoints" toml:"dump_keypoints"`
	Dir           string `yaml:"dir" toml:"dir"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level" toml:"level"`
	LogFile string `yaml:"log_file" toml:"log_file"`
}

// Default returns a Config with the reference pipeline values.
func Default() *Config {
	return &Config{
		Source: SourceConfig{
			Kind:   "still",
			Camera: 0,
		},
		Render: RenderConfig{
			Backend: "software",
			Width:   1024,
			Height:  1024,
		},
		Bake: BakeConfig{
			Angles: []float32{0, 45, 90, 135, 180, 225, 270, 315},
			Eye:    [3]float32{0, 0, 5},
			Scale:  0.01,
			FovY:   45,
			Near:   1,
			Far:    10,
		},
		Features: FeaturesConfig{
			Algorithm:            "akaze",
			ReferenceThreshold:   0.001,
			LiveThreshold:        0,
			ReferenceMaxFeatures: 1000,
			LiveMaxFeatures:      2000,
			BlurKernel:           5,
			CannyLow:             50,
			CannyHigh:            150,
		},
		Matcher: MatcherConfig{
			Ratio:           0.75,
			MinMatches:      4,
			RansacThreshold: 3.0,
			RansacMaxIters:  2000,
			Confidence:      0.995,
			Workers:         1,
			Async:           false,
		},
		Vision: VisionConfig{
			Toolkit: "opencv",
			Seed:    0x5eed,
		},
		Preview: PreviewConfig{
			Title:  "CADMatch",
			Width:  1280,
			Height: 720,
			FPS:    30,
			VSync:  true,
		},
		Debug: DebugConfig{
			Dir: "dumps",
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Validate reports the first setting that the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Render.Width < 16 || c.Render.Height < 16 {
		errs = append(errs, fmt.Errorf("render size %dx%d too small", c.Render.Width, c.Render.Height))
	}
	switch c.Render.Backend {
	case "software", "opengl":
	default:
		errs = append(errs, fmt.Errorf("unknown render backend %q", c.Render.Backend))
	}
	if len(c.Bake.Angles) == 0 {
		errs = append(errs, errors.New("bake needs at least one angle"))
	}
	if c.Bake.Near <= 0 || c.Bake.Far <= c.Bake.Near {
		errs = append(errs, fmt.Errorf("invalid clip range near=%g far=%g", c.Bake.Near, c.Bake.Far))
	}
	switch c.Features.Algorithm {
	case "akaze", "orb":
	default:
		errs = append(errs, fmt.Errorf("unknown feature algorithm %q", c.Features.Algorithm))
	}
	if c.Features.BlurKernel < 1 || c.Features.BlurKernel%2 == 0 {
		errs = append(errs, fmt.Errorf("blur kernel must be odd and positive, got %d", c.Features.BlurKernel))
	}
	if c.Matcher.Ratio <= 0 || c.Matcher.Ratio > 1 {
		errs = append(errs, fmt.Errorf("ratio must be in (0,1], got %g", c.Matcher.Ratio))
	}
	if c.Matcher.MinMatches < 4 {
		errs = append(errs, fmt.Errorf("a homography needs at least 4 matches, got %d", c.Matcher.MinMatches))
	}
	if c.Matcher.RansacThreshold <= 0 {
		errs = append(errs, fmt.Errorf("ransac threshold must be positive, got %g", c.Matcher.RansacThreshold))
	}
	switch c.Vision.Toolkit {
	case "opencv", "go":
	default:
		errs = append(errs, fmt.Errorf("unknown vision toolkit %q", c.Vision.Toolkit))
	}
	switch c.Source.Kind {
	case "still", "dir", "camera":
	default:
		errs = append(errs, fmt.Errorf("unknown frame source %q", c.Source.Kind))
	}

	return errors.Join(errs...)
}
