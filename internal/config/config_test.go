package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Render.Width != 1024 || cfg.Render.Height != 1024 {
		t.Errorf("expected 1024x1024 render target, got %dx%d", cfg.Render.Width, cfg.Render.Height)
	}
	if got := len(cfg.Bake.Angles); got != 8 {
		t.Errorf("expected 8 bake angles, got %d", got)
	}
	for i, a := range cfg.Bake.Angles {
		if a != float32(45*i) {
			t.Errorf("angle %d = %v, want %d", i, a, 45*i)
		}
	}
	if cfg.Bake.Eye != [3]float32{0, 0, 5} {
		t.Errorf("expected eye (0,0,5), got %v", cfg.Bake.Eye)
	}
	if cfg.Bake.Scale != 0.01 || cfg.Bake.FovY != 45 || cfg.Bake.Near != 1 || cfg.Bake.Far != 10 {
		t.Errorf("unexpected projection defaults: %+v", cfg.Bake)
	}
	if cfg.Features.Algorithm != "akaze" {
		t.Errorf("expected akaze, got %s", cfg.Features.Algorithm)
	}
	if cfg.Features.CannyLow != 50 || cfg.Features.CannyHigh != 150 {
		t.Errorf("expected canny 50/150, got %v/%v", cfg.Features.CannyLow, cfg.Features.CannyHigh)
	}
	if cfg.Matcher.Ratio != 0.75 {
		t.Errorf("expected ratio 0.75, got %v", cfg.Matcher.Ratio)
	}
	if cfg.Matcher.MinMatches != 4 {
		t.Errorf("expected min matches 4, got %d", cfg.Matcher.MinMatches)
	}
	if cfg.Matcher.RansacThreshold != 3.0 {
		t.Errorf("expected ransac threshold 3.0, got %v", cfg.Matcher.RansacThreshold)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.Logging.Level)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadFromFileYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
source:
  mesh: "bracket.obj"
  kind: dir
  dir: "/tmp/frames"

render:
  width: 512
  height: 512

bake:
  angles: [0, 90, 180, 270]

features:
  algorithm: orb
  live_max_features: 3000

matcher:
  ratio: 0.8
  workers: 4
  async: true

logging:
  level: "debug"
  log_file: "cadmatch.log"
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Source.Mesh != "bracket.obj" || cfg.Source.Kind != "dir" || cfg.Source.Dir != "/tmp/frames" {
		t.Errorf("source not loaded: %+v", cfg.Source)
	}
	if cfg.Render.Width != 512 {
		t.Errorf("expected width 512, got %d", cfg.Render.Width)
	}
	if len(cfg.Bake.Angles) != 4 || cfg.Bake.Angles[3] != 270 {
		t.Errorf("expected 4 angles ending at 270, got %v", cfg.Bake.Angles)
	}
	// Unset keys keep their defaults.
	if cfg.Bake.Scale != 0.01 {
		t.Errorf("expected default scale, got %v", cfg.Bake.Scale)
	}
	if cfg.Features.Algorithm != "orb" || cfg.Features.LiveMaxFeatures != 3000 {
		t.Errorf("features not loaded: %+v", cfg.Features)
	}
	if cfg.Features.ReferenceMaxFeatures != 1000 {
		t.Errorf("expected default reference cap, got %d", cfg.Features.ReferenceMaxFeatures)
	}
	if cfg.Matcher.Ratio != 0.8 || cfg.Matcher.Workers != 4 || !cfg.Matcher.Async {
		t.Errorf("matcher not loaded: %+v", cfg.Matcher)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.LogFile != "cadmatch.log" {
		t.Errorf("logging not loaded: %+v", cfg.Logging)
	}
}

func TestLoadFromFileTOML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.toml")

	tomlContent := `
[render]
backend = "opengl"
width = 640
height = 480

[matcher]
ransac_threshold = 5.0
min_matches = 8

[vision]
toolkit = "go"
`
	if err := os.WriteFile(configPath, []byte(tomlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Render.Backend != "opengl" || cfg.Render.Width != 640 || cfg.Render.Height != 480 {
		t.Errorf("render not loaded: %+v", cfg.Render)
	}
	if cfg.Matcher.RansacThreshold != 5.0 || cfg.Matcher.MinMatches != 8 {
		t.Errorf("matcher not loaded: %+v", cfg.Matcher)
	}
	if cfg.Vision.Toolkit != "go" {
		t.Errorf("expected toolkit go, got %s", cfg.Vision.Toolkit)
	}
	if cfg.Matcher.Ratio != 0.75 {
		t.Errorf("expected default ratio to survive, got %v", cfg.Matcher.Ratio)
	}
}

func TestLoadFromFileInvalid(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"yaml", "bad.yaml", "render:\n  width: not a number\n  invalid syntax here\n"},
		{"toml", "bad.toml", "[render\nwidth = \n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatalf("failed to write test config: %v", err)
			}
			if err := loadFromFile(Default(), path); err == nil {
				t.Error("expected error loading invalid config, got nil")
			}
		})
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	if err := loadFromFile(Default(), "/nonexistent/path/config.yaml"); err == nil {
		t.Error("expected error loading missing file, got nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"ratio above one", func(c *Config) { c.Matcher.Ratio = 1.5 }, "ratio"},
		{"too few matches", func(c *Config) { c.Matcher.MinMatches = 3 }, "at least 4"},
		{"even blur", func(c *Config) { c.Features.BlurKernel = 4 }, "blur kernel"},
		{"unknown algorithm", func(c *Config) { c.Features.Algorithm = "sift" }, "sift"},
		{"no angles", func(c *Config) { c.Bake.Angles = nil }, "angle"},
		{"bad clip", func(c *Config) { c.Bake.Far = 0.5 }, "clip range"},
		{"tiny render", func(c *Config) { c.Render.Width = 4 }, "too small"},
		{"unknown source", func(c *Config) { c.Source.Kind = "rtsp" }, "rtsp"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestConfigDir(t *testing.T) {
	dir := ConfigDir()
	if dir == "" {
		t.Error("ConfigDir returned empty string")
	}
	if !filepath.IsAbs(dir) {
		t.Errorf("ConfigDir should return absolute path, got %s", dir)
	}
}

func TestFindConfigFile(t *testing.T) {
	origDir, _ := os.Getwd()
	defer os.Chdir(origDir)

	tmpDir := t.TempDir()
	os.Chdir(tmpDir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, "xdg"))

	if path := findConfigFile(); path != "" {
		t.Errorf("expected empty path when no config exists, got %s", path)
	}

	if err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte("[render]\nwidth = 800\n"), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}
	if path := findConfigFile(); !strings.HasSuffix(path, "config.toml") {
		t.Errorf("expected to find config.toml, got %q", path)
	}

	// YAML wins when both exist in the same directory.
	if err := os.WriteFile(filepath.Join(tmpDir, "config.yaml"), []byte("render:\n  width: 800\n"), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}
	if path := findConfigFile(); !strings.HasSuffix(path, "config.yaml") {
		t.Errorf("expected to find config.yaml, got %q", path)
	}
}

func TestApplyFlags(t *testing.T) {
	tests := []struct {
		name     string
		setup    func()
		verify   func(*Config)
		teardown func()
	}{
		{
			name:  "debug flag",
			setup: func() { *flagDebug = true },
			verify: func(cfg *Config) {
				if cfg.Logging.Level != "debug" {
					t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
				}
				if !cfg.Debug.DumpViews || !cfg.Debug.DumpKeypoints {
					t.Error("expected dumps to be enabled with debug flag")
				}
			},
			teardown: func() { *flagDebug = false },
		},
		{
			name:  "image flag selects still source",
			setup: func() { *flagImage = "frame.png" },
			verify: func(cfg *Config) {
				if cfg.Source.Kind != "still" || cfg.Source.Image != "frame.png" {
					t.Errorf("unexpected source %+v", cfg.Source)
				}
			},
			teardown: func() { *flagImage = "" },
		},
		{
			name:  "source dir flag",
			setup: func() { *flagSourceDir = "/tmp/in" },
			verify: func(cfg *Config) {
				if cfg.Source.Kind != "dir" || cfg.Source.Dir != "/tmp/in" {
					t.Errorf("unexpected source %+v", cfg.Source)
				}
			},
			teardown: func() { *flagSourceDir = "" },
		},
		{
			name:  "camera flag",
			setup: func() { *flagCamera = 2 },
			verify: func(cfg *Config) {
				if cfg.Source.Kind != "camera" || cfg.Source.Camera != 2 {
					t.Errorf("unexpected source %+v", cfg.Source)
				}
			},
			teardown: func() { *flagCamera = -1 },
		},
		{
			name: "backend flags",
			setup: func() {
				*flagRender = "opengl"
				*flagToolkit = "go"
				*flagAlgorithm = "orb"
			},
			verify: func(cfg *Config) {
				if cfg.Render.Backend != "opengl" || cfg.Vision.Toolkit != "go" || cfg.Features.Algorithm != "orb" {
					t.Errorf("unexpected backends: %s %s %s", cfg.Render.Backend, cfg.Vision.Toolkit, cfg.Features.Algorithm)
				}
			},
			teardown: func() {
				*flagRender = ""
				*flagToolkit = ""
				*flagAlgorithm = ""
			},
		},
		{
			name: "width and height flags",
			setup: func() {
				*flagWidth = 1920
				*flagHeight = 1080
			},
			verify: func(cfg *Config) {
				if cfg.Preview.Width != 1920 || cfg.Preview.Height != 1080 {
					t.Errorf("expected 1920x1080 preview, got %dx%d", cfg.Preview.Width, cfg.Preview.Height)
				}
			},
			teardown: func() {
				*flagWidth = 0
				*flagHeight = 0
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			defer tt.teardown()

			cfg := Default()
			applyFlags(cfg)
			tt.verify(cfg)
		})
	}
}

func TestLoadPriority(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	yamlContent := `
preview:
  width: 1600
  height: 900
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	*flagConfig = configPath
	*flagWidth = 1920
	defer func() {
		*flagConfig = ""
		*flagWidth = 0
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Preview.Width != 1920 {
		t.Errorf("expected width 1920 from flag, got %d", cfg.Preview.Width)
	}
	if cfg.Preview.Height != 900 {
		t.Errorf("expected height 900 from file, got %d", cfg.Preview.Height)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("matcher:\n  ratio: 2\n"), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	*flagConfig = configPath
	defer func() { *flagConfig = "" }()

	if _, err := Load(); err == nil {
		t.Error("expected Load to reject ratio 2")
	}
}

func TestSaveTo(t *testing.T) {
	for _, name := range []string{"out.yaml", "out.toml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)

			cfg := Default()
			cfg.Matcher.Workers = 6
			cfg.Source.Mesh = "part.obj"
			if err := cfg.SaveTo(path); err != nil {
				t.Fatalf("SaveTo failed: %v", err)
			}

			loaded := Default()
			if err := loadFromFile(loaded, path); err != nil {
				t.Fatalf("reload failed: %v", err)
			}
			if loaded.Matcher.Workers != 6 || loaded.Source.Mesh != "part.obj" {
				t.Errorf("saved values not restored: %+v %+v", loaded.Matcher, loaded.Source)
			}
			if len(loaded.Bake.Angles) != 8 {
				t.Errorf("angles not restored: %v", loaded.Bake.Angles)
			}
		})
	}
}
