package app

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/vkinit/internal/driver"
)

// ValidationLayer is the only layer requested unless the caller overrides it.
const ValidationLayer = "VK_LAYER_KHRONOS_validation"

// Config holds everything needed to build the instance descriptor.
type Config struct {
	ApplicationName    string
	ApplicationVersion driver.Version
	EngineName         string
	EngineVersion      driver.Version
	APIVersion         driver.Version

	Layers     []string
	Extensions []string

	Loader      driver.Source
	LibraryPath string

	Window         bool
	WindowTitle    string
	WindowWidth    int
	WindowHeight   int
	DebugMessenger bool

	LogLevel  string
	LogFormat string
}

// DefaultConfig mirrors the values of the hello-triangle tutorial.
func DefaultConfig() Config {
	return Config{
		ApplicationName:    "Hello Triangle",
		ApplicationVersion: driver.MakeAPIVersion(0, 1, 0, 0),
		EngineName:         "No Engine",
		EngineVersion:      driver.MakeAPIVersion(0, 1, 0, 0),
		APIVersion:         driver.Vulkan1_2,
		Layers:             []string{ValidationLayer},
		Loader:             driver.SourceSDL,
		WindowTitle:        "Vulkan",
		WindowWidth:        800,
		WindowHeight:       600,
		LogLevel:           "info",
		LogFormat:          "text",
	}
}

// NewConfig validates cfg and fills the fields left empty with defaults.
func NewConfig(cfg Config) (*Config, error) {
	def := DefaultConfig()

	if cfg.ApplicationName == "" {
		cfg.ApplicationName = def.ApplicationName
	}
	if cfg.EngineName == "" {
		cfg.EngineName = def.EngineName
	}
	if cfg.APIVersion == 0 {
		cfg.APIVersion = def.APIVersion
	}
	if !cfg.APIVersion.IsAtLeast(driver.Vulkan1_0) {
		return nil, errors.Newf("api version %s is below 1.0", cfg.APIVersion)
	}
	if cfg.Layers == nil {
		cfg.Layers = def.Layers
	}
	if cfg.Loader == "" {
		cfg.Loader = def.Loader
	}
	if !cfg.Loader.Valid() {
		return nil, errors.Newf("unknown loader %q: must be 'sdl' or 'glfw'", cfg.Loader)
	}
	if cfg.Window && cfg.Loader != driver.SourceSDL {
		return nil, errors.New("a window requires the sdl loader")
	}
	if cfg.WindowTitle == "" {
		cfg.WindowTitle = def.WindowTitle
	}
	if cfg.WindowWidth <= 0 {
		cfg.WindowWidth = def.WindowWidth
	}
	if cfg.WindowHeight <= 0 {
		cfg.WindowHeight = def.WindowHeight
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = def.LogLevel
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = def.LogFormat
	}

	return &cfg, nil
}
