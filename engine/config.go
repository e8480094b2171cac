package engine

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/prisma/engine/core"
)

const (
	BackendVulkan   = "vulkan"
	BackendHeadless = "headless"
)

type Config struct {
	// The application name used in windowing.
	Title string `toml:"title"`
	// Window starting position, if applicable.
	StartPosX uint32 `toml:"start_pos_x"`
	StartPosY uint32 `toml:"start_pos_y"`
	// Window starting size.
	Width  uint32 `toml:"width"`
	Height uint32 `toml:"height"`
	// Number of rendered objects; one callable shader binary per object
	// must exist under ShaderDir.
	ObjectCount uint32 `toml:"object_count"`
	// Directory holding the compiled shader binaries.
	ShaderDir string `toml:"shader_dir"`
	// Renderer backend, "vulkan" or "headless".
	Backend string `toml:"backend"`
	// Frames in flight; zero lets the backend decide.
	FramesInFlight uint32 `toml:"frames_in_flight"`
	LogLevel       string `toml:"log_level"`
}

func DefaultConfig() *Config {
	return &Config{
		Title:       "Prisma",
		Width:       800,
		Height:      600,
		ObjectCount: 3,
		ShaderDir:   "assets/shaders",
		Backend:     BackendVulkan,
		LogLevel:    "info",
	}
}

// LoadConfig reads a TOML file over the defaults. A missing file is not
// an error; the defaults describe a runnable demo.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		core.LogInfo("no config at %s, using defaults", path)
		return config, nil
	}
	if err != nil {
		return nil, err
	}
	if err := toml.Unmarshal(data, config); err != nil {
		core.LogError("failed to parse config %s", path)
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) Validate() error {
	if c.Width == 0 || c.Height == 0 {
		return fmt.Errorf("config: window size %dx%d is degenerate", c.Width, c.Height)
	}
	if c.ObjectCount == 0 {
		return fmt.Errorf("config: object_count must be at least 1")
	}
	if c.Backend != BackendVulkan && c.Backend != BackendHeadless {
		return fmt.Errorf("config: unknown backend %q", c.Backend)
	}
	if c.ShaderDir == "" {
		return fmt.Errorf("config: shader_dir must not be empty")
	}
	return nil
}
