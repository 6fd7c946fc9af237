package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// config holds the engine tuning read from the optional TOML file. Flags
// given on the command line override it.
type config struct {
	Width   int    `toml:"width"`
	Height  int    `toml:"height"`
	Output  string `toml:"output"`
	Frames  int    `toml:"frames"`
	Mode    string `toml:"mode"`
	Backend string `toml:"backend"`
	Workers int    `toml:"workers"`
	Stream  string `toml:"stream"`
	FPS     int    `toml:"fps"`

	Physics physicsConfig `toml:"physics"`
}

type physicsConfig struct {
	Gravity  [2]float32 `toml:"gravity"`
	CellSize float32    `toml:"cell_size"`
}

func defaultConfig() config {
	return config{
		Width:   800,
		Height:  600,
		Output:  "sdfdemo.png",
		Frames:  120,
		Mode:    "pbr",
		Backend: "cpu",
		FPS:     30,
		Physics: physicsConfig{Gravity: [2]float32{0, -0.5}, CellSize: 1},
	}
}

var errConfig = errors.New("sdfdemo: invalid config")

// loadConfig overlays the file at path on the defaults. Unknown keys are
// rejected.
func loadConfig(path string) (config, error) {
	c := defaultConfig()
	if path == "" {
		return c, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return c, err
	}
	defer f.Close()

	dec := toml.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		return c, fmt.Errorf("%s: %w", path, err)
	}
	return c, c.validate()
}

func (c config) validate() error {
	switch {
	case c.Width <= 0 || c.Height <= 0:
		return fmt.Errorf("%w: size %dx%d", errConfig, c.Width, c.Height)
	case c.Frames < 0:
		return fmt.Errorf("%w: frames %d", errConfig, c.Frames)
	case c.Backend != "cpu" && c.Backend != "hal":
		return fmt.Errorf("%w: backend %q", errConfig, c.Backend)
	case c.Physics.CellSize <= 0:
		return fmt.Errorf("%w: cell_size %v", errConfig, c.Physics.CellSize)
	case c.FPS <= 0:
		return fmt.Errorf("%w: fps %d", errConfig, c.FPS)
	}
	if _, err := parseMode(c.Mode); err != nil {
		return err
	}
	return nil
}
