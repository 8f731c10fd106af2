package boxlabel

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config holds the runtime configuration of an annotation session and its export.
// Fields may be loaded from a JSON file and overridden by command-line flags.
type Config struct {
	// Display fitting. The display size is ignored if NoScaling is set.
	DisplayWidth  float64 `json:"display_width"`
	DisplayHeight float64 `json:"display_height"`
	AllowUpscale  bool    `json:"allow_upscale"`
	NoScaling     bool    `json:"no_scaling"`

	// Export.
	OutputDir      string   `json:"output_dir"`
	ExtraFormats   []string `json:"extra_formats"`  // kitti, sloth, tfrecord, via
	LabelMappings  []string `json:"label_mappings"` // old=new
	MinBboxWidth   float64  `json:"min_bbox_width"`
	MinBboxHeight  float64  `json:"min_bbox_height"`
	ClampCoords    bool     `json:"clamp_coords"`
	TFRecordShards int      `json:"tfrecord_shards"`
}

// DefaultConfig returns a Config populated with standard defaults.
func DefaultConfig() *Config {
	return &Config{
		DisplayWidth:   800,
		DisplayHeight:  600,
		AllowUpscale:   true,
		OutputDir:      ".",
		TFRecordShards: 1,
	}
}

// Validate checks the configuration and normalizes values that have a safe default.
func (c *Config) Validate() error {
	if c.DisplayWidth < 0 || c.DisplayHeight < 0 {
		return fmt.Errorf("display size must not be negative: %gx%g", c.DisplayWidth,
			c.DisplayHeight)
	}
	if !c.NoScaling && (c.DisplayWidth == 0 || c.DisplayHeight == 0) {
		return fmt.Errorf("display width and height must be positive unless scaling is disabled")
	}
	if c.MinBboxWidth < 0 || c.MinBboxHeight < 0 {
		return fmt.Errorf("minimum bounding box size must not be negative")
	}
	if c.OutputDir == "" {
		c.OutputDir = "."
	}
	if c.TFRecordShards <= 0 {
		c.TFRecordShards = 1
	}
	if _, err := ParseFormats(c.ExtraFormats); err != nil {
		return err
	}
	return nil
}

// SessionOptions returns the display options for a Session.
func (c *Config) SessionOptions() SessionOptions {
	return SessionOptions{
		DisplayWidth:  c.DisplayWidth,
		DisplayHeight: c.DisplayHeight,
		AllowUpscale:  c.AllowUpscale,
		NoScaling:     c.NoScaling,
	}
}

// ExportOptions returns the options for Export. The config must be valid.
func (c *Config) ExportOptions() (ExportOptions, error) {
	formats, err := ParseFormats(c.ExtraFormats)
	if err != nil {
		return ExportOptions{}, err
	}
	return ExportOptions{
		LabelMappings:  c.LabelMappings,
		MinBboxWidth:   c.MinBboxWidth,
		MinBboxHeight:  c.MinBboxHeight,
		ClampCoords:    c.ClampCoords,
		ExtraFormats:   formats,
		TFRecordShards: c.TFRecordShards,
	}, nil
}

// LoadConfig reads the configuration from the JSON file at path. Fields missing from the file
// keep their defaults. If the file does not exist, DefaultConfig() is returned.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %q: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %q: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration to path in JSON format.
func (c *Config) Save(path string) error {
	enc, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, enc, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
