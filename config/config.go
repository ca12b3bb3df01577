// Package config loads and validates tool configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Common errors
var (
	ErrConfigurationError = errors.New("configuration error")
)

// ConfigError represents a configuration error with field context.
type ConfigError struct {
	Field   string
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config error in '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("config error: %s", e.Message)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message, Err: ErrConfigurationError}
}

// Duration wraps time.Duration so YAML values can use forms like "600ms".
type Duration time.Duration

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConfigurationError, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// LimitsConfig caps the sizes accepted at the file-input boundary.
type LimitsConfig struct {
	// MaxDocumentBytes caps the source document size.
	MaxDocumentBytes int `yaml:"max-document-bytes" json:"max_document_bytes"`

	// MaxSignatureBytes caps uploaded signature image size.
	MaxSignatureBytes int `yaml:"max-signature-bytes" json:"max_signature_bytes"`
}

// RasterConfig tunes page rendering.
type RasterConfig struct {
	// Scale is the upscaling factor from PDF points to display pixels.
	Scale float64 `yaml:"scale" json:"scale"`
}

// GestureConfig tunes the interaction thresholds.
type GestureConfig struct {
	// DragThresholdPx is the minimum pointer travel in device-independent
	// pixels before a press becomes a drag or resize.
	DragThresholdPx float64 `yaml:"drag-threshold-px" json:"drag_threshold_px"`

	// HandleHitZonePx sizes the resize-handle hit region.
	HandleHitZonePx float64 `yaml:"handle-hit-zone-px" json:"handle_hit_zone_px"`

	// LongPress is the motionless press duration that triggers delete.
	LongPress Duration `yaml:"long-press" json:"long_press"`

	// MinRectWidthPct and MinRectHeightPct floor the placement size during
	// resize, in percent of page surface.
	MinRectWidthPct  float64 `yaml:"min-rect-width-pct" json:"min_rect_width_pct"`
	MinRectHeightPct float64 `yaml:"min-rect-height-pct" json:"min_rect_height_pct"`

	// DefaultRectWidthPct and DefaultRectHeightPct size newly placed
	// signatures, in percent of page surface.
	DefaultRectWidthPct  float64 `yaml:"default-rect-width-pct" json:"default_rect_width_pct"`
	DefaultRectHeightPct float64 `yaml:"default-rect-height-pct" json:"default_rect_height_pct"`
}

// SignatureConfig tunes the signature-upload gate.
type SignatureConfig struct {
	// AcceptedMIMETypes restricts uploads by MIME type.
	AcceptedMIMETypes []string `yaml:"accepted-mime-types" json:"accepted_mime_types"`

	// MaxDimensionPx downscales larger uploads before processing.
	MaxDimensionPx int `yaml:"max-dimension-px" json:"max_dimension_px"`
}

// Config is the full tool configuration.
type Config struct {
	Limits    LimitsConfig    `yaml:"limits" json:"limits"`
	Raster    RasterConfig    `yaml:"raster" json:"raster"`
	Gesture   GestureConfig   `yaml:"gesture" json:"gesture"`
	Signature SignatureConfig `yaml:"signature" json:"signature"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Limits: LimitsConfig{
			MaxDocumentBytes:  50 * 1024 * 1024,
			MaxSignatureBytes: 5 * 1024 * 1024,
		},
		Raster: RasterConfig{
			Scale: 1.5,
		},
		Gesture: GestureConfig{
			DragThresholdPx:      4,
			HandleHitZonePx:      16,
			LongPress:            Duration(600 * time.Millisecond),
			MinRectWidthPct:      5,
			MinRectHeightPct:     3,
			DefaultRectWidthPct:  20,
			DefaultRectHeightPct: 8,
		},
		Signature: SignatureConfig{
			AcceptedMIMETypes: []string{"image/png", "image/jpeg"},
			MaxDimensionPx:    1600,
		},
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Limits.MaxDocumentBytes <= 0 {
		return NewConfigError("limits.max-document-bytes", "must be positive")
	}
	if c.Limits.MaxSignatureBytes <= 0 {
		return NewConfigError("limits.max-signature-bytes", "must be positive")
	}
	if c.Raster.Scale <= 0 {
		return NewConfigError("raster.scale", "must be positive")
	}
	if c.Gesture.DragThresholdPx < 0 {
		return NewConfigError("gesture.drag-threshold-px", "must not be negative")
	}
	if c.Gesture.LongPress <= 0 {
		return NewConfigError("gesture.long-press", "must be positive")
	}
	if c.Gesture.MinRectWidthPct <= 0 || c.Gesture.MinRectWidthPct > 100 {
		return NewConfigError("gesture.min-rect-width-pct", "must be in (0, 100]")
	}
	if c.Gesture.MinRectHeightPct <= 0 || c.Gesture.MinRectHeightPct > 100 {
		return NewConfigError("gesture.min-rect-height-pct", "must be in (0, 100]")
	}
	if c.Gesture.DefaultRectWidthPct < c.Gesture.MinRectWidthPct || c.Gesture.DefaultRectWidthPct > 100 {
		return NewConfigError("gesture.default-rect-width-pct", "must be between the minimum width and 100")
	}
	if c.Gesture.DefaultRectHeightPct < c.Gesture.MinRectHeightPct || c.Gesture.DefaultRectHeightPct > 100 {
		return NewConfigError("gesture.default-rect-height-pct", "must be between the minimum height and 100")
	}
	if len(c.Signature.AcceptedMIMETypes) == 0 {
		return NewConfigError("signature.accepted-mime-types", "must list at least one type")
	}
	return nil
}

// Parse parses a YAML configuration, filling unset fields from Default.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &ConfigError{Message: "invalid YAML", Err: err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads and parses a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Field: "file", Message: fmt.Sprintf("cannot read %s", path), Err: err}
	}
	return Parse(data)
}
