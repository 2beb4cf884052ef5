package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/tableseg/internal/cloud"
	"github.com/banshee-data/tableseg/internal/geom"
	"github.com/banshee-data/tableseg/internal/segment"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// maxFileSize bounds config files read from disk.
const maxFileSize = 1 * 1024 * 1024 // 1MB

// CameraConfig describes the depth camera that produced a frame.
type CameraConfig struct {
	Fx         *float64 `json:"fx,omitempty" yaml:"fx,omitempty"`
	Fy         *float64 `json:"fy,omitempty" yaml:"fy,omitempty"`
	Cx         *float64 `json:"cx,omitempty" yaml:"cx,omitempty"`
	Cy         *float64 `json:"cy,omitempty" yaml:"cy,omitempty"`
	DepthScale *float64 `json:"depth_scale,omitempty" yaml:"depth_scale,omitempty"` // metres per depth unit
}

// TuningConfig represents the root configuration for segmentation. The same
// schema is accepted as the "params" override of POST /api/segment.
type TuningConfig struct {
	// Segmentation params
	ClusterDBSCANEps    *float64 `json:"cluster_dbscan_eps,omitempty" yaml:"cluster_dbscan_eps,omitempty"`
	MinPoints           *int     `json:"min_points,omitempty" yaml:"min_points,omitempty"`
	MinVolume           *float64 `json:"min_volume,omitempty" yaml:"min_volume,omitempty"`         // m³
	MaxObjHeight        *float64 `json:"max_obj_height,omitempty" yaml:"max_obj_height,omitempty"` // m
	LateralMargin       *float64 `json:"lateral_margin,omitempty" yaml:"lateral_margin,omitempty"` // m
	PlanePolicy         *string  `json:"plane_policy,omitempty" yaml:"plane_policy,omitempty"`     // "first" or "all"
	EnableVisualization *bool    `json:"enable_visualization,omitempty" yaml:"enable_visualization,omitempty"`

	// Sensor params
	Camera         *CameraConfig `json:"camera,omitempty" yaml:"camera,omitempty"`
	BaseFromCamera *[16]float64  `json:"base_from_camera,omitempty" yaml:"base_from_camera,omitempty"` // row-major 4x4
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field set to its
// built-in default.
func DefaultTuningConfig() *TuningConfig {
	empty := EmptyTuningConfig()
	base := empty.GetBaseFromCamera()
	return &TuningConfig{
		ClusterDBSCANEps:    ptrFloat64(empty.GetClusterDBSCANEps()),
		MinPoints:           ptrInt(empty.GetMinPoints()),
		MinVolume:           ptrFloat64(empty.GetMinVolume()),
		MaxObjHeight:        ptrFloat64(empty.GetMaxObjHeight()),
		LateralMargin:       ptrFloat64(empty.GetLateralMargin()),
		PlanePolicy:         ptrString(empty.GetPlanePolicy().String()),
		EnableVisualization: ptrBool(empty.GetEnableVisualization()),
		Camera:              &CameraConfig{DepthScale: ptrFloat64(empty.GetDepthScale())},
		BaseFromCamera:      (*[16]float64)(&base),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON or YAML file.
// The file is validated to ensure it has a .json, .yaml or .yml extension
// and is under the max file size. Fields omitted from the file retain their
// default values, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	// Validate the config file path.
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse into empty config. The Get* methods provide fallback
	// defaults for any fields not specified in the file.
	cfg := EmptyTuningConfig()
	if ext == ".json" {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	// Try paths from current dir up to repo root
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,       // from cmd/tableseg/
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Merge returns a copy of c with every field set in override replacing the
// corresponding field of c. Camera fields merge individually.
func (c *TuningConfig) Merge(override *TuningConfig) *TuningConfig {
	out := *c
	if override == nil {
		return &out
	}
	if override.ClusterDBSCANEps != nil {
		out.ClusterDBSCANEps = override.ClusterDBSCANEps
	}
	if override.MinPoints != nil {
		out.MinPoints = override.MinPoints
	}
	if override.MinVolume != nil {
		out.MinVolume = override.MinVolume
	}
	if override.MaxObjHeight != nil {
		out.MaxObjHeight = override.MaxObjHeight
	}
	if override.LateralMargin != nil {
		out.LateralMargin = override.LateralMargin
	}
	if override.PlanePolicy != nil {
		out.PlanePolicy = override.PlanePolicy
	}
	if override.EnableVisualization != nil {
		out.EnableVisualization = override.EnableVisualization
	}
	if override.BaseFromCamera != nil {
		out.BaseFromCamera = override.BaseFromCamera
	}
	if override.Camera != nil {
		cam := CameraConfig{}
		if c.Camera != nil {
			cam = *c.Camera
		}
		o := override.Camera
		if o.Fx != nil {
			cam.Fx = o.Fx
		}
		if o.Fy != nil {
			cam.Fy = o.Fy
		}
		if o.Cx != nil {
			cam.Cx = o.Cx
		}
		if o.Cy != nil {
			cam.Cy = o.Cy
		}
		if o.DepthScale != nil {
			cam.DepthScale = o.DepthScale
		}
		out.Camera = &cam
	}
	return &out
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.ClusterDBSCANEps != nil {
		if v := *c.ClusterDBSCANEps; !(v > 0) || math.IsInf(v, 0) {
			return fmt.Errorf("cluster_dbscan_eps must be positive, got %g", v)
		}
	}

	if c.MinPoints != nil && *c.MinPoints < 1 {
		return fmt.Errorf("min_points must be at least 1, got %d", *c.MinPoints)
	}

	if c.MinVolume != nil {
		if v := *c.MinVolume; math.IsNaN(v) || v < 0 {
			return fmt.Errorf("min_volume must be non-negative, got %g", v)
		}
	}

	if c.MaxObjHeight != nil {
		if v := *c.MaxObjHeight; !(v > 0) || math.IsInf(v, 0) {
			return fmt.Errorf("max_obj_height must be positive, got %g", v)
		}
	}

	if c.LateralMargin != nil {
		if v := *c.LateralMargin; math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("lateral_margin must be non-negative, got %g", v)
		}
	}

	if c.PlanePolicy != nil {
		if _, err := segment.ParsePlanePolicy(*c.PlanePolicy); err != nil {
			return fmt.Errorf("invalid plane_policy: %w", err)
		}
	}

	if c.Camera != nil && c.Camera.DepthScale != nil {
		if v := *c.Camera.DepthScale; !(v > 0) || math.IsInf(v, 0) {
			return fmt.Errorf("camera.depth_scale must be positive, got %g", v)
		}
	}

	if c.BaseFromCamera != nil {
		if !geom.Transform(*c.BaseFromCamera).IsRigid() {
			return fmt.Errorf("base_from_camera is not a rigid transform")
		}
	}

	return nil
}

// GetClusterDBSCANEps returns the cluster_dbscan_eps value or the default.
func (c *TuningConfig) GetClusterDBSCANEps() float64 {
	if c.ClusterDBSCANEps == nil {
		return 0.01 // 1 cm
	}
	return *c.ClusterDBSCANEps
}

// GetMinPoints returns the min_points value or the default.
func (c *TuningConfig) GetMinPoints() int {
	if c.MinPoints == nil {
		return 10
	}
	return *c.MinPoints
}

// GetMinVolume returns the min_volume value or the default.
func (c *TuningConfig) GetMinVolume() float64 {
	if c.MinVolume == nil {
		return 1e-6 // 1 cm³
	}
	return *c.MinVolume
}

// GetMaxObjHeight returns the max_obj_height value or the default.
func (c *TuningConfig) GetMaxObjHeight() float64 {
	if c.MaxObjHeight == nil {
		return 0.3
	}
	return *c.MaxObjHeight
}

// GetLateralMargin returns the lateral_margin value or the default.
func (c *TuningConfig) GetLateralMargin() float64 {
	if c.LateralMargin == nil {
		return segment.DefaultLateralMargin
	}
	return *c.LateralMargin
}

// GetPlanePolicy returns the parsed plane_policy or FirstPlaneOnly.
func (c *TuningConfig) GetPlanePolicy() segment.PlanePolicy {
	if c.PlanePolicy == nil {
		return segment.FirstPlaneOnly
	}
	p, err := segment.ParsePlanePolicy(*c.PlanePolicy)
	if err != nil {
		return segment.FirstPlaneOnly // default on parse error
	}
	return p
}

// GetEnableVisualization returns the enable_visualization value or the default.
func (c *TuningConfig) GetEnableVisualization() bool {
	if c.EnableVisualization == nil {
		return false
	}
	return *c.EnableVisualization
}

// GetIntrinsics returns the camera intrinsics. Missing values are zero,
// which cloud.Intrinsics.Validate rejects.
func (c *TuningConfig) GetIntrinsics() cloud.Intrinsics {
	var in cloud.Intrinsics
	if c.Camera == nil {
		return in
	}
	get := func(p *float64) float64 {
		if p == nil {
			return 0
		}
		return *p
	}
	in.Fx, in.Fy = get(c.Camera.Fx), get(c.Camera.Fy)
	in.Cx, in.Cy = get(c.Camera.Cx), get(c.Camera.Cy)
	return in
}

// GetDepthScale returns camera.depth_scale or cloud.DefaultDepthScale.
func (c *TuningConfig) GetDepthScale() float64 {
	if c.Camera == nil || c.Camera.DepthScale == nil {
		return cloud.DefaultDepthScale
	}
	return *c.Camera.DepthScale
}

// GetBaseFromCamera returns the camera-to-base transform or the identity.
func (c *TuningConfig) GetBaseFromCamera() geom.Transform {
	if c.BaseFromCamera == nil {
		return geom.IdentityTransform
	}
	return geom.Transform(*c.BaseFromCamera)
}

// SegmentParams builds the explicit segmentation parameters. The result is
// validated by segment.NewSegmenter.
func (c *TuningConfig) SegmentParams() segment.Params {
	return segment.Params{
		ClusterRadius:    c.GetClusterDBSCANEps(),
		ClusterMinPoints: c.GetMinPoints(),
		MinObjectVolume:  c.GetMinVolume(),
		MaxObjectHeight:  c.GetMaxObjHeight(),
		LateralMargin:    c.GetLateralMargin(),
		PlanePolicy:      c.GetPlanePolicy(),
	}
}
