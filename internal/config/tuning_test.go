package config

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/banshee-data/tableseg/internal/geom"
	"github.com/banshee-data/tableseg/internal/segment"
)

func TestDefaultTuningConfig(t *testing.T) {
	cfg := DefaultTuningConfig()

	// Test that defaults are set via pointers
	if cfg.ClusterDBSCANEps == nil || *cfg.ClusterDBSCANEps != 0.01 {
		t.Errorf("Expected ClusterDBSCANEps 0.01, got %v", cfg.ClusterDBSCANEps)
	}
	if cfg.MinPoints == nil || *cfg.MinPoints != 10 {
		t.Errorf("Expected MinPoints 10, got %v", cfg.MinPoints)
	}
	if cfg.PlanePolicy == nil || *cfg.PlanePolicy != "first" {
		t.Errorf("Expected PlanePolicy 'first', got %v", cfg.PlanePolicy)
	}
	if cfg.BaseFromCamera == nil || geom.Transform(*cfg.BaseFromCamera) != geom.IdentityTransform {
		t.Errorf("Expected identity BaseFromCamera, got %v", cfg.BaseFromCamera)
	}

	// Test getter methods
	if cfg.GetMinVolume() != 1e-6 {
		t.Errorf("GetMinVolume() = %g, want 1e-6", cfg.GetMinVolume())
	}
	if cfg.GetMaxObjHeight() != 0.3 {
		t.Errorf("GetMaxObjHeight() = %g, want 0.3", cfg.GetMaxObjHeight())
	}
	if cfg.GetLateralMargin() != segment.DefaultLateralMargin {
		t.Errorf("GetLateralMargin() = %g, want %g", cfg.GetLateralMargin(), segment.DefaultLateralMargin)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadTuningConfig(t *testing.T) {
	// Create temporary directory
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.json")

	testJSON := `{
  "cluster_dbscan_eps": 0.02,
  "min_points": 5,
  "min_volume": 0.0001,
  "max_obj_height": 0.4,
  "plane_policy": "all",
  "camera": {"fx": 600, "fy": 601, "cx": 320, "cy": 240}
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	// Load the config
	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// Verify values
	if cfg.ClusterDBSCANEps == nil || *cfg.ClusterDBSCANEps != 0.02 {
		t.Errorf("Expected ClusterDBSCANEps 0.02, got %v", cfg.ClusterDBSCANEps)
	}
	if cfg.GetMinPoints() != 5 {
		t.Errorf("Expected MinPoints 5, got %d", cfg.GetMinPoints())
	}
	if cfg.GetPlanePolicy() != segment.AllPlanes {
		t.Errorf("Expected AllPlanes, got %v", cfg.GetPlanePolicy())
	}
	in := cfg.GetIntrinsics()
	if in.Fx != 600 || in.Fy != 601 || in.Cx != 320 || in.Cy != 240 {
		t.Errorf("unexpected intrinsics %+v", in)
	}
	// Unset camera field falls back
	if cfg.GetDepthScale() != 0.001 {
		t.Errorf("Expected default depth scale 0.001, got %g", cfg.GetDepthScale())
	}
}

func TestLoadTuningConfigYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "params.yaml")

	testYAML := `
cluster_dbscan_eps: 0.03
min_points: 7
max_obj_height: 0.5
base_from_camera: [1, 0, 0, 0.5, 0, 1, 0, 0, 0, 0, 1, 1.2, 0, 0, 0, 1]
`
	if err := os.WriteFile(configPath, []byte(testYAML), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load YAML config: %v", err)
	}
	if cfg.GetClusterDBSCANEps() != 0.03 {
		t.Errorf("Expected 0.03, got %g", cfg.GetClusterDBSCANEps())
	}
	if cfg.GetMinPoints() != 7 {
		t.Errorf("Expected 7, got %d", cfg.GetMinPoints())
	}
	tr := cfg.GetBaseFromCamera().Translation()
	if tr.X != 0.5 || tr.Z != 1.2 {
		t.Errorf("unexpected translation %v", tr)
	}
}

func TestLoadTuningConfigMissing(t *testing.T) {
	_, err := LoadTuningConfig("/nonexistent/path/to/config.json")
	if err == nil {
		t.Error("Expected error when loading missing file, got nil")
	}
}

func TestLoadTuningConfigInvalid(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name string
		file string
		body string
	}{
		{"truncated json", "invalid_config.json", "{\n  \"min_points\": \"invalid\"\n"},
		{"bad yaml", "invalid_config.yaml", "min_points: [1, 2\n"},
		{"fails validation", "negative.json", `{"min_volume": -1}`},
		{"short transform", "short.yaml", "base_from_camera: [1, 0, 0]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(tmpDir, tt.file)
			if err := os.WriteFile(configPath, []byte(tt.body), 0644); err != nil {
				t.Fatalf("Failed to write test config: %v", err)
			}
			if _, err := LoadTuningConfig(configPath); err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}
}

func TestValidate(t *testing.T) {
	nonRigid := [16]float64{2, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}

	tests := []struct {
		name    string
		cfg     *TuningConfig
		wantErr bool
	}{
		{
			name:    "valid config",
			cfg:     DefaultTuningConfig(),
			wantErr: false,
		},
		{
			name:    "empty config is valid",
			cfg:     &TuningConfig{},
			wantErr: false,
		},
		{
			name:    "zero min volume keeps everything",
			cfg:     &TuningConfig{MinVolume: ptrFloat64(0)},
			wantErr: false,
		},
		{
			name:    "zero eps",
			cfg:     &TuningConfig{ClusterDBSCANEps: ptrFloat64(0)},
			wantErr: true,
		},
		{
			name:    "zero min points",
			cfg:     &TuningConfig{MinPoints: ptrInt(0)},
			wantErr: true,
		},
		{
			name:    "nan min volume",
			cfg:     &TuningConfig{MinVolume: ptrFloat64(math.NaN())},
			wantErr: true,
		},
		{
			name:    "negative height",
			cfg:     &TuningConfig{MaxObjHeight: ptrFloat64(-0.1)},
			wantErr: true,
		},
		{
			name:    "negative margin",
			cfg:     &TuningConfig{LateralMargin: ptrFloat64(-0.01)},
			wantErr: true,
		},
		{
			name:    "unknown plane policy",
			cfg:     &TuningConfig{PlanePolicy: ptrString("most")},
			wantErr: true,
		},
		{
			name:    "zero depth scale",
			cfg:     &TuningConfig{Camera: &CameraConfig{DepthScale: ptrFloat64(0)}},
			wantErr: true,
		},
		{
			name:    "non-rigid base transform",
			cfg:     &TuningConfig{BaseFromCamera: &nonRigid},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadDefaultConfigFile(t *testing.T) {
	cfg, err := LoadTuningConfig("../../config/tuning.defaults.json")
	if err != nil {
		t.Fatalf("Failed to load defaults: %v", err)
	}
	if cfg.GetClusterDBSCANEps() != 0.01 {
		t.Errorf("Expected 0.01, got %f", cfg.GetClusterDBSCANEps())
	}
	if cfg.GetIntrinsics().Validate() != nil {
		t.Errorf("Expected usable intrinsics, got %+v", cfg.GetIntrinsics())
	}
	if !cfg.GetEnableVisualization() {
		t.Error("Expected enable_visualization true")
	}

	must := MustLoadDefaultConfig()
	if must.GetMinPoints() != cfg.GetMinPoints() {
		t.Errorf("MustLoadDefaultConfig disagrees: %d vs %d", must.GetMinPoints(), cfg.GetMinPoints())
	}
}

func TestLoadExampleConfigFile(t *testing.T) {
	cfg, err := LoadTuningConfig("../../config/tuning.example.yaml")
	if err != nil {
		t.Fatalf("Failed to load example: %v", err)
	}
	if cfg.GetClusterDBSCANEps() != 0.015 {
		t.Errorf("Expected 0.015, got %f", cfg.GetClusterDBSCANEps())
	}
	if cfg.GetMinPoints() != 20 {
		t.Errorf("Expected 20, got %d", cfg.GetMinPoints())
	}
	if cfg.GetPlanePolicy() != segment.AllPlanes {
		t.Errorf("Expected AllPlanes, got %v", cfg.GetPlanePolicy())
	}
}

func TestLoadTuningConfigPartial(t *testing.T) {
	// Partial config: only override eps; everything else should keep defaults.
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "partial.json")

	partialJSON := `{
  "cluster_dbscan_eps": 0.05
}`
	if err := os.WriteFile(configPath, []byte(partialJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load partial config: %v", err)
	}

	// Overridden value
	if cfg.GetClusterDBSCANEps() != 0.05 {
		t.Errorf("Expected overridden eps 0.05, got %f", cfg.GetClusterDBSCANEps())
	}
	// Default values should be preserved
	if cfg.GetMinPoints() != 10 {
		t.Errorf("Expected default MinPoints 10, got %d", cfg.GetMinPoints())
	}
	if cfg.GetPlanePolicy() != segment.FirstPlaneOnly {
		t.Errorf("Expected default FirstPlaneOnly, got %v", cfg.GetPlanePolicy())
	}
	if cfg.GetBaseFromCamera() != geom.IdentityTransform {
		t.Errorf("Expected identity transform, got %v", cfg.GetBaseFromCamera())
	}
}

func TestLoadTuningConfigRejectsPathTraversal(t *testing.T) {
	// Path traversal with ".." is allowed since this is a CLI-only flag,
	// but the file must still have a config extension.
	_, err := LoadTuningConfig("../../etc/passwd")
	if err == nil {
		t.Error("Expected error for extension-less path, got nil")
	}
}

func TestLoadTuningConfigRejectsUnknownExtension(t *testing.T) {
	_, err := LoadTuningConfig("/some/path/config.toml")
	if err == nil || !strings.Contains(err.Error(), "extension") {
		t.Errorf("Expected extension error, got %v", err)
	}
}

func TestLoadTuningConfigRejectsLargeFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "large.json")

	// Create a file larger than 1MB
	largeData := make([]byte, 2*1024*1024) // 2MB
	if err := os.WriteFile(configPath, largeData, 0644); err != nil {
		t.Fatalf("Failed to write large file: %v", err)
	}

	_, err := LoadTuningConfig(configPath)
	if err == nil {
		t.Error("Expected error for file size > 1MB, got nil")
	}
}

func TestMerge(t *testing.T) {
	base := DefaultTuningConfig()
	base.Camera.Fx = ptrFloat64(600)

	merged := base.Merge(&TuningConfig{
		MinVolume: ptrFloat64(0.002),
		Camera:    &CameraConfig{Fy: ptrFloat64(500)},
	})

	if merged.GetMinVolume() != 0.002 {
		t.Errorf("Expected merged min volume 0.002, got %g", merged.GetMinVolume())
	}
	if merged.GetClusterDBSCANEps() != base.GetClusterDBSCANEps() {
		t.Errorf("Expected eps kept from base")
	}
	in := merged.GetIntrinsics()
	if in.Fx != 600 || in.Fy != 500 {
		t.Errorf("Expected camera fields merged individually, got %+v", in)
	}
	if base.GetMinVolume() != 1e-6 {
		t.Errorf("Merge modified the receiver: %g", base.GetMinVolume())
	}
	if base.Camera.Fy != nil {
		t.Errorf("Merge modified the receiver camera")
	}

	if got := base.Merge(nil); got == base || got.GetMinPoints() != base.GetMinPoints() {
		t.Errorf("Merge(nil) should return an equal copy")
	}
}

func TestSegmentParams(t *testing.T) {
	cfg := &TuningConfig{
		ClusterDBSCANEps: ptrFloat64(0.02),
		MinPoints:        ptrInt(4),
		PlanePolicy:      ptrString("all"),
	}
	want := segment.Params{
		ClusterRadius:    0.02,
		ClusterMinPoints: 4,
		MinObjectVolume:  1e-6,
		MaxObjectHeight:  0.3,
		LateralMargin:    segment.DefaultLateralMargin,
		PlanePolicy:      segment.AllPlanes,
	}
	if got := cfg.SegmentParams(); got != want {
		t.Errorf("SegmentParams() = %+v, want %+v", got, want)
	}
	if err := want.Validate(); err != nil {
		t.Errorf("default params should validate: %v", err)
	}
}
