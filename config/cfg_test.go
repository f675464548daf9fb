package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rupor-github/gencfg"

	"critcss/common"
)

func TestLoadConfiguration_NoFile(t *testing.T) {
	cfg, err := LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration() with empty path error = %v", err)
	}

	if cfg == nil {
		t.Fatal("LoadConfiguration() returned nil config")
	}

	if cfg.Version != 1 {
		t.Errorf("Default config version = %d, want 1", cfg.Version)
	}
}

func TestConfig_DefaultValues(t *testing.T) {
	cfg, err := LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}

	ex := cfg.Extraction
	if ex.Width != common.DefaultViewportWidth || ex.Height != common.DefaultViewportHeight {
		t.Errorf("viewport = %dx%d, want %dx%d", ex.Width, ex.Height, common.DefaultViewportWidth, common.DefaultViewportHeight)
	}
	if ex.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", ex.Timeout)
	}
	if ex.RenderWait != 100*time.Millisecond {
		t.Errorf("RenderWait = %v, want 100ms", ex.RenderWait)
	}
	if !ex.BlockJSRequests {
		t.Error("BlockJSRequests should be enabled by default")
	}
	if ex.MaxEmbeddedBase64Length != 1000 {
		t.Errorf("MaxEmbeddedBase64Length = %d, want 1000", ex.MaxEmbeddedBase64Length)
	}
	if len(ex.PropertiesToRemove) != 5 {
		t.Errorf("PropertiesToRemove = %q, want 5 default patterns", ex.PropertiesToRemove)
	}
	if len(ex.ClearingProperties) != 5 {
		t.Errorf("ClearingProperties = %q, want 5 defaults", ex.ClearingProperties)
	}
	if ex.Screenshots.Type != common.ScreenshotTypePng || ex.Screenshots.BasePath != "" {
		t.Errorf("unexpected screenshot defaults %+v", ex.Screenshots)
	}
	if cfg.Browser.MaxPages < 1 {
		t.Errorf("MaxPages = %d, should be positive", cfg.Browser.MaxPages)
	}
}

func TestLoadConfiguration_WithFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `version: 1
extraction:
  width: 800
  height: 450
  force_include: [".hero", "/^\\.modal/i"]
  timeout: 1m
  custom_page_headers:
    Authorization: Bearer token
  screenshots:
    base_path: ` + tmpDir + `
    type: jpg
    quality: 70
browser:
  keep_alive: true
  max_pages: 2
logging:
  console:
    level: normal
  file:
    level: debug
    destination: ` + filepath.Join(tmpDir, "test.log") + `
    mode: append
reporting:
  destination: ` + filepath.Join(tmpDir, "test-report.zip") + `
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := LoadConfiguration(configPath)
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}

	ex := cfg.Extraction
	if ex.Width != 800 || ex.Height != 450 {
		t.Errorf("viewport = %dx%d, want 800x450", ex.Width, ex.Height)
	}
	if len(ex.ForceInclude) != 2 || ex.ForceInclude[1] != `/^\.modal/i` {
		t.Errorf("ForceInclude = %q", ex.ForceInclude)
	}
	if ex.Timeout != time.Minute {
		t.Errorf("Timeout = %v, want 1m", ex.Timeout)
	}
	if ex.CustomPageHeaders["Authorization"] != "Bearer token" {
		t.Errorf("CustomPageHeaders = %v", ex.CustomPageHeaders)
	}
	if ex.Screenshots.Type != common.ScreenshotTypeJpeg || ex.Screenshots.Quality != 70 {
		t.Errorf("Screenshots = %+v", ex.Screenshots)
	}
	// values not in the file come from defaults
	if ex.RenderWait != 100*time.Millisecond || !ex.BlockJSRequests {
		t.Errorf("defaults were lost: %+v", ex)
	}
	if !cfg.Browser.KeepAlive || cfg.Browser.MaxPages != 2 {
		t.Errorf("Browser = %+v", cfg.Browser)
	}
}

func TestLoadConfiguration_NonExistentFile(t *testing.T) {
	_, err := LoadConfiguration("/nonexistent/config.yaml")
	if err == nil {
		t.Error("Expected error for nonexistent file")
	}
}

func TestLoadConfiguration_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	invalidYAML := `version: 1
extraction:
  strict: true
  invalid indent
`

	if err := os.WriteFile(configPath, []byte(invalidYAML), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	_, err := LoadConfiguration(configPath)
	if err == nil {
		t.Error("Expected error for invalid YAML")
	}
}

func TestLoadConfiguration_UnknownFields(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "unknown.yaml")

	configWithUnknown := `version: 1
unknown_field: value
extraction:
  strict: true
`

	if err := os.WriteFile(configPath, []byte(configWithUnknown), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	_, err := LoadConfiguration(configPath)
	if err == nil {
		t.Error("Expected error for unknown fields")
	}
}

func TestLoadConfiguration_ValidationError(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"version", "version: 2\n"},
		{"width", "version: 1\nextraction:\n  width: 0\n"},
		{"timeout", "version: 1\nextraction:\n  timeout: 0s\n"},
		{"concurrency", "version: 1\nextraction:\n  query_concurrency: 0\n"},
		{"quality", "version: 1\nextraction:\n  screenshots:\n    quality: 101\n"},
		{"screenshot type", "version: 1\nextraction:\n  screenshots:\n    type: gif\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "invalid_values.yaml")
			if err := os.WriteFile(configPath, []byte(tt.content), 0644); err != nil {
				t.Fatalf("Failed to write config file: %v", err)
			}
			if _, err := LoadConfiguration(configPath); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestLoadConfiguration_WithOptions(t *testing.T) {
	option := func(opts *gencfg.ProcessingOptions) {
		// Options are opaque, just test that we can pass them
	}

	cfg, err := LoadConfiguration("", option)
	if err != nil {
		t.Fatalf("LoadConfiguration() with options error = %v", err)
	}

	if cfg == nil {
		t.Fatal("LoadConfiguration() returned nil config")
	}
}

func TestPrepare(t *testing.T) {
	data, err := Prepare()
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}

	if len(data) == 0 {
		t.Error("Prepare() returned empty data")
	}

	// Verify it's valid YAML by trying to unmarshal
	cfg := &Config{}
	_, err = unmarshalConfig(data, cfg, true)
	if err != nil {
		t.Errorf("Prepared config is not valid: %v", err)
	}
}

func TestDump(t *testing.T) {
	cfg, err := LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}
	cfg.Extraction.CustomPageHeaders = map[string]SecretString{"Cookie": "session=very-secret"}

	data, err := Dump(cfg)
	if err != nil {
		t.Fatalf("Dump() error = %v", err)
	}

	if strings.Contains(string(data), "very-secret") {
		t.Errorf("Dump() revealed header value:\n%s", data)
	}
	if !strings.Contains(string(data), "timeout: 30s") {
		t.Errorf("Dump() should write durations in readable form:\n%s", data)
	}

	// Verify we can load it back
	cfg2 := &Config{}
	_, err = unmarshalConfig(data, cfg2, false)
	if err != nil {
		t.Errorf("Dumped config cannot be loaded: %v", err)
	}

	if cfg2.Version != cfg.Version || cfg2.Extraction.Timeout != cfg.Extraction.Timeout {
		t.Errorf("mismatch after dump/load: got %+v", cfg2.Extraction)
	}
}

func TestUnmarshalConfig(t *testing.T) {
	t.Run("valid config without processing", func(t *testing.T) {
		data := []byte(`version: 1`)
		cfg := &Config{}

		result, err := unmarshalConfig(data, cfg, false)
		if err != nil {
			t.Errorf("unmarshalConfig() error = %v", err)
		}

		if result == nil {
			t.Fatal("unmarshalConfig() returned nil")
		}

		if result.Version != 1 {
			t.Errorf("Version = %d, want 1", result.Version)
		}
	})

	t.Run("invalid yaml", func(t *testing.T) {
		data := []byte(`invalid: [yaml`)
		cfg := &Config{}

		_, err := unmarshalConfig(data, cfg, false)
		if err == nil {
			t.Error("Expected error for invalid YAML")
		}
	})
}

func TestLoadConfiguration_MergeWithDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "partial.yaml")

	// Partial config that only overrides some values
	partialConfig := `version: 1
extraction:
  block_js_requests: false
`

	if err := os.WriteFile(configPath, []byte(partialConfig), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := LoadConfiguration(configPath)
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}

	// Check that explicitly set value is used
	if cfg.Extraction.BlockJSRequests {
		t.Error("Expected BlockJSRequests to be false from config file")
	}

	// Check that default values are still present for unspecified fields
	if cfg.Extraction.UserAgent == "" {
		t.Error("UserAgent should have default value")
	}
}
