package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"time"

	yaml "gopkg.in/yaml.v3"

	"github.com/rupor-github/gencfg"

	"critcss/common"
)

//go:embed config.yaml.tmpl
var ConfigTmpl []byte

type (
	ScreenshotsConfig struct {
		// empty path disables screenshots
		BasePath string                `yaml:"base_path,omitempty" sanitize:"path_clean"`
		Type     common.ScreenshotType `yaml:"type"`
		Quality  int                   `yaml:"quality" validate:"min=0,max=100"`
	}

	ExtractionConfig struct {
		Width                         int                     `yaml:"width" validate:"min=1"`
		Height                        int                     `yaml:"height" validate:"min=1"`
		ForceInclude                  []string                `yaml:"force_include" validate:"dive,required"`
		Strict                        bool                    `yaml:"strict"`
		Timeout                       time.Duration           `yaml:"timeout" validate:"gt=0"`
		RenderWait                    time.Duration           `yaml:"render_wait" validate:"gte=0"`
		PageLoadSkipTimeout           time.Duration           `yaml:"page_load_skip_timeout" validate:"gte=0"`
		BlockJSRequests               bool                    `yaml:"block_js_requests"`
		CustomPageHeaders             map[string]SecretString `yaml:"custom_page_headers"`
		KeepLargerMediaQueries        bool                    `yaml:"keep_larger_media_queries"`
		MaxElementsToCheckPerSelector int                     `yaml:"max_elements_to_check_per_selector" validate:"gte=0"`
		PropertiesToRemove            []string                `yaml:"properties_to_remove" validate:"dive,required"`
		MaxEmbeddedBase64Length       int                     `yaml:"max_embedded_base64_length" validate:"gte=0"`
		UserAgent                     string                  `yaml:"user_agent"`
		ClearingProperties            []string                `yaml:"clearing_properties" validate:"dive,required"`
		QueryConcurrency              int                     `yaml:"query_concurrency" validate:"min=1,max=64"`
		Screenshots                   ScreenshotsConfig       `yaml:"screenshots"`
	}

	BrowserConfig struct {
		RemoteURL string `yaml:"remote_url,omitempty" validate:"omitempty,url"`
		Bin       string `yaml:"bin,omitempty" sanitize:"assure_file_access"`
		Headful   bool   `yaml:"headful"`
		NoSandbox bool   `yaml:"no_sandbox"`
		Stealth   bool   `yaml:"stealth"`
		KeepAlive bool   `yaml:"keep_alive"`
		MaxPages  int    `yaml:"max_pages" validate:"min=1"`
	}

	Config struct {
		Version    int              `yaml:"version" validate:"eq=1"`
		Extraction ExtractionConfig `yaml:"extraction"`
		Browser    BrowserConfig    `yaml:"browser"`
		Logging    LoggingConfig    `yaml:"logging"`
		Reporting  ReporterConfig   `yaml:"reporting"`
	}
)

var requiredOptions = []func(*gencfg.ProcessingOptions){}

func unmarshalConfig(data []byte, cfg *Config, process bool) (*Config, error) {
	// We want to use only fields we defined so we cannot use yaml.Unmarshal
	// directly here
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration data: %w", err)
	}
	if process {
		// sanitize and validate what has been loaded
		if err := gencfg.Sanitize(cfg); err != nil {
			return nil, err
		}
		if err := gencfg.Validate(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// LoadConfiguration reads the configuration from the file at the given path,
// superimposes its values on top of expanded configuration tamplate to provide
// sane defaults and performs validation.
func LoadConfiguration(path string, options ...func(*gencfg.ProcessingOptions)) (*Config, error) {
	haveFile := len(path) > 0

	data, err := gencfg.Process(ConfigTmpl, append(requiredOptions, options...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	cfg, err := unmarshalConfig(data, &Config{}, !haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	if !haveFile {
		return cfg, nil
	}

	// overwrite cfg values with values from the file
	data, err = os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err = unmarshalConfig(data, cfg, haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration file: %w", err)
	}
	return cfg, nil
}

// Prepare generates configuration file from template and returns it as a byte
// slice.
func Prepare() ([]byte, error) {
	return gencfg.Process(ConfigTmpl, requiredOptions...)
}

func Dump(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(*cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to yaml: %v", err)
	}
	return data, nil
}
