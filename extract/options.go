// Package extract runs a single critical CSS extraction: it validates
// options, drives browser page through selection and post-formatting and
// handles timeouts and engine crashes.
package extract

import (
	"maps"
	"os"
	"strings"
	"time"

	"critcss/browser"
	"critcss/common"
	"critcss/config"
	"critcss/critical"
	"critcss/postformat"
)

const (
	DefaultUserAgent  = "critcss critical path CSS generator"
	DefaultTimeout    = 30 * time.Second
	DefaultRenderWait = 100 * time.Millisecond
)

// Screenshots requests page screenshots before and after styles are
// replaced with extracted critical CSS.
type Screenshots struct {
	// BasePath is either file name prefix or existing directory
	BasePath string
	Type     common.ScreenshotType
	Quality  int
}

// Options of a single extraction.
type Options struct {
	URL string
	// exactly one of CSS and CSSFile must be given
	CSS     string
	CSSFile string

	Viewport               common.Viewport
	ForceInclude           []critical.Matcher
	Strict                 bool
	Timeout                time.Duration
	RenderWait             time.Duration
	PageLoadSkipTimeout    time.Duration
	BlockJS                bool
	Headers                map[string]string
	KeepLargerMediaQueries bool
	// zero means all matching elements are checked
	MaxElementsToCheckPerSelector int
	// nil means postformat.DefaultPropertiesToRemove
	PropertiesToRemove      []string
	MaxEmbeddedBase64Length int
	UserAgent               string
	// nil means critical.DefaultClearingProperties, empty disables recheck
	ClearingProperties []string
	QueryConcurrency   int
	// nil disables screenshots
	Screenshots *Screenshots
}

// DefaultOptions returns options with everything but sources set to defaults.
func DefaultOptions() Options {
	return Options{
		Viewport:                common.Viewport{Width: common.DefaultViewportWidth, Height: common.DefaultViewportHeight},
		Timeout:                 DefaultTimeout,
		RenderWait:              DefaultRenderWait,
		BlockJS:                 true,
		PropertiesToRemove:      postformat.DefaultPropertiesToRemove,
		MaxEmbeddedBase64Length: postformat.DefaultMaxEmbeddedBase64Length,
		UserAgent:               DefaultUserAgent,
		QueryConcurrency:        critical.DefaultQueryConcurrency,
	}
}

// OptionsFromConfig converts configuration section to options. Sources are
// left empty.
func OptionsFromConfig(cfg *config.ExtractionConfig) (Options, error) {
	opts := Options{
		Viewport:                      common.Viewport{Width: cfg.Width, Height: cfg.Height},
		Strict:                        cfg.Strict,
		Timeout:                       cfg.Timeout,
		RenderWait:                    cfg.RenderWait,
		PageLoadSkipTimeout:           cfg.PageLoadSkipTimeout,
		BlockJS:                       cfg.BlockJSRequests,
		KeepLargerMediaQueries:        cfg.KeepLargerMediaQueries,
		MaxElementsToCheckPerSelector: cfg.MaxElementsToCheckPerSelector,
		PropertiesToRemove:            cfg.PropertiesToRemove,
		MaxEmbeddedBase64Length:       cfg.MaxEmbeddedBase64Length,
		UserAgent:                     cfg.UserAgent,
		ClearingProperties:            cfg.ClearingProperties,
		QueryConcurrency:              cfg.QueryConcurrency,
	}
	for _, s := range cfg.ForceInclude {
		m, err := critical.ParseMatcher(s)
		if err != nil {
			return opts, common.Errorf(common.KindInput, "bad force include entry %q: %w", s, err)
		}
		opts.ForceInclude = append(opts.ForceInclude, m)
	}
	if len(cfg.CustomPageHeaders) > 0 {
		opts.Headers = make(map[string]string, len(cfg.CustomPageHeaders))
		for k, v := range cfg.CustomPageHeaders {
			opts.Headers[k] = string(v)
		}
	}
	if cfg.Screenshots.BasePath != "" {
		opts.Screenshots = &Screenshots{
			BasePath: cfg.Screenshots.BasePath,
			Type:     cfg.Screenshots.Type,
			Quality:  cfg.Screenshots.Quality,
		}
	}
	return opts, nil
}

// ParseHeader splits "Name: value" command line header.
func ParseHeader(s string) (string, string, error) {
	name, value, ok := strings.Cut(s, ":")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return "", "", common.Errorf(common.KindInput, "bad header %q, expected \"Name: value\"", s)
	}
	return name, strings.TrimSpace(value), nil
}

// validate checks options and returns copy with defaults filled in.
func (o Options) validate() (Options, error) {
	if strings.TrimSpace(o.URL) == "" {
		return o, common.Errorf(common.KindInput, "page url is required")
	}
	if o.Timeout <= 0 {
		return o, common.Errorf(common.KindInput, "timeout must be positive, got %s", o.Timeout)
	}
	if o.MaxElementsToCheckPerSelector < 0 {
		return o, common.Errorf(common.KindInput, "max elements to check must not be negative")
	}
	if o.CSS != "" && o.CSSFile != "" {
		return o, common.Errorf(common.KindInput, "both stylesheet text and stylesheet file are given")
	}
	if o.PropertiesToRemove != nil {
		if _, err := postformat.CompilePatterns(o.PropertiesToRemove); err != nil {
			return o, err
		}
	}
	if _, err := critical.NewForceIncluder(o.ForceInclude); err != nil {
		return o, common.WithKind(common.KindInput, err)
	}
	o.Viewport = o.Viewport.Normalized()
	if o.QueryConcurrency <= 0 {
		o.QueryConcurrency = critical.DefaultQueryConcurrency
	}
	if o.Headers != nil {
		o.Headers = maps.Clone(o.Headers)
	}
	return o, nil
}

// stylesheet returns source text.
func (o Options) stylesheet() (string, error) {
	if o.CSSFile != "" {
		data, err := os.ReadFile(o.CSSFile)
		if err != nil {
			return "", common.Errorf(common.KindInput, "unable to read stylesheet: %w", err)
		}
		if strings.TrimSpace(string(data)) == "" {
			return "", common.Errorf(common.KindInput, "stylesheet file %q is empty", o.CSSFile)
		}
		return string(data), nil
	}
	if strings.TrimSpace(o.CSS) == "" {
		return "", common.Errorf(common.KindInput, "stylesheet is required")
	}
	return o.CSS, nil
}

func (o Options) loadParams() (params browser.LoadParams) {
	params.URL = o.URL
	params.Viewport = o.Viewport
	params.UserAgent = o.UserAgent
	params.Headers = o.Headers
	params.BlockJS = o.BlockJS
	params.PageLoadSkipTimeout = o.PageLoadSkipTimeout
	params.RenderWait = o.RenderWait
	params.MaxElementsToCheckPerSelector = o.MaxElementsToCheckPerSelector
	return params
}

func (o Options) selectParams() critical.Params {
	return critical.Params{
		Viewport:               o.Viewport,
		ForceInclude:           o.ForceInclude,
		Strict:                 o.Strict,
		KeepLargerMediaQueries: o.KeepLargerMediaQueries,
		ClearingProperties:     o.ClearingProperties,
		QueryConcurrency:       o.QueryConcurrency,
	}
}

func (o Options) postformatOptions() postformat.Options {
	return postformat.Options{
		PropertiesToRemove:      o.PropertiesToRemove,
		MaxEmbeddedBase64Length: o.MaxEmbeddedBase64Length,
	}
}
