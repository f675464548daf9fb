package extract

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"critcss/common"
	"critcss/config"
	"critcss/state"
)

// setupTestEnv creates a test environment with proper context and logger
func setupTestEnv(t *testing.T) (context.Context, *state.LocalEnv) {
	logger := zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller(), zap.AddCallerSkip(1)))
	cfg, err := config.LoadConfiguration("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	ctx := state.ContextWithEnv(context.Background())
	env := state.EnvFromContext(ctx)
	env.Log = logger
	env.Cfg = cfg
	return ctx, env
}

// parseFlags runs command line through extract flags and returns resulting options.
func parseFlags(t *testing.T, args ...string) (Options, error) {
	t.Helper()
	opts := DefaultOptions()
	var ferr error
	cmd := &cli.Command{
		Name:  "extract",
		Flags: Flags(),
		Action: func(_ context.Context, cmd *cli.Command) error {
			ferr = applyFlags(cmd, &opts)
			return nil
		},
	}
	if err := cmd.Run(context.Background(), append([]string{"extract"}, args...)); err != nil {
		t.Fatalf("command line parsing failed: %v", err)
	}
	return opts, ferr
}

func TestApplyFlags(t *testing.T) {
	opts, err := parseFlags(t,
		"--url", "https://example.com",
		"--css-string", "a{color:red}",
		"--width", "800", "--height", "600",
		"--force-include", ".nav", "--force-include", "/^\\.btn/i",
		"--strict",
		"--timeout", "5s",
		"--block-js=false",
		"--header", "Cookie: a=b",
		"--max-elements", "3",
		"--remove-property", "cursor",
		"--max-base64=-1",
	)
	if err != nil {
		t.Fatalf("applyFlags() error = %v", err)
	}
	if opts.URL != "https://example.com" || opts.CSS != "a{color:red}" || opts.CSSFile != "" {
		t.Errorf("unexpected sources %+v", opts)
	}
	if opts.Viewport != (common.Viewport{Width: 800, Height: 600}) {
		t.Errorf("unexpected viewport %v", opts.Viewport)
	}
	if len(opts.ForceInclude) != 2 {
		t.Errorf("unexpected force include %v", opts.ForceInclude)
	}
	if !opts.Strict || opts.BlockJS || opts.Timeout != 5*time.Second {
		t.Errorf("unexpected switches %+v", opts)
	}
	if opts.Headers["Cookie"] != "a=b" {
		t.Errorf("unexpected headers %v", opts.Headers)
	}
	if opts.MaxElementsToCheckPerSelector != 3 || opts.MaxEmbeddedBase64Length != -1 {
		t.Errorf("unexpected limits %+v", opts)
	}
	if len(opts.PropertiesToRemove) != 1 || opts.PropertiesToRemove[0] != "cursor" {
		t.Errorf("unexpected properties to remove %q", opts.PropertiesToRemove)
	}
}

func TestApplyFlags_KeepsConfigured(t *testing.T) {
	opts, err := parseFlags(t, "--url", "https://example.com", "--css", "style.css")
	if err != nil {
		t.Fatalf("applyFlags() error = %v", err)
	}
	def := DefaultOptions()
	if opts.Timeout != def.Timeout || opts.Viewport != def.Viewport || !opts.BlockJS || opts.UserAgent != def.UserAgent {
		t.Errorf("values not given on command line changed: %+v", opts)
	}
	if opts.CSSFile != "style.css" {
		t.Errorf("CSSFile = %q", opts.CSSFile)
	}
}

func TestApplyFlags_BadHeader(t *testing.T) {
	_, err := parseFlags(t, "--url", "https://example.com", "--header", "broken")
	if common.KindOf(err) != common.KindInput {
		t.Errorf("expected input error, got %v", err)
	}
}

func TestRun_DestinationExists(t *testing.T) {
	ctx, _ := setupTestEnv(t)

	dst := filepath.Join(t.TempDir(), "critical.css")
	if err := os.WriteFile(dst, []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}

	cmd := &cli.Command{Name: "extract", Flags: Flags(), Action: Run}
	err := cmd.Run(ctx, []string{"extract", "--url", "https://example.com", "--css-string", "a{}", dst})
	if common.KindOf(err) != common.KindInput {
		t.Fatalf("expected input error, got %v", err)
	}
	if data, _ := os.ReadFile(dst); string(data) != "old" {
		t.Error("existing destination was modified")
	}
}

func TestBrowserConfig(t *testing.T) {
	_, env := setupTestEnv(t)
	env.Cfg.Browser.NoSandbox = true
	env.Cfg.Browser.MaxPages = 3

	bc := browserConfig(&env.Cfg.Browser)
	if !bc.NoSandbox || bc.MaxPages != 3 {
		t.Errorf("unexpected browser config %+v", bc)
	}
}
