package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"critcss/browser"
	"critcss/common"
	"critcss/config"
	"critcss/critical"
	"critcss/css"
	"critcss/state"
)

// Run is the action of extract subcommand.
func Run(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Logger("extract")

	opts, err := OptionsFromConfig(&env.Cfg.Extraction)
	if err != nil {
		return err
	}
	if err := applyFlags(cmd, &opts); err != nil {
		return err
	}

	dst := cmd.Args().Get(0)
	if len(dst) > 0 {
		if dst, err = filepath.Abs(dst); err != nil {
			return err
		}
	}
	if cmd.Args().Len() > 1 {
		log.Warn("Malformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[1:]))
	}

	env.Overwrite = cmd.Bool("overwrite")
	if err := env.CheckDestination(dst); err != nil {
		return err
	}

	log.Info("Processing starting", zap.String("url", opts.URL), zap.Stringer("viewport", opts.Viewport), zap.String("destination", dst))
	defer func(start time.Time) {
		log.Info("Processing completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	var out string
	err = browser.Run(ctx, browserConfig(&env.Cfg.Browser), env.Log, func(ctx context.Context, m *browser.Manager) (err error) {
		out, err = Generate(ctx, FromManager(m), opts, env.Log)
		return err
	})
	storeReport(env.Rpt, opts, out)
	if err != nil {
		return err
	}

	if len(out) == 0 {
		log.Info("No critical CSS found")
	}
	if len(dst) == 0 {
		_, err = os.Stdout.WriteString(out)
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("unable to create output directory: %w", err)
	}
	if err := os.WriteFile(dst, []byte(out), 0644); err != nil {
		return fmt.Errorf("unable to write critical CSS: %w", err)
	}
	return nil
}

// Flags returns command line flags of extract subcommand.
func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "url", Aliases: []string{"u"}, Required: true, Usage: "`URL` of the page to extract critical CSS for"},
		&cli.StringFlag{Name: "css", Usage: "read stylesheet from `FILE`"},
		&cli.StringFlag{Name: "css-string", Usage: "stylesheet `TEXT`"},
		&cli.IntFlag{Name: "width", Usage: "viewport width in `PIXELS`"},
		&cli.IntFlag{Name: "height", Usage: "viewport height in `PIXELS`"},
		&cli.StringSliceFlag{Name: "force-include", Aliases: []string{"fi"}, Usage: "always keep `SELECTOR` (exact text or /regexp/flags), may be repeated"},
		&cli.BoolFlag{Name: "strict", Usage: "drop selectors which can not be checked reliably"},
		&cli.DurationFlag{Name: "timeout", Usage: "bound extraction time by `DURATION`"},
		&cli.DurationFlag{Name: "render-wait", Usage: "wait `DURATION` after page load before measuring"},
		&cli.DurationFlag{Name: "page-load-skip-timeout", Usage: "stop waiting for page load event after `DURATION`"},
		&cli.BoolFlag{Name: "block-js", Usage: "block page scripts"},
		&cli.StringSliceFlag{Name: "header", Aliases: []string{"H"}, Usage: "send extra request `HEADER` (\"Name: value\"), may be repeated"},
		&cli.BoolFlag{Name: "keep-larger-media-queries", Usage: "keep @media rules for screens larger than viewport"},
		&cli.IntFlag{Name: "max-elements", Usage: "check at most `N` elements per selector (0 - all)"},
		&cli.StringSliceFlag{Name: "remove-property", Usage: "remove declarations with property matching `REGEXP`, replaces configured list"},
		&cli.IntFlag{Name: "max-base64", Usage: "remove declarations with embedded data longer than `N` characters"},
		&cli.StringFlag{Name: "user-agent", Usage: "user agent `STRING` to load page with"},
		&cli.StringFlag{Name: "screenshots", Usage: "save before and after screenshots using `PATH` (directory or file name prefix)"},
		&cli.BoolFlag{Name: "overwrite", Aliases: []string{"ow"}, Usage: "overwrite existing destination"},
	}
}

// applyFlags overrides configured values with ones given on command line.
func applyFlags(cmd *cli.Command, opts *Options) error {
	opts.URL = cmd.String("url")
	opts.CSSFile = cmd.String("css")
	opts.CSS = cmd.String("css-string")

	if cmd.IsSet("width") {
		opts.Viewport.Width = int(cmd.Int("width"))
	}
	if cmd.IsSet("height") {
		opts.Viewport.Height = int(cmd.Int("height"))
	}
	for _, s := range cmd.StringSlice("force-include") {
		m, err := critical.ParseMatcher(s)
		if err != nil {
			return common.Errorf(common.KindInput, "bad force include entry %q: %w", s, err)
		}
		opts.ForceInclude = append(opts.ForceInclude, m)
	}
	if cmd.IsSet("strict") {
		opts.Strict = cmd.Bool("strict")
	}
	if cmd.IsSet("timeout") {
		opts.Timeout = cmd.Duration("timeout")
	}
	if cmd.IsSet("render-wait") {
		opts.RenderWait = cmd.Duration("render-wait")
	}
	if cmd.IsSet("page-load-skip-timeout") {
		opts.PageLoadSkipTimeout = cmd.Duration("page-load-skip-timeout")
	}
	if cmd.IsSet("block-js") {
		opts.BlockJS = cmd.Bool("block-js")
	}
	for _, h := range cmd.StringSlice("header") {
		name, value, err := ParseHeader(h)
		if err != nil {
			return err
		}
		if opts.Headers == nil {
			opts.Headers = make(map[string]string)
		}
		opts.Headers[name] = value
	}
	if cmd.IsSet("keep-larger-media-queries") {
		opts.KeepLargerMediaQueries = cmd.Bool("keep-larger-media-queries")
	}
	if cmd.IsSet("max-elements") {
		opts.MaxElementsToCheckPerSelector = int(cmd.Int("max-elements"))
	}
	if cmd.IsSet("remove-property") {
		opts.PropertiesToRemove = cmd.StringSlice("remove-property")
	}
	if cmd.IsSet("max-base64") {
		opts.MaxEmbeddedBase64Length = int(cmd.Int("max-base64"))
	}
	if cmd.IsSet("user-agent") {
		opts.UserAgent = cmd.String("user-agent")
	}
	if cmd.IsSet("screenshots") {
		if opts.Screenshots == nil {
			opts.Screenshots = &Screenshots{}
		}
		opts.Screenshots.BasePath = cmd.String("screenshots")
		if len(opts.Screenshots.BasePath) == 0 {
			opts.Screenshots = nil
		}
	}
	return nil
}

func browserConfig(cfg *config.BrowserConfig) browser.Config {
	return browser.Config{
		RemoteURL: cfg.RemoteURL,
		Bin:       cfg.Bin,
		Headful:   cfg.Headful,
		NoSandbox: cfg.NoSandbox,
		Stealth:   cfg.Stealth,
		KeepAlive: cfg.KeepAlive,
		MaxPages:  cfg.MaxPages,
	}
}

// storeReport puts run inputs and results into debug report.
func storeReport(rpt *config.Report, opts Options, out string) {
	if rpt == nil {
		return
	}
	if len(opts.CSSFile) > 0 {
		rpt.Store("input/"+filepath.Base(opts.CSSFile), opts.CSSFile)
	} else if len(opts.CSS) > 0 {
		rpt.StoreData("input/stylesheet.css", []byte(opts.CSS))
	}
	if text, err := opts.stylesheet(); err == nil {
		rpt.StoreData("debug/input-tree.txt", []byte(css.NewParser(nil).Parse([]byte(text)).Dump()))
	}
	if len(out) > 0 {
		rpt.StoreData("result/critical.css", []byte(out))
		rpt.StoreData("debug/result-tree.txt", []byte(css.NewParser(nil).Parse([]byte(out)).Dump()))
	}
	before, after := ScreenshotPaths(opts.Screenshots, opts.URL)
	for _, name := range []string{before, after} {
		if len(name) == 0 {
			continue
		}
		if _, err := os.Stat(name); err == nil {
			rpt.Store("screenshots/"+filepath.Base(name), name)
		}
	}
}
