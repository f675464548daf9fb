package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"critcss/browser"
	"critcss/common"
	"critcss/config"
	"critcss/critical"
	"critcss/css"
	"critcss/postformat"
)

// whole pipeline is retried once after engine crash
const maxAttempts = 2

// ErrLaunch is returned when rendering engine could not be started at all,
// such failures are not retried.
var ErrLaunch = errors.New("unable to start browser")

// Generate extracts critical CSS of the page. Empty result means nothing
// in the stylesheet affects the first screen.
func Generate(ctx context.Context, s Sessions, opts Options, log *zap.Logger) (string, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("extract").With(zap.String("run", uuid.NewString()))

	opts, err := opts.validate()
	if err != nil {
		return "", err
	}
	text, err := opts.stylesheet()
	if err != nil {
		return "", err
	}
	if s == nil {
		return "", errors.New("no browser sessions")
	}
	defer func() {
		if err := s.Shutdown(false); err != nil {
			log.Warn("Unable to shutdown browser", zap.Error(err))
		}
	}()

	parser := css.NewParser(log)
	if sheet := parser.Parse([]byte(text), opts.URL); len(sheet.Nodes) == 0 {
		log.Info("Stylesheet has no rules, nothing to extract")
		return "", nil
	}

	for n := 1; ; n++ {
		retried := n > 1
		out, err := attempt(ctx, s, parser, text, opts, log.With(zap.Int("attempt", n)))
		if err == nil {
			return out, nil
		}

		switch common.KindOf(err) {
		case common.KindInput, common.KindTimeout, common.KindSerialization:
			return "", err
		}
		if ctx.Err() != nil || errors.Is(err, ErrLaunch) {
			return "", err
		}
		if s.IsAlive() {
			return "", err
		}
		err = common.WithKind(common.KindEngineCrash, err)
		if retried || n >= maxAttempts {
			return "", err
		}

		log.Warn("Rendering engine died, restarting", zap.Error(err))
		if rerr := s.Restart(ctx, opts.Viewport); rerr != nil {
			return "", common.Errorf(common.KindEngineCrash, "unable to restart after crash (%w): %w", err, rerr)
		}
	}
}

// attempt runs pipeline once on a freshly acquired page.
func attempt(ctx context.Context, s Sessions, parser *css.Parser, text string, opts Options, log *zap.Logger) (result string, err error) {
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	defer func() {
		if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) && common.KindOf(err) != common.KindInput {
			err = &common.Error{Kind: common.KindTimeout, Err: fmt.Errorf("extraction took longer than %s: %w", opts.Timeout, err)}
		}
	}()

	if err := s.LaunchIfNeeded(ctx, opts.Viewport); err != nil {
		return "", fmt.Errorf("%w: %w", ErrLaunch, err)
	}
	page, err := s.AcquirePage(ctx)
	if err != nil {
		return "", fmt.Errorf("unable to acquire page: %w", err)
	}
	defer func() {
		s.ReleasePage(page, err)
	}()

	if err := page.Load(ctx, opts.loadParams()); err != nil {
		return "", fmt.Errorf("unable to load %q: %w", opts.URL, err)
	}
	before, after := ScreenshotPaths(opts.Screenshots, opts.URL)
	if before != "" {
		takeScreenshot(ctx, page, opts.Screenshots, before, log)
	}

	sheet := parser.Parse([]byte(text), opts.URL)
	params := opts.selectParams()
	params.Log = log
	stats, err := critical.Select(ctx, sheet, page, params)
	if err != nil {
		return "", fmt.Errorf("unable to select critical rules: %w", err)
	}

	nodes, err := postformat.Apply(sheet.Nodes, opts.postformatOptions(), log)
	if err != nil {
		return "", err
	}
	result, err = css.Serialize(nodes)
	if err != nil {
		return "", common.WithKind(common.KindSerialization, err)
	}
	log.Info("Critical CSS extracted",
		zap.Int("selectors", stats.Selectors), zap.Int("kept", stats.Kept),
		zap.Int("input", len(text)), zap.Int("output", len(result)))

	if after != "" {
		if err := page.ReplaceStyles(ctx, result); err != nil {
			log.Warn("Unable to apply critical CSS to page", zap.Error(err))
		} else {
			takeScreenshot(ctx, page, opts.Screenshots, after, log)
		}
	}
	return result, nil
}

// ScreenshotPaths returns file names of before and after screenshots or
// empty strings when screenshots are not requested. When BasePath is a
// directory file names are derived from url.
func ScreenshotPaths(shots *Screenshots, url string) (before, after string) {
	if shots == nil || shots.BasePath == "" {
		return "", ""
	}
	base := shots.BasePath
	if fi, err := os.Stat(base); err == nil && fi.IsDir() {
		base = filepath.Join(base, config.CleanFileName(slug.Make(url)))
	}
	ext := shots.Type.Ext()
	return base + "-before" + ext, base + "-after" + ext
}

// takeScreenshot never fails the run.
func takeScreenshot(ctx context.Context, page Page, shots *Screenshots, path string, log *zap.Logger) {
	data, err := page.Screenshot(ctx, browser.Shot{Type: shots.Type, Quality: shots.Quality})
	if err != nil {
		log.Warn("Unable to take screenshot", zap.String("file", path), zap.Error(err))
		return
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		log.Warn("Unable to save screenshot", zap.String("file", path), zap.Error(err))
		return
	}
	log.Debug("Screenshot saved", zap.String("file", path))
}
