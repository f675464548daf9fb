package browser

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"critcss/common"
)

// LoadParams describes how page is loaded and measured.
type LoadParams struct {
	URL       string
	Viewport  common.Viewport
	UserAgent string
	Headers   map[string]string
	BlockJS   bool
	// PageLoadSkipTimeout stops waiting for load event, zero waits as long as context allows
	PageLoadSkipTimeout time.Duration
	RenderWait          time.Duration
	// MaxElementsToCheckPerSelector limits elements inspected per selector, zero checks all
	MaxElementsToCheckPerSelector int
}

// Shot describes a screenshot.
type Shot struct {
	Type    common.ScreenshotType
	Quality int // jpeg only
}

// Page is a browser page exclusively owned by one run.
type Page struct {
	page   *rod.Page
	log    *zap.Logger
	router *rod.HijackRouter
	params LoadParams
}

// Load navigates to the page and waits for it to settle.
func (p *Page) Load(ctx context.Context, params LoadParams) error {
	params.Viewport = params.Viewport.Normalized()
	p.params = params
	page := p.page.Context(ctx)

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             params.Viewport.Width,
		Height:            params.Viewport.Height,
		DeviceScaleFactor: 1,
	}); err != nil {
		return fmt.Errorf("unable to set viewport: %w", err)
	}
	if params.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: params.UserAgent}); err != nil {
			return fmt.Errorf("unable to set user agent: %w", err)
		}
	}
	if len(params.Headers) > 0 {
		if _, err := page.SetExtraHeaders(headerList(params.Headers)); err != nil {
			return fmt.Errorf("unable to set page headers: %w", err)
		}
	}
	if params.BlockJS && p.router == nil {
		router, err := blockScripts(p.page)
		if err != nil {
			return fmt.Errorf("unable to block scripts: %w", err)
		}
		p.router = router
	}

	start := time.Now()
	if err := page.Navigate(params.URL); err != nil {
		return fmt.Errorf("unable to navigate to %s: %w", params.URL, err)
	}

	waitCtx, cancel := ctx, context.CancelFunc(func() {})
	if params.PageLoadSkipTimeout > 0 {
		waitCtx, cancel = context.WithTimeout(ctx, params.PageLoadSkipTimeout)
	}
	defer cancel()
	if err := p.page.Context(waitCtx).WaitLoad(); err != nil {
		if ctx.Err() != nil || params.PageLoadSkipTimeout <= 0 {
			return fmt.Errorf("unable to load %s: %w", params.URL, err)
		}
		p.log.Debug("Page load wait skipped", zap.String("url", params.URL), zap.Duration("after", params.PageLoadSkipTimeout))
	}

	if params.RenderWait > 0 {
		select {
		case <-time.After(params.RenderWait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	p.log.Debug("Page loaded", zap.String("url", params.URL), zap.Duration("elapsed", time.Since(start)))
	return nil
}

// headerList converts headers to name/value pairs in stable order.
func headerList(headers map[string]string) []string {
	list := make([]string, 0, len(headers)*2)
	for _, name := range slices.Sorted(maps.Keys(headers)) {
		list = append(list, name, headers[name])
	}
	return list
}

// AboveFold reports whether any element matched by selector is visible
// without scrolling.
func (p *Page) AboveFold(ctx context.Context, selector string) (bool, error) {
	vp := p.params.Viewport.Normalized()
	return p.evalVerdict(ctx, aboveFoldJS, selector, vp.Width, vp.Height, p.params.MaxElementsToCheckPerSelector)
}

// ClearingShift reports whether resetting props of selector elements changes
// visibility of any anchor element.
func (p *Page) ClearingShift(ctx context.Context, selector string, props, anchors []string) (bool, error) {
	vp := p.params.Viewport.Normalized()
	return p.evalVerdict(ctx, clearingShiftJS, selector, props, anchors, vp.Width, vp.Height, p.params.MaxElementsToCheckPerSelector)
}

// ReplaceStyles removes all page styles and puts text in their place.
func (p *Page) ReplaceStyles(ctx context.Context, text string) error {
	_, err := p.evalVerdict(ctx, replaceStylesJS, text)
	return err
}

// Screenshot captures visible part of the page.
func (p *Page) Screenshot(ctx context.Context, shot Shot) ([]byte, error) {
	req := &proto.PageCaptureScreenshot{Format: proto.PageCaptureScreenshotFormatPng}
	if shot.Type == common.ScreenshotTypeJpeg {
		req.Format = proto.PageCaptureScreenshotFormatJpeg
		if shot.Quality > 0 {
			q := min(shot.Quality, 100)
			req.Quality = &q
		}
	}
	data, err := p.page.Context(ctx).Screenshot(false, req)
	if err != nil {
		return nil, fmt.Errorf("unable to take screenshot: %w", err)
	}
	return data, nil
}

// evalVerdict runs script returning {visible} or {error} object. Script
// level errors are reported with common.KindQuery.
func (p *Page) evalVerdict(ctx context.Context, js string, args ...any) (bool, error) {
	res, err := p.page.Context(ctx).Eval(js, args...)
	if err != nil {
		var evalErr *rod.EvalError
		if errors.As(err, &evalErr) {
			return false, common.WithKind(common.KindQuery, err)
		}
		return false, err
	}
	return decodeVerdict(res.Value)
}

// decodeVerdict interprets {visible} or {error} object returned by page scripts.
func decodeVerdict(v gson.JSON) (bool, error) {
	if _, ok := v.Val().(map[string]any); !ok {
		return false, fmt.Errorf("unexpected script result: %s", v.JSON("", ""))
	}
	if e := v.Get("error"); !e.Nil() {
		if msg := strings.TrimSpace(e.Str()); msg != "" {
			return false, common.Errorf(common.KindQuery, "%s", msg)
		}
	}
	return v.Get("visible").Bool(), nil
}

func (p *Page) close() (err error) {
	if p.router != nil {
		err = multierr.Append(err, p.router.Stop())
		p.router = nil
	}
	if p.page != nil {
		err = multierr.Append(err, p.page.Close())
	}
	return err
}
