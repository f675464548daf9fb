// Package browser manages headless Chrome used to render pages: launch,
// exclusive pages, liveness checks, restart and shutdown.
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"critcss/common"
)

const (
	defaultMaxPages = 5
	aliveTimeout    = 5 * time.Second
)

// ErrClosed is returned by a manager which was shut down for good.
var ErrClosed = errors.New("browser manager is closed")

// Config configures the browser manager.
type Config struct {
	// RemoteURL is the DevTools WebSocket URL of an already running Chrome.
	// Empty means launch local one.
	RemoteURL string
	// Bin is path to Chrome binary, empty lets launcher find or download one.
	Bin string
	// Headful shows browser window, mostly for debugging.
	Headful bool
	// NoSandbox is required when running as root in containers.
	NoSandbox bool
	// Stealth hides automation markers from pages.
	Stealth bool
	// KeepAlive makes regular shutdown a no-op so browser survives between runs.
	KeepAlive bool
	// MaxPages limits number of pages open at the same time.
	MaxPages int
}

// Manager manages Chrome lifecycle and hands out exclusively owned pages.
type Manager struct {
	cfg   Config
	log   *zap.Logger
	slots chan struct{}

	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	pages   map[*Page]struct{}
	startAt time.Time
	closed  bool
}

// NewManager creates a browser Manager. Browser is started lazily by LaunchIfNeeded.
func NewManager(cfg Config, log *zap.Logger) *Manager {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = defaultMaxPages
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		cfg:   cfg,
		log:   log.Named("browser"),
		slots: make(chan struct{}, cfg.MaxPages),
		pages: make(map[*Page]struct{}),
	}
}

// LaunchIfNeeded starts browser unless there is one already running.
// Viewport sets initial window size.
func (m *Manager) LaunchIfNeeded(ctx context.Context, vp common.Viewport) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if m.browser != nil {
		return nil
	}
	return m.launchLocked(ctx, vp)
}

func (m *Manager) launchLocked(ctx context.Context, vp common.Viewport) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	vp = vp.Normalized()

	wsURL := m.cfg.RemoteURL
	if wsURL != "" {
		m.log.Info("Connecting to remote browser", zap.String("url", wsURL))
	} else {
		// not bound to ctx, browser may outlive a single run
		l := launcher.New().
			Headless(!m.cfg.Headful).
			NoSandbox(m.cfg.NoSandbox).
			Set("window-size", fmt.Sprintf("%d,%d", vp.Width, vp.Height)).
			Set("disable-blink-features", "AutomationControlled")
		if m.cfg.Bin != "" {
			l = l.Bin(m.cfg.Bin)
		}

		u, err := l.Launch()
		if err != nil {
			return fmt.Errorf("unable to launch browser: %w", err)
		}
		wsURL = u
		m.lnch = l
		m.log.Debug("Launched local browser", zap.String("url", wsURL), zap.Stringer("viewport", vp))
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		if m.lnch != nil {
			m.lnch.Kill()
			m.lnch = nil
		}
		return fmt.Errorf("unable to connect to browser: %w", err)
	}
	m.browser = b
	m.startAt = time.Now()
	return nil
}

// AcquirePage opens a new page owned by the caller until ReleasePage. It
// blocks while MaxPages pages are in use.
func (m *Manager) AcquirePage(ctx context.Context) (*Page, error) {
	select {
	case m.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	page, err := m.openPage()
	if err != nil {
		<-m.slots
		return nil, err
	}
	return page, nil
}

func (m *Manager) openPage() (*Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}
	if m.browser == nil {
		return nil, errors.New("browser is not running")
	}

	var (
		rp  *rod.Page
		err error
	)
	if m.cfg.Stealth {
		rp, err = stealth.Page(m.browser)
	} else {
		rp, err = m.browser.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return nil, fmt.Errorf("unable to create page: %w", err)
	}
	p := &Page{page: rp, log: m.log.Named("page")}
	m.pages[p] = struct{}{}
	return p, nil
}

// ReleasePage closes page and frees its slot. Error the page was used with,
// if any, is only logged.
func (m *Manager) ReleasePage(p *Page, cause error) {
	if p == nil {
		return
	}
	m.mu.Lock()
	_, owned := m.pages[p]
	delete(m.pages, p)
	m.mu.Unlock()

	if !owned {
		// already closed by shutdown or restart
		return
	}
	if cause != nil {
		m.log.Debug("Releasing page after failure", zap.Error(cause))
	}
	if err := p.close(); err != nil {
		m.log.Debug("Unable to close page", zap.Error(err))
	}
	<-m.slots
}

// IsAlive checks that browser is running and responds.
func (m *Manager) IsAlive() bool {
	m.mu.Lock()
	b := m.browser
	m.mu.Unlock()

	if b == nil {
		return false
	}
	_, err := b.Timeout(aliveTimeout).Version()
	return err == nil
}

// Restart kills browser with all its pages and starts a new one.
func (m *Manager) Restart(ctx context.Context, vp common.Viewport) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	m.log.Info("Restarting browser", zap.Duration("uptime", time.Since(m.startAt)))
	if err := m.cleanupLocked(); err != nil {
		m.log.Warn("Problem stopping browser", zap.Error(err))
	}
	return m.launchLocked(ctx, vp)
}

// Shutdown stops browser. Without force it does nothing when browser is
// configured to be kept alive or while other runs still own pages, the last
// run to finish stops it. Forced shutdown closes manager for good.
func (m *Manager) Shutdown(force bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !force {
		if m.cfg.KeepAlive {
			m.log.Debug("Keeping browser alive")
			return nil
		}
		if len(m.pages) > 0 {
			m.log.Debug("Keeping browser for pages in use", zap.Int("pages", len(m.pages)))
			return nil
		}
	}
	if force {
		m.closed = true
	}
	return m.cleanupLocked()
}

func (m *Manager) cleanupLocked() (err error) {
	for p := range m.pages {
		err = multierr.Append(err, p.close())
		delete(m.pages, p)
		<-m.slots
	}
	if m.browser != nil {
		// remote browser is not ours to close, it is only forgotten
		if m.lnch != nil {
			err = multierr.Append(err, m.browser.Close())
		}
		m.browser = nil
	}
	if m.lnch != nil {
		m.lnch.Cleanup()
		m.lnch = nil
	}
	return err
}

// Run starts manager, calls fn and shuts browser down on every exit path
// including panics and context cancellation.
func Run(ctx context.Context, cfg Config, log *zap.Logger, fn func(ctx context.Context, m *Manager) error) (err error) {
	m := NewManager(cfg, log)
	defer func() {
		if r := recover(); r != nil {
			m.Shutdown(true) //nolint:errcheck
			panic(r)
		}
		err = multierr.Append(err, m.Shutdown(true))
	}()
	return fn(ctx, m)
}
