package extract

import (
	"context"

	"critcss/browser"
	"critcss/common"
	"critcss/critical"
)

// Page is the rendered document a single run works with.
type Page interface {
	critical.Renderer
	Load(ctx context.Context, params browser.LoadParams) error
	Screenshot(ctx context.Context, shot browser.Shot) ([]byte, error)
	ReplaceStyles(ctx context.Context, text string) error
}

// Sessions hands out pages and supervises rendering engine.
type Sessions interface {
	LaunchIfNeeded(ctx context.Context, vp common.Viewport) error
	AcquirePage(ctx context.Context) (Page, error)
	ReleasePage(p Page, cause error)
	IsAlive() bool
	Restart(ctx context.Context, vp common.Viewport) error
	Shutdown(force bool) error
}

type managerSessions struct {
	*browser.Manager
}

// FromManager adapts browser manager to Sessions.
func FromManager(m *browser.Manager) Sessions {
	return managerSessions{Manager: m}
}

func (s managerSessions) AcquirePage(ctx context.Context) (Page, error) {
	p, err := s.Manager.AcquirePage(ctx)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s managerSessions) ReleasePage(p Page, cause error) {
	if bp, ok := p.(*browser.Page); ok {
		s.Manager.ReleasePage(bp, cause)
	}
}
