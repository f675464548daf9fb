package common

import "fmt"

const (
	DefaultViewportWidth  = 1300 // px
	DefaultViewportHeight = 900  // px
)

// Viewport is the visible area of a page before any scrolling, in CSS pixels.
type Viewport struct {
	Width  int
	Height int
}

// Normalized returns viewport with zero or negative dimensions replaced by defaults.
func (v Viewport) Normalized() Viewport {
	if v.Width <= 0 {
		v.Width = DefaultViewportWidth
	}
	if v.Height <= 0 {
		v.Height = DefaultViewportHeight
	}
	return v
}

func (v Viewport) String() string {
	return fmt.Sprintf("%dx%d", v.Width, v.Height)
}
