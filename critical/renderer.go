// Package critical decides which selectors of a stylesheet are needed to
// render the visible part of a page and prunes everything else.
package critical

import "context"

// Renderer answers layout questions about a page loaded in a rendering engine.
// Implementations must return an error of common.KindQuery when the page
// rejects a selector, any other error aborts selection.
type Renderer interface {
	// AboveFold reports whether any element matched by selector intersects
	// the viewport rectangle.
	AboveFold(ctx context.Context, selector string) (bool, error)
	// ClearingShift reports whether resetting props of elements matched by
	// selector changes the above the fold verdict of any element matched
	// by anchors.
	ClearingShift(ctx context.Context, selector string, props, anchors []string) (bool, error)
}
