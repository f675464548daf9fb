package browser

import (
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// blockScripts sets up request interception failing every script load so
// scripts could not change layout while it is measured.
func blockScripts(page *rod.Page) (*rod.HijackRouter, error) {
	router := page.HijackRequests()
	err := router.Add("*", proto.NetworkResourceTypeScript, func(h *rod.Hijack) {
		h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
	})
	if err != nil {
		return nil, err
	}
	go router.Run()
	return router, nil
}
