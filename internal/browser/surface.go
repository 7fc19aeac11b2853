// File: internal/browser/surface.go
// Description: The page surface abstraction the login flow drives and the
// launcher that provisions one isolated browser process per session.
package browser

import (
	"context"
	"errors"

	"github.com/quantbarn/kitelogin/internal/locator"
)

// ErrLaunchFailed indicates the browser process could not be started or did
// not become responsive within the launch timeout.
var ErrLaunchFailed = errors.New("browser launch failed")

// Surface is a live page (one tab) the flow interacts with. The production
// implementation drives a real browser over the DevTools protocol; tests
// substitute scripted fakes.
//
// Surface satisfies locator.Target, so a locator.Resolver can walk fallback
// chains against it directly.
type Surface interface {
	locator.Target

	// Navigate loads the URL and waits for the document to be ready.
	Navigate(ctx context.Context, url string) error

	// Type appends text to the element matched by the locator.
	Type(ctx context.Context, loc locator.Locator, text string) error

	// Clear empties the element's current value. Used before retyping into
	// fields the page may have pre-filled.
	Clear(ctx context.Context, loc locator.Locator) error

	// Click clicks the element matched by the locator.
	Click(ctx context.Context, loc locator.Locator) error

	// SendEscape delivers an Escape keypress to the page, dismissing
	// overlays that have no reliable close control.
	SendEscape(ctx context.Context) error

	// Location returns the page's current URL.
	Location(ctx context.Context) (string, error)

	// Screenshot captures the viewport as PNG bytes.
	Screenshot(ctx context.Context) ([]byte, error)

	// DOM returns the full serialized document.
	DOM(ctx context.Context) (string, error)

	// OpenTab opens a fresh tab in the same browser process and returns a
	// surface for it. The original surface stays usable.
	OpenTab(ctx context.Context) (Surface, error)
}

// Session is a running browser process and its initial page.
type Session interface {
	Surface

	// ID identifies the session in logs and diagnostics.
	ID() string

	// Close tears the browser process down. The flow deliberately skips
	// this when the window should stay open for the operator.
	Close()
}

// Launcher provisions browser sessions. Each call yields a separate
// process, so one session's crash or teardown cannot touch another's.
type Launcher interface {
	Launch(ctx context.Context, sessionID string) (Session, error)
}
