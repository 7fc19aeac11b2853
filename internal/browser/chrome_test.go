package browser

import (
	"reflect"
	"testing"
	"unsafe"

	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"

	"github.com/quantbarn/kitelogin/internal/config"
	"github.com/quantbarn/kitelogin/internal/locator"
)

// flagNames applies opts to a throwaway ExecAllocator and reports which
// flags would reach the Chrome command line. Options are opaque funcs, so
// the allocator's unexported initFlags map is seeded and read back through
// reflection. Bool flags keep their value because chromedp drops false
// bools when building the command line.
func flagNames(opts []chromedp.ExecAllocatorOption) map[string]bool {
	alloc := new(chromedp.ExecAllocator)
	field := reflect.ValueOf(alloc).Elem().FieldByName("initFlags")
	field = reflect.NewAt(field.Type(), unsafe.Pointer(field.UnsafeAddr())).Elem()
	flags := make(map[string]interface{})
	field.Set(reflect.ValueOf(flags))

	for _, opt := range opts {
		opt(alloc)
	}

	out := make(map[string]bool)
	for name, value := range flags {
		if b, ok := value.(bool); ok {
			out[name] = b
		} else {
			out[name] = true
		}
	}
	return out
}

func TestAllocatorOptions_StripsAutomationBanner(t *testing.T) {
	l := NewChromeLauncher(config.BrowserConfig{}, nil)
	flags := flagNames(l.allocatorOptions())

	assert.False(t, flags["enable-automation"])
	assert.True(t, flags["disable-blink-features"])
	assert.True(t, flags["disable-extensions"])
}

func TestAllocatorOptions_CustomArgs(t *testing.T) {
	l := NewChromeLauncher(config.BrowserConfig{
		Args: []string{"--window-size=1280,1024", "--start-maximized"},
	}, nil)
	flags := flagNames(l.allocatorOptions())

	assert.True(t, flags["window-size"])
	assert.True(t, flags["start-maximized"])
}

func TestQueryOption(t *testing.T) {
	css := queryOption(locator.Locator{Strategy: locator.CSS, Expr: "#userid"})
	xpath := queryOption(locator.Locator{Strategy: locator.XPath, Expr: "//button"})

	// QueryOptions are opaque funcs; without a live browser the test can
	// only pin that both strategies map to one.
	assert.NotNil(t, css)
	assert.NotNil(t, xpath)
}
