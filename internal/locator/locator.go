// File: internal/locator/locator.go
// Description: Declarative element locators and the ordered fallback chains
// the login flow resolves against a live page.
package locator

import (
	"fmt"
	"time"
)

// Strategy selects how a locator expression is interpreted by the page.
type Strategy string

const (
	// CSS matches by CSS selector.
	CSS Strategy = "css"
	// XPath matches by XPath expression.
	XPath Strategy = "xpath"
)

// Condition is the readiness state an element must reach before a locator
// is considered resolved.
type Condition int

const (
	// Present waits for the element to exist and be visible.
	Present Condition = iota
	// Clickable waits for the element to be visible and enabled.
	Clickable
)

// String implements fmt.Stringer for log output.
func (c Condition) String() string {
	if c == Clickable {
		return "clickable"
	}
	return "present"
}

// Locator describes one way to find an element on a page.
type Locator struct {
	// Strategy and Expr identify candidate elements.
	Strategy Strategy
	Expr     string

	// ExpectText, when non-empty, requires the matched element's visible
	// text to contain this value. An element that matches the expression
	// but fails the text check is treated as not found.
	ExpectText string

	// Wait is how long to wait for this entry before moving to the next
	// one in the chain. Zero means the chain's default.
	Wait time.Duration
}

func (l Locator) String() string {
	return fmt.Sprintf("%s(%s)", l.Strategy, l.Expr)
}

// Chain is an ordered list of locators tried strictly in sequence. The
// first entry to resolve wins; later entries are never consulted once one
// succeeds.
type Chain struct {
	// Name identifies the chain in logs and diagnostics.
	Name string

	// DefaultWait applies to entries whose Wait is zero.
	DefaultWait time.Duration

	Entries []Locator
}

// WaitFor returns the effective wait for the entry at index i.
func (c Chain) WaitFor(i int) time.Duration {
	if w := c.Entries[i].Wait; w > 0 {
		return w
	}
	return c.DefaultWait
}
