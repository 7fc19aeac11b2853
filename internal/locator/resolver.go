package locator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// ErrElementNotFound indicates no entry of a chain resolved within its
// allotted wait.
var ErrElementNotFound = errors.New("element not found")

// Target is the minimal page surface the resolver needs. The browser
// package provides the production implementation.
type Target interface {
	// WaitFor blocks until an element matching the locator reaches the
	// condition, or the context expires.
	WaitFor(ctx context.Context, loc Locator, cond Condition) error
	// Text returns the visible text of the first element matching the
	// locator.
	Text(ctx context.Context, loc Locator) (string, error)
}

// Resolver walks locator chains against a target page.
type Resolver struct {
	target Target
	logger *zap.Logger
}

// NewResolver returns a resolver bound to the given page.
func NewResolver(target Target, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{target: target, logger: logger}
}

// Resolve tries the chain's entries in order and returns the first entry
// that reaches the condition (and passes its text check, if any). Entries
// are attempted strictly in sequence; a chain with entries can therefore
// block for up to the sum of its per-entry waits before failing.
//
// An entry whose element appears but whose ExpectText check fails counts
// as not found, and resolution moves on to the next entry.
func (r *Resolver) Resolve(ctx context.Context, chain Chain, cond Condition) (Locator, error) {
	if len(chain.Entries) == 0 {
		return Locator{}, fmt.Errorf("chain %q: %w: no entries", chain.Name, ErrElementNotFound)
	}

	for i, loc := range chain.Entries {
		if err := ctx.Err(); err != nil {
			return Locator{}, fmt.Errorf("chain %q: %w", chain.Name, err)
		}

		attemptCtx, cancel := context.WithTimeout(ctx, chain.WaitFor(i))
		err := r.resolveOne(attemptCtx, loc, cond)
		cancel()
		if err == nil {
			r.logger.Debug("Locator resolved.",
				zap.String("chain", chain.Name),
				zap.Int("entry", i),
				zap.Stringer("locator", loc))
			return loc, nil
		}

		r.logger.Debug("Locator entry missed, trying next.",
			zap.String("chain", chain.Name),
			zap.Int("entry", i),
			zap.Stringer("locator", loc),
			zap.Error(err))
	}

	return Locator{}, fmt.Errorf("chain %q: %w after %d entries", chain.Name, ErrElementNotFound, len(chain.Entries))
}

func (r *Resolver) resolveOne(ctx context.Context, loc Locator, cond Condition) error {
	if err := r.target.WaitFor(ctx, loc, cond); err != nil {
		return err
	}
	if loc.ExpectText == "" {
		return nil
	}

	text, err := r.target.Text(ctx, loc)
	if err != nil {
		return fmt.Errorf("text check: %w", err)
	}
	if !strings.Contains(text, loc.ExpectText) {
		return fmt.Errorf("text check: got %q, want substring %q", text, loc.ExpectText)
	}
	return nil
}
