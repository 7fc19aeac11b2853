// File: internal/flow/failures.go
// Description: Failure classification for login attempts. The kind strings
// double as diagnostic snapshot tags and summary reasons.
package flow

import (
	"errors"
	"fmt"
)

// errChallengeWithoutSeed marks the unrecoverable mismatch where the service
// demands a second factor the credential file does not carry.
var errChallengeWithoutSeed = errors.New("challenge presented but no second factor configured")

// urlMismatchError reports a post-login URL that never reached the dashboard.
type urlMismatchError struct {
	got  string
	hint string
}

func (e *urlMismatchError) Error() string {
	return fmt.Sprintf("page settled on %q, expected path containing %q", e.got, e.hint)
}

// Failure kinds, in roughly the order a login attempt can hit them.
const (
	KindNavigationFailed    = "navigation_failed"
	KindElementMissing      = "element_missing"
	KindSecondFactorMissing = "second_factor_missing"
	KindCodeGeneration      = "code_generation_failed"
	KindUnverified          = "authentication_unverified"
	KindLinkSetup           = "link_setup_failed"
)

// StepError is a login failure pinned to the step that produced it.
type StepError struct {
	Kind string
	Step string
	Err  error
}

func (e *StepError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Step, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Step, e.Kind, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

func failed(kind, step string, err error) *StepError {
	return &StepError{Kind: kind, Step: step, Err: err}
}
