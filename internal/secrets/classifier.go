// File: internal/secrets/classifier.go
// Description: Classifies raw second-factor values as static codes or
// time-based seeds and computes the current time-based code.
package secrets

import (
	"errors"
	"fmt"
	"time"

	"github.com/pquerna/otp/totp"
)

// Kind is the classification of a second-factor value.
type Kind int

const (
	// KindNone means no second-factor value is configured.
	KindNone Kind = iota
	// KindStatic means the value is submitted verbatim (a PIN or fixed code).
	KindStatic
	// KindTimeBased means the value is a shared seed for the standard
	// 30-second-step, 6-digit one-time-code algorithm.
	KindTimeBased
)

// String implements fmt.Stringer for log output.
func (k Kind) String() string {
	switch k {
	case KindStatic:
		return "static"
	case KindTimeBased:
		return "time-based"
	default:
		return "none"
	}
}

// ErrGenerationFailed indicates a seed classified as time-based could not
// produce a code (malformed base32, typically). Fatal to the session's
// second-factor step; never retried.
var ErrGenerationFailed = errors.New("time-based code generation failed")

// Classify decides how a trimmed second-factor value should be treated.
//
// The policy is a compatibility contract: a value longer than 8 characters,
// composed only of alphanumerics, and not purely numeric is a time-based
// seed; any other non-empty value is a static code. The heuristic is known
// to be ambiguous (a 9+ digit static code would be misclassified as would a
// short seed) but is preserved exactly because deployed credential files
// rely on it.
func Classify(value string) Kind {
	if value == "" {
		return KindNone
	}
	if len(value) > 8 && isAlphanumeric(value) && !isAllDigits(value) {
		return KindTimeBased
	}
	return KindStatic
}

// Code returns the value to submit for the second-factor challenge at the
// given instant: the current one-time code for time-based seeds, the value
// itself for static codes. Calling Code with an empty value is a programming
// error surfaced as ErrGenerationFailed.
func Code(value string, at time.Time) (string, error) {
	switch Classify(value) {
	case KindNone:
		return "", fmt.Errorf("%w: empty value", ErrGenerationFailed)
	case KindStatic:
		return value, nil
	}

	code, err := totp.GenerateCode(value, at)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	return code, nil
}

func isAlphanumeric(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		default:
			return false
		}
	}
	return true
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
