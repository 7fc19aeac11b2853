// File: internal/registry/registry.go
// Description: Shared, concurrency-safe record of per-account login progress
// and final outcomes.
package registry

import (
	"sync"

	"go.uber.org/zap"
)

// Phase is a coarse progress marker for an account's login attempt.
type Phase string

const (
	PhasePending       Phase = "pending"
	PhaseNavigating    Phase = "navigating"
	PhaseEnteringCreds Phase = "entering_credentials"
	PhaseSubmitted     Phase = "submitted"
	PhaseSecondFactor  Phase = "second_factor"
	PhaseAuthenticated Phase = "authenticated"
	PhasePostLogin     Phase = "post_login"
	PhaseDone          Phase = "done"
)

// Outcome is the terminal classification of an attempt.
type Outcome string

const (
	OutcomeSuccess     Outcome = "success"
	OutcomeSuccessWarn Outcome = "success_with_warnings"
	OutcomeFailed      Outcome = "failed"
)

// Status is the full recorded state for one account.
type Status struct {
	Phase    Phase
	Outcome  Outcome
	Reason   string
	Warnings []string
}

// Terminal reports whether the attempt has reached a final outcome.
func (s Status) Terminal() bool { return s.Outcome != "" }

// Registry tracks all accounts' statuses. All methods are safe for
// concurrent use.
type Registry struct {
	mu       sync.Mutex
	statuses map[string]Status
	logger   *zap.Logger
}

// New returns an empty registry.
func New(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		statuses: make(map[string]Status),
		logger:   logger,
	}
}

// SetPhase records progress for an account. Phase updates after the account
// has completed are ignored.
func (r *Registry) SetPhase(accountID string, phase Phase) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.statuses[accountID]
	if cur.Terminal() {
		return
	}
	cur.Phase = phase
	r.statuses[accountID] = cur
}

// AddWarning attaches a non-fatal issue to an account's record. Warnings
// accumulate in the order reported and survive completion.
func (r *Registry) AddWarning(accountID, warning string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.statuses[accountID]
	cur.Warnings = append(cur.Warnings, warning)
	r.statuses[accountID] = cur
}

// MarkComplete records the terminal outcome for an account. The first call
// wins; repeat calls for the same account are no-ops, so a flow's deferred
// failure handler cannot clobber a success recorded on the main path.
func (r *Registry) MarkComplete(accountID string, outcome Outcome, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.statuses[accountID]
	if cur.Terminal() {
		r.logger.Debug("Ignoring repeat completion.",
			zap.String("account", accountID),
			zap.String("outcome", string(outcome)))
		return
	}
	cur.Phase = PhaseDone
	cur.Outcome = outcome
	cur.Reason = reason
	r.statuses[accountID] = cur
}

// Get returns the current status for an account and whether it exists.
func (r *Registry) Get(accountID string) (Status, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.statuses[accountID]
	return s, ok
}

// Snapshot returns a copy of all recorded statuses. Mutating the returned
// map does not affect the registry.
func (r *Registry) Snapshot() map[string]Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]Status, len(r.statuses))
	for id, s := range r.statuses {
		cp := s
		cp.Warnings = append([]string(nil), s.Warnings...)
		out[id] = cp
	}
	return out
}
