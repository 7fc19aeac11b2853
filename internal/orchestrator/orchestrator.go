// File: internal/orchestrator/orchestrator.go
// Description: Runs the login flow for many accounts concurrently, one
// isolated browser session per account, and assembles the final summary.
package orchestrator

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/quantbarn/kitelogin/internal/accounts"
	"github.com/quantbarn/kitelogin/internal/browser"
	"github.com/quantbarn/kitelogin/internal/config"
	"github.com/quantbarn/kitelogin/internal/registry"
)

// LoginRunner executes the authentication flow for one account on one page.
type LoginRunner interface {
	Run(ctx context.Context, page browser.Surface, acct accounts.Account) error
}

// LinkRunner executes the optional post-authentication link sub-flow.
type LinkRunner interface {
	Run(ctx context.Context, session browser.Surface, accountID string) error
}

// Result pairs an account with its final recorded status.
type Result struct {
	AccountID string
	Status    registry.Status
}

// Summary is the run's outcome, ordered the way accounts appeared in the
// credential file.
type Summary struct {
	Results []Result
	Skipped []string // inactive accounts, never attempted
}

// Successes counts accounts that authenticated, with or without warnings.
func (s Summary) Successes() int {
	n := 0
	for _, r := range s.Results {
		if r.Status.Outcome == registry.OutcomeSuccess || r.Status.Outcome == registry.OutcomeSuccessWarn {
			n++
		}
	}
	return n
}

// Orchestrator fans login sessions out and joins them all before reporting.
// One account's failure, panic, or browser crash never interrupts the rest.
type Orchestrator struct {
	cfg      *config.Config
	launcher browser.Launcher
	login    LoginRunner
	linker   LinkRunner // nil when the link sub-flow is disabled
	statuses *registry.Registry
	logger   *zap.Logger
}

// New assembles an orchestrator. linker may be nil.
func New(cfg *config.Config, launcher browser.Launcher, login LoginRunner, linker LinkRunner, statuses *registry.Registry, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		cfg:      cfg,
		launcher: launcher,
		login:    login,
		linker:   linker,
		statuses: statuses,
		logger:   logger.Named("orchestrator"),
	}
}

// Run executes the flow for every active account and blocks until all
// sessions finish. The returned error reflects scheduling problems only
// (context cancellation, mainly); per-account failures live in the summary.
func (o *Orchestrator) Run(ctx context.Context, accts []accounts.Account) (Summary, error) {
	var summary Summary
	var active []accounts.Account
	for _, acct := range accts {
		if !acct.Active {
			o.logger.Info("Skipping inactive account.", zap.String("account", acct.ID))
			summary.Skipped = append(summary.Skipped, acct.ID)
			continue
		}
		active = append(active, acct)
		o.statuses.SetPhase(acct.ID, registry.PhasePending)
	}

	o.logger.Info("Starting login sessions.",
		zap.Int("accounts", len(active)),
		zap.String("policy", string(o.cfg.Orchestrator.Policy)))

	var limiter *rate.Limiter
	if o.cfg.Orchestrator.Policy == config.PolicyStaggered {
		limiter = rate.NewLimiter(rate.Every(o.cfg.Orchestrator.StaggerDelay), 1)
	}

	var g errgroup.Group
	for _, acct := range active {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				o.statuses.MarkComplete(acct.ID, registry.OutcomeFailed, "run cancelled before start")
				continue
			}
		}

		acct := acct
		g.Go(func() error {
			o.runSession(ctx, acct)
			return nil
		})
	}

	// Goroutines never return errors; failures are isolated per account.
	_ = g.Wait()

	snapshot := o.statuses.Snapshot()
	for _, acct := range active {
		summary.Results = append(summary.Results, Result{
			AccountID: acct.ID,
			Status:    snapshot[acct.ID],
		})
	}

	return summary, ctx.Err()
}

// runSession owns one account end to end: launch, login, optional link,
// completion bookkeeping, and the leave-open decision.
func (o *Orchestrator) runSession(ctx context.Context, acct accounts.Account) {
	log := o.logger.With(zap.String("account", acct.ID))

	defer func() {
		if r := recover(); r != nil {
			log.Error("Session panicked.", zap.Any("panic", r))
			o.statuses.MarkComplete(acct.ID, registry.OutcomeFailed, fmt.Sprintf("internal error: %v", r))
		}
	}()

	sessionID := uuid.NewString()
	log.Info("Launching browser session.", zap.String("session_id", sessionID))

	session, err := o.launcher.Launch(ctx, sessionID)
	if err != nil {
		log.Error("Browser launch failed.", zap.Error(err))
		o.statuses.MarkComplete(acct.ID, registry.OutcomeFailed, fmt.Sprintf("browser launch failed: %v", err))
		return
	}

	if err := o.login.Run(ctx, session, acct); err != nil {
		log.Error("Login failed.", zap.Error(err))
		o.statuses.MarkComplete(acct.ID, registry.OutcomeFailed, err.Error())
		if !o.cfg.Flow.LeaveOpenOnFailure {
			session.Close()
		}
		return
	}

	if o.linker != nil {
		o.statuses.SetPhase(acct.ID, registry.PhasePostLogin)
		if err := o.linker.Run(ctx, session, acct.ID); err != nil {
			// The broker session is live; a broken link step downgrades
			// to a warning rather than failing the account.
			log.Warn("Post-login link setup failed.", zap.Error(err))
			o.statuses.AddWarning(acct.ID, fmt.Sprintf("link setup failed: %v", err))
		}
	}

	outcome := registry.OutcomeSuccess
	if status, ok := o.statuses.Get(acct.ID); ok && len(status.Warnings) > 0 {
		outcome = registry.OutcomeSuccessWarn
	}
	o.statuses.MarkComplete(acct.ID, outcome, "")
	log.Info("Session completed.", zap.String("outcome", string(outcome)))

	if !o.cfg.Flow.LeaveOpenOnSuccess {
		session.Close()
	}
}
