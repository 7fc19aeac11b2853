// File: internal/flow/flow.go
// Description: The per-account authentication state machine: navigate, enter
// credentials, submit, handle the second-factor challenge, verify the
// dashboard landed.
package flow

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/quantbarn/kitelogin/internal/accounts"
	"github.com/quantbarn/kitelogin/internal/browser"
	"github.com/quantbarn/kitelogin/internal/config"
	"github.com/quantbarn/kitelogin/internal/diagnostics"
	"github.com/quantbarn/kitelogin/internal/locator"
	"github.com/quantbarn/kitelogin/internal/registry"
	"github.com/quantbarn/kitelogin/internal/secrets"
)

// locationPollInterval paces the dashboard URL probe during verification.
const locationPollInterval = 500 * time.Millisecond

// LoginFlow executes the authentication sequence for one account on one
// page surface. A single LoginFlow is safe to share across sessions; all
// per-attempt state lives on the stack of Run.
type LoginFlow struct {
	cfg      config.FlowConfig
	statuses *registry.Registry
	recorder *diagnostics.Recorder
	logger   *zap.Logger

	// Overridable for tests.
	sleep func(context.Context, time.Duration) error
	now   func() time.Time
}

// NewLoginFlow wires the flow to its collaborators. recorder may be nil to
// disable failure snapshots.
func NewLoginFlow(cfg config.FlowConfig, statuses *registry.Registry, recorder *diagnostics.Recorder, logger *zap.Logger) *LoginFlow {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoginFlow{
		cfg:      cfg,
		statuses: statuses,
		recorder: recorder,
		logger:   logger.Named("flow"),
		sleep:    sleepCtx,
		now:      time.Now,
	}
}

// Run drives the full login sequence for the account on the given page. On
// failure it records a diagnostic snapshot and returns a *StepError whose
// Kind classifies what went wrong. A nil return means the account reached
// its dashboard; warnings, if any, are already on the status registry.
//
// The fixed pauses between steps are not padding. The login page debounces
// input and raises its second-factor challenge asynchronously, so driving
// it at machine speed makes it silently drop keystrokes.
func (f *LoginFlow) Run(ctx context.Context, page browser.Surface, acct accounts.Account) error {
	log := f.logger.With(zap.String("account", acct.ID))
	resolver := locator.NewResolver(page, log)

	if err := f.runSteps(ctx, page, resolver, acct, log); err != nil {
		step, _ := err.(*StepError)
		if step != nil {
			f.recorder.Record(ctx, page, acct.ID, step.Kind, step.Error())
		}
		return err
	}
	return nil
}

func (f *LoginFlow) runSteps(ctx context.Context, page browser.Surface, resolver *locator.Resolver, acct accounts.Account, log *zap.Logger) error {
	// Navigate.
	f.statuses.SetPhase(acct.ID, registry.PhaseNavigating)
	log.Info("Navigating to login page.", zap.String("url", f.cfg.LoginURL))
	if err := page.Navigate(ctx, f.cfg.LoginURL); err != nil {
		return failed(KindNavigationFailed, "navigate", err)
	}
	if err := f.sleep(ctx, f.cfg.SettleDelay); err != nil {
		return failed(KindNavigationFailed, "navigate", err)
	}

	// Credentials.
	f.statuses.SetPhase(acct.ID, registry.PhaseEnteringCreds)
	if err := f.fillField(ctx, page, resolver, userFieldChain(f.cfg.WaitTimeout), acct.Identifier); err != nil {
		return failed(KindElementMissing, "enter_identifier", err)
	}
	if err := f.sleep(ctx, f.cfg.InterFieldDelay); err != nil {
		return failed(KindElementMissing, "enter_identifier", err)
	}
	if err := f.fillField(ctx, page, resolver, passwordFieldChain(f.cfg.WaitTimeout), acct.Secret); err != nil {
		return failed(KindElementMissing, "enter_secret", err)
	}
	if err := f.sleep(ctx, f.cfg.InterFieldDelay); err != nil {
		return failed(KindElementMissing, "enter_secret", err)
	}

	// Primary submit.
	if err := f.clickChain(ctx, page, resolver, submitButtonChain(f.cfg.WaitTimeout)); err != nil {
		return failed(KindElementMissing, "submit_credentials", err)
	}
	f.statuses.SetPhase(acct.ID, registry.PhaseSubmitted)
	log.Info("Credentials submitted, waiting for challenge page.")
	if err := f.sleep(ctx, f.cfg.PostSubmitDelay); err != nil {
		return failed(KindElementMissing, "submit_credentials", err)
	}

	// Second factor.
	if err := f.handleSecondFactor(ctx, page, resolver, acct, log); err != nil {
		return err
	}

	// Verification.
	if err := f.verifyAuthenticated(ctx, page, log); err != nil {
		return err
	}
	f.statuses.SetPhase(acct.ID, registry.PhaseAuthenticated)
	log.Info("Authentication verified.")
	return nil
}

func (f *LoginFlow) fillField(ctx context.Context, page browser.Surface, resolver *locator.Resolver, chain locator.Chain, value string) error {
	loc, err := resolver.Resolve(ctx, chain, locator.Present)
	if err != nil {
		return err
	}
	return page.Type(ctx, loc, value)
}

func (f *LoginFlow) clickChain(ctx context.Context, page browser.Surface, resolver *locator.Resolver, chain locator.Chain) error {
	loc, err := resolver.Resolve(ctx, chain, locator.Clickable)
	if err != nil {
		return err
	}
	return page.Click(ctx, loc)
}

// handleSecondFactor implements the challenge branch. Whether the challenge
// appears is probed, not configured: the service decides per account, and
// the credential file may disagree with it in either direction.
func (f *LoginFlow) handleSecondFactor(ctx context.Context, page browser.Surface, resolver *locator.Resolver, acct accounts.Account, log *zap.Logger) error {
	f.statuses.SetPhase(acct.ID, registry.PhaseSecondFactor)
	seed := strings.TrimSpace(acct.SecondFactorSeed)
	kind := secrets.Classify(seed)

	loc, err := resolver.Resolve(ctx, secondFactorChain(f.cfg.SecondFactorTimeout), locator.Clickable)
	if err != nil {
		if ctx.Err() != nil {
			return failed(KindElementMissing, "second_factor", ctx.Err())
		}
		// No challenge surfaced. Fine when no seed is configured; worth a
		// warning when one is, since the operator probably expected it.
		if kind != secrets.KindNone {
			log.Warn("Second factor configured but challenge never appeared.")
			f.statuses.AddWarning(acct.ID, "second factor configured but challenge never appeared")
		} else {
			log.Info("No second-factor challenge detected.")
		}
		return nil
	}

	log.Info("Second-factor challenge detected.", zap.Stringer("kind", kind))
	if kind == secrets.KindNone {
		return failed(KindSecondFactorMissing, "second_factor",
			errChallengeWithoutSeed)
	}

	code, err := secrets.Code(seed, f.now())
	if err != nil {
		return failed(KindCodeGeneration, "second_factor", err)
	}

	// The field can arrive pre-filled from the primary page; clear it so
	// the code is not appended to leftovers.
	if err := page.Clear(ctx, loc); err != nil {
		return failed(KindElementMissing, "second_factor", err)
	}
	if err := page.Type(ctx, loc, code); err != nil {
		return failed(KindElementMissing, "second_factor", err)
	}
	if err := f.sleep(ctx, f.cfg.PostSecondFactorKeys); err != nil {
		return failed(KindElementMissing, "second_factor", err)
	}

	if err := f.clickChain(ctx, page, resolver, submitButtonChain(f.cfg.WaitTimeout)); err != nil {
		return failed(KindElementMissing, "submit_second_factor", err)
	}
	if err := f.sleep(ctx, f.cfg.PostFinalSubmitDelay); err != nil {
		return failed(KindElementMissing, "submit_second_factor", err)
	}
	log.Info("Second factor submitted.")
	return nil
}

// verifyAuthenticated polls the page URL until it lands on the dashboard or
// the wait budget runs out. URL inspection is the only authentication signal
// the service exposes without API credentials.
func (f *LoginFlow) verifyAuthenticated(ctx context.Context, page browser.Surface, log *zap.Logger) error {
	hint := strings.ToLower(f.cfg.DashboardPathHint)
	if hint == "" {
		return nil
	}

	deadline := f.now().Add(f.cfg.WaitTimeout)
	var lastURL string
	for {
		url, err := page.Location(ctx)
		if err == nil {
			lastURL = url
			if strings.Contains(strings.ToLower(url), hint) {
				return nil
			}
		}

		if f.now().After(deadline) {
			return failed(KindUnverified, "verify_dashboard",
				&urlMismatchError{got: lastURL, hint: f.cfg.DashboardPathHint})
		}
		if err := f.sleep(ctx, locationPollInterval); err != nil {
			return failed(KindUnverified, "verify_dashboard", err)
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
