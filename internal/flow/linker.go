// File: internal/flow/linker.go
// Description: Optional post-authentication sub-flow that links a freshly
// authenticated broker session into the companion trading application.
package flow

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	homedir "github.com/mitchellh/go-homedir"
	"go.uber.org/zap"

	"github.com/quantbarn/kitelogin/internal/browser"
	"github.com/quantbarn/kitelogin/internal/config"
	"github.com/quantbarn/kitelogin/internal/locator"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// LinkerCredentials is the companion application's own login. One set is
// shared across every account being linked.
type LinkerCredentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoadLinkerCredentials reads the companion credentials from a JSON file.
func LoadLinkerCredentials(path string) (LinkerCredentials, error) {
	var creds LinkerCredentials

	expanded, err := homedir.Expand(path)
	if err != nil {
		return creds, fmt.Errorf("expanding credentials path: %w", err)
	}
	raw, err := os.ReadFile(expanded)
	if err != nil {
		return creds, fmt.Errorf("reading linker credentials: %w", err)
	}
	if err := json.Unmarshal(raw, &creds); err != nil {
		return creds, fmt.Errorf("parsing linker credentials: %w", err)
	}

	creds.Username = strings.TrimSpace(creds.Username)
	creds.Password = strings.TrimSpace(creds.Password)
	if creds.Username == "" || creds.Password == "" {
		return creds, fmt.Errorf("linker credentials file %s is missing username or password", path)
	}
	return creds, nil
}

// Linker links authenticated sessions into the companion application. Its
// failures are deliberately softer than the login flow's: a broken link
// step leaves the broker session itself intact, so callers downgrade linker
// errors to warnings.
type Linker struct {
	cfg    config.LinkerConfig
	timing config.FlowConfig
	creds  LinkerCredentials
	logger *zap.Logger

	sleep func(context.Context, time.Duration) error
}

// NewLinker builds a linker. The flow config supplies shared timing (field
// delays, element wait budget) so the two flows pace themselves the same way.
func NewLinker(cfg config.LinkerConfig, timing config.FlowConfig, creds LinkerCredentials, logger *zap.Logger) *Linker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Linker{
		cfg:    cfg,
		timing: timing,
		creds:  creds,
		logger: logger.Named("linker"),
		sleep:  sleepCtx,
	}
}

// Run opens the companion application in a new tab of the account's browser
// and walks it through login and broker linking. The broker tab is left
// untouched throughout.
func (l *Linker) Run(ctx context.Context, session browser.Surface, accountID string) error {
	log := l.logger.With(zap.String("account", accountID))

	tab, err := session.OpenTab(ctx)
	if err != nil {
		return failed(KindLinkSetup, "open_tab", err)
	}

	log.Info("Opening companion application.", zap.String("url", l.cfg.URL))
	if err := tab.Navigate(ctx, l.cfg.URL); err != nil {
		return failed(KindLinkSetup, "navigate", err)
	}
	if err := l.sleep(ctx, l.cfg.SettleDelay); err != nil {
		return failed(KindLinkSetup, "navigate", err)
	}

	resolver := locator.NewResolver(tab, log)

	if err := l.login(ctx, tab, resolver); err != nil {
		return err
	}
	return l.linkBroker(ctx, tab, resolver, accountID, log)
}

func (l *Linker) login(ctx context.Context, tab browser.Surface, resolver *locator.Resolver) error {
	wait := l.timing.WaitTimeout

	loc, err := resolver.Resolve(ctx, linkerLoginButtonChain(wait), locator.Clickable)
	if err != nil {
		return failed(KindLinkSetup, "open_login_form", err)
	}
	if err := tab.Click(ctx, loc); err != nil {
		return failed(KindLinkSetup, "open_login_form", err)
	}
	if err := l.sleep(ctx, l.cfg.SettleDelay); err != nil {
		return failed(KindLinkSetup, "open_login_form", err)
	}

	if err := l.fill(ctx, tab, resolver, linkerPhoneFieldChain(wait), l.creds.Username); err != nil {
		return failed(KindLinkSetup, "enter_phone", err)
	}
	if err := l.fill(ctx, tab, resolver, linkerPasswordFieldChain(wait), l.creds.Password); err != nil {
		return failed(KindLinkSetup, "enter_password", err)
	}

	loc, err = resolver.Resolve(ctx, linkerSubmitButtonChain(wait), locator.Clickable)
	if err != nil {
		return failed(KindLinkSetup, "submit_login", err)
	}
	if err := tab.Click(ctx, loc); err != nil {
		return failed(KindLinkSetup, "submit_login", err)
	}
	return l.sleep(ctx, l.cfg.SettleDelay)
}

// fill clears before typing: the companion form remembers previous values
// across reloads.
func (l *Linker) fill(ctx context.Context, tab browser.Surface, resolver *locator.Resolver, chain locator.Chain, value string) error {
	loc, err := resolver.Resolve(ctx, chain, locator.Present)
	if err != nil {
		return err
	}
	if err := tab.Clear(ctx, loc); err != nil {
		return err
	}
	if err := tab.Type(ctx, loc, value); err != nil {
		return err
	}
	return l.sleep(ctx, l.timing.InterFieldDelay)
}

func (l *Linker) linkBroker(ctx context.Context, tab browser.Surface, resolver *locator.Resolver, accountID string, log *zap.Logger) error {
	wait := l.timing.WaitTimeout

	// The companion shows a promotional overlay on login with no stable
	// close button. Escape dismisses it.
	if err := tab.SendEscape(ctx); err != nil {
		return failed(KindLinkSetup, "dismiss_overlay", err)
	}
	if err := l.sleep(ctx, l.timing.SettleDelay); err != nil {
		return failed(KindLinkSetup, "dismiss_overlay", err)
	}

	if err := l.clickResolved(ctx, tab, resolver, brokerSetupChain(wait)); err != nil {
		return failed(KindLinkSetup, "broker_setup", err)
	}
	if err := l.sleep(ctx, l.timing.SettleDelay); err != nil {
		return failed(KindLinkSetup, "broker_setup", err)
	}

	if err := l.clickResolved(ctx, tab, resolver, unlistedBrokerChain(wait)); err != nil {
		return failed(KindLinkSetup, "select_broker_tile", err)
	}
	if err := l.sleep(ctx, l.timing.SettleDelay); err != nil {
		return failed(KindLinkSetup, "select_broker_tile", err)
	}

	position, ok := l.cfg.Positions[accountID]
	if !ok {
		log.Warn("No companion slot configured for account, skipping link button.")
		return nil
	}

	if err := l.clickResolved(ctx, tab, resolver, accountLinkButtonChain(position, wait)); err != nil {
		return failed(KindLinkSetup, "click_link_button", err)
	}

	log.Info("Link button clicked, waiting for auto-login verification.")
	if err := l.sleep(ctx, l.cfg.VerifyDelay); err != nil {
		return failed(KindLinkSetup, "verify_link", err)
	}
	log.Info("Companion link flow completed.")
	return nil
}

func (l *Linker) clickResolved(ctx context.Context, tab browser.Surface, resolver *locator.Resolver, chain locator.Chain) error {
	loc, err := resolver.Resolve(ctx, chain, locator.Clickable)
	if err != nil {
		return err
	}
	return tab.Click(ctx, loc)
}
