// File: internal/flow/locators.go
// Description: Locator chains for the broker login pages and the companion
// application. The absolute XPaths mirror the companion UI's rendered
// structure and are paired with fallbacks because that structure shifts
// between releases.
package flow

import (
	"fmt"
	"time"

	"github.com/quantbarn/kitelogin/internal/locator"
)

// The second-factor page reuses the user-id input's element id, so the same
// selector appears in two chains on purpose.
const (
	userFieldSel      = "#userid"
	passwordFieldSel  = "#password"
	submitButtonXPath = "//button[@type='submit']"
)

func userFieldChain(wait time.Duration) locator.Chain {
	return locator.Chain{
		Name:        "user_field",
		DefaultWait: wait,
		Entries: []locator.Locator{
			{Strategy: locator.CSS, Expr: userFieldSel},
		},
	}
}

func passwordFieldChain(wait time.Duration) locator.Chain {
	return locator.Chain{
		Name:        "password_field",
		DefaultWait: wait,
		Entries: []locator.Locator{
			{Strategy: locator.CSS, Expr: passwordFieldSel},
		},
	}
}

func submitButtonChain(wait time.Duration) locator.Chain {
	return locator.Chain{
		Name:        "submit_button",
		DefaultWait: wait,
		Entries: []locator.Locator{
			{Strategy: locator.XPath, Expr: submitButtonXPath},
		},
	}
}

func secondFactorChain(wait time.Duration) locator.Chain {
	return locator.Chain{
		Name:        "second_factor_field",
		DefaultWait: wait,
		Entries: []locator.Locator{
			{Strategy: locator.CSS, Expr: userFieldSel},
		},
	}
}

// Companion application chains.

func linkerLoginButtonChain(wait time.Duration) locator.Chain {
	return locator.Chain{
		Name:        "linker_login_button",
		DefaultWait: wait,
		Entries: []locator.Locator{
			{Strategy: locator.XPath, Expr: "/html/body/div[1]/div/div/div[1]/div[2]/div[1]/button[1]"},
		},
	}
}

func linkerPhoneFieldChain(wait time.Duration) locator.Chain {
	return locator.Chain{
		Name:        "linker_phone_field",
		DefaultWait: wait,
		Entries: []locator.Locator{
			{Strategy: locator.XPath, Expr: "/html/body/div[1]/div/div/div[3]/form/div[1]/input"},
		},
	}
}

func linkerPasswordFieldChain(wait time.Duration) locator.Chain {
	return locator.Chain{
		Name:        "linker_password_field",
		DefaultWait: wait,
		Entries: []locator.Locator{
			{Strategy: locator.XPath, Expr: "/html/body/div[1]/div/div/div[3]/form/div[2]/div/input"},
		},
	}
}

func linkerSubmitButtonChain(wait time.Duration) locator.Chain {
	return locator.Chain{
		Name:        "linker_submit_button",
		DefaultWait: wait,
		Entries: []locator.Locator{
			{Strategy: locator.XPath, Expr: "/html/body/div[1]/div/div/div[3]/form/button"},
		},
	}
}

func brokerSetupChain(wait time.Duration) locator.Chain {
	return locator.Chain{
		Name:        "broker_setup_button",
		DefaultWait: wait,
		Entries: []locator.Locator{
			{Strategy: locator.XPath, Expr: "/html/body/div[1]/div/div/nav/div[2]/div[1]/a[2]"},
			{Strategy: locator.XPath, Expr: "/html/body/div[1]/div/div/div[2]/div/div[2]/div[3]/div/a/button"},
		},
	}
}

// brokerTileText guards the text-matched entry: an element can satisfy the
// contains() expression while rendering something else entirely, so the
// resolver re-reads the text before accepting it.
const brokerTileText = "Unlisted Broker"

func unlistedBrokerChain(wait time.Duration) locator.Chain {
	return locator.Chain{
		Name:        "unlisted_broker_tile",
		DefaultWait: wait,
		Entries: []locator.Locator{
			{
				Strategy:   locator.XPath,
				Expr:       fmt.Sprintf("//p[contains(text(), '%s')]", brokerTileText),
				ExpectText: brokerTileText,
			},
			{Strategy: locator.XPath, Expr: "/html/body/div[1]/div/div/div/div/div/div[3]/div/div/div/div[1]/div[1]/div[1]/p"},
		},
	}
}

// accountLinkButtonChain targets the per-account connect button by its
// ordinal slot in the companion's broker list.
func accountLinkButtonChain(position int, wait time.Duration) locator.Chain {
	return locator.Chain{
		Name:        "account_link_button",
		DefaultWait: wait,
		Entries: []locator.Locator{
			{
				Strategy: locator.XPath,
				Expr:     fmt.Sprintf("/html/body/div[1]/div/div/div/div/div/div[3]/div/div/div/div[3]/div[2]/div[%d]/div/div/div[3]/button", position),
			},
			{
				Strategy: locator.XPath,
				Expr:     fmt.Sprintf("/html/body/div[1]/div/div/div/div/div/div[3]/div/div/div/div[1]/div[2]/div[%d]/div/div/div[3]/button", position),
			},
		},
	}
}
