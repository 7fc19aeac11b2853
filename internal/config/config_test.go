package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "https://kite.zerodha.com/", cfg.Flow.LoginURL)
	assert.Equal(t, 30*time.Second, cfg.Flow.WaitTimeout)
	assert.Equal(t, 750*time.Millisecond, cfg.Flow.SettleDelay)
	assert.Equal(t, 375*time.Millisecond, cfg.Flow.InterFieldDelay)
	assert.Equal(t, 4*time.Second, cfg.Flow.PostSubmitDelay)
	assert.Equal(t, time.Second, cfg.Flow.PostSecondFactorKeys)
	assert.True(t, cfg.Flow.LeaveOpenOnSuccess)
	assert.True(t, cfg.Flow.LeaveOpenOnFailure)

	assert.Equal(t, PolicyStaggered, cfg.Orchestrator.Policy)
	assert.Equal(t, 2*time.Second, cfg.Orchestrator.StaggerDelay)

	assert.False(t, cfg.Browser.Headless, "the operator needs visible windows by default")
	assert.False(t, cfg.Linker.Enabled)
	assert.Equal(t, "https://algotest.in/live", cfg.Linker.URL)
}

func TestNewConfigFromViper_OverridesDefaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("flow.wait_timeout", "10s")
	v.Set("orchestrator.policy", "simultaneous")
	v.Set("accounts.targets", []string{"AB1234"})

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, cfg.Flow.WaitTimeout)
	assert.Equal(t, PolicySimultaneous, cfg.Orchestrator.Policy)
	assert.Equal(t, []string{"AB1234"}, cfg.Accounts.Targets)
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing login url",
			mutate:  func(c *Config) { c.Flow.LoginURL = "" },
			wantErr: "login_url",
		},
		{
			name:    "non-positive wait timeout",
			mutate:  func(c *Config) { c.Flow.WaitTimeout = 0 },
			wantErr: "wait_timeout",
		},
		{
			name:    "missing credentials file",
			mutate:  func(c *Config) { c.Accounts.CredentialsFile = "" },
			wantErr: "credentials_file",
		},
		{
			name:    "unknown start policy",
			mutate:  func(c *Config) { c.Orchestrator.Policy = "eventually" },
			wantErr: "orchestrator.policy",
		},
		{
			name: "staggered policy needs a positive delay",
			mutate: func(c *Config) {
				c.Orchestrator.Policy = PolicyStaggered
				c.Orchestrator.StaggerDelay = 0
			},
			wantErr: "stagger_delay",
		},
		{
			name: "simultaneous policy ignores the delay",
			mutate: func(c *Config) {
				c.Orchestrator.Policy = PolicySimultaneous
				c.Orchestrator.StaggerDelay = 0
			},
		},
		{
			name: "enabled linker needs a url",
			mutate: func(c *Config) {
				c.Linker.Enabled = true
				c.Linker.URL = ""
			},
			wantErr: "url is required",
		},
		{
			name: "linker positions start at one",
			mutate: func(c *Config) {
				c.Linker.Enabled = true
				c.Linker.Positions = map[string]int{"AB1234": 0}
			},
			wantErr: "must be >= 1",
		},
		{
			name: "disabled linker is not validated",
			mutate: func(c *Config) {
				c.Linker.Enabled = false
				c.Linker.URL = ""
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tc.mutate(cfg)

			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
			}
		})
	}
}
