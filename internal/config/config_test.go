// File: internal/config/config_test.go
package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "https://login.live.com", cfg.Flow.LoginURL)
	assert.Equal(t, "https://outlook.live.com/mail/0/", cfg.Flow.TargetURLPrefix)
	assert.Equal(t, "https://2fa.live", cfg.OTP.Endpoint)
	assert.Equal(t, 10, cfg.Flow.ResolverMaxRetries)
	assert.Equal(t, 3, cfg.Flow.OTPSubmitAttempts)
	assert.Equal(t, 15, cfg.OTP.PollAttempts)
	assert.Equal(t, time.Second, cfg.OTP.PollInterval)
	assert.Equal(t, 2, cfg.Runner.Concurrency)
	assert.True(t, cfg.Browser.Headless)
}

func TestViperOverridesApply(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("runner.concurrency", 5)
	v.Set("flow.safe_sender", "ops@example.com")
	v.Set("browser.headless", false)

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Runner.Concurrency)
	assert.Equal(t, "ops@example.com", cfg.Flow.SafeSender)
	assert.False(t, cfg.Browser.Headless)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(v *viper.Viper){
		"bad logger format":   func(v *viper.Viper) { v.Set("logger.format", "xml") },
		"empty target prefix": func(v *viper.Viper) { v.Set("flow.target_url_prefix", "") },
		"empty login url":     func(v *viper.Viper) { v.Set("flow.login_url", "") },
		"zero retries":        func(v *viper.Viper) { v.Set("flow.resolver_max_retries", 0) },
		"zero attempts":       func(v *viper.Viper) { v.Set("flow.action_max_attempts", 0) },
		"empty otp endpoint":  func(v *viper.Viper) { v.Set("otp.endpoint", "") },
		"zero poll attempts":  func(v *viper.Viper) { v.Set("otp.poll_attempts", 0) },
		"zero concurrency":    func(v *viper.Viper) { v.Set("runner.concurrency", 0) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			v := viper.New()
			SetDefaults(v)
			mutate(v)

			_, err := NewConfigFromViper(v)
			assert.Error(t, err)
		})
	}
}

func TestExpandPathsResolvesHome(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("store.dir", "~/cookies")

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)
	assert.NotContains(t, cfg.Store.Dir, "~")
}
