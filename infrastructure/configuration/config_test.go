package configuration

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfiguration(t *testing.T) {
	t.Run("configuration_struct_exists", func(t *testing.T) {
		require.NotNil(t, &C, "Configuration should not be nil")
		require.NotNil(t, &C.App, "App configuration should exist")
		require.NotNil(t, &C.Database, "Database configuration should exist")
		require.NotNil(t, &C.Scheduler, "Scheduler configuration should exist")
	})

	t.Run("scheduler_defaults_applied", func(t *testing.T) {
		// init already ran; whatever the config file says, the knobs must be usable.
		require.Greater(t, C.Scheduler.PollIntervalSeconds, 0)
		require.Greater(t, C.Scheduler.PublishTimeoutSeconds, 0)
		require.Greater(t, C.Scheduler.VideoLeadHours, 0)
		require.Greater(t, C.Scheduler.PublishesPerMinute, 0)
		require.NotEmpty(t, C.Scheduler.TokenSweepSpec)
		require.NotEmpty(t, C.Scheduler.QuotaResetSpec)
	})

	t.Run("app_defaults_applied", func(t *testing.T) {
		require.NotZero(t, C.App.Port)
		require.NotEmpty(t, C.App.AllowedOrigins)
	})
}

func TestInitScheduler_FillsZeroValues(t *testing.T) {
	cfg := &Config{}
	initScheduler(cfg)

	require.Equal(t, 60, cfg.Scheduler.PollIntervalSeconds)
	require.Equal(t, 45, cfg.Scheduler.PublishTimeoutSeconds)
	require.Equal(t, 4, cfg.Scheduler.VideoLeadHours)
	require.Equal(t, "@hourly", cfg.Scheduler.TokenSweepSpec)
	require.Equal(t, "@daily", cfg.Scheduler.QuotaResetSpec)
	require.Equal(t, 10, cfg.Scheduler.PublishesPerMinute)
}

func TestInitScheduler_KeepsExplicitValues(t *testing.T) {
	cfg := &Config{}
	cfg.Scheduler.PollIntervalSeconds = 15
	cfg.Scheduler.TokenSweepSpec = "*/30 * * * *"
	initScheduler(cfg)

	require.Equal(t, 15, cfg.Scheduler.PollIntervalSeconds)
	require.Equal(t, "*/30 * * * *", cfg.Scheduler.TokenSweepSpec)
}
