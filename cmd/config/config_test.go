package config

import (
	"testing"
	"time"

	"github.com/plotwatch/plotwatch/internal/checkers"
	"github.com/plotwatch/plotwatch/internal/logs"
	"github.com/plotwatch/plotwatch/internal/notifier"
	"github.com/plotwatch/plotwatch/internal/summary"
	"github.com/plotwatch/plotwatch/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func valid() *Config {
	cfg := &Config{
		Log: logs.Config{Path: "debug.log", PollInterval: time.Second},
		Checkers: Checkers{
			PlotCount:    Check{Enabled: true},
			FoundProofs:  Check{Enabled: true},
			SlowSearch:   SlowSearchCheck{Enabled: true, Threshold: 5 * time.Second},
			ChallengeGap: ChallengeGapCheck{Enabled: true, Threshold: 5 * time.Minute},
		},
		Dispatcher: notifier.Config{Size: 100, Workers: 2, Timeout: 30 * time.Second, MinPriority: "low", Burst: 10},
		Summary:    summary.Config{Enabled: true, Schedule: "0 21 * * *"},
		StatusSize: 100,
		LogLevel:   "info",
		LogFormat:  "text",
	}
	cfg.Notifiers.Console.Enabled = true
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		edit func(*Config)
		err  string
	}{
		{name: "valid", edit: func(*Config) {}},
		{name: "missing log path", edit: func(c *Config) { c.Log.Path = "" }, err: "Log.Path"},
		{name: "bad timezone", edit: func(c *Config) { c.Log.Timezone = "Mars/Olympus" }, err: "Log.Timezone"},
		{name: "bad log level", edit: func(c *Config) { c.LogLevel = "verbose" }, err: "LogLevel"},
		{name: "bad log format", edit: func(c *Config) { c.LogFormat = "xml" }, err: "LogFormat"},
		{name: "bad min priority", edit: func(c *Config) { c.Dispatcher.MinPriority = "urgent" }, err: "Dispatcher.MinPriority"},
		{name: "no workers", edit: func(c *Config) { c.Dispatcher.Workers = 0 }, err: "Dispatcher.Workers"},
		{name: "negative rate", edit: func(c *Config) { c.Dispatcher.Rate = -1 }, err: "Dispatcher.Rate"},
		{name: "zero burst", edit: func(c *Config) { c.Dispatcher.Rate = 60; c.Dispatcher.Burst = 0 }, err: "Dispatcher.Burst"},
		{name: "zero threshold", edit: func(c *Config) { c.Checkers.SlowSearch.Threshold = 0 }, err: "Checkers.SlowSearch.Threshold"},
		{name: "bad schedule", edit: func(c *Config) { c.Summary.Schedule = "every day" }, err: "Summary.Schedule"},
		{name: "status size", edit: func(c *Config) { c.StatusSize = 0 }, err: "StatusSize"},
		{name: "bad auth provider", edit: func(c *Config) { c.API.Auth.Provider = "oauth" }, err: "API.Auth.Provider"},
		{name: "disabled webhook is not checked", edit: func(c *Config) { c.Notifiers.Webhook.Config.Url = "not a url" }},
		{
			name: "enabled webhook needs a url",
			edit: func(c *Config) {
				c.Notifiers.Webhook.Enabled = true
				c.Notifiers.Webhook.Config.Url = "not a url"
			},
			err: "Url",
		},
		{
			name: "enabled sqs needs a queue",
			edit: func(c *Config) { c.Notifiers.SQS.Enabled = true },
			err:  "QueueURL",
		},
		{
			name: "enabled pubsub needs a topic",
			edit: func(c *Config) {
				c.Notifiers.PubSub.Enabled = true
				c.Notifiers.PubSub.Config.ProjectID = "farm"
			},
			err: "Topic",
		},
		{
			name: "enabled nats needs a url",
			edit: func(c *Config) {
				c.Notifiers.NATS.Enabled = true
				c.Notifiers.NATS.Config.Subject = "plotwatch.events"
			},
			err: "URL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.edit(cfg)

			err := cfg.Validate()
			if tt.err == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.err)
		})
	}
}

func TestLocation(t *testing.T) {
	cfg := valid()

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	cfg.Log.Timezone = "UTC"
	loc, err = cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestCheckersInstantiate(t *testing.T) {
	now := func() time.Time { return time.Date(2021, 4, 10, 21, 0, 0, 0, time.UTC) }

	cfg := valid()
	all, monitor := cfg.Checkers.Instantiate(now, log.Discard())
	require.Len(t, all, 4)
	require.NotNil(t, monitor)
	assert.Same(t, monitor, all[0].(*checkers.PlotCountMonitor))
	assert.IsType(t, &checkers.FoundProofs{}, all[1])
	assert.IsType(t, &checkers.SlowPlotSearch{}, all[2])
	assert.IsType(t, &checkers.ChallengeGap{}, all[3])

	cfg.Checkers.PlotCount.Enabled = false
	cfg.Checkers.ChallengeGap.Enabled = false
	all, monitor = cfg.Checkers.Instantiate(now, log.Discard())
	assert.Len(t, all, 2)
	assert.Nil(t, monitor)
}

func TestNotifiersInstantiate(t *testing.T) {
	cfg := valid()

	all, err := cfg.Notifiers.Instantiate()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "console", all[0].Name())

	cfg.Notifiers.Console.Enabled = false
	cfg.Notifiers.Webhook.Enabled = true
	cfg.Notifiers.Webhook.Config.Url = "http://localhost:9999/hook"
	all, err = cfg.Notifiers.Instantiate()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "webhook", all[0].Name())

	cfg.Notifiers.PubSub.Enabled = true
	_, err = cfg.Notifiers.Instantiate()
	assert.ErrorContains(t, err, "pubsub notifier")
}
