package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/plotwatch/plotwatch/internal/api"
	"github.com/plotwatch/plotwatch/internal/checkers"
	"github.com/plotwatch/plotwatch/internal/logs"
	"github.com/plotwatch/plotwatch/internal/notifier"
	"github.com/plotwatch/plotwatch/internal/notifier/console"
	"github.com/plotwatch/plotwatch/internal/notifier/nats"
	"github.com/plotwatch/plotwatch/internal/notifier/pubsub"
	"github.com/plotwatch/plotwatch/internal/notifier/sqs"
	"github.com/plotwatch/plotwatch/internal/notifier/webhook"
	"github.com/plotwatch/plotwatch/internal/summary"
	"github.com/plotwatch/plotwatch/internal/util"
	"github.com/plotwatch/plotwatch/pkg/log"
)

type Config struct {
	Log         logs.Config     `flag:"log"`
	Checkers    Checkers        `flag:"checkers"`
	Dispatcher  notifier.Config `flag:"dispatcher"`
	Notifiers   Notifiers       `flag:"notifiers"`
	Summary     summary.Config  `flag:"summary"`
	API         api.Config      `flag:"api"`
	StatusSize  int             `flag:"status-size" desc:"number of recent events kept for the status api" default:"100" validate:"gt=0"`
	MetricsAddr string          `flag:"metrics-addr" desc:"prometheus metrics server address, empty disables it" default:":9090"`
	LogLevel    string          `flag:"log-level" desc:"can be one of: debug, info, warn, error, off" default:"info" validate:"oneof=debug info warn error off"`
	LogFormat   string          `flag:"log-format" desc:"can be one of: text, json" default:"text" validate:"oneof=text json"`
}

type Checkers struct {
	PlotCount    Check             `flag:"plot-count"`
	FoundProofs  Check             `flag:"found-proofs"`
	SlowSearch   SlowSearchCheck   `flag:"slow-search"`
	ChallengeGap ChallengeGapCheck `flag:"challenge-gap"`
}

type Check struct {
	Enabled bool `flag:"enable" desc:"enable check" default:"true"`
}

type SlowSearchCheck struct {
	Enabled   bool          `flag:"enable" desc:"enable check" default:"true"`
	Threshold time.Duration `flag:"threshold" desc:"plot lookups slower than this raise an event" default:"5s" validate:"gt=0"`
}

type ChallengeGapCheck struct {
	Enabled   bool          `flag:"enable" desc:"enable check" default:"true"`
	Threshold time.Duration `flag:"threshold" desc:"gaps between challenges longer than this raise an event" default:"5m" validate:"gt=0"`
}

type Notifiers struct {
	Console EnabledNotifier[console.Config]  `flag:"console"`
	Webhook DisabledNotifier[webhook.Config] `flag:"webhook"`
	SQS     DisabledNotifier[sqs.Config]     `flag:"sqs"`
	PubSub  DisabledNotifier[pubsub.Config]  `flag:"pubsub"`
	NATS    DisabledNotifier[nats.Config]    `flag:"nats"`
}

type EnabledNotifier[T any] struct {
	Enabled bool `flag:"enable" desc:"enable notifier" default:"true"`
	Config  T    `flag:"-" validate:"-"`
}

type DisabledNotifier[T any] struct {
	Enabled bool `flag:"enable" desc:"enable notifier" default:"false"`
	Config  T    `flag:"-" validate:"-"`
}

// Validate checks the config, including the settings of every enabled
// notifier.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("cron", validCron); err != nil {
		return err
	}

	errs := []error{format(v.Struct(c))}

	n := &c.Notifiers
	if n.Webhook.Enabled {
		errs = append(errs, format(v.Struct(&n.Webhook.Config)))
	}
	if n.SQS.Enabled {
		errs = append(errs, format(v.Struct(&n.SQS.Config)))
	}
	if n.PubSub.Enabled {
		errs = append(errs, format(v.Struct(&n.PubSub.Config)))
	}
	if n.NATS.Enabled {
		errs = append(errs, format(v.Struct(&n.NATS.Config)))
	}

	return errors.Join(errs...)
}

// Logger builds the logger described by the log level and format.
func (c *Config) Logger(w io.Writer) (*slog.Logger, error) {
	return log.New(w, c.LogLevel, c.LogFormat)
}

// Location returns the timezone log timestamps are read in.
func (c *Config) Location() (*time.Location, error) {
	if c.Log.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Log.Timezone)
}

// Instantiate returns the enabled checkers in evaluation order, and the plot
// count monitor when it is among them.
func (c *Checkers) Instantiate(clock checkers.Clock, logger *slog.Logger) ([]checkers.HarvesterConditionChecker, *checkers.PlotCountMonitor) {
	var (
		all     []checkers.HarvesterConditionChecker
		monitor *checkers.PlotCountMonitor
	)

	if c.PlotCount.Enabled {
		monitor = checkers.NewPlotCountMonitor(clock, logger)
		all = append(all, monitor)
	}
	if c.FoundProofs.Enabled {
		all = append(all, checkers.NewFoundProofs(logger))
	}
	if c.SlowSearch.Enabled {
		all = append(all, checkers.NewSlowPlotSearch(c.SlowSearch.Threshold, logger))
	}
	if c.ChallengeGap.Enabled {
		all = append(all, checkers.NewChallengeGap(c.ChallengeGap.Threshold, logger))
	}

	return all, monitor
}

// Instantiate creates the enabled notifiers. Notifiers created before a
// failure are closed.
func (n *Notifiers) Instantiate() ([]notifier.Notifier, error) {
	var all []notifier.Notifier

	add := func(enabled bool, name string, create func() (notifier.Notifier, error)) error {
		if !enabled {
			return nil
		}
		nt, err := create()
		if err != nil {
			return fmt.Errorf("%s notifier: %w", name, err)
		}
		all = append(all, nt)
		return nil
	}

	err := errors.Join(
		add(n.Console.Enabled, "console", func() (notifier.Notifier, error) {
			return console.New(&n.Console.Config), nil
		}),
		add(n.Webhook.Enabled, "webhook", func() (notifier.Notifier, error) {
			return webhook.New(&n.Webhook.Config)
		}),
		add(n.SQS.Enabled, "sqs", func() (notifier.Notifier, error) {
			return sqs.New(&n.SQS.Config)
		}),
		add(n.PubSub.Enabled, "pubsub", func() (notifier.Notifier, error) {
			return pubsub.New(&n.PubSub.Config)
		}),
		add(n.NATS.Enabled, "nats", func() (notifier.Notifier, error) {
			return nats.New(&n.NATS.Config)
		}),
	)
	if err != nil {
		for _, nt := range all {
			_ = nt.Close()
		}
		return nil, err
	}

	return all, nil
}

func validCron(fl validator.FieldLevel) bool {
	_, err := util.ParseCron(fl.Field().String())
	return err == nil
}

func format(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, len(verrs))
	for i, e := range verrs {
		field := strings.TrimPrefix(e.Namespace(), "Config.")
		if e.Param() != "" {
			msgs[i] = fmt.Sprintf("%s must satisfy %s=%s", field, e.Tag(), e.Param())
		} else {
			msgs[i] = fmt.Sprintf("%s must satisfy %s", field, e.Tag())
		}
	}

	return errors.New(strings.Join(msgs, "; "))
}
