package replay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/plotwatch/plotwatch/cmd/config"
	"github.com/plotwatch/plotwatch/cmd/util"
	"github.com/plotwatch/plotwatch/internal/handlers"
	"github.com/plotwatch/plotwatch/internal/logs"
	"github.com/plotwatch/plotwatch/internal/metrics"
	"github.com/plotwatch/plotwatch/internal/notifier"
	"github.com/plotwatch/plotwatch/internal/notifier/console"
	"github.com/plotwatch/plotwatch/internal/parsers"
	"github.com/plotwatch/plotwatch/internal/summary"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type Options struct {
	Dispatch bool
	Color    bool
	Batch    int
}

func NewCmd(cfg *config.Config, vip *viper.Viper) *cobra.Command {
	opts := &Options{}
	var noColor bool

	cmd := &cobra.Command{
		Use:   "replay <file>",
		Short: "Run the checks over an existing harvester log",
		Example: `  plotwatch replay ~/.chia/mainnet/log/debug.log.1
  plotwatch replay --dispatch --notifiers-webhook-enable --notifiers-webhook-url https://example.com/hook debug.log`,
		Args: cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return util.ReadConfig(cmd, vip)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := util.Decode(cfg, vip); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			opts.Color = !noColor
			return Replay(cmd.Context(), cfg, args[0], opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringP("config", "c", "", "config file (default plotwatch.yaml)")
	cmd.Flags().BoolVar(&opts.Dispatch, "dispatch", false, "also send events through the enabled notifiers")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "disable colored output")
	cmd.Flags().IntVar(&opts.Batch, "batch", 1000, "lines handled at a time")

	util.Bind(cfg, cmd.Flags(), vip)

	return cmd
}

// Replay runs the enabled checks over the log at path, measuring time by
// the log's own timestamps, and writes every event and a final summary to
// out.
func Replay(ctx context.Context, cfg *config.Config, path string, opts *Options, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	logger, err := cfg.Logger(os.Stderr)
	if err != nil {
		return err
	}

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	parser := parsers.NewHarvesterActivityParser(loc, logger)

	start, err := firstActivity(ctx, path, parser)
	if err != nil {
		return err
	}

	clock := &handlers.LogClock{}
	clock.Set(start)

	accumulator := summary.NewAccumulator(clock.Now)
	checkers, _ := cfg.Checkers.Instantiate(clock.Now, logger)
	metrics := metrics.New(prometheus.NewRegistry())

	handler := handlers.NewHarvesterActivityHandler(&handlers.Config{
		Source:      path,
		Parser:      parser,
		Checkers:    checkers,
		Accumulator: accumulator,
		Clock:       clock,
		Metrics:     metrics,
		Logger:      logger,
	})

	var dispatcher *notifier.Dispatcher
	if opts.Dispatch {
		notifiers, err := cfg.Notifiers.Instantiate()
		if err != nil {
			return err
		}
		dispatcher, err = notifier.NewDispatcher(&cfg.Dispatcher, notifiers, metrics, logger)
		if err != nil {
			return err
		}
		dispatcher.SetClock(clock.Now)
		dispatcher.Start()
	}

	printer := console.NewWithWriter(&console.Config{Color: opts.Color}, out)
	counts := map[notifier.EventPriority]int{}

	err = logs.ReadFile(ctx, path, opts.Batch, func(chunk string) error {
		events := handler.Handle(chunk)
		for _, event := range events {
			counts[event.Priority]++
			if err := printer.Notify(ctx, notifier.NewEnvelope(event, clock.Now())); err != nil {
				return err
			}
		}
		if dispatcher != nil && len(events) > 0 {
			dispatcher.Dispatch(events...)
		}
		return nil
	})

	if dispatcher != nil {
		if stopErr := dispatcher.Stop(); stopErr != nil {
			slog.Warn("error stopping dispatcher", "error", stopErr)
		}
	}
	if err != nil {
		return err
	}

	bold := color.New(color.Bold)
	if opts.Color {
		bold.EnableColor()
	} else {
		bold.DisableColor()
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, bold.Sprintf("%d activity messages, %d events (%d high, %d normal, %d low)",
		handler.Messages(),
		counts[notifier.High]+counts[notifier.Normal]+counts[notifier.Low],
		counts[notifier.High], counts[notifier.Normal], counts[notifier.Low],
	))
	fmt.Fprintln(out, accumulator.Snapshot().String())

	return nil
}

var errFound = errors.New("found")

// firstActivity returns the timestamp of the first harvester activity in
// the log, or the current time when there is none.
func firstActivity(ctx context.Context, path string, parser *parsers.HarvesterActivityParser) (time.Time, error) {
	var first time.Time

	err := logs.ReadFile(ctx, path, 100, func(chunk string) error {
		if msgs := parser.Parse(chunk); len(msgs) > 0 {
			first = msgs[0].Timestamp
			return errFound
		}
		return nil
	})
	if err != nil && !errors.Is(err, errFound) {
		return time.Time{}, err
	}
	if first.IsZero() {
		first = time.Now()
	}

	return first, nil
}
