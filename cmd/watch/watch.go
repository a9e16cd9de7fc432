package watch

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/plotwatch/plotwatch/cmd/config"
	"github.com/plotwatch/plotwatch/cmd/util"
	"github.com/plotwatch/plotwatch/internal/api"
	"github.com/plotwatch/plotwatch/internal/handlers"
	"github.com/plotwatch/plotwatch/internal/logs"
	"github.com/plotwatch/plotwatch/internal/metrics"
	"github.com/plotwatch/plotwatch/internal/notifier"
	"github.com/plotwatch/plotwatch/internal/parsers"
	"github.com/plotwatch/plotwatch/internal/pipeline"
	"github.com/plotwatch/plotwatch/internal/status"
	"github.com/plotwatch/plotwatch/internal/summary"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func NewCmd(cfg *config.Config, vip *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the harvester log and send notifications",
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

			return Watch(cfg)
		},
	}

	// bind config file flag
	cmd.Flags().StringP("config", "c", "", "config file (default plotwatch.yaml)")

	// bind config
	util.Bind(cfg, cmd.Flags(), vip)

	// bind other flags
	cmd.Flags().Bool("ignore-asserts", false, "ignore-asserts mode")
	_ = viper.BindPFlag("ignore-asserts", cmd.Flags().Lookup("ignore-asserts"))

	return cmd
}

func Watch(cfg *config.Config) error {
	// logger
	logger, err := cfg.Logger(os.Stdout)
	if err != nil {
		slog.Error("failed to create logger", "error", err)
		return err
	}
	slog.SetDefault(logger)

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	// metrics
	reg := prometheus.NewRegistry()
	metrics := metrics.New(reg)

	// notifiers
	notifiers, err := cfg.Notifiers.Instantiate()
	if err != nil {
		return err
	}
	if len(notifiers) == 0 {
		logger.Warn("no notifiers enabled, events are only logged")
	}

	dispatcher, err := notifier.NewDispatcher(&cfg.Dispatcher, notifiers, metrics, logger)
	if err != nil {
		return err
	}

	store := status.NewStore(cfg.StatusSize)
	dispatcher.SetObserver(store.Record)

	// log consumer
	consumer, err := logs.NewFileConsumer(&cfg.Log, metrics, logger)
	if err != nil {
		return err
	}

	// checkers
	accumulator := summary.NewAccumulator(time.Now)
	checkers, monitor := cfg.Checkers.Instantiate(time.Now, logger)

	handler := handlers.NewHarvesterActivityHandler(&handlers.Config{
		Source:      consumer.String(),
		Parser:      parsers.NewHarvesterActivityParser(loc, logger),
		Checkers:    checkers,
		Accumulator: accumulator,
		Metrics:     metrics,
		Logger:      logger,
	})

	p := pipeline.New(&pipeline.Config{
		Source:     consumer.String(),
		Chunks:     consumer.Chunks(),
		Handler:    handler,
		Dispatcher: dispatcher,
		Store:      store,
		Monitor:    monitor,
		Logger:     logger,
	})

	// summary reporter
	var reporter *summary.Reporter
	if cfg.Summary.Enabled {
		reporter, err = summary.NewReporter(&cfg.Summary, accumulator, dispatcher, logger)
		if err != nil {
			return err
		}
	}

	// status api
	var server *api.Server
	if cfg.API.Enable {
		server, err = api.New(&cfg.API, store, accumulator, logger)
		if err != nil {
			return err
		}
	}

	// start
	errs := make(chan error, 1)

	dispatcher.Start()
	if reporter != nil {
		reporter.Start()
	}
	if server != nil {
		go server.Start(errs)
	}

	// metrics server
	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		metricsServer = &http.Server{Addr: cfg.MetricsAddr, Handler: mux}

		go func() {
			for {
				slog.Info("starting metrics server", "addr", metricsServer.Addr)
				err := metricsServer.ListenAndServe()
				if errors.Is(err, http.ErrServerClosed) {
					return
				}

				slog.Error("restarting metrics server...", "error", err)
				time.Sleep(5 * time.Second)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// listen for shutdown signal
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sig)

		// halt until we get a shutdown signal or an error
		// occurs, whichever happens first
		select {
		case s := <-sig:
			slog.Info("shutdown signal received, shutting down", "signal", s)
		case err := <-errs:
			slog.Error("status api error received, shutting down", "error", err)
		case <-ctx.Done():
		}

		cancel()
	}()

	consumerErr := make(chan error, 1)
	go func() {
		consumerErr <- consumer.Run(ctx)
	}()

	// control loop
	if err := p.Run(ctx); err != nil {
		slog.Error("pipeline failed", "error", err)
	}
	cancel()

	runErr := <-consumerErr
	if runErr != nil {
		slog.Error("log consumer failed", "error", runErr)
	}

	// stop in reverse order
	if server != nil {
		if err := server.Stop(); err != nil {
			slog.Warn("error stopping status api", "error", err)
		}
	}
	if reporter != nil {
		reporter.Stop()
	}
	if err := dispatcher.Stop(); err != nil {
		slog.Warn("error stopping dispatcher", "error", err)
	}
	if metricsServer != nil {
		if err := metricsServer.Close(); err != nil {
			slog.Warn("error stopping metrics server", "error", err)
		}
	}

	return runErr
}
