package summary

import (
	"log/slog"
	"time"

	"github.com/plotwatch/plotwatch/internal/notifier"
	"github.com/plotwatch/plotwatch/internal/util"
	"github.com/robfig/cron/v3"
)

type Config struct {
	Enabled  bool   `flag:"enable" desc:"send a periodic harvester summary" default:"true"`
	Schedule string `flag:"schedule" desc:"cron expression for the summary" default:"0 21 * * *" validate:"cron"`
}

type Dispatcher interface {
	Dispatch(events ...notifier.Event) int
}

// Reporter periodically dispatches the accumulated summary and starts a
// new period.
type Reporter struct {
	accumulator *Accumulator
	dispatcher  Dispatcher
	schedule    cron.Schedule
	cron        *cron.Cron
	logger      *slog.Logger
}

func NewReporter(config *Config, accumulator *Accumulator, dispatcher Dispatcher, logger *slog.Logger) (*Reporter, error) {
	schedule, err := util.ParseCron(config.Schedule)
	if err != nil {
		return nil, err
	}

	r := &Reporter{
		accumulator: accumulator,
		dispatcher:  dispatcher,
		schedule:    schedule,
		cron:        cron.New(),
		logger:      logger,
	}
	r.cron.Schedule(schedule, cron.FuncJob(r.Report))

	return r, nil
}

func (r *Reporter) Start() {
	r.logger.Info("starting summary reporter", "next", r.schedule.Next(time.Now()))
	r.cron.Start()
}

func (r *Reporter) Stop() {
	<-r.cron.Stop().Done()
}

// Report dispatches the current summary and resets the accumulator.
func (r *Reporter) Report() {
	s := r.accumulator.Reset()

	r.dispatcher.Dispatch(notifier.Event{
		Type:     notifier.DailyStats,
		Priority: notifier.Low,
		Service:  notifier.Daily,
		Message:  s.String(),
	})

	r.logger.Info("dispatched summary", "challenges", s.Challenges, "proofs", s.ProofsFound)
}
