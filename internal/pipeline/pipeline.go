package pipeline

import (
	"context"
	"log/slog"
	"strings"

	"github.com/plotwatch/plotwatch/internal/checkers"
	"github.com/plotwatch/plotwatch/internal/handlers"
	"github.com/plotwatch/plotwatch/internal/notifier"
	"github.com/plotwatch/plotwatch/internal/status"
)

type Dispatcher interface {
	Dispatch(events ...notifier.Event) int
}

type Config struct {
	Source     string
	Chunks     <-chan string
	Handler    *handlers.HarvesterActivityHandler
	Dispatcher Dispatcher
	Store      *status.Store

	// Monitor, when set, contributes the plot count state to snapshots.
	Monitor *checkers.PlotCountMonitor
	Logger  *slog.Logger
}

// Pipeline moves log text from a consumer through the activity handler to
// the dispatcher. All checker state is touched from the goroutine calling
// Run only.
type Pipeline struct {
	source     string
	chunks     <-chan string
	handler    *handlers.HarvesterActivityHandler
	dispatcher Dispatcher
	store      *status.Store
	monitor    *checkers.PlotCountMonitor
	logger     *slog.Logger

	lines int64
}

func New(config *Config) *Pipeline {
	return &Pipeline{
		source:     config.Source,
		chunks:     config.Chunks,
		handler:    config.Handler,
		dispatcher: config.Dispatcher,
		store:      config.Store,
		monitor:    config.Monitor,
		logger:     config.Logger,
	}
}

func (p *Pipeline) String() string {
	return "pipeline:" + p.source
}

// Run processes chunks until ctx is done or the chunk channel is closed.
func (p *Pipeline) Run(ctx context.Context) error {
	p.publish()

	for {
		select {
		case <-ctx.Done():
			return nil
		case chunk, ok := <-p.chunks:
			if !ok {
				p.logger.Info("log source closed", "source", p.source)
				return nil
			}
			p.Process(chunk)
		}
	}
}

// Process handles a single chunk of log text and returns the number of
// events accepted by the dispatcher.
func (p *Pipeline) Process(chunk string) int {
	if chunk == "" {
		return 0
	}
	p.lines += int64(strings.Count(chunk, "\n") + 1)

	events := p.handler.Handle(chunk)
	accepted := 0
	if len(events) > 0 {
		accepted = p.dispatcher.Dispatch(events...)
		if accepted < len(events) {
			p.logger.Debug("events dropped by dispatcher", "source", p.source, "raised", len(events), "accepted", accepted)
		}
	}

	p.publish()
	return accepted
}

func (p *Pipeline) publish() {
	if p.store == nil {
		return
	}

	snapshot := status.Snapshot{
		Source:   p.source,
		Lines:    p.lines,
		Messages: p.handler.Messages(),
	}
	if last, ok := p.handler.Last(); ok {
		snapshot.LastActivity = last.Timestamp
		snapshot.TotalPlots = last.TotalPlotsCount
	}
	if p.monitor != nil {
		snapshot.LastIncreaseTime = p.monitor.State().LastIncreaseTime
	}

	p.store.Publish(snapshot)
}
