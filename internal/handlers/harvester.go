package handlers

import (
	"log/slog"
	"time"

	"github.com/plotwatch/plotwatch/internal/checkers"
	"github.com/plotwatch/plotwatch/internal/metrics"
	"github.com/plotwatch/plotwatch/internal/notifier"
	"github.com/plotwatch/plotwatch/internal/parsers"
	"github.com/plotwatch/plotwatch/internal/summary"
)

// LogClock reports the timestamp of the log line being handled. Checkers
// given its Now method measure time as the log saw it, which keeps replays
// of old logs meaningful.
type LogClock struct {
	now time.Time
}

func (c *LogClock) Now() time.Time {
	return c.now
}

func (c *LogClock) Set(t time.Time) {
	c.now = t
}

// HarvesterActivityHandler parses harvester activity out of raw log text
// and runs every checker over each message in order. It is not safe for
// concurrent use.
type HarvesterActivityHandler struct {
	source      string
	parser      *parsers.HarvesterActivityParser
	checkers    []checkers.HarvesterConditionChecker
	accumulator *summary.Accumulator
	clock       *LogClock
	metrics     *metrics.Metrics
	logger      *slog.Logger

	messages int64
	last     *parsers.HarvesterActivityMessage
}

type Config struct {
	Source      string
	Parser      *parsers.HarvesterActivityParser
	Checkers    []checkers.HarvesterConditionChecker
	Accumulator *summary.Accumulator
	Clock       *LogClock
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
}

func NewHarvesterActivityHandler(config *Config) *HarvesterActivityHandler {
	return &HarvesterActivityHandler{
		source:      config.Source,
		parser:      config.Parser,
		checkers:    config.Checkers,
		accumulator: config.Accumulator,
		clock:       config.Clock,
		metrics:     config.Metrics,
		logger:      config.Logger,
	}
}

// Handle returns the events raised by the activity found in logs.
func (h *HarvesterActivityHandler) Handle(logs string) []notifier.Event {
	var events []notifier.Event

	for _, msg := range h.parser.Parse(logs) {
		h.messages++
		h.last = &msg

		if h.clock != nil {
			h.clock.Set(msg.Timestamp)
		}
		if h.accumulator != nil {
			h.accumulator.Record(msg)
		}

		h.metrics.ActivityTotal.WithLabelValues(h.source).Inc()
		h.metrics.HarvesterPlots.WithLabelValues(h.source).Set(float64(msg.TotalPlotsCount))
		h.metrics.HarvesterSearchTime.WithLabelValues(h.source).Observe(msg.SearchTimeSeconds)

		for _, checker := range h.checkers {
			if event := checker.Check(msg); event != nil {
				h.metrics.EventsTotal.WithLabelValues(event.Type.String(), event.Service.String(), event.Priority.String()).Inc()
				events = append(events, *event)
			}
		}
	}

	if len(events) > 0 {
		h.logger.Debug("harvester activity raised events", "source", h.source, "events", len(events))
	}

	return events
}

// Messages returns the number of activity messages handled so far.
func (h *HarvesterActivityHandler) Messages() int64 {
	return h.messages
}

// Last returns the most recent activity message, if any.
func (h *HarvesterActivityHandler) Last() (parsers.HarvesterActivityMessage, bool) {
	if h.last == nil {
		return parsers.HarvesterActivityMessage{}, false
	}
	return *h.last, true
}
