package checkers

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/plotwatch/plotwatch/internal/notifier"
	"github.com/plotwatch/plotwatch/internal/parsers"
	"github.com/plotwatch/plotwatch/internal/util"
)

// PlotCountState is the complete state of a PlotCountMonitor.
type PlotCountState struct {
	MaxObservedCount int
	LastIncreaseTime time.Time
}

// Transition computes the state following an observation of count at time
// now, together with the event the observation warrants, if any.
//
// MaxObservedCount always becomes the latest count, including after a
// decrease. A lower reading therefore alerts once and re-arms at the lower
// value, and climbing back to the previous peak reports new plots.
func (s PlotCountState) Transition(count int, now time.Time) (PlotCountState, *notifier.Event) {
	next := s
	var event *notifier.Event

	if count > s.MaxObservedCount {
		elapsed := now.Sub(s.LastIncreaseTime)
		next.LastIncreaseTime = now
		next.MaxObservedCount = count

		event = &notifier.Event{
			Type:     notifier.User,
			Priority: notifier.Low,
			Service:  notifier.Harvester,
			Message:  fmt.Sprintf("Detected new plot after %s - farming with %d plots.", util.FormatElapsed(elapsed), count),
		}
	}

	if count < s.MaxObservedCount {
		event = &notifier.Event{
			Type:     notifier.User,
			Priority: notifier.High,
			Service:  notifier.Harvester,
			Message:  fmt.Sprintf("Disconnected HDD? The total plot count decreased from %d to %d.", s.MaxObservedCount, count),
		}
	}

	next.MaxObservedCount = count

	return next, event
}

// PlotCountMonitor reports new plots and warns when the total plot count
// drops, which usually means a disk went away.
type PlotCountMonitor struct {
	state  PlotCountState
	clock  Clock
	logger *slog.Logger
}

func NewPlotCountMonitor(clock Clock, logger *slog.Logger) *PlotCountMonitor {
	if clock == nil {
		clock = time.Now
	}
	return NewPlotCountMonitorFromState(PlotCountState{LastIncreaseTime: clock()}, clock, logger)
}

func NewPlotCountMonitorFromState(state PlotCountState, clock Clock, logger *slog.Logger) *PlotCountMonitor {
	if clock == nil {
		clock = time.Now
	}

	logger.Info("enabled check for non-decreasing total plot count")

	return &PlotCountMonitor{
		state:  state,
		clock:  clock,
		logger: logger,
	}
}

func (m *PlotCountMonitor) State() PlotCountState {
	return m.state
}

// Check accepts any integer count. A negative count is treated like any
// other lower reading and raises a decrease alert.
func (m *PlotCountMonitor) Check(msg parsers.HarvesterActivityMessage) *notifier.Event {
	prev := m.state.MaxObservedCount

	next, event := m.state.Transition(msg.TotalPlotsCount, m.clock())
	m.state = next

	switch {
	case msg.TotalPlotsCount > prev:
		m.logger.Info("detected new plots", "count", msg.TotalPlotsCount)
	case msg.TotalPlotsCount < prev:
		m.logger.Warn("total plot count decreased", "from", prev, "to", msg.TotalPlotsCount)
	}

	return event
}
