package checkers

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/plotwatch/plotwatch/internal/notifier"
	"github.com/plotwatch/plotwatch/internal/parsers"
	"github.com/plotwatch/plotwatch/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)}
}

func plots(n int) parsers.HarvesterActivityMessage {
	return parsers.HarvesterActivityMessage{TotalPlotsCount: n}
}

func TestPlotCountMonitorSequences(t *testing.T) {
	for _, tc := range []struct {
		name     string
		counts   []int
		expected []*notifier.EventPriority
		messages []string
	}{
		{
			name:     "first observation",
			counts:   []int{7},
			expected: []*notifier.EventPriority{priority(notifier.Low)},
			messages: []string{"Detected new plot after 0:00:10 - farming with 7 plots."},
		},
		{
			name:     "repeated values",
			counts:   []int{5, 5, 5},
			expected: []*notifier.EventPriority{priority(notifier.Low), nil, nil},
			messages: []string{"Detected new plot after 0:00:10 - farming with 5 plots.", "", ""},
		},
		{
			name:     "increase then decrease",
			counts:   []int{5, 8, 3},
			expected: []*notifier.EventPriority{priority(notifier.Low), priority(notifier.Low), priority(notifier.High)},
			messages: []string{
				"Detected new plot after 0:00:10 - farming with 5 plots.",
				"Detected new plot after 0:00:10 - farming with 8 plots.",
				"Disconnected HDD? The total plot count decreased from 8 to 3.",
			},
		},
		{
			name:     "decrease alerts once",
			counts:   []int{5, 3, 3},
			expected: []*notifier.EventPriority{priority(notifier.Low), priority(notifier.High), nil},
			messages: []string{
				"Detected new plot after 0:00:10 - farming with 5 plots.",
				"Disconnected HDD? The total plot count decreased from 5 to 3.",
				"",
			},
		},
		{
			name:     "recovery to previous peak reports new plots",
			counts:   []int{5, 3, 5},
			expected: []*notifier.EventPriority{priority(notifier.Low), priority(notifier.High), priority(notifier.Low)},
			messages: []string{
				"Detected new plot after 0:00:10 - farming with 5 plots.",
				"Disconnected HDD? The total plot count decreased from 5 to 3.",
				"Detected new plot after 0:00:20 - farming with 5 plots.",
			},
		},
		{
			name:     "further decrease alerts again",
			counts:   []int{9, 6, 4},
			expected: []*notifier.EventPriority{priority(notifier.Low), priority(notifier.High), priority(notifier.High)},
			messages: []string{
				"Detected new plot after 0:00:10 - farming with 9 plots.",
				"Disconnected HDD? The total plot count decreased from 9 to 6.",
				"Disconnected HDD? The total plot count decreased from 6 to 4.",
			},
		},
		{
			name:     "zero plots",
			counts:   []int{0, 0},
			expected: []*notifier.EventPriority{nil, nil},
			messages: []string{"", ""},
		},
		{
			name:     "drop to zero",
			counts:   []int{3, 0},
			expected: []*notifier.EventPriority{priority(notifier.Low), priority(notifier.High)},
			messages: []string{
				"Detected new plot after 0:00:10 - farming with 3 plots.",
				"Disconnected HDD? The total plot count decreased from 3 to 0.",
			},
		},
		{
			name:     "negative count is a decrease",
			counts:   []int{3, -1},
			expected: []*notifier.EventPriority{priority(notifier.Low), priority(notifier.High)},
			messages: []string{
				"Detected new plot after 0:00:10 - farming with 3 plots.",
				"Disconnected HDD? The total plot count decreased from 3 to -1.",
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			clock := newFakeClock()
			m := NewPlotCountMonitor(clock.Now, log.Discard())

			for i, count := range tc.counts {
				clock.Advance(10 * time.Second)

				var event *notifier.Event
				assert.NotPanics(t, func() { event = m.Check(plots(count)) })

				if tc.expected[i] == nil {
					assert.Nil(t, event, "call %d", i)
					continue
				}

				require.NotNil(t, event, "call %d", i)
				assert.Equal(t, *tc.expected[i], event.Priority)
				assert.Equal(t, tc.messages[i], event.Message)
				assert.Equal(t, notifier.User, event.Type)
				assert.Equal(t, notifier.Harvester, event.Service)
				assert.Equal(t, count, m.State().MaxObservedCount)
			}
		})
	}
}

func priority(p notifier.EventPriority) *notifier.EventPriority {
	return &p
}

func TestPlotCountMonitorElapsed(t *testing.T) {
	clock := newFakeClock()
	m := NewPlotCountMonitor(clock.Now, log.Discard())

	// first increase is measured from construction
	clock.Advance(3*time.Hour + 2*time.Minute + 1500*time.Millisecond)
	event := m.Check(plots(10))
	require.NotNil(t, event)
	assert.Equal(t, "Detected new plot after 3:02:01 - farming with 10 plots.", event.Message)

	// readings without an increase do not move the reference point
	clock.Advance(time.Hour)
	assert.Nil(t, m.Check(plots(10)))

	clock.Advance(26 * time.Hour)
	event = m.Check(plots(11))
	require.NotNil(t, event)
	assert.Equal(t, "Detected new plot after 1 day, 3:00:00 - farming with 11 plots.", event.Message)
	assert.Equal(t, clock.Now(), m.State().LastIncreaseTime)
}

func TestPlotCountMonitorClockGoesBackwards(t *testing.T) {
	clock := newFakeClock()
	m := NewPlotCountMonitor(clock.Now, log.Discard())

	clock.Advance(-time.Hour)
	event := m.Check(plots(1))
	require.NotNil(t, event)
	assert.Equal(t, "Detected new plot after 0:00:00 - farming with 1 plots.", event.Message)
}

func TestPlotCountStateTransition(t *testing.T) {
	base := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	for _, tc := range []struct {
		name     string
		state    PlotCountState
		count    int
		now      time.Time
		expected PlotCountState
		message  string
	}{
		{
			name:     "increase",
			state:    PlotCountState{MaxObservedCount: 100, LastIncreaseTime: base},
			count:    101,
			now:      base.Add(45 * time.Minute),
			expected: PlotCountState{MaxObservedCount: 101, LastIncreaseTime: base.Add(45 * time.Minute)},
			message:  "Detected new plot after 0:45:00 - farming with 101 plots.",
		},
		{
			name:     "decrease keeps last increase time",
			state:    PlotCountState{MaxObservedCount: 100, LastIncreaseTime: base},
			count:    60,
			now:      base.Add(time.Minute),
			expected: PlotCountState{MaxObservedCount: 60, LastIncreaseTime: base},
			message:  "Disconnected HDD? The total plot count decreased from 100 to 60.",
		},
		{
			name:     "unchanged",
			state:    PlotCountState{MaxObservedCount: 100, LastIncreaseTime: base},
			count:    100,
			now:      base.Add(time.Minute),
			expected: PlotCountState{MaxObservedCount: 100, LastIncreaseTime: base},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			next, event := tc.state.Transition(tc.count, tc.now)
			assert.Equal(t, tc.expected, next)

			if tc.message == "" {
				assert.Nil(t, event)
				return
			}
			require.NotNil(t, event)
			assert.Equal(t, tc.message, event.Message)
		})
	}
}

func TestPlotCountMonitorFromState(t *testing.T) {
	clock := newFakeClock()
	m := NewPlotCountMonitorFromState(PlotCountState{MaxObservedCount: 50, LastIncreaseTime: clock.Now()}, clock.Now, log.Discard())

	clock.Advance(time.Minute)
	event := m.Check(plots(49))
	require.NotNil(t, event)
	assert.Equal(t, notifier.High, event.Priority)
}

func TestPlotCountMonitorLogs(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	clock := newFakeClock()
	m := NewPlotCountMonitor(clock.Now, logger)
	assert.Contains(t, buf.String(), "enabled check for non-decreasing total plot count")

	m.Check(plots(4))
	m.Check(plots(2))
	assert.Contains(t, buf.String(), "level=WARN msg=\"total plot count decreased\" from=4 to=2")
}
