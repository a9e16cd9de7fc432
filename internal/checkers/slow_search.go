package checkers

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/plotwatch/plotwatch/internal/notifier"
	"github.com/plotwatch/plotwatch/internal/parsers"
)

// SlowPlotSearch warns when looking up plots for a challenge takes longer
// than the threshold. Slow lookups risk missing the reward window.
type SlowPlotSearch struct {
	threshold time.Duration
	logger    *slog.Logger
}

func NewSlowPlotSearch(threshold time.Duration, logger *slog.Logger) *SlowPlotSearch {
	logger.Info("enabled check for slow plot search", "threshold", threshold)
	return &SlowPlotSearch{threshold: threshold, logger: logger}
}

func (c *SlowPlotSearch) Check(msg parsers.HarvesterActivityMessage) *notifier.Event {
	if msg.SearchTimeSeconds <= c.threshold.Seconds() {
		return nil
	}

	c.logger.Warn("slow plot search", "seconds", msg.SearchTimeSeconds, "threshold", c.threshold)

	return &notifier.Event{
		Type:     notifier.User,
		Priority: notifier.Normal,
		Service:  notifier.Harvester,
		Message:  fmt.Sprintf("Seeking plots took too long: %.2f seconds!", msg.SearchTimeSeconds),
	}
}
