package checkers

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/plotwatch/plotwatch/internal/notifier"
	"github.com/plotwatch/plotwatch/internal/parsers"
	"github.com/plotwatch/plotwatch/internal/util"
)

// ChallengeGap warns when consecutive activity lines are further apart
// than the threshold, judged by their log timestamps.
type ChallengeGap struct {
	threshold time.Duration
	last      time.Time
	logger    *slog.Logger
}

func NewChallengeGap(threshold time.Duration, logger *slog.Logger) *ChallengeGap {
	logger.Info("enabled check for gaps between challenges", "threshold", threshold)
	return &ChallengeGap{threshold: threshold, logger: logger}
}

func (c *ChallengeGap) Check(msg parsers.HarvesterActivityMessage) *notifier.Event {
	last := c.last
	c.last = msg.Timestamp

	if last.IsZero() {
		return nil
	}

	gap := msg.Timestamp.Sub(last)
	if gap <= c.threshold {
		return nil
	}

	c.logger.Warn("harvester skipped challenges", "gap", gap)

	return &notifier.Event{
		Type:     notifier.User,
		Priority: notifier.Normal,
		Service:  notifier.Harvester,
		Message:  fmt.Sprintf("Harvester did not participate in any challenge for %s. Network issues?", util.FormatElapsed(gap)),
	}
}
