// Package checkers holds the harvester condition checkers. A checker
// inspects one activity message at a time and decides whether it warrants
// a notification. Checkers are stateful and must be driven from a single
// goroutine.
package checkers

import (
	"time"

	"github.com/plotwatch/plotwatch/internal/notifier"
	"github.com/plotwatch/plotwatch/internal/parsers"
)

type HarvesterConditionChecker interface {
	Check(msg parsers.HarvesterActivityMessage) *notifier.Event
}

// Clock returns the current time.
type Clock func() time.Time
