package checkers

import (
	"fmt"
	"log/slog"

	"github.com/plotwatch/plotwatch/internal/notifier"
	"github.com/plotwatch/plotwatch/internal/parsers"
)

// FoundProofs reports every challenge for which the harvester found proofs.
type FoundProofs struct {
	logger *slog.Logger
}

func NewFoundProofs(logger *slog.Logger) *FoundProofs {
	logger.Info("enabled check for found proofs")
	return &FoundProofs{logger: logger}
}

func (c *FoundProofs) Check(msg parsers.HarvesterActivityMessage) *notifier.Event {
	if msg.FoundProofsCount <= 0 {
		return nil
	}

	c.logger.Info("found proofs", "count", msg.FoundProofsCount, "challenge", msg.ChallengeHash)

	return &notifier.Event{
		Type:     notifier.User,
		Priority: notifier.Low,
		Service:  notifier.Farmer,
		Message:  fmt.Sprintf("Found %d proof(s)!", msg.FoundProofsCount),
	}
}
