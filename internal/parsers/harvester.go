package parsers

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// TimestampLayout is the layout of the timestamp prefixing every log line.
const TimestampLayout = "2006-01-02T15:04:05.000"

var harvesterActivity = regexp.MustCompile(
	`([0-9]{4}-[0-9]{2}-[0-9]{2}T[0-9:.]+) harvester (?:src|chia)\.harvester\.harvester\s*:\s+INFO\s+` +
		`([0-9]+) plots were eligible for farming ([0-9a-z.]*) Found ([0-9]+) proofs\. ` +
		`Time: ([0-9.]+) s\. Total ([0-9]+) plots`,
)

// HarvesterActivityMessage is one harvester activity line.
type HarvesterActivityMessage struct {
	Timestamp          time.Time
	EligiblePlotsCount int
	ChallengeHash      string
	FoundProofsCount   int
	SearchTimeSeconds  float64
	TotalPlotsCount    int
}

// HarvesterActivityParser extracts activity messages from raw harvester
// log text.
type HarvesterActivityParser struct {
	location *time.Location
	logger   *slog.Logger
}

// NewHarvesterActivityParser returns a parser that interprets log
// timestamps in loc. A nil loc means local time.
func NewHarvesterActivityParser(loc *time.Location, logger *slog.Logger) *HarvesterActivityParser {
	if loc == nil {
		loc = time.Local
	}
	return &HarvesterActivityParser{location: loc, logger: logger}
}

// Parse returns the activity messages found in logs, in order. Lines that
// are not activity lines are ignored.
func (p *HarvesterActivityParser) Parse(logs string) []HarvesterActivityMessage {
	var messages []HarvesterActivityMessage

	for _, line := range strings.Split(logs, "\n") {
		match := harvesterActivity.FindStringSubmatch(line)
		if match == nil {
			continue
		}

		msg, err := p.parseMatch(match)
		if err != nil {
			p.logger.Warn("failed to parse harvester activity", "line", line, "err", err)
			continue
		}
		messages = append(messages, msg)
	}

	return messages
}

func (p *HarvesterActivityParser) parseMatch(match []string) (HarvesterActivityMessage, error) {
	var msg HarvesterActivityMessage
	var err error

	if msg.Timestamp, err = time.ParseInLocation(TimestampLayout, match[1], p.location); err != nil {
		return msg, err
	}
	if msg.EligiblePlotsCount, err = strconv.Atoi(match[2]); err != nil {
		return msg, err
	}
	msg.ChallengeHash = match[3]
	if msg.FoundProofsCount, err = strconv.Atoi(match[4]); err != nil {
		return msg, err
	}
	if msg.SearchTimeSeconds, err = strconv.ParseFloat(match[5], 64); err != nil {
		return msg, err
	}
	if msg.TotalPlotsCount, err = strconv.Atoi(match[6]); err != nil {
		return msg, err
	}

	return msg, nil
}
