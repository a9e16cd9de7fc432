package notifier

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type EventType int

const (
	User EventType = iota
	DailyStats
)

func (t EventType) String() string {
	switch t {
	case User:
		return "user"
	case DailyStats:
		return "daily_stats"
	default:
		panic(fmt.Sprintf("invalid event type: %d", t))
	}
}

func (t EventType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *EventType) UnmarshalText(text []byte) error {
	switch string(text) {
	case "user":
		*t = User
	case "daily_stats":
		*t = DailyStats
	default:
		return fmt.Errorf("unrecognized event type: %s", text)
	}
	return nil
}

// EventPriority is ordered, a higher value is more urgent.
type EventPriority int

const (
	Low EventPriority = iota
	Normal
	High
)

func (p EventPriority) String() string {
	switch p {
	case Low:
		return "low"
	case Normal:
		return "normal"
	case High:
		return "high"
	default:
		panic(fmt.Sprintf("invalid event priority: %d", p))
	}
}

func (p EventPriority) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *EventPriority) UnmarshalText(text []byte) error {
	priority, err := ParsePriority(string(text))
	if err != nil {
		return err
	}
	*p = priority
	return nil
}

func ParsePriority(s string) (EventPriority, error) {
	switch s {
	case "low":
		return Low, nil
	case "normal":
		return Normal, nil
	case "high":
		return High, nil
	default:
		return 0, fmt.Errorf("unrecognized event priority: %s", s)
	}
}

type EventService int

const (
	Harvester EventService = iota
	Farmer
	Daily
)

func (s EventService) String() string {
	switch s {
	case Harvester:
		return "harvester"
	case Farmer:
		return "farmer"
	case Daily:
		return "daily"
	default:
		panic(fmt.Sprintf("invalid event service: %d", s))
	}
}

func (s EventService) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *EventService) UnmarshalText(text []byte) error {
	switch string(text) {
	case "harvester":
		*s = Harvester
	case "farmer":
		*s = Farmer
	case "daily":
		*s = Daily
	default:
		return fmt.Errorf("unrecognized event service: %s", text)
	}
	return nil
}

// Event is a notification produced by a condition checker.
type Event struct {
	Type     EventType     `json:"type"`
	Priority EventPriority `json:"priority"`
	Service  EventService  `json:"service"`
	Message  string        `json:"message"`
}

func (e *Event) String() string {
	return fmt.Sprintf("Event(type=%s, priority=%s, service=%s, message=%q)", e.Type, e.Priority, e.Service, e.Message)
}

// Envelope is the unit handed to notifiers, it identifies a single
// dispatch of an event.
type Envelope struct {
	Id    string    `json:"id"`
	Time  time.Time `json:"time"`
	Event Event     `json:"event"`
}

func NewEnvelope(event Event, now time.Time) *Envelope {
	return &Envelope{
		Id:    uuid.NewString(),
		Time:  now,
		Event: event,
	}
}
