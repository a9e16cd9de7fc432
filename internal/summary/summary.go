package summary

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/plotwatch/plotwatch/internal/parsers"
)

// Summary aggregates harvester activity over a reporting period.
type Summary struct {
	Since              time.Time `json:"since"`
	Challenges         int       `json:"challenges"`
	EligiblePlots      int       `json:"eligiblePlots"`
	ProofsFound        int       `json:"proofsFound"`
	TotalSearchSeconds float64   `json:"totalSearchSeconds"`
	MaxSearchSeconds   float64   `json:"maxSearchSeconds"`
	TotalPlots         int       `json:"totalPlots"`
}

func (s Summary) AvgSearchSeconds() float64 {
	if s.Challenges == 0 {
		return 0
	}
	return s.TotalSearchSeconds / float64(s.Challenges)
}

func (s Summary) AvgEligiblePlots() float64 {
	if s.Challenges == 0 {
		return 0
	}
	return float64(s.EligiblePlots) / float64(s.Challenges)
}

func (s Summary) String() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Harvester summary since %s:\n", s.Since.Format(time.DateTime))
	fmt.Fprintf(&sb, "- Challenges: %d\n", s.Challenges)
	fmt.Fprintf(&sb, "- Plots passing filter: %d (%.2f per challenge)\n", s.EligiblePlots, s.AvgEligiblePlots())
	fmt.Fprintf(&sb, "- Proofs found: %d\n", s.ProofsFound)
	fmt.Fprintf(&sb, "- Plot search time: avg %.2fs, max %.2fs\n", s.AvgSearchSeconds(), s.MaxSearchSeconds)
	fmt.Fprintf(&sb, "- Total plots: %d", s.TotalPlots)

	return sb.String()
}

// Accumulator collects activity into a Summary. It is safe for concurrent
// use.
type Accumulator struct {
	mu      sync.Mutex
	summary Summary
	clock   func() time.Time
}

func NewAccumulator(clock func() time.Time) *Accumulator {
	if clock == nil {
		clock = time.Now
	}
	return &Accumulator{
		summary: Summary{Since: clock()},
		clock:   clock,
	}
}

func (a *Accumulator) Record(msg parsers.HarvesterActivityMessage) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.summary.Challenges++
	a.summary.EligiblePlots += msg.EligiblePlotsCount
	a.summary.ProofsFound += msg.FoundProofsCount
	a.summary.TotalSearchSeconds += msg.SearchTimeSeconds
	a.summary.MaxSearchSeconds = max(a.summary.MaxSearchSeconds, msg.SearchTimeSeconds)
	a.summary.TotalPlots = msg.TotalPlotsCount
}

func (a *Accumulator) Snapshot() Summary {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.summary
}

// Reset starts a new period and returns the summary of the one that ended.
// The plot total carries over since it is a level, not a count.
func (a *Accumulator) Reset() Summary {
	a.mu.Lock()
	defer a.mu.Unlock()

	prev := a.summary
	a.summary = Summary{Since: a.clock(), TotalPlots: prev.TotalPlots}
	return prev
}
