package util

import (
	"cmp"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

func Assert(cond bool, msg string) {
	ignoreAsserts := viper.GetBool("ignore-asserts")
	if !ignoreAsserts && !cond {
		panic(msg)
	}
}

func OrderedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for key := range m { // nosemgrep: range-over-map
		keys = append(keys, key)
	}

	sort.SliceStable(keys, func(i, j int) bool {
		return keys[i] < keys[j]
	})

	return keys
}

func ParseCron(cronExp string) (cron.Schedule, error) {
	return cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor).Parse(cronExp)
}

func DeferAndLog(f func() error) {
	if err := f(); err != nil {
		slog.Warn("defer failed", "err", err)
	}
}

// FormatElapsed renders d truncated to whole seconds as H:MM:SS, prefixed
// with "N day(s), " when d spans at least one day. Negative durations render
// as zero.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}

	secs := int64(d / time.Second)
	days := secs / 86400
	secs %= 86400

	hms := fmt.Sprintf("%d:%02d:%02d", secs/3600, (secs%3600)/60, secs%60)

	switch days {
	case 0:
		return hms
	case 1:
		return "1 day, " + hms
	default:
		return fmt.Sprintf("%d days, %s", days, hms)
	}
}
