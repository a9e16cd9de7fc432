package console

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/plotwatch/plotwatch/internal/notifier"
)

type Config struct {
	Color bool `flag:"color" desc:"colorize console output" default:"true"`
}

// Console writes one line per envelope, colored by priority.
type Console struct {
	mu     sync.Mutex
	w      io.Writer
	colors map[notifier.EventPriority]func(a ...any) string
	gray   func(a ...any) string
}

func New(config *Config) *Console {
	return NewWithWriter(config, os.Stdout)
}

func NewWithWriter(config *Config, w io.Writer) *Console {
	low := color.New(color.FgGreen)
	normal := color.New(color.FgYellow)
	high := color.New(color.FgRed, color.Bold)
	gray := color.New(color.FgHiBlack)

	for _, c := range []*color.Color{low, normal, high, gray} {
		if config.Color {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}

	return &Console{
		w: w,
		colors: map[notifier.EventPriority]func(a ...any) string{
			notifier.Low:    low.SprintFunc(),
			notifier.Normal: normal.SprintFunc(),
			notifier.High:   high.SprintFunc(),
		},
		gray: gray.SprintFunc(),
	}
}

func (c *Console) Name() string {
	return "console"
}

func (c *Console) Notify(_ context.Context, envelope *notifier.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := fmt.Fprintln(c.w, Format(envelope, c.colors[envelope.Event.Priority], c.gray))
	return err
}

func (c *Console) Close() error {
	return nil
}

// Format renders an envelope as a single line using the given color funcs.
func Format(envelope *notifier.Envelope, priority func(a ...any) string, gray func(a ...any) string) string {
	return fmt.Sprintf("%s %s %s %s",
		gray(envelope.Time.Format(time.DateTime)),
		priority(fmt.Sprintf("%-6s", envelope.Event.Priority)),
		gray(fmt.Sprintf("[%s]", envelope.Event.Service)),
		envelope.Event.Message,
	)
}
