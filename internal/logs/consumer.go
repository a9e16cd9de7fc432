package logs

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/plotwatch/plotwatch/internal/metrics"
	"github.com/plotwatch/plotwatch/internal/util"
)

type Config struct {
	Path         string        `flag:"path" desc:"harvester debug log to follow" default:"~/.chia/mainnet/log/debug.log" validate:"required"`
	FromStart    bool          `flag:"from-start" desc:"read the existing log before following it" default:"false"`
	PollInterval time.Duration `flag:"poll-interval" desc:"interval at which the log is checked without filesystem events" default:"1s" validate:"gt=0"`
	Timezone     string        `flag:"timezone" desc:"timezone of log timestamps, empty for local time" default:"" validate:"omitempty,timezone"`
}

// FileConsumer follows a log file across truncation and rotation and emits
// newly appended complete lines in chunks.
type FileConsumer struct {
	path         string
	fromStart    bool
	pollInterval time.Duration

	file    *os.File
	offset  int64
	partial []byte

	out     chan string
	ready   chan struct{}
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewFileConsumer(config *Config, metrics *metrics.Metrics, logger *slog.Logger) (*FileConsumer, error) {
	path, err := ExpandHome(config.Path)
	if err != nil {
		return nil, err
	}

	pollInterval := config.PollInterval
	if pollInterval <= 0 {
		pollInterval = time.Second
	}

	return &FileConsumer{
		path:         filepath.Clean(path),
		fromStart:    config.FromStart,
		pollInterval: pollInterval,
		out:          make(chan string, 16),
		ready:        make(chan struct{}),
		metrics:      metrics,
		logger:       logger,
	}, nil
}

func (c *FileConsumer) String() string {
	return c.path
}

// Chunks returns the channel new log text is delivered on. It is closed
// when Run returns.
func (c *FileConsumer) Chunks() <-chan string {
	return c.out
}

// Run follows the file until ctx is done.
func (c *FileConsumer) Run(ctx context.Context) error {
	defer close(c.out)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(c.path)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(c.path), err)
	}

	if err := c.open(!c.fromStart); err != nil {
		c.logger.Warn("log file not available yet, waiting for it", "path", c.path, "err", err)
	}
	defer c.close()

	c.logger.Info("following log file", "path", c.path, "fromStart", c.fromStart)

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	close(c.ready)
	c.read(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return errors.New("watcher event channel closed")
			}
			if filepath.Clean(event.Name) != c.path {
				continue
			}
			c.handleEvent(ctx, event)

		case err, ok := <-watcher.Errors:
			if !ok {
				return errors.New("watcher error channel closed")
			}
			c.logger.Warn("log watcher error", "path", c.path, "err", err)

		case <-ticker.C:
			c.checkRotation(ctx)
			c.read(ctx)
		}
	}
}

func (c *FileConsumer) handleEvent(ctx context.Context, event fsnotify.Event) {
	switch {
	case event.Has(fsnotify.Create):
		c.logger.Info("log file created", "path", c.path)
		c.checkRotation(ctx)
		c.read(ctx)
	case event.Has(fsnotify.Write):
		c.read(ctx)
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		c.logger.Info("log file rotated", "path", c.path, "op", event.Op.String())
		c.read(ctx)
		c.close()
	}
}

// checkRotation reopens the path when it no longer refers to the open file.
func (c *FileConsumer) checkRotation(ctx context.Context) {
	info, err := os.Stat(c.path)
	if err != nil {
		return
	}

	if c.file != nil {
		current, err := c.file.Stat()
		if err == nil && os.SameFile(info, current) {
			return
		}
		c.read(ctx)
		c.close()
	}

	if err := c.open(false); err != nil {
		c.logger.Warn("failed to open log file", "path", c.path, "err", err)
	}
}

func (c *FileConsumer) open(atEnd bool) error {
	file, err := os.Open(c.path)
	if err != nil {
		return err
	}

	var offset int64
	if atEnd {
		if offset, err = file.Seek(0, io.SeekEnd); err != nil {
			_ = file.Close()
			return err
		}
	}

	c.file = file
	c.offset = offset
	c.partial = nil
	return nil
}

func (c *FileConsumer) close() {
	if c.file != nil {
		_ = c.file.Close()
		c.file = nil
	}
}

// read emits everything appended since the last read.
func (c *FileConsumer) read(ctx context.Context) {
	if c.file == nil {
		return
	}

	info, err := c.file.Stat()
	if err != nil {
		c.logger.Warn("failed to stat log file", "path", c.path, "err", err)
		return
	}

	if info.Size() < c.offset {
		c.logger.Info("log file truncated", "path", c.path)
		c.offset = 0
		c.partial = nil
	}

	if info.Size() == c.offset {
		return
	}

	buf := make([]byte, info.Size()-c.offset)
	n, err := c.file.ReadAt(buf, c.offset)
	if err != nil && !errors.Is(err, io.EOF) {
		c.logger.Warn("failed to read log file", "path", c.path, "err", err)
		return
	}
	c.offset += int64(n)

	data := append(c.partial, buf[:n]...)
	end := bytes.LastIndexByte(data, '\n')
	if end < 0 {
		c.partial = data
		return
	}

	c.partial = append([]byte(nil), data[end+1:]...)
	c.emit(ctx, string(data[:end]))
}

func (c *FileConsumer) emit(ctx context.Context, chunk string) {
	c.metrics.LinesTotal.WithLabelValues(c.path).Add(float64(strings.Count(chunk, "\n") + 1))

	select {
	case c.out <- chunk:
	case <-ctx.Done():
	}
}

// ReadFile calls fn with the contents of the file at path in chunks of at
// most batch lines.
func ReadFile(ctx context.Context, path string, batch int, fn func(chunk string) error) error {
	path, err := ExpandHome(path)
	if err != nil {
		return err
	}

	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer util.DeferAndLog(file.Close)

	if batch <= 0 {
		batch = 1000
	}

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	lines := make([]string, 0, batch)
	flush := func() error {
		if len(lines) == 0 {
			return nil
		}
		err := fn(strings.Join(lines, "\n"))
		lines = lines[:0]
		return err
	}

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		lines = append(lines, scanner.Text())
		if len(lines) == batch {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	return flush()
}

// ExpandHome replaces a leading ~ with the current user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
