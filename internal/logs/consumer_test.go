package logs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/plotwatch/plotwatch/internal/metrics"
	"github.com/plotwatch/plotwatch/pkg/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func appendTo(t *testing.T, path string, text string) {
	t.Helper()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(text)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

// collect reads chunks until the joined text contains want.
func collect(t *testing.T, c *FileConsumer, want string) string {
	t.Helper()

	var got []string
	timeout := time.After(5 * time.Second)
	for {
		select {
		case chunk, ok := <-c.Chunks():
			require.True(t, ok, "chunks closed early, got %q", got)
			got = append(got, chunk)
			if strings.Contains(strings.Join(got, "\n"), want) {
				return strings.Join(got, "\n")
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %q, got %q", want, got)
		}
	}
}

func start(t *testing.T, config *Config) (*FileConsumer, context.CancelFunc, chan error) {
	t.Helper()

	c, err := NewFileConsumer(config, metrics.New(prometheus.NewRegistry()), log.Discard())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	select {
	case <-c.ready:
	case err := <-done:
		t.Fatalf("consumer exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not start")
	}

	return c, cancel, done
}

func stop(t *testing.T, cancel context.CancelFunc, done chan error) {
	t.Helper()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not stop")
	}
}

func TestFollowSkipsExistingContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug.log")
	appendTo(t, path, "old line\n")

	c, cancel, done := start(t, &Config{Path: path, PollInterval: 20 * time.Millisecond})
	defer stop(t, cancel, done)

	appendTo(t, path, "new line 1\nnew line 2\n")

	got := collect(t, c, "new line 2")
	assert.NotContains(t, got, "old line")
	assert.Contains(t, got, "new line 1")
}

func TestFollowFromStart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug.log")
	appendTo(t, path, "old line\n")

	c, cancel, done := start(t, &Config{Path: path, FromStart: true, PollInterval: 20 * time.Millisecond})
	defer stop(t, cancel, done)

	assert.Equal(t, "old line", collect(t, c, "old line"))
}

func TestFollowHoldsPartialLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug.log")
	appendTo(t, path, "")

	c, cancel, done := start(t, &Config{Path: path, PollInterval: 20 * time.Millisecond})
	defer stop(t, cancel, done)

	appendTo(t, path, "first half")
	time.Sleep(100 * time.Millisecond)
	appendTo(t, path, " second half\n")

	assert.Equal(t, "first half second half", collect(t, c, "second half"))
}

func TestFollowTruncation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug.log")
	appendTo(t, path, "")

	c, cancel, done := start(t, &Config{Path: path, PollInterval: 20 * time.Millisecond})
	defer stop(t, cancel, done)

	appendTo(t, path, "a fairly long line before truncation\n")
	collect(t, c, "before truncation")

	require.NoError(t, os.Truncate(path, 0))
	time.Sleep(100 * time.Millisecond)
	appendTo(t, path, "after\n")

	assert.Contains(t, collect(t, c, "after"), "after")
}

func TestFollowRotation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "debug.log")
	appendTo(t, path, "")

	c, cancel, done := start(t, &Config{Path: path, PollInterval: 20 * time.Millisecond})
	defer stop(t, cancel, done)

	appendTo(t, path, "before rotation\n")
	collect(t, c, "before rotation")

	require.NoError(t, os.Rename(path, filepath.Join(dir, "debug.log.1")))
	appendTo(t, path, "after rotation\n")

	assert.Contains(t, collect(t, c, "after rotation"), "after rotation")
}

func TestFollowMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug.log")

	c, cancel, done := start(t, &Config{Path: path, PollInterval: 20 * time.Millisecond})
	defer stop(t, cancel, done)

	appendTo(t, path, "created later\n")
	assert.Contains(t, collect(t, c, "created later"), "created later")
}

func TestRunClosesChunks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug.log")
	appendTo(t, path, "")

	c, cancel, done := start(t, &Config{Path: path, PollInterval: 20 * time.Millisecond})
	stop(t, cancel, done)

	_, ok := <-c.Chunks()
	assert.False(t, ok)
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug.log")
	appendTo(t, path, "1\n2\n3\n4\n5")

	var chunks []string
	err := ReadFile(context.Background(), path, 2, func(chunk string) error {
		chunks = append(chunks, chunk)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"1\n2", "3\n4", "5"}, chunks)
}

func TestReadFileMissing(t *testing.T) {
	err := ReadFile(context.Background(), filepath.Join(t.TempDir(), "nope.log"), 10, func(string) error { return nil })
	assert.Error(t, err)
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	p, err := ExpandHome("~/.chia/mainnet/log/debug.log")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".chia/mainnet/log/debug.log"), p)

	p, err = ExpandHome("/var/log/debug.log")
	require.NoError(t, err)
	assert.Equal(t, "/var/log/debug.log", p)
}
