package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/plotwatch/plotwatch/internal/metrics"
	"golang.org/x/time/rate"
)

type Config struct {
	Size        int           `flag:"size" desc:"submission buffered channel size" default:"100" validate:"gt=0"`
	Workers     int           `flag:"workers" desc:"number of workers" default:"2" validate:"gt=0"`
	Timeout     time.Duration `flag:"timeout" desc:"per notifier delivery timeout" default:"30s" validate:"gt=0"`
	MinPriority string        `flag:"min-priority" desc:"lowest priority delivered, can be one of: low, normal, high" default:"low" validate:"oneof=low normal high"`
	DedupWindow time.Duration `flag:"dedup-window" desc:"suppress identical events seen within this window, 0 disables" default:"0s" validate:"gte=0"`
	Rate        float64       `flag:"rate" desc:"events per minute let through, 0 disables rate limiting" default:"0" validate:"gte=0"`
	Burst       int           `flag:"burst" desc:"events let through at once when rate limiting" default:"10" validate:"gt=0"`
}

// Dispatcher filters events and fans them out to every notifier from a
// pool of workers. Dispatch is safe for concurrent use.
type Dispatcher struct {
	mu sync.Mutex

	config      *Config
	minPriority EventPriority
	notifiers   []Notifier
	limiter     *rate.Limiter
	seen        map[Event]time.Time
	stopped     bool

	sq      chan *Envelope
	workers []*worker
	wg      sync.WaitGroup

	clock    func() time.Time
	observer func(*Envelope)
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

type worker struct {
	id         int
	sq         <-chan *Envelope
	dispatcher *Dispatcher
}

func NewDispatcher(config *Config, notifiers []Notifier, metrics *metrics.Metrics, logger *slog.Logger) (*Dispatcher, error) {
	minPriority, err := ParsePriority(config.MinPriority)
	if err != nil {
		return nil, err
	}
	if config.Size <= 0 || config.Workers <= 0 {
		return nil, fmt.Errorf("dispatcher size and workers must be positive")
	}
	if config.Rate > 0 && config.Burst <= 0 {
		return nil, fmt.Errorf("dispatcher burst must be positive when rate limiting")
	}

	d := &Dispatcher{
		config:      config,
		minPriority: minPriority,
		notifiers:   notifiers,
		seen:        map[Event]time.Time{},
		sq:          make(chan *Envelope, config.Size),
		clock:       time.Now,
		metrics:     metrics,
		logger:      logger,
	}

	if config.Rate > 0 {
		d.limiter = rate.NewLimiter(rate.Limit(config.Rate/60), config.Burst)
	}

	d.workers = make([]*worker, config.Workers)
	for i := 0; i < config.Workers; i++ {
		d.workers[i] = &worker{id: i, sq: d.sq, dispatcher: d}
	}

	return d, nil
}

// SetClock replaces the time source used for deduplication, rate limiting
// and envelope timestamps.
func (d *Dispatcher) SetClock(clock func() time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clock = clock
}

// SetObserver registers a function called with every envelope once it has
// been handed to all notifiers. It is called from worker goroutines.
func (d *Dispatcher) SetObserver(observer func(*Envelope)) {
	d.observer = observer
}

func (d *Dispatcher) String() string {
	return "dispatcher"
}

func (d *Dispatcher) Start() {
	for _, w := range d.workers {
		d.wg.Add(1)
		go w.Start()
	}
	d.logger.Info("dispatcher started", "workers", len(d.workers), "notifiers", len(d.notifiers))
}

// Stop waits for queued envelopes to be delivered and closes all notifiers.
func (d *Dispatcher) Stop() error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return nil
	}
	d.stopped = true
	close(d.sq)
	d.mu.Unlock()

	d.wg.Wait()

	var errs []error
	for _, n := range d.notifiers {
		if err := n.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s notifier: %w", n.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Dispatch enqueues the events that pass the priority, deduplication and
// rate filters and returns how many were accepted.
func (d *Dispatcher) Dispatch(events ...Event) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	accepted := 0
	now := d.clock()
	d.prune(now)

	for _, event := range events {
		if d.stopped {
			d.drop("stopped", event)
			continue
		}
		if event.Priority < d.minPriority {
			d.drop("priority", event)
			continue
		}
		if d.config.DedupWindow > 0 {
			if last, ok := d.seen[event]; ok && now.Sub(last) < d.config.DedupWindow {
				d.drop("duplicate", event)
				continue
			}
		}
		if d.limiter != nil && event.Priority < High && !d.limiter.AllowN(now, 1) {
			d.drop("rate", event)
			continue
		}

		select {
		case d.sq <- NewEnvelope(event, now):
			if d.config.DedupWindow > 0 {
				d.seen[event] = now
			}
			accepted++
		default:
			d.drop("full", event)
		}
	}

	return accepted
}

func (d *Dispatcher) prune(now time.Time) {
	for event, last := range d.seen { // nosemgrep: range-over-map
		if now.Sub(last) >= d.config.DedupWindow {
			delete(d.seen, event)
		}
	}
}

func (d *Dispatcher) drop(reason string, event Event) {
	d.metrics.DispatchDropped.WithLabelValues(reason).Inc()
	d.logger.Debug("event dropped", "reason", reason, "event", event.String())
}

func (w *worker) String() string {
	return "dispatcher"
}

func (w *worker) Start() {
	defer w.dispatcher.wg.Done()

	counter := w.dispatcher.metrics.DispatchInFlight.WithLabelValues(w.String(), strconv.Itoa(w.id))
	w.dispatcher.metrics.DispatchWorker.WithLabelValues(w.String()).Inc()
	defer w.dispatcher.metrics.DispatchWorker.WithLabelValues(w.String()).Dec()

	for {
		envelope, ok := <-w.sq
		if !ok {
			return
		}

		counter.Inc()
		w.deliver(envelope)
		counter.Dec()
	}
}

func (w *worker) deliver(envelope *Envelope) {
	d := w.dispatcher

	for _, n := range d.notifiers {
		ctx, cancel := context.WithTimeout(context.Background(), d.config.Timeout)
		err := n.Notify(ctx, envelope)
		cancel()

		if err != nil {
			d.metrics.NotificationsTotal.WithLabelValues(n.Name(), "failure").Inc()
			d.logger.Warn("failed to deliver event", "notifier", n.Name(), "id", envelope.Id, "err", err)
			continue
		}
		d.metrics.NotificationsTotal.WithLabelValues(n.Name(), "success").Inc()
	}

	if d.observer != nil {
		d.observer(envelope)
	}
}
