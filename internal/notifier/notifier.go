package notifier

import "context"

//go:generate mockgen -source=notifier.go -destination=mock_notifier.go -package=notifier

// Notifier delivers envelopes to a single destination.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, envelope *Envelope) error
	Close() error
}
