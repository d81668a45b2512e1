package speech

import (
	"context"
	"time"
)

// #region interfaces
// Speaker turns text into audible (or visible) output.
type Speaker interface {
	Say(ctx context.Context, text string) error
}

// Listener returns the next transcript heard from the user.
// Implementations must return promptly when ctx is done.
type Listener interface {
	Listen(ctx context.Context) (string, error)
}

// FreshListener can skip transcripts heard before a given instant.
type FreshListener interface {
	Listener
	ListenAfter(ctx context.Context, since time.Time) (string, error)
}

// ListenAfter returns the next transcript heard at or after since. Listeners
// that cannot tell when a transcript arrived fall back to Listen.
func ListenAfter(ctx context.Context, l Listener, since time.Time) (string, error) {
	if f, ok := l.(FreshListener); ok {
		return f.ListenAfter(ctx, since)
	}
	return l.Listen(ctx)
}

// #endregion interfaces
