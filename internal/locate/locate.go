// Package locate waits for document nodes to appear. Every lookup is
// bounded by a timeout; a lookup that never matches fails with a
// *TimeoutError, including FindAll with zero matches.
package locate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/TobiSchelling/InsightCrawler/internal/engine"
)

// DefaultInterval is the delay between two queries while waiting.
const DefaultInterval = 100 * time.Millisecond

// ErrTimeout is the sentinel every *TimeoutError unwraps to.
var ErrTimeout = errors.New("locate: timed out")

// TimeoutError reports a location expression that matched nothing within
// its wait budget.
type TimeoutError struct {
	Path string
	Wait time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("locate: no node matched %q within %s", e.Path, e.Wait)
}

func (e *TimeoutError) Unwrap() error { return ErrTimeout }

// IsTimeout reports whether err is a locator timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// Locator polls a Queryer until nodes appear.
type Locator struct {
	Interval time.Duration
}

// New returns a Locator polling at DefaultInterval.
func New() *Locator {
	return &Locator{Interval: DefaultInterval}
}

// FindOne waits for the first node matching path under root.
func (l *Locator) FindOne(ctx context.Context, root engine.Queryer, path string, timeout time.Duration) (engine.Node, error) {
	nodes, err := l.FindAll(ctx, root, path, timeout)
	if err != nil {
		return nil, err
	}
	return nodes[0], nil
}

// FindAll waits until at least one node matches path under root and
// returns all matches in document order. Query errors from the engine are
// returned as-is and are not retried.
func (l *Locator) FindAll(ctx context.Context, root engine.Queryer, path string, timeout time.Duration) ([]engine.Node, error) {
	interval := l.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	deadline := time.Now().Add(timeout)

	for {
		nodes, err := root.Query(path)
		if err != nil {
			return nil, fmt.Errorf("locate: query %q: %w", path, err)
		}
		if len(nodes) > 0 {
			return nodes, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, &TimeoutError{Path: path, Wait: timeout}
		}

		wait := min(interval, remaining)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// Text waits for the node at path and returns its rendered text.
func (l *Locator) Text(ctx context.Context, root engine.Queryer, path string, timeout time.Duration) (string, error) {
	n, err := l.FindOne(ctx, root, path, timeout)
	if err != nil {
		return "", err
	}
	text, err := n.Text()
	if err != nil {
		return "", fmt.Errorf("locate: read text of %q: %w", path, err)
	}
	return text, nil
}
