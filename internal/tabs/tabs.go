// Package tabs opens one isolated browsing context per article and
// restores the main context afterwards.
package tabs

import (
	"context"
	"errors"
	"fmt"

	"github.com/TobiSchelling/InsightCrawler/internal/engine"
)

// Controller switches the engine between the main context and article
// contexts. Only one article context is open at a time.
type Controller struct {
	eng  engine.Engine
	main engine.Handle
}

// New records the currently focused context as the main context.
func New(eng engine.Engine) (*Controller, error) {
	main, err := eng.CurrentContext()
	if err != nil {
		return nil, fmt.Errorf("tabs: main context: %w", err)
	}
	return &Controller{eng: eng, main: main}, nil
}

// Main returns the main context handle.
func (c *Controller) Main() engine.Handle {
	return c.main
}

// OpenIsolated opens link in a new context and focuses it.
func (c *Controller) OpenIsolated(ctx context.Context, link string) (engine.Handle, error) {
	h, err := c.eng.OpenContext(ctx, link)
	if err != nil {
		return "", fmt.Errorf("tabs: open %s: %w", link, err)
	}
	return h, nil
}

// CloseAndRestore closes the focused context and focuses the main one.
func (c *Controller) CloseAndRestore() error {
	if err := c.eng.CloseActiveContext(); err != nil {
		return fmt.Errorf("tabs: close context: %w", err)
	}
	if err := c.eng.SwitchFocus(c.main); err != nil {
		return fmt.Errorf("tabs: restore main context: %w", err)
	}
	return nil
}

// With opens link, runs fn against the new context and always closes it
// and restores the main context, whatever fn returns.
func (c *Controller) With(ctx context.Context, link string, fn func(doc engine.Queryer) error) (err error) {
	if _, err := c.OpenIsolated(ctx, link); err != nil {
		return err
	}
	defer func() {
		if cerr := c.CloseAndRestore(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()
	return fn(c.eng.Document())
}
