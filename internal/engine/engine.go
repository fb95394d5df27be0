// Package engine defines the browser capabilities the scraper consumes.
// The scraper never renders or fetches pages itself; it drives an Engine.
package engine

import "context"

// Handle identifies a browsing context (a tab).
type Handle string

// Queryer runs a location expression and returns the matching nodes
// immediately, without waiting. An empty result is not an error.
type Queryer interface {
	Query(path string) ([]Node, error)
}

// Node is a located document node. Queries on a node are scoped to it.
type Node interface {
	Queryer
	Text() (string, error)
	Attribute(name string) (string, error)
}

// Engine is a browser holding one focused context at a time.
type Engine interface {
	// Navigate loads url in the focused context.
	Navigate(ctx context.Context, url string) error
	// CurrentContext returns the focused context.
	CurrentContext() (Handle, error)
	// OpenContext creates a context targeted at url and focuses it.
	OpenContext(ctx context.Context, url string) (Handle, error)
	// SwitchFocus focuses an existing context.
	SwitchFocus(h Handle) error
	// CloseActiveContext closes the focused context. Nothing is focused
	// until the next SwitchFocus.
	CloseActiveContext() error
	// Document is the whole document of the focused context.
	Document() Queryer
	// SimulateKeyEnd presses End on the first element named tag so the
	// page loads more content.
	SimulateKeyEnd(tag string) error
	Shutdown() error
}
