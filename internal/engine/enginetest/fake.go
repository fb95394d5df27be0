// Package enginetest provides an in-memory engine.Engine for tests.
//
// Pages are keyed by URL and describe which nodes each location expression
// returns. Paths that are not described never match, which lets tests
// provoke locator timeouts without a real browser.
package enginetest

import (
	"context"
	"errors"
	"fmt"

	"github.com/TobiSchelling/InsightCrawler/internal/engine"
)

// ErrNoFocus is returned when the document is queried with no focused
// context.
var ErrNoFocus = errors.New("enginetest: no focused context")

// Node is a fake document node.
type Node struct {
	Text     string
	Attrs    map[string]string
	Children map[string][]*Node
	// Delay is the number of empty query results returned for a child path
	// before its nodes become visible.
	Delay map[string]int
}

// Page describes the document served for one URL.
type Page struct {
	Nodes map[string][]*Node
	// Delay is the number of empty query results returned for a path before
	// its nodes become visible.
	Delay map[string]int
	// Revealed nodes are appended to the matching path once RevealAfter
	// End presses have happened in the context.
	Revealed    map[string][]*Node
	RevealAfter int
}

// Link builds an anchor node pointing at href.
func Link(href string) *Node {
	return &Node{Attrs: map[string]string{"href": href}}
}

// Text builds a leaf node holding text.
func Text(s string) *Node {
	return &Node{Text: s}
}

type pollKey struct {
	node *Node
	path string
}

type tab struct {
	handle engine.Handle
	url    string
	page   *Page
	keyEnd int
	polls  map[pollKey]int
}

func newTab(h engine.Handle, url string, page *Page) *tab {
	return &tab{handle: h, url: url, page: page, polls: make(map[pollKey]int)}
}

// Fake implements engine.Engine. It is not safe for concurrent use.
type Fake struct {
	Pages map[string]*Page
	// NavigateErr and OpenErr make Navigate/OpenContext fail for a URL.
	NavigateErr map[string]error
	OpenErr     map[string]error

	// Counters observed by tests.
	Opened      int
	Closed      int
	KeyEnds     int
	Navigations []string
	OpenedURLs  []string
	ShutDown    bool

	tabs   map[engine.Handle]*tab
	active engine.Handle
	next   int
}

// New returns a Fake with a single focused main context on about:blank.
func New(pages map[string]*Page) *Fake {
	f := &Fake{Pages: pages, tabs: make(map[engine.Handle]*tab)}
	h := f.newHandle()
	f.tabs[h] = newTab(h, "about:blank", f.page("about:blank"))
	f.active = h
	return f
}

func (f *Fake) newHandle() engine.Handle {
	f.next++
	return engine.Handle(fmt.Sprintf("tab-%d", f.next))
}

func (f *Fake) page(url string) *Page {
	if p, ok := f.Pages[url]; ok {
		return p
	}
	return &Page{}
}

func (f *Fake) focused() (*tab, error) {
	t, ok := f.tabs[f.active]
	if !ok {
		return nil, ErrNoFocus
	}
	return t, nil
}

// Navigate implements engine.Engine.
func (f *Fake) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := f.NavigateErr[url]; err != nil {
		return err
	}
	t, err := f.focused()
	if err != nil {
		return err
	}
	f.Navigations = append(f.Navigations, url)
	f.tabs[t.handle] = newTab(t.handle, url, f.page(url))
	return nil
}

// CurrentContext implements engine.Engine.
func (f *Fake) CurrentContext() (engine.Handle, error) {
	if _, err := f.focused(); err != nil {
		return "", err
	}
	return f.active, nil
}

// OpenContext implements engine.Engine.
func (f *Fake) OpenContext(ctx context.Context, url string) (engine.Handle, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := f.OpenErr[url]; err != nil {
		return "", err
	}
	h := f.newHandle()
	f.tabs[h] = newTab(h, url, f.page(url))
	f.active = h
	f.Opened++
	f.OpenedURLs = append(f.OpenedURLs, url)
	return h, nil
}

// SwitchFocus implements engine.Engine.
func (f *Fake) SwitchFocus(h engine.Handle) error {
	if _, ok := f.tabs[h]; !ok {
		return fmt.Errorf("enginetest: unknown context %q", h)
	}
	f.active = h
	return nil
}

// CloseActiveContext implements engine.Engine.
func (f *Fake) CloseActiveContext() error {
	if _, err := f.focused(); err != nil {
		return err
	}
	delete(f.tabs, f.active)
	f.active = ""
	f.Closed++
	return nil
}

// OpenContexts returns the number of contexts still open.
func (f *Fake) OpenContexts() int {
	return len(f.tabs)
}

// Active returns the focused context, empty when none.
func (f *Fake) Active() engine.Handle {
	return f.active
}

// Document implements engine.Engine.
func (f *Fake) Document() engine.Queryer {
	return document{f: f}
}

// SimulateKeyEnd implements engine.Engine.
func (f *Fake) SimulateKeyEnd(tag string) error {
	t, err := f.focused()
	if err != nil {
		return err
	}
	t.keyEnd++
	f.KeyEnds++
	return nil
}

// Shutdown implements engine.Engine.
func (f *Fake) Shutdown() error {
	f.ShutDown = true
	return nil
}

type document struct {
	f *Fake
}

func (d document) Query(path string) ([]engine.Node, error) {
	t, err := d.f.focused()
	if err != nil {
		return nil, err
	}
	key := pollKey{path: path}
	t.polls[key]++
	if t.polls[key] <= t.page.Delay[path] {
		return nil, nil
	}
	nodes := t.page.Nodes[path]
	if t.page.RevealAfter > 0 && t.keyEnd >= t.page.RevealAfter {
		nodes = append(append([]*Node(nil), nodes...), t.page.Revealed[path]...)
	}
	return wrap(t, nodes), nil
}

type node struct {
	tab *tab
	n   *Node
}

func wrap(t *tab, nodes []*Node) []engine.Node {
	out := make([]engine.Node, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, node{tab: t, n: n})
	}
	return out
}

func (n node) Query(path string) ([]engine.Node, error) {
	key := pollKey{node: n.n, path: path}
	n.tab.polls[key]++
	if n.tab.polls[key] <= n.n.Delay[path] {
		return nil, nil
	}
	return wrap(n.tab, n.n.Children[path]), nil
}

func (n node) Text() (string, error) {
	return n.n.Text, nil
}

func (n node) Attribute(name string) (string, error) {
	return n.n.Attrs[name], nil
}
