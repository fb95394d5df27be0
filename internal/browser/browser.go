// Package browser drives Chrome through Rod and exposes it as an
// engine.Engine: one tab per browsing context, one focused tab at a time.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/TobiSchelling/InsightCrawler/internal/engine"
)

// ErrNoActiveTab is returned by operations that need a focused tab after
// the focused tab was closed and before focus was switched.
var ErrNoActiveTab = errors.New("browser: no focused tab")

// Config configures the browser.
type Config struct {
	// RemoteURL is the WebSocket URL of an external Chrome instance.
	// Empty = launch a local Chrome via launcher.
	RemoteURL string

	// Bin overrides the Chrome binary used by the launcher.
	Bin string

	Headless bool

	// Stealth opens tabs through go-rod/stealth.
	Stealth bool

	// ResourceBlocking lists resource types to block (images, fonts, media, stylesheets).
	ResourceBlocking []string

	// NavigationTimeout bounds each navigation. Default: 30s.
	NavigationTimeout time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.NavigationTimeout <= 0 {
		c.NavigationTimeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

type tab struct {
	page   *rod.Page
	router *rod.HijackRouter
}

// Engine is a Rod-backed engine.Engine. It is not safe for concurrent use.
type Engine struct {
	cfg     Config
	browser *rod.Browser
	lnch    *launcher.Launcher
	tabs    map[engine.Handle]*tab
	active  engine.Handle
}

// New creates an Engine. Call Start to launch Chrome.
func New(cfg Config) *Engine {
	cfg.defaults()
	return &Engine{cfg: cfg, tabs: make(map[engine.Handle]*tab)}
}

// Start launches Chrome (or connects to a remote instance) and opens the
// main tab at startURL. A locally launched Chrome already has a blank tab;
// it becomes the main tab instead of leaving it open beside a new one.
func (e *Engine) Start(ctx context.Context, startURL string) error {
	b, err := e.launch()
	if err != nil {
		return err
	}
	e.browser = b

	if page := e.initialPage(); page != nil {
		if _, err := e.adopt(ctx, page, startURL); err != nil {
			e.Shutdown()
			return fmt.Errorf("browser: open main tab: %w", err)
		}
		return nil
	}

	if _, err := e.OpenContext(ctx, startURL); err != nil {
		e.Shutdown()
		return fmt.Errorf("browser: open main tab: %w", err)
	}
	return nil
}

// initialPage returns the blank tab Chrome starts with, or nil. Tabs of a
// remote browser are never taken over.
func (e *Engine) initialPage() *rod.Page {
	if e.lnch == nil || e.browser == nil {
		return nil
	}
	pages, err := e.browser.Pages()
	if err != nil || len(pages) == 0 {
		if err != nil {
			e.cfg.Logger.Debug("browser: list initial tabs", "error", err)
		}
		return nil
	}
	page := pages.First()
	if e.cfg.Stealth {
		if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
			e.cfg.Logger.Debug("browser: stealth on initial tab", "error", err)
			return nil
		}
	}
	return page
}

func (e *Engine) launch() (*rod.Browser, error) {
	log := e.cfg.Logger

	var wsURL string
	if e.cfg.RemoteURL != "" {
		wsURL = e.cfg.RemoteURL
		log.Info("browser: connecting to remote", "url", wsURL)
	} else {
		l := launcher.New().Headless(e.cfg.Headless)
		if e.cfg.Bin != "" {
			l = l.Bin(e.cfg.Bin)
		}
		l = l.Set("disable-blink-features", "AutomationControlled")

		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		e.lnch = l
		log.Info("browser: launched local chrome", "url", wsURL, "headless", e.cfg.Headless)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	return b, nil
}

func (e *Engine) focused() (*tab, error) {
	t, ok := e.tabs[e.active]
	if !ok {
		return nil, ErrNoActiveTab
	}
	return t, nil
}

func (e *Engine) navigate(ctx context.Context, page *rod.Page, url string) error {
	navCtx, cancel := context.WithTimeout(ctx, e.cfg.NavigationTimeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(url); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		e.cfg.Logger.Warn("browser: wait load timeout", "url", url, "error", err)
	}
	return nil
}

// Navigate implements engine.Engine.
func (e *Engine) Navigate(ctx context.Context, url string) error {
	t, err := e.focused()
	if err != nil {
		return err
	}
	return e.navigate(ctx, t.page, url)
}

// CurrentContext implements engine.Engine.
func (e *Engine) CurrentContext() (engine.Handle, error) {
	if _, err := e.focused(); err != nil {
		return "", err
	}
	return e.active, nil
}

// OpenContext implements engine.Engine.
func (e *Engine) OpenContext(ctx context.Context, url string) (engine.Handle, error) {
	if e.browser == nil {
		return "", fmt.Errorf("browser: not started")
	}

	var page *rod.Page
	var err error
	if e.cfg.Stealth {
		page, err = stealth.Page(e.browser)
	} else {
		page, err = e.browser.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return "", fmt.Errorf("browser: create tab: %w", err)
	}

	return e.adopt(ctx, page, url)
}

// adopt tracks page as a tab, navigates it to url and focuses it.
func (e *Engine) adopt(ctx context.Context, page *rod.Page, url string) (engine.Handle, error) {
	t := &tab{page: page}
	if len(e.cfg.ResourceBlocking) > 0 {
		t.router = applyResourceBlocking(page, e.cfg.ResourceBlocking)
	}

	if err := e.navigate(ctx, page, url); err != nil {
		t.close()
		return "", err
	}

	h := engine.Handle(page.TargetID)
	e.tabs[h] = t
	e.active = h
	return h, nil
}

// SwitchFocus implements engine.Engine.
func (e *Engine) SwitchFocus(h engine.Handle) error {
	t, ok := e.tabs[h]
	if !ok {
		return fmt.Errorf("browser: unknown tab %s", h)
	}
	if _, err := t.page.Activate(); err != nil {
		return fmt.Errorf("browser: activate tab %s: %w", h, err)
	}
	e.active = h
	return nil
}

// CloseActiveContext implements engine.Engine.
func (e *Engine) CloseActiveContext() error {
	t, err := e.focused()
	if err != nil {
		return err
	}
	delete(e.tabs, e.active)
	e.active = ""
	return t.close()
}

// Document implements engine.Engine.
func (e *Engine) Document() engine.Queryer {
	t, err := e.focused()
	if err != nil {
		return document{}
	}
	return document{page: t.page}
}

// SimulateKeyEnd implements engine.Engine.
func (e *Engine) SimulateKeyEnd(tag string) error {
	t, err := e.focused()
	if err != nil {
		return err
	}
	els, err := t.page.Elements(tag)
	if err != nil {
		return fmt.Errorf("browser: find %s: %w", tag, err)
	}
	if len(els) > 0 {
		if err := els[0].Focus(); err != nil {
			e.cfg.Logger.Debug("browser: focus failed", "tag", tag, "error", err)
		}
	}
	if err := t.page.Keyboard.Type(input.End); err != nil {
		return fmt.Errorf("browser: press End: %w", err)
	}
	return nil
}

// Shutdown implements engine.Engine.
func (e *Engine) Shutdown() error {
	var errs []error
	for h, t := range e.tabs {
		if err := t.close(); err != nil {
			errs = append(errs, err)
		}
		delete(e.tabs, h)
	}
	e.active = ""

	if e.browser != nil {
		if err := e.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("browser: close: %w", err))
		}
		e.browser = nil
	}
	if e.lnch != nil {
		e.lnch.Cleanup()
		e.lnch = nil
	}
	return errors.Join(errs...)
}

func (t *tab) close() error {
	if t.router != nil {
		if err := t.router.Stop(); err != nil {
			return fmt.Errorf("browser: stop request router: %w", err)
		}
	}
	if err := t.page.Close(); err != nil {
		return fmt.Errorf("browser: close tab: %w", err)
	}
	return nil
}
