// Package extract reads the fields of one article page.
package extract

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/TobiSchelling/InsightCrawler/internal/engine"
	"github.com/TobiSchelling/InsightCrawler/internal/locate"
)

// Paths are the location expressions of an article page. Section paths
// are evaluated against the document; field paths are relative to their
// section, except Body which is evaluated against the document.
type Paths struct {
	AuthorSection   string `yaml:"author_section"`
	Author          string `yaml:"author"`
	AuthorRole      string `yaml:"author_role"`
	EntitySection   string `yaml:"entity_section"`
	Entity          string `yaml:"entity"`
	Vertical        string `yaml:"vertical"`
	HeadlineSection string `yaml:"headline_section"`
	Title           string `yaml:"title"`
	ViewsAndDate    string `yaml:"views_and_date"`
	Body            string `yaml:"body"`
}

// Timeouts bound the waits. Primary applies to top-level sections,
// Secondary to lookups nested inside a section and to the body.
type Timeouts struct {
	Primary   time.Duration
	Secondary time.Duration
}

// Fields is everything read from an article page.
type Fields struct {
	Author     string
	AuthorRole string
	Entity     string
	Vertical   string
	Title      string
	Views      int
	Date       string
	Text       string
}

// Extractor composes locator calls into field reads. It has no side
// effects on the page.
type Extractor struct {
	loc      *locate.Locator
	paths    Paths
	timeouts Timeouts
}

// New creates an Extractor.
func New(loc *locate.Locator, paths Paths, timeouts Timeouts) *Extractor {
	return &Extractor{loc: loc, paths: paths, timeouts: timeouts}
}

// Extract reads the author, entity, headline and body groups in that
// order. The first locator error is returned unchanged; a view count that
// does not parse is not an error.
func (e *Extractor) Extract(ctx context.Context, doc engine.Queryer) (Fields, error) {
	var f Fields

	author, err := e.loc.FindOne(ctx, doc, e.paths.AuthorSection, e.timeouts.Primary)
	if err != nil {
		return Fields{}, err
	}
	if f.Author, err = e.loc.Text(ctx, author, e.paths.Author, e.timeouts.Secondary); err != nil {
		return Fields{}, err
	}
	if f.AuthorRole, err = e.loc.Text(ctx, author, e.paths.AuthorRole, e.timeouts.Secondary); err != nil {
		return Fields{}, err
	}

	entity, err := e.loc.FindOne(ctx, doc, e.paths.EntitySection, e.timeouts.Primary)
	if err != nil {
		return Fields{}, err
	}
	if f.Entity, err = e.loc.Text(ctx, entity, e.paths.Entity, e.timeouts.Secondary); err != nil {
		return Fields{}, err
	}
	if f.Vertical, err = e.loc.Text(ctx, entity, e.paths.Vertical, e.timeouts.Secondary); err != nil {
		return Fields{}, err
	}

	headline, err := e.loc.FindOne(ctx, doc, e.paths.HeadlineSection, e.timeouts.Primary)
	if err != nil {
		return Fields{}, err
	}
	if f.Title, err = e.loc.Text(ctx, headline, e.paths.Title, e.timeouts.Secondary); err != nil {
		return Fields{}, err
	}
	meta, err := e.loc.Text(ctx, headline, e.paths.ViewsAndDate, e.timeouts.Secondary)
	if err != nil {
		return Fields{}, err
	}
	f.Views, f.Date = SplitViewsAndDate(meta)

	if f.Text, err = e.loc.Text(ctx, doc, e.paths.Body, e.timeouts.Secondary); err != nil {
		return Fields{}, err
	}

	return f, nil
}

// SplitViewsAndDate splits "523 views, 03 Mar 2021" at the first comma
// that is not a thousands separator. Everything after it is the date,
// untrimmed. The first word before it is the view count, with thousands
// separators removed; when it is not a non-negative integer the count is
// 0. Without a separating comma the date is empty.
func SplitViewsAndDate(raw string) (views int, date string) {
	left, right := raw, ""
	if i := separatorComma(raw); i >= 0 {
		left, right = raw[:i], raw[i+1:]
	}

	if words := strings.Fields(left); len(words) > 0 {
		digits := strings.ReplaceAll(words[0], ",", "")
		if n, err := strconv.Atoi(digits); err == nil && n >= 0 {
			views = n
		}
	}
	return views, right
}

// separatorComma returns the index of the first comma not flanked by
// digits on both sides, or -1.
func separatorComma(s string) int {
	for i := 0; i < len(s); i++ {
		if s[i] != ',' {
			continue
		}
		if i > 0 && i+1 < len(s) && isDigit(s[i-1]) && isDigit(s[i+1]) {
			continue
		}
		return i
	}
	return -1
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
