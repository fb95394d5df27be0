package locate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/InsightCrawler/internal/engine"
	"github.com/TobiSchelling/InsightCrawler/internal/engine/enginetest"
)

func fastLocator() *Locator {
	return &Locator{Interval: time.Millisecond}
}

func openPage(t *testing.T, page *enginetest.Page) *enginetest.Fake {
	t.Helper()
	f := enginetest.New(map[string]*enginetest.Page{"https://site/a": page})
	_, err := f.OpenContext(context.Background(), "https://site/a")
	require.NoError(t, err)
	return f
}

func TestFindOneImmediate(t *testing.T) {
	f := openPage(t, &enginetest.Page{
		Nodes: map[string][]*enginetest.Node{"//h1": {enginetest.Text("Hello")}},
	})

	n, err := fastLocator().FindOne(context.Background(), f.Document(), "//h1", time.Second)
	require.NoError(t, err)
	text, err := n.Text()
	require.NoError(t, err)
	assert.Equal(t, "Hello", text)
}

func TestFindOneWaitsForSlowNode(t *testing.T) {
	f := openPage(t, &enginetest.Page{
		Nodes: map[string][]*enginetest.Node{"//h1": {enginetest.Text("Late")}},
		Delay: map[string]int{"//h1": 5},
	})

	text, err := fastLocator().Text(context.Background(), f.Document(), "//h1", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "Late", text)
}

func TestFindOneTimesOut(t *testing.T) {
	f := openPage(t, &enginetest.Page{})

	start := time.Now()
	_, err := fastLocator().FindOne(context.Background(), f.Document(), "//missing", 30*time.Millisecond)
	require.Error(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)

	var te *TimeoutError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "//missing", te.Path)
	assert.Equal(t, 30*time.Millisecond, te.Wait)
	assert.True(t, IsTimeout(err))
}

// Zero matches is a timeout, never an empty success.
func TestFindAllZeroMatchesIsTimeout(t *testing.T) {
	f := openPage(t, &enginetest.Page{})

	nodes, err := fastLocator().FindAll(context.Background(), f.Document(), "//a", 10*time.Millisecond)
	assert.Nil(t, nodes)
	assert.True(t, IsTimeout(err))
}

func TestFindAllReturnsDocumentOrder(t *testing.T) {
	f := openPage(t, &enginetest.Page{
		Nodes: map[string][]*enginetest.Node{"//a": {
			enginetest.Link("/1"), enginetest.Link("/2"), enginetest.Link("/3"),
		}},
	})

	nodes, err := fastLocator().FindAll(context.Background(), f.Document(), "//a", time.Second)
	require.NoError(t, err)
	var hrefs []string
	for _, n := range nodes {
		h, err := n.Attribute("href")
		require.NoError(t, err)
		hrefs = append(hrefs, h)
	}
	assert.Equal(t, []string{"/1", "/2", "/3"}, hrefs)
}

func TestScopedQueryUsesNodeAsRoot(t *testing.T) {
	section := &enginetest.Node{
		Children: map[string][]*enginetest.Node{".//a": {enginetest.Text("Jane Doe")}},
		Delay:    map[string]int{".//a": 2},
	}
	f := openPage(t, &enginetest.Page{
		Nodes: map[string][]*enginetest.Node{"//div": {section}},
	})

	l := fastLocator()
	root, err := l.FindOne(context.Background(), f.Document(), "//div", time.Second)
	require.NoError(t, err)

	text, err := l.Text(context.Background(), root, ".//a", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", text)

	// The scoped path is not visible from the document root.
	_, err = l.FindOne(context.Background(), f.Document(), ".//a", 5*time.Millisecond)
	assert.True(t, IsTimeout(err))
}

func TestQueryErrorIsNotTimeout(t *testing.T) {
	f := openPage(t, &enginetest.Page{})
	require.NoError(t, f.CloseActiveContext())

	_, err := fastLocator().FindOne(context.Background(), f.Document(), "//h1", time.Second)
	require.Error(t, err)
	assert.False(t, IsTimeout(err))
	assert.ErrorIs(t, err, enginetest.ErrNoFocus)
}

func TestContextCancellationStopsWaiting(t *testing.T) {
	f := openPage(t, &enginetest.Page{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := (&Locator{Interval: 50 * time.Millisecond}).FindOne(ctx, f.Document(), "//h1", time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, IsTimeout(err))
}

type countingQueryer struct {
	calls int
}

func (c *countingQueryer) Query(string) ([]engine.Node, error) {
	c.calls++
	return nil, nil
}

func TestPollingYieldsBetweenQueries(t *testing.T) {
	q := &countingQueryer{}
	_, err := (&Locator{Interval: 10 * time.Millisecond}).FindAll(context.Background(), q, "//x", 50*time.Millisecond)
	require.True(t, IsTimeout(err))
	// One initial query plus roughly one per interval, never a busy spin.
	assert.LessOrEqual(t, q.calls, 10)
	assert.GreaterOrEqual(t, q.calls, 2)
}
