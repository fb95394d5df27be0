package browser

import (
	"github.com/go-rod/rod"

	"github.com/TobiSchelling/InsightCrawler/internal/engine"
)

// attributeJS prefers the DOM property, which holds resolved values such
// as absolute hrefs, and falls back to the raw attribute.
const attributeJS = `function (name) {
	const v = this[name];
	if (typeof v === "string") return v;
	return this.getAttribute(name) || "";
}`

type document struct {
	page *rod.Page
}

func (d document) Query(path string) ([]engine.Node, error) {
	if d.page == nil {
		return nil, ErrNoActiveTab
	}
	els, err := d.page.ElementsX(path)
	if err != nil {
		return nil, err
	}
	return wrap(els), nil
}

type node struct {
	el *rod.Element
}

func wrap(els rod.Elements) []engine.Node {
	out := make([]engine.Node, 0, len(els))
	for _, el := range els {
		out = append(out, node{el: el})
	}
	return out
}

func (n node) Query(path string) ([]engine.Node, error) {
	els, err := n.el.ElementsX(path)
	if err != nil {
		return nil, err
	}
	return wrap(els), nil
}

func (n node) Text() (string, error) {
	return n.el.Text()
}

func (n node) Attribute(name string) (string, error) {
	res, err := n.el.Eval(attributeJS, name)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}
