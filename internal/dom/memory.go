package dom

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// MemPage is an in-memory Page backed by a parsed HTML document. It
// carries enough mutable state (values, checked flags, bounding rects,
// focus) to exercise the full record/replay/fill path without a
// browser, and keeps a dispatch trace so tests can assert on the
// synthetic events an operation produced.
type MemPage struct {
	doc  *goquery.Document
	host string
	els  map[*html.Node]*MemElement

	focused   *MemElement
	trace     []Dispatched
	submitted []*MemElement
}

// Dispatched is one synthetic event recorded by the trace.
type Dispatched struct {
	El *MemElement
	Ev Event
}

// MemElement is an element of a MemPage.
type MemElement struct {
	page *MemPage
	node *html.Node

	valueSet    bool
	value       string
	checkedSet  bool
	checked     bool
	selectedSet bool
	selected    bool

	rect    Rect
	hasRect bool
}

// NewMemPage parses an HTML document into an in-memory page.
func NewMemPage(src, hostname string) (*MemPage, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	return &MemPage{
		doc:  doc,
		host: hostname,
		els:  make(map[*html.Node]*MemElement),
	}, nil
}

func (p *MemPage) elem(n *html.Node) *MemElement {
	if n == nil || n.Type != html.ElementNode {
		return nil
	}
	if el, ok := p.els[n]; ok {
		return el
	}
	el := &MemElement{page: p, node: n}
	p.els[n] = el
	return el
}

// Query returns the first match of a CSS selector, nil on no match or
// on an invalid selector. Selector errors are not fatal: a regenerated
// page may make any stored selector meaningless.
func (p *MemPage) Query(selector string) Element {
	m, err := cascadia.Compile(selector)
	if err != nil {
		return nil
	}
	sel := p.doc.FindMatcher(m)
	if len(sel.Nodes) == 0 {
		return nil
	}
	return p.elem(sel.Nodes[0])
}

func (p *MemPage) QueryAll(selector string) []Element {
	m, err := cascadia.Compile(selector)
	if err != nil {
		return nil
	}
	nodes := p.doc.FindMatcher(m).Nodes
	out := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, p.elem(n))
	}
	return out
}

func (p *MemPage) Body() Element {
	if el := p.Query("body"); el != nil {
		return el
	}
	return nil
}

func (p *MemPage) Forms() []Element {
	return p.QueryAll("form")
}

// ElementFromPoint hit-tests against the rects registered with
// SetRect. The most recently registered containing rect wins, matching
// how an overlay drawn later obscures what is under it.
func (p *MemPage) ElementFromPoint(x, y float64) Element {
	var hit *MemElement
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode {
				if el, ok := p.els[c]; ok && el.hasRect && el.rect.Contains(x, y) {
					hit = el
				}
			}
			walk(c)
		}
	}
	for _, root := range p.doc.Nodes {
		walk(root)
	}
	if hit == nil {
		return nil
	}
	return hit
}

func (p *MemPage) Hostname() string { return p.host }

func (p *MemPage) SubmitForm(form Element) error {
	el, ok := form.(*MemElement)
	if !ok || el == nil {
		return fmt.Errorf("not a memory element")
	}
	if el.Tag() != "form" {
		return fmt.Errorf("submit target %q is not a form", el.Tag())
	}
	p.submitted = append(p.submitted, el)
	return nil
}

// Trace returns the synthetic events dispatched so far.
func (p *MemPage) Trace() []Dispatched { return p.trace }

// Submitted returns the forms submitted so far.
func (p *MemPage) Submitted() []*MemElement { return p.submitted }

// ClearTrace drops the dispatch trace and submit history.
func (p *MemPage) ClearTrace() {
	p.trace = nil
	p.submitted = nil
}

// SetRect registers a client-coordinate bounding box for hit testing.
func (p *MemPage) SetRect(el Element, r Rect) {
	if me, ok := el.(*MemElement); ok && me != nil {
		me.rect = r
		me.hasRect = true
	}
}

// Focused returns the element that currently holds focus, or nil.
func (p *MemPage) Focused() Element {
	if p.focused == nil {
		return nil
	}
	return p.focused
}

func (e *MemElement) Tag() string { return e.node.Data }

func (e *MemElement) ID() string { return e.Attr("id") }

func (e *MemElement) Attr(name string) string {
	for _, a := range e.node.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func (e *MemElement) Classes() []string {
	return strings.Fields(e.Attr("class"))
}

func (e *MemElement) Parent() Element {
	for n := e.node.Parent; n != nil; n = n.Parent {
		if n.Type == html.ElementNode {
			return e.page.elem(n)
		}
	}
	return nil
}

func (e *MemElement) Children() []Element {
	var out []Element
	for c := e.node.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, e.page.elem(c))
		}
	}
	return out
}

func (e *MemElement) Text() string {
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(e.node)
	return strings.TrimSpace(sb.String())
}

func (e *MemElement) Type() string {
	return strings.ToLower(e.Attr("type"))
}

func (e *MemElement) Value() string {
	if e.valueSet {
		return e.value
	}
	switch e.Tag() {
	case "textarea":
		return e.Text()
	case "select":
		for _, opt := range e.Options() {
			if opt.Selected() {
				return optionValue(opt)
			}
		}
		if opts := e.Options(); len(opts) > 0 {
			return optionValue(opts[0])
		}
		return ""
	default:
		return e.Attr("value")
	}
}

func (e *MemElement) SetValue(v string) {
	e.valueSet = true
	e.value = v
	if e.Tag() == "select" {
		for _, opt := range e.Options() {
			opt.SetSelected(optionValue(opt) == v)
		}
	}
}

func optionValue(opt Element) string {
	if v := opt.Attr("value"); v != "" {
		return v
	}
	return opt.Text()
}

func (e *MemElement) Checked() bool {
	if e.checkedSet {
		return e.checked
	}
	return e.hasAttr("checked")
}

func (e *MemElement) SetChecked(v bool) {
	e.checkedSet = true
	e.checked = v
}

func (e *MemElement) hasAttr(name string) bool {
	for _, a := range e.node.Attr {
		if a.Key == name {
			return true
		}
	}
	return false
}

func (e *MemElement) Visible() bool {
	if e.Type() == "hidden" || e.hasAttr("hidden") {
		return false
	}
	style := strings.ReplaceAll(e.Attr("style"), " ", "")
	if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
		return false
	}
	return true
}

func (e *MemElement) Enabled() bool { return !e.hasAttr("disabled") }

func (e *MemElement) Options() []Element {
	var out []Element
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.Data == "option" {
				out = append(out, e.page.elem(c))
			}
			walk(c)
		}
	}
	walk(e.node)
	return out
}

func (e *MemElement) Selected() bool {
	if e.selectedSet {
		return e.selected
	}
	return e.hasAttr("selected")
}

func (e *MemElement) SetSelected(v bool) {
	e.selectedSet = true
	e.selected = v
}

func (e *MemElement) Multiple() bool { return e.hasAttr("multiple") }

func (e *MemElement) Dispatch(ev Event) {
	e.page.trace = append(e.page.trace, Dispatched{El: e, Ev: ev})
}

func (e *MemElement) Focus() {
	e.page.focused = e
	e.Dispatch(Event{Type: "focus"})
}

func (e *MemElement) Blur() {
	if e.page.focused == e {
		e.page.focused = nil
	}
	e.Dispatch(Event{Type: "blur"})
}
