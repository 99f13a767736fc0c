package dom

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/chromedp/chromedp"
)

// ChromePage adapts a live Chrome tab to the Page interface over the
// DevTools protocol. Elements are addressed by their child-index path
// from <body>; a small helper library is installed into the page once
// and every operation evaluates against it.
type ChromePage struct {
	ctx  context.Context
	host string
	els  map[string]*chromeElement
}

// chromeElement is a handle to a live element. Structural facts (tag,
// id, attrs) are snapshotted when the handle is materialized; dynamic
// state (value, checked, visibility) is read live.
type chromeElement struct {
	page  *ChromePage
	path  []int
	tag   string
	id    string
	attrs map[string]string
	text  string
}

type elemDesc struct {
	Path  []int             `json:"path"`
	Tag   string            `json:"tag"`
	ID    string            `json:"id"`
	Attrs map[string]string `json:"attrs"`
	Text  string            `json:"text"`
}

// NewChromePage installs the page helper and returns the adapter. The
// context must be an active chromedp tab context.
func NewChromePage(ctx context.Context) (*ChromePage, error) {
	if err := chromedp.Run(ctx, chromedp.Evaluate(helperJS, nil)); err != nil {
		return nil, fmt.Errorf("failed to install page helper: %w", err)
	}
	var host string
	if err := chromedp.Run(ctx, chromedp.Evaluate(`location.hostname`, &host)); err != nil {
		return nil, fmt.Errorf("failed to read hostname: %w", err)
	}
	return &ChromePage{ctx: ctx, host: host, els: make(map[string]*chromeElement)}, nil
}

func (p *ChromePage) elem(d *elemDesc) *chromeElement {
	if d == nil {
		return nil
	}
	key := fmt.Sprint(d.Path)
	if el, ok := p.els[key]; ok {
		el.tag, el.id, el.attrs, el.text = d.Tag, d.ID, d.Attrs, d.Text
		return el
	}
	el := &chromeElement{page: p, path: d.Path, tag: d.Tag, id: d.ID, attrs: d.Attrs, text: d.Text}
	p.els[key] = el
	return el
}

func (p *ChromePage) eval(expr string, out interface{}) error {
	return chromedp.Run(p.ctx, chromedp.Evaluate(expr, out))
}

func (p *ChromePage) evalDesc(expr string) *chromeElement {
	var d *elemDesc
	if err := p.eval(expr, &d); err != nil {
		log.Printf("page eval failed: %v", err)
		return nil
	}
	return p.elem(d)
}

func jsArg(v interface{}) string {
	data, _ := json.Marshal(v)
	return string(data)
}

func (p *ChromePage) Query(selector string) Element {
	el := p.evalDesc(fmt.Sprintf(`window.__formflow.query(%s)`, jsArg(selector)))
	if el == nil {
		return nil
	}
	return el
}

func (p *ChromePage) QueryAll(selector string) []Element {
	var descs []elemDesc
	if err := p.eval(fmt.Sprintf(`window.__formflow.queryAll(%s)`, jsArg(selector)), &descs); err != nil {
		log.Printf("page eval failed: %v", err)
		return nil
	}
	out := make([]Element, 0, len(descs))
	for i := range descs {
		out = append(out, p.elem(&descs[i]))
	}
	return out
}

func (p *ChromePage) Body() Element {
	el := p.evalDesc(`window.__formflow.describe(document.body)`)
	if el == nil {
		return nil
	}
	return el
}

func (p *ChromePage) Forms() []Element {
	return p.QueryAll("form")
}

func (p *ChromePage) ElementFromPoint(x, y float64) Element {
	el := p.evalDesc(fmt.Sprintf(`window.__formflow.fromPoint(%v,%v)`, x, y))
	if el == nil {
		return nil
	}
	return el
}

func (p *ChromePage) Hostname() string { return p.host }

func (p *ChromePage) SubmitForm(form Element) error {
	el, ok := form.(*chromeElement)
	if !ok || el == nil {
		return fmt.Errorf("not a chrome element")
	}
	return p.eval(fmt.Sprintf(`window.__formflow.submit(%s)`, jsArg(el.path)), nil)
}

func (e *chromeElement) ref() string {
	return fmt.Sprintf(`window.__formflow.byPath(%s)`, jsArg(e.path))
}

func (e *chromeElement) str(prop string) string {
	var out string
	if err := e.page.eval(fmt.Sprintf(`(window.__formflow.byPath(%s)||{})[%s]`, jsArg(e.path), jsArg(prop)), &out); err != nil {
		log.Printf("page eval failed: %v", err)
	}
	return out
}

func (e *chromeElement) boolean(expr string) bool {
	var out bool
	if err := e.page.eval(expr, &out); err != nil {
		log.Printf("page eval failed: %v", err)
	}
	return out
}

func (e *chromeElement) Tag() string { return e.tag }
func (e *chromeElement) ID() string  { return e.id }

func (e *chromeElement) Attr(name string) string { return e.attrs[name] }

func (e *chromeElement) Classes() []string {
	return strings.Fields(e.attrs["class"])
}

func (e *chromeElement) Parent() Element {
	if len(e.path) == 0 {
		return nil
	}
	el := e.page.evalDesc(fmt.Sprintf(`window.__formflow.parent(%s)`, jsArg(e.path)))
	if el == nil {
		return nil
	}
	return el
}

func (e *chromeElement) Children() []Element {
	var descs []elemDesc
	if err := e.page.eval(fmt.Sprintf(`window.__formflow.children(%s)`, jsArg(e.path)), &descs); err != nil {
		log.Printf("page eval failed: %v", err)
		return nil
	}
	out := make([]Element, 0, len(descs))
	for i := range descs {
		out = append(out, e.page.elem(&descs[i]))
	}
	return out
}

func (e *chromeElement) Text() string { return e.text }

func (e *chromeElement) Type() string { return e.attrs["type"] }

func (e *chromeElement) Value() string { return e.str("value") }

func (e *chromeElement) SetValue(v string) {
	if err := e.page.eval(fmt.Sprintf(`window.__formflow.setValue(%s,%s)`, jsArg(e.path), jsArg(v)), nil); err != nil {
		log.Printf("setValue failed: %v", err)
	}
}

func (e *chromeElement) Checked() bool {
	return e.boolean(fmt.Sprintf(`!!(%s||{}).checked`, e.ref()))
}

func (e *chromeElement) SetChecked(v bool) {
	if err := e.page.eval(fmt.Sprintf(`window.__formflow.setChecked(%s,%v)`, jsArg(e.path), v), nil); err != nil {
		log.Printf("setChecked failed: %v", err)
	}
}

func (e *chromeElement) Visible() bool {
	return e.boolean(fmt.Sprintf(`window.__formflow.visible(%s)`, jsArg(e.path)))
}

func (e *chromeElement) Enabled() bool {
	return e.boolean(fmt.Sprintf(`!((%s||{}).disabled)`, e.ref()))
}

func (e *chromeElement) Options() []Element {
	var descs []elemDesc
	if err := e.page.eval(fmt.Sprintf(`window.__formflow.options(%s)`, jsArg(e.path)), &descs); err != nil {
		log.Printf("page eval failed: %v", err)
		return nil
	}
	out := make([]Element, 0, len(descs))
	for i := range descs {
		out = append(out, e.page.elem(&descs[i]))
	}
	return out
}

func (e *chromeElement) Selected() bool {
	return e.boolean(fmt.Sprintf(`!!(%s||{}).selected`, e.ref()))
}

func (e *chromeElement) SetSelected(v bool) {
	if err := e.page.eval(fmt.Sprintf(`window.__formflow.setSelected(%s,%v)`, jsArg(e.path), v), nil); err != nil {
		log.Printf("setSelected failed: %v", err)
	}
}

func (e *chromeElement) Multiple() bool {
	return e.boolean(fmt.Sprintf(`!!(%s||{}).multiple`, e.ref()))
}

func (e *chromeElement) Dispatch(ev Event) {
	payload := map[string]interface{}{
		"type":    ev.Type,
		"key":     ev.Key,
		"code":    ev.Code,
		"button":  ev.Button,
		"clientX": ev.ClientX,
		"clientY": ev.ClientY,
		"shift":   ev.Modifiers.Shift,
		"ctrl":    ev.Modifiers.Ctrl,
		"alt":     ev.Modifiers.Alt,
		"meta":    ev.Modifiers.Meta,
	}
	if err := e.page.eval(fmt.Sprintf(`window.__formflow.dispatch(%s,%s)`, jsArg(e.path), jsArg(payload)), nil); err != nil {
		log.Printf("dispatch failed: %v", err)
	}
}

func (e *chromeElement) Focus() {
	if err := e.page.eval(fmt.Sprintf(`window.__formflow.focus(%s)`, jsArg(e.path)), nil); err != nil {
		log.Printf("focus failed: %v", err)
	}
}

func (e *chromeElement) Blur() {
	if err := e.page.eval(fmt.Sprintf(`window.__formflow.blur(%s)`, jsArg(e.path)), nil); err != nil {
		log.Printf("blur failed: %v", err)
	}
}

// helperJS is the in-page element library: path addressing, element
// description and synthetic event construction.
const helperJS = `
(function() {
	if (window.__formflow) return;
	window.__formflow = {
		pathOf: function(el) {
			var path = [];
			var cur = el;
			while (cur && cur !== document.body) {
				var parent = cur.parentElement;
				if (!parent) return null;
				var idx = Array.prototype.indexOf.call(parent.children, cur);
				if (idx < 0) return null;
				path.unshift(idx);
				cur = parent;
			}
			return cur === document.body ? path : null;
		},
		byPath: function(path) {
			var cur = document.body;
			if (!cur || !path) return null;
			for (var i = 0; i < path.length; i++) {
				cur = cur.children[path[i]];
				if (!cur) return null;
			}
			return cur;
		},
		describe: function(el) {
			if (!el) return null;
			var attrs = {};
			for (var i = 0; i < el.attributes.length; i++) {
				attrs[el.attributes[i].name] = el.attributes[i].value;
			}
			return {
				path: this.pathOf(el),
				tag: el.tagName.toLowerCase(),
				id: el.id || '',
				attrs: attrs,
				text: (el.textContent || '').trim()
			};
		},
		query: function(sel) {
			try { return this.describe(document.querySelector(sel)); }
			catch (e) { return null; }
		},
		queryAll: function(sel) {
			var out = [];
			try {
				var els = document.querySelectorAll(sel);
				for (var i = 0; i < els.length; i++) out.push(this.describe(els[i]));
			} catch (e) {}
			return out;
		},
		fromPoint: function(x, y) {
			return this.describe(document.elementFromPoint(x, y));
		},
		parent: function(path) {
			var el = this.byPath(path);
			return el && el.parentElement ? this.describe(el.parentElement) : null;
		},
		children: function(path) {
			var el = this.byPath(path);
			var out = [];
			if (!el) return out;
			for (var i = 0; i < el.children.length; i++) out.push(this.describe(el.children[i]));
			return out;
		},
		options: function(path) {
			var el = this.byPath(path);
			var out = [];
			if (!el || !el.options) return out;
			for (var i = 0; i < el.options.length; i++) out.push(this.describe(el.options[i]));
			return out;
		},
		visible: function(path) {
			var el = this.byPath(path);
			if (!el) return false;
			if (el.type === 'hidden' || el.hidden) return false;
			var style = window.getComputedStyle(el);
			return style.display !== 'none' && style.visibility !== 'hidden';
		},
		setValue: function(path, v) {
			var el = this.byPath(path);
			if (el) el.value = v;
		},
		setChecked: function(path, v) {
			var el = this.byPath(path);
			if (el) el.checked = v;
		},
		setSelected: function(path, v) {
			var el = this.byPath(path);
			if (el) el.selected = v;
		},
		focus: function(path) {
			var el = this.byPath(path);
			if (el && el.focus) el.focus();
		},
		blur: function(path) {
			var el = this.byPath(path);
			if (el && el.blur) el.blur();
		},
		submit: function(path) {
			var form = this.byPath(path);
			if (form && form.submit) form.submit();
		},
		dispatch: function(path, ev) {
			var el = this.byPath(path);
			if (!el) return;
			var init = {
				bubbles: true,
				cancelable: true,
				shiftKey: ev.shift,
				ctrlKey: ev.ctrl,
				altKey: ev.alt,
				metaKey: ev.meta
			};
			var out;
			if (ev.type.indexOf('mouse') === 0 || ev.type === 'click') {
				init.button = ev.button;
				init.clientX = ev.clientX;
				init.clientY = ev.clientY;
				out = new MouseEvent(ev.type, init);
			} else if (ev.type.indexOf('key') === 0) {
				init.key = ev.key;
				init.code = ev.code;
				out = new KeyboardEvent(ev.type, init);
			} else {
				out = new Event(ev.type, init);
			}
			el.dispatchEvent(out);
		}
	};
})();
`
