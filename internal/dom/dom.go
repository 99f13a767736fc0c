package dom

// Page is the surface the engine needs from a loaded document. The
// engine core never touches a browser directly; it runs against this
// interface so the same recorder/player/matcher code drives both the
// in-memory implementation and a live Chrome tab.
type Page interface {
	// Query returns the first element matching the CSS selector, or nil.
	Query(selector string) Element
	// QueryAll returns every element matching the CSS selector.
	QueryAll(selector string) []Element
	// Body returns the document body element.
	Body() Element
	// Forms returns all <form> elements in document order.
	Forms() []Element
	// ElementFromPoint hit-tests the page at client coordinates.
	ElementFromPoint(x, y float64) Element
	// Hostname returns the hostname of the loaded document.
	Hostname() string
	// SubmitForm submits the given form element.
	SubmitForm(form Element) error
}

// Element is a single DOM element. Implementations must be comparable
// so callers can check element identity with ==.
type Element interface {
	Tag() string
	ID() string
	Attr(name string) string
	Classes() []string
	Parent() Element
	Children() []Element
	Text() string

	// Type is the lowercased input type ("text", "checkbox", ...),
	// empty for elements without one.
	Type() string
	Value() string
	SetValue(v string)
	Checked() bool
	SetChecked(v bool)
	Visible() bool
	Enabled() bool

	// Options returns the <option> children of a <select>.
	Options() []Element
	Selected() bool
	SetSelected(v bool)
	Multiple() bool

	Dispatch(ev Event)
	Focus()
	Blur()
}

// Modifiers records the modifier-key state of an event.
type Modifiers struct {
	Shift bool `json:"shift"`
	Ctrl  bool `json:"ctrl"`
	Alt   bool `json:"alt"`
	Meta  bool `json:"meta"`
}

// Event is a synthetic DOM event built by the player or filler.
type Event struct {
	Type      string
	Key       string
	Code      string
	Button    int
	ClientX   float64
	ClientY   float64
	Modifiers Modifiers
}

// Rect is an element bounding box in client coordinates.
type Rect struct {
	X float64
	Y float64
	W float64
	H float64
}

// Contains reports whether the point lies inside the rect.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x < r.X+r.W && y >= r.Y && y < r.Y+r.H
}

// UIMarkerAttr marks elements that belong to the engine's own UI
// surface. Events bubbling out of marked subtrees are never recorded.
const UIMarkerAttr = "data-formflow-ui"

// InsideUIMarker walks ancestors to check for the engine UI marker.
func InsideUIMarker(el Element) bool {
	for e := el; e != nil; e = e.Parent() {
		if e.Attr(UIMarkerAttr) != "" {
			return true
		}
	}
	return false
}
