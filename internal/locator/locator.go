// Package locator produces durable descriptors for DOM elements and
// re-resolves them later. Pages the engine drives are not under its
// control: ids can be regenerated per load and structure can shift, so
// a locator is a layered bet: id first, structural CSS path second,
// child-index chain and hit-test coordinates as last resorts.
package locator

import (
	"fmt"
	"strings"

	"formflow/backend/internal/dom"
)

// Locator kinds.
const (
	KindID        = "id"
	KindPath      = "path"
	KindIndexPath = "indexPath"
	KindPoint     = "point"
)

// Locator describes how to re-find an element.
type Locator struct {
	Kind  string  `json:"kind"`
	Value string  `json:"value,omitempty"`
	Index []int   `json:"index,omitempty"`
	X     float64 `json:"x,omitempty"`
	Y     float64 `json:"y,omitempty"`
}

// Generate builds the preferred locator for an element: an id locator
// when the element has a non-empty id, otherwise a CSS path rooted at
// <body>. The path form is always derivable for an attached element.
func Generate(el dom.Element) Locator {
	if id := el.ID(); id != "" {
		return Locator{Kind: KindID, Value: Escape(id)}
	}
	return Locator{Kind: KindPath, Value: cssPath(el)}
}

// Point builds a coordinate locator from client coordinates.
func Point(x, y float64) Locator {
	return Locator{Kind: KindPoint, X: x, Y: y}
}

// ChildIndexPath returns the element-child index chain from <body>
// down to el. Empty when el is the body or detached.
func ChildIndexPath(el dom.Element) []int {
	var rev []int
	anchored := false
	for e := el; e != nil; {
		parent := e.Parent()
		if parent == nil {
			break
		}
		idx := -1
		for i, sib := range parent.Children() {
			if sib == e {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil
		}
		rev = append(rev, idx)
		if parent.Tag() == "body" {
			anchored = true
			break
		}
		e = parent
	}
	if !anchored {
		return nil
	}
	out := make([]int, len(rev))
	for i, v := range rev {
		out[len(rev)-1-i] = v
	}
	return out
}

// Resolve re-finds the element a locator describes, nil when the
// strategy yields nothing.
func Resolve(page dom.Page, loc Locator) dom.Element {
	switch loc.Kind {
	case KindID:
		return page.Query("#" + loc.Value)
	case KindPath:
		return page.Query(loc.Value)
	case KindIndexPath:
		return walkIndexPath(page, loc.Index)
	case KindPoint:
		return page.ElementFromPoint(loc.X, loc.Y)
	}
	return nil
}

// ResolveFallback tries the primary locator, then the child-index
// chain, then a hit test at the stored client coordinates. Returns nil
// only when every strategy fails; callers must treat that as a skip,
// never an abort.
func ResolveFallback(page dom.Page, loc Locator, index []int, x, y float64, hasPoint bool) dom.Element {
	if el := Resolve(page, loc); el != nil {
		return el
	}
	if len(index) > 0 {
		if el := walkIndexPath(page, index); el != nil {
			return el
		}
	}
	if hasPoint {
		return Resolve(page, Point(x, y))
	}
	return nil
}

func walkIndexPath(page dom.Page, index []int) dom.Element {
	el := page.Body()
	if el == nil {
		return nil
	}
	for _, i := range index {
		children := el.Children()
		if i < 0 || i >= len(children) {
			return nil
		}
		el = children[i]
	}
	if el == page.Body() {
		return nil
	}
	return el
}

// cssPath builds a selector from tag names, nth-of-type positions and
// disambiguating class lists, one segment per ancestor level up to
// <body>, joined with " > ".
func cssPath(el dom.Element) string {
	var rev []string
	for e := el; e != nil && e.Tag() != "body"; e = e.Parent() {
		rev = append(rev, pathSegment(e))
	}
	segs := make([]string, 0, len(rev)+1)
	segs = append(segs, "body")
	for i := len(rev) - 1; i >= 0; i-- {
		segs = append(segs, rev[i])
	}
	return strings.Join(segs, " > ")
}

func pathSegment(el dom.Element) string {
	tag := el.Tag()
	parent := el.Parent()
	if parent == nil {
		return tag
	}

	sameTag := 0
	position := 0
	for _, sib := range parent.Children() {
		if sib.Tag() == tag {
			sameTag++
			if sib == el {
				position = sameTag
			}
		}
	}
	if sameTag > 1 {
		return fmt.Sprintf("%s:nth-of-type(%d)", tag, position)
	}

	if classes := el.Classes(); len(classes) > 0 {
		withClasses := tag
		for _, c := range classes {
			withClasses += "." + Escape(c)
		}
		if uniqueAmongSiblings(el, parent, classes) {
			return withClasses
		}
	}
	return tag
}

func uniqueAmongSiblings(el dom.Element, parent dom.Element, classes []string) bool {
	matches := 0
	for _, sib := range parent.Children() {
		if sib.Tag() != el.Tag() {
			continue
		}
		if hasAllClasses(sib, classes) {
			matches++
		}
	}
	return matches == 1
}

func hasAllClasses(el dom.Element, classes []string) bool {
	have := el.Classes()
	for _, want := range classes {
		found := false
		for _, c := range have {
			if c == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Escape backslash-escapes CSS-special characters in an identifier so
// ids like "user:email" survive a querySelector round trip.
func Escape(ident string) string {
	var sb strings.Builder
	for _, r := range ident {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r > 127:
			sb.WriteRune(r)
		default:
			sb.WriteByte('\\')
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
