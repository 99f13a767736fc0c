// Package filler walks the fillable fields of a page, asks the
// matcher for a profile key per field, and applies values with
// per-field-type semantics. In learning mode, uncertain matches are
// escalated to the trainer queue instead of being silently dropped.
package filler

import (
	"strings"

	"formflow/backend/internal/dom"
	"formflow/backend/internal/locator"
	"formflow/backend/internal/matcher"
	"formflow/backend/internal/models"
	"formflow/backend/internal/trainer"
)

// skippedTypes are input types never auto-filled.
var skippedTypes = map[string]bool{
	"hidden": true,
	"button": true,
	"submit": true,
	"reset":  true,
	"file":   true,
	"image":  true,
}

// Filler is one fill pass configuration.
type Filler struct {
	Page      dom.Page
	Profile   models.Profile
	Mappings  matcher.Mappings
	Context   string
	Threshold float64
	Learning  bool
	Queue     *trainer.Queue
}

// Fill applies the profile to every visible, enabled form field and
// returns how many fields were written. Fields with no resolvable key
// or no defined profile value are left untouched.
func (f *Filler) Fill() int {
	if f.Learning && f.Queue != nil {
		f.Queue.Clear()
	}

	filled := 0
	for _, el := range f.Page.QueryAll("form input, form select, form textarea") {
		if skippedTypes[el.Type()] || !el.Visible() || !el.Enabled() {
			continue
		}
		field := matcher.Describe(f.Page, el)
		result := matcher.Match(f.Profile, f.Mappings, f.Context, field, f.Threshold)

		if f.Learning && !result.Ignored && result.Score < matcher.ConfidentScore {
			f.enqueue(el, field, result)
		}
		if result.Key == "" {
			continue
		}
		value, ok := f.Profile[result.Key]
		if !ok {
			continue
		}
		if f.apply(el, value) {
			filled++
		}
	}
	return filled
}

// enqueue records an uncertain field for trainer review: a plausible
// guess when the score landed between the unmatched and confident
// bounds, a nil guess when effectively unmatched.
func (f *Filler) enqueue(el dom.Element, field matcher.Field, result matcher.Result) {
	sf := models.SkippedField{
		FieldID: field.Identifier(),
		Locator: locator.Generate(el),
		Context: f.Page.Hostname(),
		Label:   field.Label,
		Score:   result.Score,
	}
	if result.Score > matcher.UnmatchedScore {
		sf.Guess = result.Guess
	}
	f.Queue.Add(sf)
}

func (f *Filler) apply(el dom.Element, value models.ProfileValue) bool {
	switch {
	case el.Type() == "checkbox":
		v := scalar(value)
		el.SetChecked(truthy(v) || v == el.Value())
	case el.Type() == "radio":
		if scalar(value) != el.Value() {
			return false
		}
		el.SetChecked(true)
	case el.Tag() == "select" && el.Multiple():
		want := value.List
		if !value.IsList {
			want = []string{value.String}
		}
		for _, opt := range el.Options() {
			opt.SetSelected(containsOption(want, opt))
		}
	case el.Tag() == "select":
		v := scalar(value)
		matched := false
		for _, opt := range el.Options() {
			if opt.Attr("value") == v || strings.TrimSpace(opt.Text()) == v {
				el.SetValue(optionValue(opt))
				matched = true
				break
			}
		}
		if !matched {
			el.SetValue(v)
		}
	default:
		el.SetValue(scalar(value))
	}

	el.Dispatch(dom.Event{Type: "input"})
	el.Dispatch(dom.Event{Type: "change"})
	el.Blur()
	return true
}

func containsOption(want []string, opt dom.Element) bool {
	for _, w := range want {
		if opt.Attr("value") == w || strings.TrimSpace(opt.Text()) == w {
			return true
		}
	}
	return false
}

func optionValue(opt dom.Element) string {
	if v := opt.Attr("value"); v != "" {
		return v
	}
	return strings.TrimSpace(opt.Text())
}

func scalar(v models.ProfileValue) string {
	if v.IsList {
		if len(v.List) > 0 {
			return v.List[0]
		}
		return ""
	}
	return v.String
}

func truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "1", "on", "checked":
		return true
	}
	return false
}
