// Package player replays captured macros against a page. A run is an
// explicit state machine stepped by Tick, so pacing is owned by
// whatever drives it: a timer loop in production, a virtual clock in
// tests. A single bad step never aborts a run; misses and dispatch
// failures are logged and skipped.
package player

import (
	"context"
	"fmt"
	"time"

	"formflow/backend/internal/debuglog"
	"formflow/backend/internal/dom"
	"formflow/backend/internal/locator"
	"formflow/backend/internal/models"
)

// Replay delay bounds. The floor avoids event storms from
// near-simultaneous captures; the ceiling keeps long recorded gaps
// (user inactivity) from stalling playback.
const (
	MinDelay = 50 * time.Millisecond
	MaxDelay = 3 * time.Second
)

// Options controls a run.
type Options struct {
	// CoordinateFallback enables the indexPath and hit-test resolver
	// fallbacks when the primary locator misses.
	CoordinateFallback bool
}

// Stats summarizes a run.
type Stats struct {
	Total    int `json:"total"`
	Replayed int `json:"replayed"`
	Skipped  int `json:"skipped"`
}

// Next tells the driver what to do after a Tick.
type Next struct {
	Wait time.Duration
	Done bool
}

// Run is one playback of a macro.
type Run struct {
	page   dom.Page
	events []models.CapturedEvent
	idx    int
	opts   Options
	faults *debuglog.Log
	stats  Stats
}

// NewRun prepares a playback of the macro's events against a page.
func NewRun(page dom.Page, macro models.MacroData, opts Options, faults *debuglog.Log) *Run {
	if faults == nil {
		faults = debuglog.New(0)
	}
	return &Run{
		page:   page,
		events: macro.Events,
		opts:   opts,
		faults: faults,
		stats:  Stats{Total: len(macro.Events)},
	}
}

// Tick dispatches the current event and reports how long to wait
// before the next one. Never blocks.
func (r *Run) Tick(now time.Time) Next {
	if r.idx >= len(r.events) {
		return Next{Done: true}
	}
	ev := r.events[r.idx]
	r.step(ev)
	r.idx++
	if r.idx >= len(r.events) {
		return Next{Done: true}
	}
	return Next{Wait: ClampDelay(ev.Timestamp, r.events[r.idx].Timestamp)}
}

// Stats returns the counts so far.
func (r *Run) Stats() Stats { return r.stats }

// ClampDelay converts consecutive capture timestamps (ms) into the
// replay delay between them.
func ClampDelay(prev, next int64) time.Duration {
	d := time.Duration(next-prev) * time.Millisecond
	if d < MinDelay {
		return MinDelay
	}
	if d > MaxDelay {
		return MaxDelay
	}
	return d
}

func (r *Run) step(ev models.CapturedEvent) {
	defer func() {
		if rec := recover(); rec != nil {
			r.stats.Skipped++
			r.faults.Add(debuglog.SynthesisFailure, locatorString(ev.Locator),
				fmt.Sprintf("%s dispatch panicked: %v", ev.Type, rec))
		}
	}()

	el := r.resolve(ev)
	if el == nil && ev.Type != "submit" {
		r.stats.Skipped++
		r.faults.Add(debuglog.LocatorMiss, locatorString(ev.Locator),
			fmt.Sprintf("%s target not found", ev.Type))
		return
	}

	switch ev.Type {
	case "click", "mousedown", "mouseup", "mousemove":
		el.Dispatch(dom.Event{
			Type:      ev.Type,
			Button:    ev.Button,
			ClientX:   ev.ClientX,
			ClientY:   ev.ClientY,
			Modifiers: modifiers(ev),
		})
	case "input", "change":
		r.applyValue(el, ev)
	case "keydown", "keyup":
		el.Dispatch(dom.Event{
			Type:      ev.Type,
			Key:       ev.Key,
			Code:      ev.Code,
			Modifiers: modifiers(ev),
		})
	case "focusin":
		el.Focus()
	case "focusout":
		el.Blur()
	case "submit":
		if err := r.submit(el); err != nil {
			r.stats.Skipped++
			r.faults.Add(debuglog.SynthesisFailure, locatorString(ev.Locator), err.Error())
			return
		}
	default:
		el.Dispatch(dom.Event{Type: ev.Type, Modifiers: modifiers(ev)})
	}
	r.stats.Replayed++
}

func (r *Run) resolve(ev models.CapturedEvent) dom.Element {
	if !r.opts.CoordinateFallback {
		return locator.Resolve(r.page, ev.Locator)
	}
	hasPoint := ev.ClientX != 0 || ev.ClientY != 0
	return locator.ResolveFallback(r.page, ev.Locator, ev.IndexPath, ev.ClientX, ev.ClientY, hasPoint)
}

// applyValue sets the value or checked state directly, then dispatches
// input, change and blur so frameworks listening for only one of them
// still notice.
func (r *Run) applyValue(el dom.Element, ev models.CapturedEvent) {
	switch el.Type() {
	case "checkbox", "radio":
		el.SetChecked(ev.Checked)
	default:
		el.SetValue(ev.Value)
	}
	el.Dispatch(dom.Event{Type: "input"})
	el.Dispatch(dom.Event{Type: "change"})
	el.Blur()
}

// submit calls the resolved form's submit, falling back to the page's
// first form when the recorded target is gone.
func (r *Run) submit(el dom.Element) error {
	form := el
	for form != nil && form.Tag() != "form" {
		form = form.Parent()
	}
	if form == nil {
		forms := r.page.Forms()
		if len(forms) == 0 {
			return fmt.Errorf("no form to submit")
		}
		form = forms[0]
	}
	return r.page.SubmitForm(form)
}

func modifiers(ev models.CapturedEvent) dom.Modifiers {
	return dom.Modifiers{
		Shift: ev.Modifiers.Shift,
		Ctrl:  ev.Modifiers.Ctrl,
		Alt:   ev.Modifiers.Alt,
		Meta:  ev.Modifiers.Meta,
	}
}

func locatorString(loc locator.Locator) string {
	switch loc.Kind {
	case locator.KindID:
		return "#" + loc.Value
	case locator.KindPath:
		return loc.Value
	case locator.KindIndexPath:
		return fmt.Sprintf("indexPath%v", loc.Index)
	case locator.KindPoint:
		return fmt.Sprintf("point(%.0f,%.0f)", loc.X, loc.Y)
	}
	return loc.Kind
}

// Play drives a run to completion with real timers. Fire-and-forget
// callers launch it in a goroutine; there is no mutual exclusion
// between concurrent runs; DOM dispatch is globally shared and
// interleaving is an accepted limitation.
func Play(ctx context.Context, run *Run) Stats {
	for {
		next := run.Tick(time.Now())
		if next.Done {
			return run.Stats()
		}
		timer := time.NewTimer(next.Wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return run.Stats()
		case <-timer.C:
		}
	}
}
