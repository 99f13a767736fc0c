// Package recorder captures page-level user interactions into ordered,
// replayable macros. The core state machine here is DOM-agnostic;
// chrome.go feeds it from a live tab.
package recorder

import (
	"errors"
	"sync"
	"time"

	"formflow/backend/internal/dom"
	"formflow/backend/internal/locator"
	"formflow/backend/internal/models"
)

var (
	// ErrNothingRecorded reports a stop with zero captured events.
	// Not a failure; the recording is simply discarded.
	ErrNothingRecorded = errors.New("nothing recorded")
	// ErrNoName reports a stop without a macro name; the session is
	// aborted without persisting.
	ErrNoName = errors.New("recording aborted: no macro name")
)

// DefaultMouseMoveInterval is the minimum spacing between retained
// mousemove events when mousemove capture is enabled.
const DefaultMouseMoveInterval = 200 * time.Millisecond

// Options controls what a recording session retains.
type Options struct {
	// RecordMouseMoves opts into mousemove capture. Off by default:
	// mousemove is the dominant noise source.
	RecordMouseMoves  bool
	MouseMoveInterval time.Duration
}

// capturedTypes is the fixed set of event types retained while
// recording. mousemove is handled separately.
var capturedTypes = map[string]bool{
	"click":    true,
	"input":    true,
	"change":   true,
	"mousedown": true,
	"mouseup":   true,
	"keydown":   true,
	"keyup":     true,
	"focusin":   true,
	"focusout":  true,
	"submit":    true,
}

// RawEvent is an interaction as observed on the page, before locator
// tagging and filtering.
type RawEvent struct {
	Type      string
	Target    dom.Element
	Value     string
	Checked   bool
	Key       string
	Code      string
	Button    int
	ClientX   float64
	ClientY   float64
	Modifiers models.Modifiers
	When      time.Time
}

// Recorder accumulates one macro at a time: Idle -> Recording -> Idle.
type Recorder struct {
	mu        sync.Mutex
	page      dom.Page
	recording bool
	name      string
	opts      Options
	events    []models.CapturedEvent
	lastMove  time.Time
	sinks     []func(models.CapturedEvent)
}

// New returns an idle recorder bound to a page.
func New(page dom.Page) *Recorder {
	return &Recorder{page: page}
}

// Start begins capturing. A no-op when already recording. The name may
// be empty and supplied at Stop instead.
func (r *Recorder) Start(name string, opts Options) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recording {
		return
	}
	if opts.MouseMoveInterval <= 0 {
		opts.MouseMoveInterval = DefaultMouseMoveInterval
	}
	r.recording = true
	r.name = name
	r.opts = opts
	r.events = nil
	r.lastMove = time.Time{}
}

// Recording reports whether a session is active.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// AddSink registers a callback invoked for every retained event
// (used to stream a live recording over a websocket).
func (r *Recorder) AddSink(fn func(models.CapturedEvent)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks = append(r.sinks, fn)
}

// Handle filters, tags and retains one observed event. Runs on the
// capture path and must return quickly; it never blocks.
func (r *Recorder) Handle(ev RawEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording || ev.Target == nil {
		return
	}
	if dom.InsideUIMarker(ev.Target) {
		return
	}
	if ev.Type == "mousemove" {
		if !r.opts.RecordMouseMoves {
			return
		}
		if !r.lastMove.IsZero() && ev.When.Sub(r.lastMove) < r.opts.MouseMoveInterval {
			return
		}
		r.lastMove = ev.When
	} else if !capturedTypes[ev.Type] {
		return
	}

	when := ev.When
	if when.IsZero() {
		when = time.Now()
	}
	captured := models.CapturedEvent{
		Type:      ev.Type,
		Locator:   locator.Generate(ev.Target),
		IndexPath: locator.ChildIndexPath(ev.Target),
		Value:     ev.Value,
		Checked:   ev.Checked,
		Timestamp: when.UnixMilli(),
		Key:       ev.Key,
		Code:      ev.Code,
		Button:    ev.Button,
		ClientX:   ev.ClientX,
		ClientY:   ev.ClientY,
		Modifiers: ev.Modifiers,
	}
	r.events = append(r.events, captured)
	for _, sink := range r.sinks {
		sink(captured)
	}
}

// Append retains events that were already captured and tagged
// elsewhere (the in-page capture script running in a live tab).
func (r *Recorder) Append(events ...models.CapturedEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return
	}
	r.events = append(r.events, events...)
	for _, sink := range r.sinks {
		for _, ev := range events {
			sink(ev)
		}
	}
}

// Events returns a copy of what has been captured so far.
func (r *Recorder) Events() []models.CapturedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.CapturedEvent(nil), r.events...)
}

// Stop ends the session. finalName overrides the name given at Start
// (the operator may be prompted only when stopping). An empty name
// aborts without persisting; zero captured events report
// ErrNothingRecorded.
func (r *Recorder) Stop(finalName string) (models.MacroData, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return models.MacroData{}, ErrNothingRecorded
	}
	r.recording = false
	events := r.events
	r.events = nil

	name := r.name
	if finalName != "" {
		name = finalName
	}
	if len(events) == 0 {
		return models.MacroData{}, ErrNothingRecorded
	}
	if name == "" {
		return models.MacroData{}, ErrNoName
	}
	return models.MacroData{Name: name, Events: events}, nil
}

// Abort discards the session without producing a macro.
func (r *Recorder) Abort() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recording = false
	r.events = nil
}
