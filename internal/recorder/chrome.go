package recorder

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/gorilla/websocket"

	"formflow/backend/internal/models"
	"formflow/backend/pkg/chrome"
)

// ChromeSession drives a recording in a live Chrome tab. A capture
// script installed into the page observes interactions and queues them;
// the session drains the queue on a short interval and appends to the
// core Recorder. The script already filters and tags locators, so
// events arrive pre-formed.
type ChromeSession struct {
	mu        sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	recorder  *Recorder
	sessionID string
	targetURL string
	wsConn    *websocket.Conn
	started   bool
	pending   []models.CapturedEvent
}

// SessionManager tracks live recording sessions by id.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*ChromeSession
}

func NewSessionManager() *SessionManager {
	return &SessionManager{sessions: make(map[string]*ChromeSession)}
}

func NewChromeSession(sessionID string) *ChromeSession {
	return &ChromeSession{
		sessionID: sessionID,
		recorder:  New(nil),
	}
}

// Start launches a visible Chrome, navigates to targetURL, installs the
// capture script and begins draining events.
func (s *ChromeSession) Start(targetURL string, opts Options) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("recording is already in progress")
	}

	chromePath := chrome.FindChrome()
	if chromePath == "" {
		return fmt.Errorf("chrome browser not found, install Google Chrome or Chromium")
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(),
		chrome.AllocatorOptions(chromePath, false)...)
	ctx, ctxCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(log.Printf))
	s.ctx = ctx
	s.cancel = func() {
		ctxCancel()
		allocCancel()
	}

	if opts.MouseMoveInterval <= 0 {
		opts.MouseMoveInterval = DefaultMouseMoveInterval
	}
	err := chromedp.Run(s.ctx,
		chromedp.Navigate(targetURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Evaluate(captureScript(opts), nil),
	)
	if err != nil {
		s.cancel()
		return fmt.Errorf("failed to start recording: %w", err)
	}

	s.targetURL = targetURL
	s.started = true
	s.recorder.Start("", opts)

	go s.drainLoop()
	return nil
}

// Stop ends the session and builds the macro. The tab is closed either
// way; naming rules follow Recorder.Stop.
func (s *ChromeSession) Stop(name string) (models.MacroData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return models.MacroData{}, fmt.Errorf("no recording in progress")
	}
	s.started = false
	if s.cancel != nil {
		s.cancel()
	}

	// Snapshot before Stop clears the buffer so a later save can still
	// name and persist the capture.
	s.pending = s.recorder.Events()
	macro, err := s.recorder.Stop(name)
	if err != nil {
		return models.MacroData{}, err
	}
	macro.StartURL = s.targetURL
	return macro, nil
}

// Pending returns the events captured by a stopped session.
func (s *ChromeSession) Pending() (string, []models.CapturedEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.targetURL, append([]models.CapturedEvent(nil), s.pending...)
}

// Abort discards the session and closes the tab.
func (s *ChromeSession) Abort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = false
	if s.cancel != nil {
		s.cancel()
	}
	s.recorder.Abort()
}

func (s *ChromeSession) Recording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

func (s *ChromeSession) Events() []models.CapturedEvent {
	return s.recorder.Events()
}

// SetWebSocket streams every retained event to conn as it is captured.
func (s *ChromeSession) SetWebSocket(conn *websocket.Conn) {
	s.mu.Lock()
	s.wsConn = conn
	s.mu.Unlock()
	s.recorder.AddSink(func(ev models.CapturedEvent) {
		s.mu.Lock()
		c := s.wsConn
		s.mu.Unlock()
		if c == nil {
			return
		}
		data, _ := json.Marshal(ev)
		if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Printf("websocket write failed: %v", err)
		}
	})
}

func (s *ChromeSession) drainLoop() {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if !s.Recording() {
				return
			}
			var events []models.CapturedEvent
			err := chromedp.Run(s.ctx,
				chromedp.Evaluate(`window.__formflowRecorder ? window.__formflowRecorder.drain() : []`, &events),
			)
			if err != nil {
				log.Printf("failed to drain recorded events: %v", err)
				continue
			}
			if len(events) > 0 {
				s.recorder.Append(events...)
			}
		}
	}
}

// StartSession creates and starts a session under the given id.
func (m *SessionManager) StartSession(sessionID, targetURL string, opts Options) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[sessionID]; exists {
		return fmt.Errorf("recording session %s already exists", sessionID)
	}
	s := NewChromeSession(sessionID)
	if err := s.Start(targetURL, opts); err != nil {
		return err
	}
	m.sessions[sessionID] = s
	return nil
}

// StopSession ends a session and returns its macro. The session entry
// is kept until Cleanup so the caller can still read events.
func (m *SessionManager) StopSession(sessionID, name string) (models.MacroData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, exists := m.sessions[sessionID]
	if !exists {
		return models.MacroData{}, fmt.Errorf("recording session %s not found", sessionID)
	}
	return s.Stop(name)
}

func (m *SessionManager) Session(sessionID string) (*ChromeSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, exists := m.sessions[sessionID]
	return s, exists
}

// Status reports whether the session is live plus everything captured
// so far.
func (m *SessionManager) Status(sessionID string) (bool, []models.CapturedEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, exists := m.sessions[sessionID]
	if !exists {
		return false, nil, fmt.Errorf("recording session %s not found", sessionID)
	}
	return s.Recording(), s.Events(), nil
}

func (m *SessionManager) Cleanup(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, exists := m.sessions[sessionID]; exists {
		if s.Recording() {
			s.Abort()
		}
		delete(m.sessions, sessionID)
	}
}

// captureScript builds the in-page observer. It mirrors the locator
// rules used on the Go side (id first, body-rooted CSS path second,
// child-index chain alongside) so live captures replay through the
// same resolution ladder.
func captureScript(opts Options) string {
	moves := "false"
	if opts.RecordMouseMoves {
		moves = "true"
	}
	return fmt.Sprintf(captureScriptTemplate, moves, opts.MouseMoveInterval.Milliseconds())
}

const captureScriptTemplate = `
(function() {
	if (window.__formflowRecorder) return;

	var recordMoves = %s;
	var moveInterval = %d;

	window.__formflowRecorder = {
		events: [],
		lastMove: 0,

		drain: function() {
			var out = this.events;
			this.events = [];
			return out;
		},

		escapeIdent: function(s) {
			if (window.CSS && CSS.escape) return CSS.escape(s);
			return s.replace(/([^a-zA-Z0-9_ -￿-])/g, '\\$1');
		},

		indexPath: function(el) {
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

		segment: function(el) {
			var tag = el.tagName.toLowerCase();
			var parent = el.parentElement;
			if (!parent) return tag;
			var sameTag = 0, position = 0;
			for (var i = 0; i < parent.children.length; i++) {
				var sib = parent.children[i];
				if (sib.tagName === el.tagName) {
					sameTag++;
					if (sib === el) position = sameTag;
				}
			}
			if (sameTag > 1) return tag + ':nth-of-type(' + position + ')';
			var classes = Array.prototype.slice.call(el.classList);
			if (classes.length > 0) {
				var sel = tag;
				for (var j = 0; j < classes.length; j++) {
					sel += '.' + this.escapeIdent(classes[j]);
				}
				var matches = 0;
				for (var k = 0; k < parent.children.length; k++) {
					var s = parent.children[k];
					if (s.tagName === el.tagName && s.matches(sel)) matches++;
				}
				if (matches === 1) return sel;
			}
			return tag;
		},

		locator: function(el) {
			if (el.id) {
				return {kind: 'id', value: this.escapeIdent(el.id)};
			}
			var segs = [];
			var cur = el;
			while (cur && cur.tagName.toLowerCase() !== 'body') {
				segs.unshift(this.segment(cur));
				cur = cur.parentElement;
			}
			segs.unshift('body');
			return {kind: 'path', value: segs.join(' > ')};
		},

		record: function(ev, extra) {
			var target = ev.target;
			if (!target || !target.tagName) return;
			if (target.closest && target.closest('[data-formflow-ui]')) return;

			var entry = {
				type: ev.type,
				locator: this.locator(target),
				timestamp: Date.now(),
				modifiers: {
					shift: !!ev.shiftKey,
					ctrl: !!ev.ctrlKey,
					alt: !!ev.altKey,
					meta: !!ev.metaKey
				}
			};
			var idx = this.indexPath(target);
			if (idx && idx.length) entry.index_path = idx;
			if (extra) {
				for (var k in extra) entry[k] = extra[k];
			}
			this.events.push(entry);
		}
	};

	var rec = window.__formflowRecorder;

	['click', 'mousedown', 'mouseup'].forEach(function(type) {
		document.addEventListener(type, function(ev) {
			rec.record(ev, {
				button: ev.button,
				client_x: ev.clientX,
				client_y: ev.clientY
			});
		}, true);
	});

	['keydown', 'keyup'].forEach(function(type) {
		document.addEventListener(type, function(ev) {
			rec.record(ev, {key: ev.key, code: ev.code});
		}, true);
	});

	['input', 'change'].forEach(function(type) {
		document.addEventListener(type, function(ev) {
			var t = ev.target;
			rec.record(ev, {
				value: t.value !== undefined ? String(t.value) : '',
				checked: !!t.checked
			});
		}, true);
	});

	['focusin', 'focusout', 'submit'].forEach(function(type) {
		document.addEventListener(type, function(ev) {
			rec.record(ev);
		}, true);
	});

	if (recordMoves) {
		document.addEventListener('mousemove', function(ev) {
			var now = Date.now();
			if (now - rec.lastMove < moveInterval) return;
			rec.lastMove = now;
			rec.record(ev, {client_x: ev.clientX, client_y: ev.clientY});
		}, true);
	}
})();
`
