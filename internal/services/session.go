package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/google/uuid"

	"formflow/backend/internal/dom"
	"formflow/backend/pkg/chrome"
)

// BrowserSession is a headful Chrome tab held open for interactive
// work: form filling and training against a page the operator can see.
type BrowserSession struct {
	ID        string
	URL       string
	Page      *dom.ChromePage
	CreatedAt time.Time
	cancel    context.CancelFunc
}

// SessionService tracks interactive browser sessions by id.
type SessionService struct {
	mu       sync.Mutex
	sessions map[string]*BrowserSession
	max      int
}

var GlobalSessions *SessionService

func InitSessions(maxSessions int) {
	if maxSessions <= 0 {
		maxSessions = 10
	}
	GlobalSessions = &SessionService{
		sessions: make(map[string]*BrowserSession),
		max:      maxSessions,
	}
	log.Println("Session service initialized")
}

// Open launches a visible tab at url and returns the session.
func (s *SessionService) Open(url string) (*BrowserSession, error) {
	s.mu.Lock()
	if len(s.sessions) >= s.max {
		s.mu.Unlock()
		return nil, fmt.Errorf("too many open sessions (max %d)", s.max)
	}
	s.mu.Unlock()

	chromePath := chrome.FindChrome()
	if chromePath == "" {
		return nil, fmt.Errorf("chrome browser not found")
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(),
		chrome.AllocatorOptions(chromePath, false)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(log.Printf))
	cancel := func() {
		tabCancel()
		allocCancel()
	}

	err := chromedp.Run(tabCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open %s: %w", url, err)
	}

	page, err := dom.NewChromePage(tabCtx)
	if err != nil {
		cancel()
		return nil, err
	}

	session := &BrowserSession{
		ID:        uuid.New().String(),
		URL:       url,
		Page:      page,
		CreatedAt: time.Now(),
		cancel:    cancel,
	}
	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()
	return session, nil
}

func (s *SessionService) Get(id string) (*BrowserSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	return session, ok
}

// Close ends a session and its tab.
func (s *SessionService) Close(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return false
	}
	session.cancel()
	delete(s.sessions, id)
	return true
}

func (s *SessionService) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, session := range s.sessions {
		session.cancel()
		delete(s.sessions, id)
	}
}
