package utils

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/muteekhan06/olx-scraper-auto/config"
)

// ErrSessionCreation indicates no compatible browser runtime could be
// started. It is fatal and never retried.
var ErrSessionCreation = errors.New("browser session creation failed")

// webdriverMask hides the automation flag on every new document.
const webdriverMask = `Object.defineProperty(navigator, 'webdriver', {get: () => undefined})`

// Session is one isolated browser context (its own Chrome process and tab),
// exclusively owned by whoever created it.
type Session struct {
	ID  string
	Ctx context.Context

	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	pool        *SessionPool

	mu     sync.Mutex
	closed bool
}

// Run executes chromedp actions against this session's tab.
func (s *Session) Run(actions ...chromedp.Action) error {
	return chromedp.Run(s.Ctx, actions...)
}

// Cookies returns every cookie currently held by the browser.
func (s *Session) Cookies() ([]*network.Cookie, error) {
	var cookies []*network.Cookie
	err := chromedp.Run(s.Ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = network.GetCookies().Do(ctx)
		return err
	}))
	return cookies, err
}

// Close tears the session down and removes it from the pool. Safe to call
// more than once.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	if s.cancelTab != nil {
		s.cancelTab()
	}
	if s.cancelAlloc != nil {
		s.cancelAlloc()
	}
	if s.pool != nil {
		s.pool.untrack(s.ID)
	}
}

// SessionPool creates browser sessions and tracks every live one so leaked
// sessions can be force-closed at shutdown. Pool membership is the only
// shared mutable state in the crawl core.
type SessionPool struct {
	cfg config.Config
	log *zap.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewSessionPool builds an empty pool.
func NewSessionPool(cfg config.Config, logger *zap.Logger) *SessionPool {
	return &SessionPool{
		cfg:      cfg,
		log:      logger.Named("browser"),
		sessions: make(map[string]*Session),
	}
}

// allocatorOptions is the primary anti-fingerprinting profile.
func (p *SessionPool) allocatorOptions(headless bool) []chromedp.ExecAllocatorOption {
	return append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("lang", "en-US"),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("disable-notifications", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("exclude-switches", "enable-automation"),
		chromedp.UserAgent(p.cfg.UserAgent),
		chromedp.WindowSize(1920, 1080),
	)
}

// fallbackOptions is the alternate creation profile tried once when the
// primary profile cannot start a browser: old headless mode, minimal flags.
func (p *SessionPool) fallbackOptions(headless bool) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1920, 1080),
	)
	if headless {
		opts = append(opts, chromedp.Flag("headless", "old"))
	} else {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	return opts
}

// NewSession starts a browser and returns an isolated session. On primary
// creation failure one fallback profile is attempted before giving up with
// ErrSessionCreation.
func (p *SessionPool) NewSession(parent context.Context, headless bool) (*Session, error) {
	s, primaryErr := p.start(parent, p.allocatorOptions(headless))
	if primaryErr == nil {
		return s, nil
	}

	p.log.Warn("primary browser start failed, trying fallback profile",
		zap.Error(primaryErr))

	s, fallbackErr := p.start(parent, p.fallbackOptions(headless))
	if fallbackErr == nil {
		return s, nil
	}

	return nil, fmt.Errorf("%w: %v (fallback: %v)", ErrSessionCreation, primaryErr, fallbackErr)
}

func (p *SessionPool) start(parent context.Context, opts []chromedp.ExecAllocatorOption) (*Session, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(parent, opts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)

	// Starting the browser and installing the webdriver mask happen in one
	// round trip; the mask must be in place before any navigation.
	err := chromedp.Run(tabCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(webdriverMask).Do(ctx)
		return err
	}))
	if err != nil {
		cancelTab()
		cancelAlloc()
		return nil, err
	}

	s := &Session{
		ID:          uuid.New().String(),
		Ctx:         tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
		pool:        p,
	}
	p.track(s)
	p.log.Debug("browser session started", zap.String("session_id", s.ID))
	return s, nil
}

func (p *SessionPool) track(s *Session) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessions[s.ID] = s
}

func (p *SessionPool) untrack(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.sessions, id)
}

// Len returns the number of live sessions.
func (p *SessionPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sessions)
}

// CloseAll force-terminates every session still tracked by the pool.
func (p *SessionPool) CloseAll() {
	p.mu.Lock()
	leaked := make([]*Session, 0, len(p.sessions))
	for _, s := range p.sessions {
		leaked = append(leaked, s)
	}
	p.mu.Unlock()

	for _, s := range leaked {
		s.Close()
	}
	if len(leaked) > 0 {
		p.log.Debug("closed leaked browser sessions", zap.Int("count", len(leaked)))
	}
}
