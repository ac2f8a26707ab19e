// Package session manages headless browser sessions and the fixed-size
// pool they are lent out from. Sessions are expensive to create, so the
// pool amortizes setup across many fetch tasks while capping concurrent
// browser load at the configured pool size.
package session

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// Config controls browser session behavior.
type Config struct {
	UserAgent   string
	PageTimeout time.Duration
	Headless    bool
}

// Launcher owns the shared Chrome exec allocator that every pooled
// session derives from.
type Launcher struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	cfg         Config
	logger      *zap.Logger
}

// NewLauncher builds the allocator. No browser process is started until
// the first session is created.
func NewLauncher(cfg Config, logger *zap.Logger) *Launcher {
	if cfg.PageTimeout <= 0 {
		cfg.PageTimeout = 30 * time.Second
	}
	opts := chromedp.DefaultExecAllocatorOptions[:]
	opts = append(opts,
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	return &Launcher{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		cfg:         cfg,
		logger:      logger,
	}
}

// NewSession starts a fresh browser context and warms it up.
func (l *Launcher) NewSession(ctx context.Context) (Resource, error) {
	browserCtx, browserCancel := chromedp.NewContext(l.allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		return nil, fmt.Errorf("browser warmup: %w", err)
	}
	select {
	case <-ctx.Done():
		browserCancel()
		return nil, fmt.Errorf("session init: %w", ctx.Err())
	default:
	}
	return &Session{
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		cfg:           l.cfg,
		logger:        l.logger,
	}, nil
}

// Close tears down the allocator after every session has been destroyed.
func (l *Launcher) Close() {
	l.allocCancel()
}

// Session is one stateful browser handle. It is borrowed by exactly one
// work item at a time; callers must not share it across goroutines.
type Session struct {
	browserCtx    context.Context
	browserCancel context.CancelFunc
	cfg           Config
	logger        *zap.Logger
}

// Page is a rendered document snapshot.
type Page struct {
	URL        string
	FinalURL   string
	StatusCode int
	HTML       string
}

// Fetch navigates to the URL in a fresh tab and returns the rendered DOM.
func (s *Session) Fetch(ctx context.Context, rawURL string) (Page, error) {
	tabCtx, cancelTab := chromedp.NewContext(s.browserCtx)
	defer cancelTab()

	taskCtx, cancelTask := context.WithTimeout(tabCtx, s.cfg.PageTimeout)
	defer cancelTask()

	stop := forwardCancel(ctx, cancelTask)
	defer stop()

	meta := &responseMeta{}
	recordResponse(tabCtx, meta)

	var html string
	tasks := chromedp.Tasks{
		network.Enable(),
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if s.cfg.UserAgent != "" {
		tasks = append(chromedp.Tasks{emulation.SetUserAgentOverride(s.cfg.UserAgent)}, tasks...)
	}
	if err := chromedp.Run(taskCtx, tasks); err != nil {
		return Page{}, fmt.Errorf("render %s: %w", rawURL, err)
	}

	page := Page{
		URL:        rawURL,
		FinalURL:   meta.finalURL(rawURL),
		StatusCode: meta.status(),
		HTML:       html,
	}
	return page, nil
}

// Close destroys the underlying browser context.
func (s *Session) Close(_ context.Context) error {
	s.browserCancel()
	return nil
}

// responseMeta captures the first document response of a navigation. The
// setter runs on the chromedp event goroutine, so the fields are guarded
// by a mutex rather than read bare after Run returns.
type responseMeta struct {
	mu         sync.Mutex
	recorded   bool
	statusCode int
	url        string
}

func (m *responseMeta) record(statusCode int, url string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recorded {
		return
	}
	m.recorded = true
	m.statusCode = statusCode
	m.url = url
}

func (m *responseMeta) finalURL(raw string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.url == "" {
		return raw
	}
	return m.url
}

func (m *responseMeta) status() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.statusCode == 0 {
		return http.StatusOK
	}
	return m.statusCode
}

func recordResponse(tabCtx context.Context, meta *responseMeta) {
	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		resp, ok := ev.(*network.EventResponseReceived)
		if !ok || resp.Type != network.ResourceTypeDocument {
			return
		}
		meta.record(int(resp.Response.Status), resp.Response.URL)
	})
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
