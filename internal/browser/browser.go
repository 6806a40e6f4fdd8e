// Package browser drives headless Chrome to find playlist URLs that pages
// only request from script, and to collect links from rendered pages.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// ErrNotCaptured is returned when a page made no matching request in time.
var ErrNotCaptured = errors.New("no matching request captured")

// Options configures the Chrome process.
type Options struct {
	ChromePath string        // "" = let chromedp find Chrome
	UserAgent  string
	Wait       time.Duration // how long a page gets to fire its requests
	Timeout    time.Duration // per page, including Wait; 0 = Wait + 30s
}

// Browser is what the scrape job and the page source need from Chrome.
type Browser interface {
	// Links returns the page's anchors whose href contains substr.
	Links(ctx context.Context, pageURL, substr string) ([]string, error)
	// Capture returns the first request URL the page makes that match accepts.
	Capture(ctx context.Context, pageURL string, match func(string) bool) (string, error)
}

// Session is one Chrome process. Pages open in new tabs of it.
type Session struct {
	opts        Options
	ctx         context.Context
	cancelAlloc context.CancelFunc
	cancelCtx   context.CancelFunc
}

// NewSession starts Chrome. Close must be called to stop it.
func NewSession(ctx context.Context, opts Options) (*Session, error) {
	if opts.Wait <= 0 {
		opts.Wait = 10 * time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = opts.Wait + 30*time.Second
	}
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if opts.ChromePath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ChromePath))
	}
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	bctx, cancelCtx := chromedp.NewContext(allocCtx)
	// Run with no actions starts the browser so launch errors surface here.
	if err := chromedp.Run(bctx); err != nil {
		cancelCtx()
		cancelAlloc()
		return nil, fmt.Errorf("start chrome: %w", err)
	}
	return &Session{opts: opts, ctx: bctx, cancelAlloc: cancelAlloc, cancelCtx: cancelCtx}, nil
}

// Close stops Chrome.
func (s *Session) Close() {
	s.cancelCtx()
	s.cancelAlloc()
}

// tab opens a new tab bounded by ctx and the per-page timeout.
func (s *Session) tab(ctx context.Context) (context.Context, context.CancelFunc) {
	tctx, cancelTab := chromedp.NewContext(s.ctx)
	tctx, cancelTimeout := context.WithTimeout(tctx, s.opts.Timeout)
	stop := context.AfterFunc(ctx, cancelTimeout)
	return tctx, func() {
		stop()
		cancelTimeout()
		cancelTab()
	}
}

func (s *Session) Links(ctx context.Context, pageURL, substr string) ([]string, error) {
	tctx, cancel := s.tab(ctx)
	defer cancel()
	var doc string
	err := chromedp.Run(tctx,
		chromedp.Navigate(pageURL),
		chromedp.Sleep(s.opts.Wait/2),
		chromedp.OuterHTML("html", &doc, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", pageURL, err)
	}
	return ExtractLinks(doc, pageURL, substr), nil
}

func (s *Session) Capture(ctx context.Context, pageURL string, match func(string) bool) (string, error) {
	tctx, cancel := s.tab(ctx)
	defer cancel()

	var once sync.Once
	hit := make(chan string, 1)
	chromedp.ListenTarget(tctx, func(ev any) {
		if e, ok := ev.(*network.EventRequestWillBeSent); ok && match(e.Request.URL) {
			once.Do(func() { hit <- e.Request.URL })
		}
	})
	if err := chromedp.Run(tctx, network.Enable(), chromedp.Navigate(pageURL)); err != nil {
		select {
		case u := <-hit:
			return u, nil
		default:
		}
		return "", fmt.Errorf("load %s: %w", pageURL, err)
	}
	timer := time.NewTimer(s.opts.Wait)
	defer timer.Stop()
	select {
	case u := <-hit:
		log.Printf("browser: captured %s", u)
		return u, nil
	case <-timer.C:
		return "", fmt.Errorf("%s: %w", pageURL, ErrNotCaptured)
	case <-tctx.Done():
		return "", fmt.Errorf("%s: %w", pageURL, tctx.Err())
	}
}
