package content

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/CodeMonkeyCybersecurity/hera/pkg/target"
)

// renderWait gives client-side redirects and DOM-building scripts a moment
// to run before the page is captured.
const renderWait = 2 * time.Second

// renderPage loads the target in a headless browser so markup assembled by
// script is visible to the checks. Network events reveal where the document
// actually landed after meta-refresh or script redirects.
func (e *Extractor) renderPage(ctx context.Context, tgt *target.Target) (*fetchedPage, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(userAgent),
		chromedp.WindowSize(1366, 768),
	)

	allocCtx, cancel := chromedp.NewExecAllocator(ctx, opts...)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	timeoutCtx, cancel := context.WithTimeout(browserCtx, e.cfg.Timeouts.ContentTimeout())
	defer cancel()

	var mu sync.Mutex
	finalURL := tgt.URL
	chromedp.ListenTarget(timeoutCtx, func(ev interface{}) {
		resp, ok := ev.(*network.EventResponseReceived)
		if !ok || resp.Type != network.ResourceTypeDocument {
			return
		}
		mu.Lock()
		finalURL = resp.Response.URL
		mu.Unlock()
	})

	var html string
	err := chromedp.Run(timeoutCtx,
		network.Enable(),
		chromedp.Navigate(tgt.URL),
		chromedp.Sleep(renderWait),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return nil, err
	}

	mu.Lock()
	landed := finalURL
	mu.Unlock()

	parsed, err := url.Parse(landed)
	if err != nil {
		parsed, _ = url.Parse(tgt.URL)
	}

	body := []byte(html)
	page := &fetchedPage{finalURL: parsed}
	if int64(len(body)) > e.cfg.MaxBodyBytes {
		page.body = body[:e.cfg.MaxBodyBytes]
		page.truncated = true
	} else {
		page.body = body
	}
	return page, nil
}
