package pageclient

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/fitmirror/fitmirror/internal/logging"
)

// ChromedpClient renders a page in a headless browser before snapshotting its
// HTML, so storefronts that build their galleries with scripts still yield
// extractable markup.
type ChromedpClient struct {
	idleAfter time.Duration
	allocOpts []chromedp.ExecAllocatorOption
	logger    logging.Logger
}

func NewChromedpClient(cfg Config, logger logging.Logger) (*ChromedpClient, error) {
	if logger == nil {
		logger = logging.NewStdoutLogger("pageclient")
	}
	idleAfter := cfg.IdleAfter
	if idleAfter <= 0 {
		idleAfter = 2 * time.Second
	}

	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	if !cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", false))
	}

	return &ChromedpClient{
		idleAfter: idleAfter,
		allocOpts: opts,
		logger:    logger.With(logging.Field{Key: "component", Value: "pageclient-chromedp"}),
	}, nil
}

// waitNetworkIdle signals once no network request has been active for
// idleAfter, the cue that a script-driven gallery has settled.
func waitNetworkIdle(ctx context.Context, idleAfter time.Duration) chan struct{} {
	idleChan := make(chan struct{})
	var activeReqs int32
	var timer *time.Timer
	var timerMutex sync.Mutex
	var once sync.Once

	startTimer := func() {
		timerMutex.Lock()
		defer timerMutex.Unlock()

		if timer != nil {
			timer.Stop()
		}

		timer = time.AfterFunc(idleAfter, func() {
			if atomic.LoadInt32(&activeReqs) == 0 {
				once.Do(func() {
					close(idleChan)
				})
			}
		})
	}

	chromedp.ListenTarget(ctx,
		func(ev any) {
			switch ev.(type) {
			case *network.EventRequestWillBeSent:
				atomic.AddInt32(&activeReqs, 1)
			case *network.EventLoadingFinished, *network.EventLoadingFailed:
				if atomic.AddInt32(&activeReqs, -1) == 0 {
					startTimer()
				}
			}
		})

	startTimer()
	return idleChan
}

func (c *ChromedpClient) Do(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, fmt.Errorf("nil request")
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, c.allocOpts...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	idleChan := waitNetworkIdle(browserCtx, c.idleAfter)

	if err := chromedp.Run(browserCtx, chromedp.Navigate(req.URL)); err != nil {
		return nil, fmt.Errorf("navigate %s: %w", req.URL, err)
	}

	select {
	case <-idleChan:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var html string
	if err := chromedp.Run(browserCtx, chromedp.OuterHTML("html", &html)); err != nil {
		return nil, fmt.Errorf("snapshot html: %w", err)
	}

	return &Response{
		Request:    req,
		Body:       []byte(html),
		Headers:    http.Header{"Content-Type": []string{"text/html"}},
		StatusCode: http.StatusOK,
		FetchedAt:  time.Now(),
	}, nil
}

// Get is a convenience method for simple GET requests
func (c *ChromedpClient) Get(ctx context.Context, url string) (*Response, error) {
	return c.Do(ctx, &Request{Method: "GET", URL: url})
}

func (c *ChromedpClient) Close() error {
	return nil
}
