package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/site-harvester/pkg/config"
	"github.com/Sriram-PR/site-harvester/pkg/utils"
)

// Page is the outcome of a GET: final location, status, content type and (size-capped) body
type Page struct {
	RequestURL  string
	FinalURL    *url.URL
	StatusCode  int
	ContentType string
	Body        []byte
	Truncated   bool // Body hit the max_body_bytes cap
}

// Fetcher makes HTTP requests with retry and backoff on top of an http.Client
type Fetcher struct {
	client    *http.Client
	cfg       *config.AppConfig // Retry settings and body cap
	userAgent string
	log       *logrus.Entry
}

// NewFetcher creates a new Fetcher instance
func NewFetcher(client *http.Client, cfg *config.AppConfig, log *logrus.Entry) *Fetcher {
	ua := cfg.DefaultUserAgent
	if ua == "" {
		ua = config.DefaultUserAgent
	}
	return &Fetcher{
		client:    client,
		cfg:       cfg,
		userAgent: ua,
		log:       log,
	}
}

// WithUserAgent returns a copy of f that identifies itself as ua
func (f *Fetcher) WithUserAgent(ua string) *Fetcher {
	if ua == "" {
		return f
	}
	clone := *f
	clone.userAgent = ua
	return &clone
}

// UserAgent returns the client identifier sent with every request
func (f *Fetcher) UserAgent() string { return f.userAgent }

// Get fetches rawURL and reads its body.
// A non-2xx response returns both the Page (without body) and an error wrapping *utils.HTTPStatusError.
func (f *Fetcher) Get(ctx context.Context, rawURL string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrRequestCreation, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,text/plain;q=0.8,*/*;q=0.5")

	resp, fetchErr := f.FetchWithRetry(req, ctx)
	if resp == nil {
		return nil, fetchErr
	}
	defer resp.Body.Close()

	page := &Page{
		RequestURL:  rawURL,
		FinalURL:    resp.Request.URL,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
	}
	if fetchErr != nil {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		return page, fetchErr
	}

	limit := f.cfg.MaxBodyBytes
	if limit <= 0 {
		limit = config.DefaultMaxBodyBytes
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return page, fmt.Errorf("%w: %v", utils.ErrResponseBodyRead, err)
	}
	if int64(len(body)) > limit {
		body = body[:limit]
		page.Truncated = true
		f.log.WithFields(logrus.Fields{"url": rawURL, "limit": limit}).Warn("Response body truncated")
	}
	page.Body = body
	return page, nil
}

// FetchWithRetry performs an HTTP request associated with the provided context.
// Network errors, 5xx and 429 are retried with exponential backoff and jitter.
// Other 4xx and non-2xx statuses return the response together with a *utils.HTTPStatusError;
// the caller must close the body in every case where a response is returned.
func (f *Fetcher) FetchWithRetry(req *http.Request, ctx context.Context) (*http.Response, error) {
	var lastErr error
	var currentResp *http.Response

	reqLog := f.log.WithField("url", req.URL.String())

	maxRetries := f.cfg.MaxRetries
	initialRetryDelay := f.cfg.InitialRetryDelay
	maxRetryDelay := f.cfg.MaxRetryDelay

	for attempt := 0; attempt <= maxRetries; attempt++ {
		select {
		case <-ctx.Done():
			if lastErr != nil {
				return nil, fmt.Errorf("context cancelled (%v) during retry backoff after error: %w", ctx.Err(), lastErr)
			}
			return nil, fmt.Errorf("context cancelled before first attempt: %w", ctx.Err())
		default:
		}

		if attempt > 0 {
			backoff := float64(initialRetryDelay) * math.Pow(2, float64(attempt-1))
			delay := time.Duration(backoff)
			if delay <= 0 || delay > maxRetryDelay {
				delay = maxRetryDelay
			}
			// +/- 10% jitter
			var jitter time.Duration
			if delay/5 > 0 {
				jitter = time.Duration(rand.Int63n(int64(delay)/5)) - (delay / 10)
			}
			finalDelay := delay + jitter
			if finalDelay < 0 {
				finalDelay = 0
			}

			reqLog.WithFields(logrus.Fields{"attempt": attempt, "max_retries": maxRetries, "delay": finalDelay}).Warn("Retrying request...")

			timer := time.NewTimer(finalDelay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				if lastErr != nil {
					return nil, fmt.Errorf("context cancelled (%v) during retry delay after error: %w", ctx.Err(), lastErr)
				}
				return nil, fmt.Errorf("context cancelled during retry delay: %w", ctx.Err())
			}
		}

		currentResp, lastErr = f.client.Do(req.WithContext(ctx))

		if lastErr != nil {
			if currentResp != nil {
				io.Copy(io.Discard, currentResp.Body)
				currentResp.Body.Close()
				currentResp = nil
			}
			if errors.Is(lastErr, context.Canceled) || (errors.Is(lastErr, context.DeadlineExceeded) && ctx.Err() != nil) {
				reqLog.Warnf("Context ended during HTTP request: %v", lastErr)
				return nil, lastErr
			}
			if errors.Is(lastErr, ErrTooManyRedirects) {
				return nil, lastErr
			}
			reqLog.WithField("attempt", attempt).Warnf("Network error: %v", lastErr)
			continue
		}

		statusCode := currentResp.StatusCode
		resLog := reqLog.WithFields(logrus.Fields{"status_code": statusCode, "attempt": attempt})
		statusErr := &utils.HTTPStatusError{StatusCode: statusCode, Status: currentResp.Status, URL: req.URL.String()}

		switch {
		case statusCode >= 200 && statusCode < 300:
			resLog.Debug("Fetched")
			return currentResp, nil

		case statusCode >= 500, statusCode == http.StatusTooManyRequests:
			resLog.Warn("Transient HTTP status, retrying...")
			lastErr = statusErr
			io.Copy(io.Discard, currentResp.Body)
			currentResp.Body.Close()
			currentResp = nil
			continue

		case statusCode >= 400:
			resLog.Debug("Client error (4xx), not retrying")
			return currentResp, statusErr

		default:
			resLog.Warnf("Unexpected status: %d", statusCode)
			return currentResp, statusErr
		}
	}

	reqLog.Warnf("All %d fetch attempts failed. Last error: %v", maxRetries+1, lastErr)
	if lastErr != nil {
		if errors.Is(lastErr, context.Canceled) || (errors.Is(lastErr, context.DeadlineExceeded) && ctx.Err() != nil) {
			return nil, lastErr
		}
		return nil, fmt.Errorf("%w: %w", utils.ErrRetryFailed, lastErr)
	}
	return nil, utils.ErrRetryFailed
}
