// Package httpx is the shared rate-limited, retrying request executor every
// source client in this repo builds on. It centralizes the retry/backoff
// policy so the three source clients only need to supply endpoints, headers
// and a semantic-success check.
package httpx

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"
)

var (
	// ErrAccessDenied is non-retryable: the caller must rotate credentials/headers.
	ErrAccessDenied = errors.New("httpx: access denied (401/403)")
	// ErrUnavailable is returned after the retry budget is exhausted.
	ErrUnavailable = errors.New("httpx: source unavailable after retries")
	// ErrSemanticError signals a structurally valid but hard-failure payload.
	ErrSemanticError = errors.New("httpx: source reported a semantic error")
	// ErrEmpty signals a valid "no data" response; callers treat it as success with an empty result.
	ErrEmpty = errors.New("httpx: source reported no data")
)

const (
	baseBackoff    = 2.0 // seconds
	maxTries       = 3   // first try plus retries
	requestTimeout = 30 * time.Second
	connectTimeout = 10 * time.Second
)

// SemanticCheck inspects the raw response body for the source's own "no-data"
// or "hard error" status code and maps it to ErrEmpty/ErrSemanticError.
// A nil return means the payload is a genuine success.
type SemanticCheck func(body []byte) error

// Decoder unmarshals a response body into dst.
type Decoder func(body []byte, dst any) error

func DecodeJSON(body []byte, dst any) error { return json.Unmarshal(body, dst) }
func DecodeXML(body []byte, dst any) error  { return xml.Unmarshal(body, dst) }

// Fetcher owns one bounded connection pool and one throttle value, matching
// "each source client owns its own HTTP client and a throttle value".
type Fetcher struct {
	client     *retryablehttp.Client
	limiter    *rate.Limiter
	headerFn   func(*http.Request)
	name       string
	mu         sync.Mutex
	callCount  int
	cancelled  bool
	cancelLock sync.RWMutex
}

// New builds a Fetcher with a per-request minimum delay (throttle) and an
// optional header-decoration callback applied to every outgoing request.
func New(name string, throttle time.Duration, headerFn func(*http.Request)) *Fetcher {
	rc := retryablehttp.NewClient()
	rc.Logger = nil
	rc.RetryMax = maxTries - 1 // RetryMax counts retries after the first try
	rc.HTTPClient.Timeout = requestTimeout
	rc.HTTPClient.Transport = &http.Transport{
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 20,
		DialContext: (&net.Dialer{
			Timeout: connectTimeout,
		}).DialContext,
	}

	f := &Fetcher{
		client:   rc,
		headerFn: headerFn,
		name:     name,
	}
	if throttle > 0 {
		f.limiter = rate.NewLimiter(rate.Every(throttle), 1)
	}

	rc.CheckRetry = f.checkRetry
	rc.Backoff = f.backoff
	return f
}

func (f *Fetcher) checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return true, nil // transport error / timeout: retry with base backoff
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return true, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return false, ErrAccessDenied
	case resp.StatusCode >= 400:
		return true, nil
	}
	return false, nil
}

func (f *Fetcher) backoff(min, max time.Duration, attempt int, resp *http.Response) time.Duration {
	if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
		secs := pow(baseBackoff, attempt) * 2
		return time.Duration(secs * float64(time.Second))
	}
	secs := pow(baseBackoff, attempt)
	return time.Duration(secs * float64(time.Second))
}

func pow(base float64, exp int) float64 {
	if exp < 1 {
		exp = 1
	}
	out := 1.0
	for i := 0; i < exp; i++ {
		out *= base
	}
	return out
}

// Stop marks the fetcher as cancelled; subsequent Fetch calls fail fast
// without issuing a new HTTP request (cooperative shutdown, spec §5).
func (f *Fetcher) Stop() {
	f.cancelLock.Lock()
	f.cancelled = true
	f.cancelLock.Unlock()
}

func (f *Fetcher) stopped() bool {
	f.cancelLock.RLock()
	defer f.cancelLock.RUnlock()
	return f.cancelled
}

// APICallCount returns the number of Fetch calls that reached the network
// so far, each counted once however many retries it took (used by the
// Full Listings Crawl's cooldown tracker, spec §5).
func (f *Fetcher) APICallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.callCount
}

// ResetAPICallCount zeroes the counter, called when a cooldown completes.
func (f *Fetcher) ResetAPICallCount() {
	f.mu.Lock()
	f.callCount = 0
	f.mu.Unlock()
}

// Fetch performs a GET with throttling, retries, and decoding; check, if
// non-nil, inspects the raw body for a source-level semantic failure before
// decode is attempted.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, query url.Values, decode Decoder, dst any, check SemanticCheck) error {
	if f.stopped() {
		return fmt.Errorf("httpx %s: fetcher stopped", f.name)
	}
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	u := rawURL
	if len(query) > 0 {
		u = rawURL + "?" + query.Encode()
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	if f.headerFn != nil {
		f.headerFn(req.Request)
	}

	f.mu.Lock()
	f.callCount++
	f.mu.Unlock()

	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(err, ErrAccessDenied) {
			return ErrAccessDenied
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return ErrAccessDenied
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return err
	}
	if check != nil {
		if semErr := check(body); semErr != nil {
			return semErr
		}
	}
	if dst == nil {
		return nil
	}
	return decode(body, dst)
}
