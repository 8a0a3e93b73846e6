package infra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
)

// ErrUpstream means a peer service could not be reached or kept failing.
// Callers treat it as transient.
var ErrUpstream = errors.New("upstream service unavailable")

var errNotFound = errors.New("not found")

type statusError struct {
	code int
}

func (e *statusError) Error() string { return fmt.Sprintf("unexpected status %d", e.code) }

// upstream is a JSON GET client guarded by a circuit breaker, with bounded
// exponential retries for transient failures.
type upstream struct {
	name       string
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[[]byte]
	attempts   int
}

func newUpstream(name, baseURL string, timeout time.Duration, attempts int) *upstream {
	if attempts <= 0 {
		attempts = 1
	}
	return &upstream{
		name:       name,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		attempts:   attempts,
		breaker: gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     10 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 5
			},
			IsSuccessful: func(err error) bool {
				var se *statusError
				return err == nil || errors.Is(err, errNotFound) || (errors.As(err, &se) && se.code < 500)
			},
		}),
	}
}

// getJSON decodes the resource at path into out. It reports false when the
// peer answered 404.
func (u *upstream) getJSON(ctx context.Context, path string, out any) (bool, error) {
	var body []byte
	op := func() error {
		b, err := u.breaker.Execute(func() ([]byte, error) { return u.fetch(ctx, path) })
		var se *statusError
		switch {
		case err == nil:
			body = b
			return nil
		case errors.Is(err, errNotFound),
			errors.Is(err, gobreaker.ErrOpenState),
			errors.Is(err, gobreaker.ErrTooManyRequests),
			errors.As(err, &se) && se.code < 500:
			return backoff.Permanent(err)
		default:
			return err
		}
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = time.Second
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(u.attempts-1)), ctx)

	if err := backoff.Retry(op, policy); err != nil {
		if errors.Is(err, errNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %s %s: %v", ErrUpstream, u.name, path, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return false, fmt.Errorf("%w: %s %s: decode: %v", ErrUpstream, u.name, path, err)
	}
	return true, nil
}

func (u *upstream) fetch(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := u.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{code: resp.StatusCode}
	}
	return io.ReadAll(resp.Body)
}
