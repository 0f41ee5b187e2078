package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"
)

const (
	defaultMaxRetries = 3
	defaultBackoff    = 500 * time.Millisecond
	maxRetryAfter     = time.Minute
)

// retryDecision says whether a failed attempt may be sent again and after how long.
type retryDecision struct {
	retry bool
	wait  time.Duration
}

// decideRetry classifies one attempt.
//
// Reads are repeated on transport errors, 429 and 5xx. Playlist writes (POST) are not
// deduplicated by Spotify, so they are repeated only when the request provably never took
// effect: a 429 rejection or a failure to connect. A 5xx or a dropped connection after the
// request was sent may already have added the track.
func decideRetry(method string, resp *http.Response, err error) retryDecision {
	idempotent := method != http.MethodPost && method != http.MethodPatch

	if err != nil {
		return retryDecision{retry: idempotent || isDialError(err)}
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return retryDecision{retry: true, wait: parseRetryAfter(resp)}
	case resp.StatusCode >= http.StatusInternalServerError:
		return retryDecision{retry: idempotent, wait: parseRetryAfter(resp)}
	default:
		return retryDecision{}
	}
}

// isDialError reports whether err happened before any bytes reached the server.
func isDialError(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

// doRequestWithRetry sends req, repeating it as [decideRetry] allows with exponential backoff.
// Retry-After is honoured up to a minute.
func (s *SpotifyService) doRequestWithRetry(req *http.Request) (*http.Response, error) {
	attempts := s.maxRetries
	if attempts <= 0 {
		attempts = defaultMaxRetries
	}
	backoff := s.baseBackoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}

	if err := bufferBody(req); err != nil {
		return nil, err
	}

	ctx := req.Context()
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("reset request body: %w", err)
			}
			req.Body = body
		}

		resp, err := s.httpClient.Do(req)
		decision := decideRetry(req.Method, resp, err)
		if !decision.retry {
			return resp, err
		}

		if err != nil {
			lastErr = err
			s.logger.Warn("spotify request failed", "method", req.Method, "path", req.URL.Path,
				"attempt", attempt, "of", attempts, "error", err)
		} else {
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			s.logger.Warn("spotify request failed", "method", req.Method, "path", req.URL.Path,
				"attempt", attempt, "of", attempts, "status", resp.StatusCode)
			resp.Body.Close()
		}
		if attempt == attempts {
			break
		}

		wait := decision.wait
		if wait <= 0 {
			wait = backoff << (attempt - 1)
		}
		if err := sleepWithContext(ctx, min(wait, maxRetryAfter)); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("request failed after %d attempts: %w", attempts, lastErr)
}

// bufferBody makes req's body replayable.
func bufferBody(req *http.Request) error {
	if req.Body == nil || req.GetBody != nil {
		return nil
	}
	data, err := io.ReadAll(req.Body)
	if err != nil {
		return fmt.Errorf("read request body: %w", err)
	}
	req.Body.Close()
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	return nil
}

func parseRetryAfter(resp *http.Response) time.Duration {
	value := resp.Header.Get("Retry-After")
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if when, err := http.ParseTime(value); err == nil {
		return max(time.Until(when), 0)
	}
	return 0
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("request canceled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
