package llm

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"
)

// Provider is a chat-completion backend. Complete sends the full message
// transcript and returns the assistant's reply as a single string.
type Provider interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	maxRetries     = 3
	retryBaseDelay = 200 * time.Millisecond
)

func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// doWithRetry executes an HTTP request with exponential backoff on transient
// errors. makeReq is called once per attempt so the request body can be
// re-read. The returned response is only an error-free final attempt; on
// retry the previous response body is discarded.
func doWithRetry(ctx context.Context, client *http.Client, makeReq func() (*http.Request, error)) (*http.Response, error) {
	var resp *http.Response
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := retryBaseDelay * time.Duration(1<<(attempt-1))
			if resp != nil {
				if ra := resp.Header.Get("Retry-After"); ra != "" {
					if secs, parseErr := strconv.Atoi(ra); parseErr == nil && secs > 0 && secs <= 120 {
						backoff = time.Duration(secs) * time.Second
					}
				}
				resp.Body.Close()
			}
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}
		var req *http.Request
		req, err = makeReq()
		if err != nil {
			return nil, err
		}
		resp, err = client.Do(req)
		if err != nil {
			if !isRetryableError(err) {
				return nil, err
			}
			continue
		}
		if !isRetryableStatus(resp.StatusCode) {
			return resp, nil
		}
	}
	if err != nil {
		return nil, err
	}
	resp.Body.Close()
	return nil, &RetryExhaustedError{Status: resp.Status}
}

// RetryExhaustedError reports that every attempt returned a retryable status.
type RetryExhaustedError struct {
	Status string
}

func (e *RetryExhaustedError) Error() string {
	return "retries exhausted, last status " + e.Status
}
