package agent

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultTimeout bounds a single executor call when no timeout is given.
const DefaultTimeout = 300 * time.Second

// ErrTimeout is reported when an executor call exceeds its deadline.
var ErrTimeout = errors.New("executor timed out")

type invokeResult struct {
	resp *Response
	err  error
}

// Invoke runs exec under timeout and always returns a response. Errors,
// panics, deadline expiry and nil responses become failure responses with
// confidence 0. Confidence is clamped into [0, 1].
func Invoke(ctx context.Context, exec Executor, req *Request, timeout time.Duration) *Response {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Buffered so a late executor never blocks after we stop listening.
	done := make(chan invokeResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- invokeResult{err: fmt.Errorf("executor panic: %v", r)}
			}
		}()
		resp, err := exec.Execute(ctx, req)
		done <- invokeResult{resp: resp, err: err}
	}()

	select {
	case res := <-done:
		return normalize(res)
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Failure(fmt.Errorf("%w after %s", ErrTimeout, timeout))
		}
		return Failure(ctx.Err())
	}
}

// Failure builds the failure response recorded for err.
func Failure(err error) *Response {
	return &Response{Success: false, Confidence: 0, Error: err.Error()}
}

func normalize(res invokeResult) *Response {
	if res.err != nil {
		return Failure(res.err)
	}
	if res.resp == nil {
		return Failure(errors.New("executor returned no response"))
	}

	resp := *res.resp
	switch {
	case resp.Confidence < 0:
		resp.Confidence = 0
	case resp.Confidence > 1:
		resp.Confidence = 1
	}
	if !resp.Success && resp.Error == "" {
		resp.Error = "executor reported failure"
	}
	return &resp
}
