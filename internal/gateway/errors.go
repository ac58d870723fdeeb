// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// =============================================================================
// ERROR TAXONOMY
// =============================================================================

// ErrUnreachable indicates the gateway produced no response: dial failure,
// timeout, or a cancelled wait. The underlying cause is wrapped alongside it.
var ErrUnreachable = errors.New("gateway unreachable")

// errResponseTooLarge marks a response body over MaxResponseSize.
var errResponseTooLarge = errors.New("response too large")

// RejectedError is a non-success response from the gateway, or a success
// response whose body could not be understood.
type RejectedError struct {
	Op     string
	Status int
	Reason string
}

// Error implements the error interface. Without a reported reason the
// status text is shown.
func (e *RejectedError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = http.StatusText(e.Status)
	}
	if e.Op != "" {
		return fmt.Sprintf("gateway rejected %s (HTTP %d): %s", e.Op, e.Status, reason)
	}
	return fmt.Sprintf("gateway rejected request (HTTP %d): %s", e.Status, reason)
}

// IsUnreachable reports whether err means the gateway never answered.
func IsUnreachable(err error) bool {
	return errors.Is(err, ErrUnreachable)
}

// IsRejected reports whether err carries a gateway rejection.
func IsRejected(err error) bool {
	var rej *RejectedError
	return errors.As(err, &rej)
}

// Status returns the HTTP status of a rejection, or 0.
func Status(err error) int {
	var rej *RejectedError
	if errors.As(err, &rej) {
		return rej.Status
	}
	return 0
}

// Reason returns a short, user-facing cause for a gateway error.
// It returns "" for errors that did not come from the gateway and for
// rejections whose body named no reason.
func Reason(err error) string {
	var rej *RejectedError
	switch {
	case errors.As(err, &rej):
		return rej.Reason
	case errors.Is(err, context.DeadlineExceeded):
		return "Gateway timed out"
	case errors.Is(err, ErrUnreachable):
		return "Gateway unreachable"
	default:
		return ""
	}
}

func unreachable(op string, cause error) error {
	return fmt.Errorf("%w: %s: %w", ErrUnreachable, op, cause)
}

// isRetryable determines if an error should trigger a retry.
// Cancellation by the caller is never retried.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrUnreachable) {
		return true
	}
	var rej *RejectedError
	if errors.As(err, &rej) {
		return rej.Status >= 500 || rej.Status == http.StatusTooManyRequests
	}
	return false
}

// =============================================================================
// REASON PARSING
// =============================================================================

// errorBody covers {"detail": "..."}, {"detail": [{"msg": "..."}]} and {"message": "..."}.
type errorBody struct {
	Detail  json.RawMessage `json:"detail"`
	Message string          `json:"message"`
}

type detailItem struct {
	Msg string `json:"msg"`
}

// parseReason extracts the human-readable reason from an error body.
// It returns "" when the body carries none.
func parseReason(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		if len(eb.Detail) > 0 {
			var s string
			if json.Unmarshal(eb.Detail, &s) == nil && strings.TrimSpace(s) != "" {
				return s
			}
			var items []detailItem
			if json.Unmarshal(eb.Detail, &items) == nil && len(items) > 0 && items[0].Msg != "" {
				return items[0].Msg
			}
		}
		if strings.TrimSpace(eb.Message) != "" {
			return eb.Message
		}
	}
	return ""
}
