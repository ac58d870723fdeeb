// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"errors"
	"fmt"
)

// ErrPreconditionViolated is returned for intents that are rejected locally
// and never reach the gateway: a second send while one is in flight, a second
// upload while one is in flight, or selecting an unknown conversation.
var ErrPreconditionViolated = errors.New("precondition violated")

// ErrClosed is returned for intents issued after Close.
var ErrClosed = errors.New("session closed")

func preconditionf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrPreconditionViolated, fmt.Sprintf(format, args...))
}
