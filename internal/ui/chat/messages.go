// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/jeranaias/cognilib/internal/session"
)

// =============================================================================
// SESSION MESSAGES
// =============================================================================

// EventsMsg carries what the controller published since the last delivery.
// Snapshot is nil when only notices arrived.
type EventsMsg struct {
	Snapshot *session.Snapshot
	Notices  []session.Notice
}

// bridgeClosedMsg is delivered once the bridge stops.
type bridgeClosedMsg struct{}

// =============================================================================
// INTENT MESSAGES
// =============================================================================

// intentDoneMsg reports that a controller call returned. Failures have
// already been published as notices.
type intentDoneMsg struct {
	op  string
	err error
}
