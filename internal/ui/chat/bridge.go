// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/cognilib/internal/session"
)

// =============================================================================
// SESSION BRIDGE
// =============================================================================

// Bridge adapts controller callbacks to Bubble Tea messages. Callbacks never
// block: snapshots are coalesced to the latest one and notices are queued
// until the program asks for them.
type Bridge struct {
	mu      sync.Mutex
	latest  *session.Snapshot
	notices []session.Notice
	signal  chan struct{}
	ctx     context.Context
}

// NewBridge creates a bridge that stops delivering when ctx is done.
func NewBridge(ctx context.Context) *Bridge {
	return &Bridge{
		signal: make(chan struct{}, 1),
		ctx:    ctx,
	}
}

// OnSnapshot implements session.Listener.
func (b *Bridge) OnSnapshot(s session.Snapshot) {
	b.mu.Lock()
	if b.latest == nil || s.Version >= b.latest.Version {
		b.latest = &s
	}
	b.mu.Unlock()
	b.wake()
}

// OnNotice implements session.Listener.
func (b *Bridge) OnNotice(n session.Notice) {
	b.mu.Lock()
	b.notices = append(b.notices, n)
	b.mu.Unlock()
	b.wake()
}

func (b *Bridge) wake() {
	select {
	case b.signal <- struct{}{}:
	default:
	}
}

// Wait returns a command that blocks until something was published and then
// delivers it as an EventsMsg. Issue it again after every delivery.
func (b *Bridge) Wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-b.ctx.Done():
			return bridgeClosedMsg{}
		case <-b.signal:
		}
		return b.drain()
	}
}

func (b *Bridge) drain() EventsMsg {
	b.mu.Lock()
	defer b.mu.Unlock()
	msg := EventsMsg{Snapshot: b.latest, Notices: b.notices}
	b.latest = nil
	b.notices = nil
	return msg
}
