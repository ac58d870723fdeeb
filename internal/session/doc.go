// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session reconciles local session state with the gateway.
//
// A Controller owns the conversation list, the active conversation's message
// buffer, the document list and the single upload slot. It is the only
// component that talks to the gateway. Intents are applied optimistically
// where that makes sense and reconciled once the gateway answers:
//
//   - A sent message is shown at once with a tentative id. On success it is
//     replaced by the durable user message and the assistant answer. On
//     failure it is removed.
//   - A reply for a conversation that is no longer active is discarded.
//   - An upload shows an estimated progress that never passes the ceiling
//     before the gateway answers, and 100 only after success.
//
// Every state change produces an immutable Snapshot. Every failed intent
// produces exactly one Notice.
//
// # Key Types
//
//   - Controller: Owns state and dispatches intents
//   - Snapshot: Immutable view handed to listeners
//   - Notice: User-facing notification
//   - Listener: Receives snapshots and notices
//
// # Usage
//
//	client := gateway.NewFromConfig(cfg.Gateway, logger)
//	ctrl := session.New(client, session.ConfigFromUpload(cfg.Upload))
//	defer ctrl.Close()
//
//	unsubscribe := ctrl.Subscribe(session.ListenerFuncs{
//	    Snapshot: func(s session.Snapshot) { program.Send(s) },
//	    Notice:   func(n session.Notice) { program.Send(n) },
//	})
//	defer unsubscribe()
//
//	if err := ctrl.Start(ctx); err != nil {
//	    // lists failed to load; a notice was raised
//	}
//	conv, _ := ctrl.NewConversation(ctx)
//	_ = ctrl.SendMessage(ctx, "What is the refund policy?")
package session
