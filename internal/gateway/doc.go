// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package gateway provides the HTTP client for the knowledge gateway.
//
// The gateway owns all durable state: conversations, messages, documents and
// the retrieval pipeline. This package maps its small HTTP surface onto the
// model types and classifies every failure as either unreachable or rejected.
//
// # Key Types
//
//   - Client: HTTP client with retries for reads, rate limiting and tracing
//   - RejectedError: Non-success status with the gateway's reason
//   - ErrUnreachable: Sentinel for requests that got no response
//   - Health: Root status payload returned by Ping
//
// # Usage
//
// Create a client:
//
//	gw := gateway.NewClient("http://localhost:8001").
//	    WithTimeout(30 * time.Second).
//	    WithLogger(logger)
//
// Send a chat turn:
//
//	reply, err := gw.SendChat(ctx, convID, "What is the refund policy?")
//	if gateway.IsRejected(err) {
//	    fmt.Println(gateway.Reason(err))
//	}
package gateway
