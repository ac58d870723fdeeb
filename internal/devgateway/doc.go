// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package devgateway is a local, self-contained implementation of the remote
// gateway HTTP surface, for development and end-to-end tests.
//
// Conversations, messages and documents live in SQLite. Uploaded documents
// are split into overlapping word chunks and indexed with FTS5; chat answers
// are composed from the best matching chunks without a language model.
//
// # Key Types
//
//   - Server: the fiber app and its handlers
//   - Store: SQLite persistence and chunk search
//   - Chunk: one indexed slice of a document
//
// # Usage
//
//	srv, err := devgateway.New(cfg.DevGateway, logger)
//	if err != nil {
//	    return err
//	}
//	defer srv.Shutdown()
//	return srv.Listen()
package devgateway
