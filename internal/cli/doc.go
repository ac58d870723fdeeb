// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides the cognilib command line, built on cobra.
//
// Every command drives a session.Controller against the configured gateway;
// none of them talk HTTP themselves. The root command opens the TUI.
//
// # Key Types
//
//   - ChatCLI: liner-backed line editing with persistent history for the REPL
//
// # Usage
//
//	func main() {
//	    os.Exit(cli.Execute())
//	}
//
// # Commands Overview
//
//   - chat: line-based question and answer session
//   - conversations list|new|show|rm: conversation management
//   - docs list|upload|rm: knowledge base documents
//   - watch: upload files dropped into a folder
//   - status: gateway health, counts and the previous run's activity
//   - config show|init|path: configuration file
//   - version: build information
//
// Destructive commands ask for confirmation on a terminal and require --yes
// otherwise.
package cli
