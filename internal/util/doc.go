// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by the cognilib packages.
//
// # Key Functions
//
// String Utilities:
//   - TruncateRunes, TruncateRunesNoEllipsis: UTF-8 safe truncation
//   - TruncateWidth, PadWidth, StringWidth: terminal cell aware layout helpers
//   - SingleLine: whitespace collapsing for one-line previews
//
// Formatting:
//   - FormatCount: thousands separators
//   - FormatBytes: human readable sizes
//
// File Operations:
//   - AtomicWriteFile: Crash-safe file writing with fsync
//
// # Usage
//
//	title := util.TruncateRunesNoEllipsis(text, 50)
//	cell := util.PadWidth(conv.Title, 24)
//	err := util.AtomicWriteFile(path, data, 0600)
package util
