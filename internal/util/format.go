// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// FormatCount formats n with thousands separators ("12,345").
func FormatCount(n int) string {
	return printer.Sprintf("%d", n)
}

// FormatBytes formats a byte size using binary units ("1.5 KB", "3.2 MB").
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return printer.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return printer.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
