// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/jeranaias/cognilib/internal/session"
	"github.com/jeranaias/cognilib/internal/ui/styles"
	"github.com/jeranaias/cognilib/internal/util"
)

// =============================================================================
// HEADER COMPONENT
// =============================================================================

// Brand is the application name shown at the top left.
const Brand = "cognilib"

// RenderHeader draws the title bar: the brand, then the active conversation.
func RenderHeader(theme *styles.Theme, snap session.Snapshot, width int) string {
	inner := width - theme.Header.GetHorizontalFrameSize()
	if inner < len(Brand) {
		inner = len(Brand)
	}

	title := "no conversation selected"
	if conv, ok := snap.ActiveConversation(); ok {
		title = util.SingleLine(conv.GetTitle())
	}
	title = util.TruncateWidth(title, inner-len(Brand)-3)

	line := theme.HeaderBrand.Render(Brand) + " | " + theme.HeaderTitle.Render(title)
	pad := inner - len(Brand) - 3 - util.StringWidth(title)
	if pad > 0 {
		line += strings.Repeat(" ", pad)
	}
	return theme.Header.Render(line)
}
