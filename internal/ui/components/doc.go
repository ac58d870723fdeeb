// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package components provides the visual building blocks of the cognilib TUI.

Every component is a passive renderer: it draws a session.Snapshot, or a part
of one, and never talks to the gateway. Interaction lives in package chat.

# Key Types

  - Sidebar (sidebar.go): conversations and documents with a shared cursor
  - UploadBar (uploadbar.go): the upload slot drawn with the bubbles progress bar
  - StatusBar (statusbar.go): activity, counts, endpoint and key hints
  - MarkdownRenderer (markdown.go): glamour rendering of assistant replies

RenderMessage and RenderMessages (message.go) draw chat turns with their
sources. RenderHeader (header.go) draws the title bar. HighlightExcerpt
(highlight.go) colors a source excerpt with chroma.

# Usage

	theme := styles.NewTheme()
	sidebar := components.NewSidebar(theme)
	sidebar.SetData(snap.Conversations, snap.Documents, snap.ActiveID)
	left := sidebar.View(32, height)
*/
package components
