// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the cognilib TUI.

All colors use Lip Gloss AdaptiveColor for automatic light/dark detection.

# Color System (colors.go)

  - Purple - focused panes and assistant turns
  - Cyan - brand, prompts and the active conversation
  - Emerald - success and source filenames
  - Amber - warnings and drag hints
  - Rose - errors and destructive confirmations

Status indicators ([OK], [X], [!], [i]) accompany every colored status so
states stay distinguishable without color.

# Theme System (theme.go)

	theme := styles.NewTheme()
	view := theme.Sidebar.Render(content)

Tests build a colorless theme with NewThemeWithProfile(termenv.Ascii, true).
*/
package styles
