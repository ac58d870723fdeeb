// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds all the styled components for the application.
// It detects the terminal's color capability and adjusts accordingly.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	HasTrueColor bool
	ColorProfile termenv.Profile

	// ==========================================================================
	// HEADER STYLES
	// ==========================================================================

	Header      lipgloss.Style
	HeaderBrand lipgloss.Style
	HeaderTitle lipgloss.Style

	// ==========================================================================
	// SIDEBAR STYLES
	// ==========================================================================

	Sidebar           lipgloss.Style
	SidebarFocused    lipgloss.Style
	SidebarSection    lipgloss.Style
	SidebarItem       lipgloss.Style
	SidebarItemActive lipgloss.Style
	SidebarItemCursor lipgloss.Style
	SidebarMeta       lipgloss.Style

	// ==========================================================================
	// MESSAGE STYLES
	// ==========================================================================

	UserBubble      lipgloss.Style
	AssistantBubble lipgloss.Style
	TentativeBubble lipgloss.Style
	RoleLabel       lipgloss.Style
	SourceHeader    lipgloss.Style
	SourceFile      lipgloss.Style
	SourceExcerpt   lipgloss.Style
	EmptyState      lipgloss.Style

	// ==========================================================================
	// INPUT AREA STYLES
	// ==========================================================================

	InputContainer        lipgloss.Style
	InputContainerFocused lipgloss.Style
	InputPrompt           lipgloss.Style
	InputPlaceholder      lipgloss.Style

	// ==========================================================================
	// UPLOAD STYLES
	// ==========================================================================

	UploadBar      lipgloss.Style
	UploadLabel    lipgloss.Style
	UploadDragging lipgloss.Style

	// ==========================================================================
	// STATUS BAR STYLES
	// ==========================================================================

	StatusBar    lipgloss.Style
	ShortcutKey  lipgloss.Style
	ShortcutDesc lipgloss.Style
	Spinner      lipgloss.Style

	// ==========================================================================
	// CONFIRM PROMPT STYLES
	// ==========================================================================

	ConfirmBox lipgloss.Style
	ConfirmKey lipgloss.Style

	// ==========================================================================
	// STATUS INDICATOR STYLES
	// ==========================================================================

	SuccessStyle lipgloss.Style
	ErrorStyle   lipgloss.Style
	WarningStyle lipgloss.Style
	InfoStyle    lipgloss.Style
	MutedStyle   lipgloss.Style
}

// NewTheme creates a theme for the current terminal.
func NewTheme() *Theme {
	return NewThemeWithProfile(termenv.ColorProfile(), termenv.HasDarkBackground())
}

// NewThemeWithProfile creates a theme for an explicit color profile.
// termenv.Ascii yields uncolored output, which tests rely on.
func NewThemeWithProfile(profile termenv.Profile, isDark bool) *Theme {
	t := &Theme{
		IsDark:       isDark,
		HasTrueColor: profile == termenv.TrueColor,
		ColorProfile: profile,
	}
	t.initStyles()
	return t
}

func (t *Theme) initStyles() {
	r := lipgloss.NewRenderer(os.Stdout)
	r.SetColorProfile(t.ColorProfile)
	r.SetHasDarkBackground(t.IsDark)
	style := r.NewStyle

	// Header
	t.Header = style().
		Background(SurfaceDim).
		Padding(0, 1)

	t.HeaderBrand = style().
		Bold(true).
		Foreground(Cyan)

	t.HeaderTitle = style().
		Bold(true).
		Foreground(Purple)

	// Sidebar
	t.Sidebar = style().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay).
		Padding(0, 1)

	t.SidebarFocused = t.Sidebar.
		BorderForeground(Purple)

	t.SidebarSection = style().
		Bold(true).
		Foreground(TextSecondary)

	t.SidebarItem = style().
		Foreground(TextPrimary)

	t.SidebarItemActive = style().
		Foreground(Cyan).
		Bold(true)

	t.SidebarItemCursor = style().
		Background(SelectionBg)

	t.SidebarMeta = style().
		Foreground(TextMuted)

	// Messages
	t.UserBubble = style().
		Foreground(UserBubbleFg).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(UserBubbleBorder).
		BorderLeft(true).
		PaddingLeft(1)

	t.AssistantBubble = style().
		Foreground(AssistantBubbleFg).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(AssistantBubbleBorder).
		BorderLeft(true).
		PaddingLeft(1)

	t.TentativeBubble = t.UserBubble.
		Foreground(TentativeFg).
		Italic(true)

	t.RoleLabel = style().
		Bold(true).
		Foreground(TextSecondary)

	t.SourceHeader = style().
		Foreground(TextSecondary).
		Italic(true)

	t.SourceFile = style().
		Foreground(Emerald)

	t.SourceExcerpt = style().
		Foreground(TextMuted).
		PaddingLeft(2)

	t.EmptyState = style().
		Foreground(TextMuted).
		Italic(true)

	// Input
	t.InputContainer = style().
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(Overlay).
		Padding(0, 1)

	t.InputContainerFocused = t.InputContainer.
		BorderForeground(Cyan)

	t.InputPrompt = style().
		Foreground(Cyan).
		Bold(true)

	t.InputPlaceholder = style().
		Foreground(TextMuted).
		Italic(true)

	// Upload
	t.UploadBar = style().
		Padding(0, 1)

	t.UploadLabel = style().
		Foreground(TextSecondary)

	t.UploadDragging = style().
		Foreground(Amber).
		Bold(true)

	// Status bar
	t.StatusBar = style().
		Background(SurfaceDim).
		Foreground(TextSecondary).
		Padding(0, 1)

	t.ShortcutKey = style().
		Foreground(Cyan).
		Bold(true)

	t.ShortcutDesc = style().
		Foreground(TextMuted)

	t.Spinner = style().
		Foreground(Purple)

	// Confirm
	t.ConfirmBox = style().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Rose).
		Padding(0, 1)

	t.ConfirmKey = style().
		Foreground(Rose).
		Bold(true)

	// Status indicators
	t.SuccessStyle = style().Foreground(SuccessHighContrast).Bold(true)
	t.ErrorStyle = style().Foreground(ErrorHighContrast).Bold(true)
	t.WarningStyle = style().Foreground(WarningHighContrast).Bold(true)
	t.InfoStyle = style().Foreground(InfoHighContrast).Bold(true)
	t.MutedStyle = style().Foreground(TextMuted)
}
