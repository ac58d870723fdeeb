// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"

	"github.com/jeranaias/cognilib/internal/logging"
	"github.com/jeranaias/cognilib/internal/ui/chat"
)

// =============================================================================
// TUI
// =============================================================================

// runTUI opens the full-screen interface.
func (a *app) runTUI(ctx context.Context) error {
	client := a.client()
	ctrl := a.controller(client, false)
	defer ctrl.Close()

	m := chat.New(ctrl, chat.Options{
		Endpoint:    client.Endpoint(),
		PlainText:   a.cfg.UI.PlainText,
		HideSources: a.cfg.UI.HideSources,
		WordWrap:    a.cfg.UI.WordWrap,
		Logger:      logging.Component(a.logger, "tui"),
	})
	defer m.Close()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return errors.Wrap(err, "run tui")
	}
	return nil
}
