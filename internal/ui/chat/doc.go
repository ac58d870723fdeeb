// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the Bubble Tea model of the cognilib TUI.

The model is a passive view of a session controller. Key presses become
controller intents that run as tea.Cmds, and everything on screen is drawn
from the latest published snapshot. Failures reach the user as toasts built
from controller notices.

# Key Types

## Model (model.go)

The Model struct holds the widgets (input, upload path prompt, viewport,
spinner and toasts) and the last snapshot. It never mutates session state.

## Bridge (bridge.go)

Bridge implements session.Listener without blocking the controller. Snapshots
are coalesced to the newest one and notices are queued until the program
collects them with Wait.

## Update Loop (update.go)

  - ctrl+n creates a conversation, ctrl+r reloads the lists
  - tab moves focus between the sidebar and the input
  - enter selects the sidebar item or sends the typed message
  - ctrl+o opens the upload prompt (a drag), esc leaves it, enter uploads
  - ctrl+x deletes the focused sidebar item after a y/n confirmation

# Usage

	m := chat.New(ctrl, chat.Options{Endpoint: client.Endpoint()})
	defer m.Close()
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
*/
package chat
