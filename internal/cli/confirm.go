// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/pkg/errors"
)

// =============================================================================
// CONFIRMATION HANDLING
// =============================================================================

// ErrConfirmationRequired is returned when a destructive command cannot prompt.
var ErrConfirmationRequired = errors.New("confirmation required: stdin is not a terminal, pass --yes")

// confirmPrompt asks a yes/no question. Tests replace it.
var confirmPrompt = func(message string) (bool, error) {
	ok := false
	err := survey.AskOne(&survey.Confirm{Message: message, Default: false}, &ok)
	if errors.Is(err, terminal.InterruptErr) {
		return false, nil
	}
	return ok, err
}

// confirm returns true when the action may proceed.
//
// Confirmation flow:
//  1. --yes proceeds without prompting
//  2. without a terminal on stdin the action is refused
//  3. otherwise the user is asked
func confirm(message string, assumeYes bool) (bool, error) {
	if assumeYes {
		return true, nil
	}
	if !IsTTY() {
		return false, ErrConfirmationRequired
	}
	ok, err := confirmPrompt(message)
	if err != nil {
		return false, errors.Wrap(err, "confirm")
	}
	return ok, nil
}
