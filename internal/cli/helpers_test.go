// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"github.com/jeranaias/cognilib/internal/model"
)

func sampleReply() model.Message {
	return model.Message{
		ID:      model.DurableID("m2"),
		Role:    model.RoleAssistant,
		Content: "Refunds take **30 days**.",
		Sources: []model.Source{
			{Filename: "policy.md", ChunkIndex: 0, Content: "Refunds are issued\nwithin 30 days."},
		},
	}
}
