// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"sort"

	"github.com/jeranaias/cognilib/internal/model"
)

// =============================================================================
// CONVERSATION STORE
// =============================================================================

// conversationStore is the ordered conversation list plus the active selection.
// It is owned by the Controller and only touched under its lock.
type conversationStore struct {
	list   []model.Conversation
	active string
}

// indexOf returns the position of id, or -1.
func (s *conversationStore) indexOf(id string) int {
	for i, c := range s.list {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// contains reports whether id is in the list.
func (s *conversationStore) contains(id string) bool {
	return s.indexOf(id) >= 0
}

// prepend puts conv at the head of the list. An existing entry with the same
// id is replaced so the list never holds duplicates.
func (s *conversationStore) prepend(conv model.Conversation) {
	if i := s.indexOf(conv.ID); i >= 0 {
		s.list = append(s.list[:i], s.list[i+1:]...)
	}
	s.list = append([]model.Conversation{conv}, s.list...)
}

// remove drops id from the list and reports whether it was the active one.
func (s *conversationStore) remove(id string) (wasActive bool) {
	if i := s.indexOf(id); i >= 0 {
		s.list = append(s.list[:i], s.list[i+1:]...)
	}
	if s.active == id {
		s.active = ""
		return true
	}
	return false
}

// rename sets the title of id locally. It never calls the gateway.
func (s *conversationStore) rename(id, title string) bool {
	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	s.list[i].Title = title
	return true
}

// get returns the conversation with id.
func (s *conversationStore) get(id string) (model.Conversation, bool) {
	if i := s.indexOf(id); i >= 0 {
		return s.list[i], true
	}
	return model.Conversation{}, false
}

// replaceAll swaps in a fetched list, deduplicated by id and ordered most
// recently created first. The active selection is cleared if it vanished.
func (s *conversationStore) replaceAll(list []model.Conversation) (activeLost bool) {
	seen := make(map[string]struct{}, len(list))
	out := make([]model.Conversation, 0, len(list))
	for _, c := range list {
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt.Time)
	})
	s.list = out

	if s.active != "" && !s.contains(s.active) {
		s.active = ""
		return true
	}
	return false
}

// snapshot returns a copy of the list.
func (s *conversationStore) snapshot() []model.Conversation {
	out := make([]model.Conversation, len(s.list))
	copy(out, s.list)
	return out
}
