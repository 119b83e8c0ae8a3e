// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/patina-tui/internal/util"
)

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// DefaultTitle is the placeholder title before the first user message.
const DefaultTitle = "New chat"

// Conversation holds a complete chat transcript with metadata.
type Conversation struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Messages  []Message `json:"messages"`
}

// NewConversation creates an empty conversation with a generated ID.
func NewConversation() *Conversation {
	now := time.Now().UTC()
	return &Conversation{
		ID:        uuid.New(),
		Title:     DefaultTitle,
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  make([]Message, 0),
	}
}

// NewConversationWithID creates an empty conversation with a known ID and
// title. Used when replaying transcripts from disk.
func NewConversationWithID(id uuid.UUID, title string) *Conversation {
	now := time.Now().UTC()
	return &Conversation{
		ID:        id,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  make([]Message, 0),
	}
}

// =============================================================================
// MESSAGE MANAGEMENT
// =============================================================================

// AddMessage appends a message and advances UpdatedAt. If this is the
// first message and it comes from the user, the title is derived from
// its content. Append-only: messages are never reordered or edited.
func (c *Conversation) AddMessage(msg Message) {
	if len(c.Messages) == 0 && msg.Role == RoleUser {
		c.Title = util.Snippet(msg.Content)
	}
	c.Messages = append(c.Messages, msg)

	// UpdatedAt must never go backwards, even if the clock does.
	now := time.Now().UTC()
	if now.After(c.UpdatedAt) {
		c.UpdatedAt = now
	}
}

// LastMessage returns the most recent message, or nil if empty.
func (c *Conversation) LastMessage() *Message {
	if len(c.Messages) == 0 {
		return nil
	}
	return &c.Messages[len(c.Messages)-1]
}

// MessageCount returns the number of messages.
func (c *Conversation) MessageCount() int {
	return len(c.Messages)
}

// IsEmpty returns true if there are no messages.
func (c *Conversation) IsEmpty() bool {
	return len(c.Messages) == 0
}

// HistorySnapshot returns a copied message slice safe to hand to a
// provider call after the conversation lock is released.
func (c *Conversation) HistorySnapshot() []Message {
	history := make([]Message, len(c.Messages))
	for i, msg := range c.Messages {
		history[i] = msg.Clone()
	}
	return history
}

// Clone creates a deep copy of the conversation.
func (c *Conversation) Clone() *Conversation {
	clone := &Conversation{
		ID:        c.ID,
		Title:     c.Title,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
		Messages:  make([]Message, len(c.Messages)),
	}
	for i, msg := range c.Messages {
		clone.Messages[i] = msg.Clone()
	}
	return clone
}

// =============================================================================
// SUMMARY PROJECTION
// =============================================================================

// Summary is the sidebar projection of a conversation. Read-only,
// recomputed on demand, never stored.
type Summary struct {
	ID           uuid.UUID `json:"id"`
	Title        string    `json:"title"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}

// Summary returns the projection for this conversation.
func (c *Conversation) Summary() Summary {
	return Summary{
		ID:           c.ID,
		Title:        c.Title,
		UpdatedAt:    c.UpdatedAt,
		MessageCount: len(c.Messages),
	}
}
