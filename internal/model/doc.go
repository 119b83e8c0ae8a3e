// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// A Conversation is a titled, ordered, append-only sequence of Messages.
// Messages are immutable once appended; the only mutable conversation
// fields are the title and the updated-at timestamp. Summaries are cheap
// projections recomputed on demand for the sidebar, never stored.
package model
