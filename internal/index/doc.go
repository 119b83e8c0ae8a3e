// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package index provides a SQLite-backed message index for sidebar
// search. The index mirrors every appended message and answers
// case-insensitive content queries grouped by conversation. It is a
// best-effort cache: it can always be rebuilt from the transcript
// store, and index failures never fail the conversation engine.
package index
