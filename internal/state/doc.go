// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package state holds the conversation engine behind a single coarse
// lock. The UI reads snapshots and summaries, never live references;
// mutations persist incrementally through the transcript store before
// the lock is released. Blocking provider calls always run outside the
// lock, against a history snapshot, and re-resolve their conversation
// by ID when the response arrives.
package state
