// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat is the Bubble Tea shell over the conversation engine.
// It stays thin: every frame renders from engine snapshots, sends are
// fire-and-forget commands, and stream chunks arrive one per poll
// command. The shell never holds live references into engine state.
package chat
