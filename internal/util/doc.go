// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small shared helpers for the patina TUI:
// crash-safe file writes and rune-aware string truncation used by
// the transcript store and the conversation engine.
package util
