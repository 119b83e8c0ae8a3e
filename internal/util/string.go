// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import "strings"

// =============================================================================
// STRING HELPERS
// =============================================================================

// SnippetMax is the rune budget for a derived conversation title.
const SnippetMax = 42

// Snippet derives a conversation title from message content: trimmed,
// newlines squashed, truncated to SnippetMax runes with an ellipsis
// marker. Truncation is rune-based, not word-boundary aware.
func Snippet(content string) string {
	trimmed := strings.TrimSpace(content)
	trimmed = strings.ReplaceAll(trimmed, "\r", "")
	trimmed = strings.ReplaceAll(trimmed, "\n", " ")

	runes := []rune(trimmed)
	if len(runes) <= SnippetMax {
		return trimmed
	}
	return string(runes[:SnippetMax]) + "…"
}

// TruncateRunes truncates a string to maxLen runes, adding "..." if
// truncated. Rune-based for Unicode safety.
func TruncateRunes(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
