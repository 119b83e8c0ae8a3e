// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/jeranaias/patina-tui/internal/config"
	"github.com/jeranaias/patina-tui/internal/llm"
	"github.com/jeranaias/patina-tui/internal/state"
)

// =============================================================================
// MESSAGES
// =============================================================================

// streamStartedMsg reports the outcome of kicking off a send.
type streamStartedMsg struct {
	assistantID uuid.UUID
	ch          <-chan llm.StreamResult
	err         error
}

// streamItemMsg delivers one item from an active stream.
type streamItemMsg struct {
	res llm.StreamResult
}

// streamClosedMsg signals the stream channel closed.
type streamClosedMsg struct{}

// configReloadMsg delivers re-resolved settings from the watcher.
type configReloadMsg struct {
	reload config.Reload
}

// =============================================================================
// COMMANDS
// =============================================================================

// startStreamCmd fires a streaming send against the engine.
func startStreamCmd(engine *state.AppState, content string) tea.Cmd {
	return func() tea.Msg {
		assistantID, ch, err := engine.SendUserMessageStream(context.Background(), content, "", nil)
		return streamStartedMsg{assistantID: assistantID, ch: ch, err: err}
	}
}

// pollStreamCmd receives the next stream item. One item per command
// keeps the UI responsive without a busy loop.
func pollStreamCmd(ch <-chan llm.StreamResult) tea.Cmd {
	return func() tea.Msg {
		res, ok := <-ch
		if !ok {
			return streamClosedMsg{}
		}
		return streamItemMsg{res: res}
	}
}

// watchConfigCmd waits for the next config reload.
func watchConfigCmd(watcher *config.Watcher) tea.Cmd {
	if watcher == nil {
		return nil
	}
	return func() tea.Msg {
		reload, ok := <-watcher.Changes()
		if !ok {
			return nil
		}
		return configReloadMsg{reload: reload}
	}
}
