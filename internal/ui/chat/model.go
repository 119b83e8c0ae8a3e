// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/jeranaias/patina-tui/internal/config"
	"github.com/jeranaias/patina-tui/internal/llm"
	"github.com/jeranaias/patina-tui/internal/model"
	"github.com/jeranaias/patina-tui/internal/state"
	"github.com/jeranaias/patina-tui/internal/ui/styles"
)

// =============================================================================
// CHAT MODEL
// =============================================================================

const sidebarWidth = 32

// Model is the Bubble Tea model for the whole application.
type Model struct {
	engine  *state.AppState
	watcher *config.Watcher
	theme   *styles.Theme
	keys    KeyMap

	viewport    viewport.Model
	input       textinput.Model
	searchInput textinput.Model
	spin        spinner.Model

	width  int
	height int
	ready  bool

	// Search state. A nil result slice means the sidebar shows all
	// conversations.
	searching     bool
	searchResults []model.Summary

	// Streaming state for the in-progress assistant reply. streamMsgID
	// is the engine's pre-allocated message ID; once the reply lands in
	// the conversation it keeps the transcript from showing both the
	// persisted message and the pending block.
	streaming    bool
	streamCh     <-chan llm.StreamResult
	streamConvID uuid.UUID
	streamMsgID  uuid.UUID
	pendingReply string

	errText string
}

// New creates the chat model over an engine. The watcher may be nil.
func New(engine *state.AppState, watcher *config.Watcher, theme *styles.Theme) Model {
	input := textinput.New()
	input.Placeholder = "Type a message..."
	input.Prompt = theme.InputPrompt.Render("> ")
	input.CharLimit = 0
	input.Focus()

	search := textinput.New()
	search.Placeholder = "Search conversations..."
	search.Prompt = theme.InputPrompt.Render("/ ")

	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = theme.Spinner

	return Model{
		engine:      engine,
		watcher:     watcher,
		theme:       theme,
		keys:        DefaultKeyMap(),
		input:       input,
		searchInput: search,
		spin:        spin,
	}
}

// Init starts the blink cursor and the config watch loop.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spin.Tick, watchConfigCmd(m.watcher))
}

// sidebarSummaries returns what the sidebar should list right now.
func (m Model) sidebarSummaries() []model.Summary {
	if m.searching && m.searchResults != nil {
		return m.searchResults
	}
	return m.engine.ConversationSummaries()
}

// activeID returns the selected conversation's ID, or uuid.Nil.
func (m Model) activeID() uuid.UUID {
	if conv := m.engine.ActiveConversation(); conv != nil {
		return conv.ID
	}
	return uuid.Nil
}

// stepConversation selects the sidebar neighbor in the given direction.
func (m *Model) stepConversation(delta int) {
	summaries := m.engine.ConversationSummaries()
	if len(summaries) == 0 {
		return
	}
	current := m.activeID()
	pos := 0
	for i, sum := range summaries {
		if sum.ID == current {
			pos = i
			break
		}
	}
	pos += delta
	if pos < 0 {
		pos = 0
	}
	if pos >= len(summaries) {
		pos = len(summaries) - 1
	}
	m.engine.SelectConversation(summaries[pos].ID)
	m.refreshViewport()
}

// resetStream clears streaming state after a terminal item.
func (m *Model) resetStream() {
	m.streaming = false
	m.streamCh = nil
	m.streamConvID = uuid.Nil
	m.streamMsgID = uuid.Nil
	m.pendingReply = ""
}

// statusReason surfaces the driver's unconfigured reason, if any.
func (m Model) statusReason() string {
	status := m.engine.DriverStatus()
	if status.Ready {
		return ""
	}
	return status.Reason
}
