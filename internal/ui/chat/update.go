// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/jeranaias/patina-tui/internal/config"
	"github.com/jeranaias/patina-tui/internal/state"
)

// Update is the single message dispatcher.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg), nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case streamStartedMsg:
		return m.handleStreamStarted(msg)

	case streamItemMsg:
		return m.handleStreamItem(msg)

	case streamClosedMsg:
		m.resetStream()
		m.refreshViewport()
		return m, nil

	case configReloadMsg:
		m.engine.SetDriver(config.BuildDriver(msg.reload.Settings, msg.reload.Err))
		return m, watchConfigCmd(m.watcher)
	}

	return m, nil
}

func (m Model) handleResize(msg tea.WindowSizeMsg) Model {
	m.width = msg.Width
	m.height = msg.Height

	mainWidth := m.width - sidebarWidth
	if mainWidth < 20 {
		mainWidth = 20
	}
	// Header, input box, and status bar share the vertical budget.
	contentHeight := m.height - 6
	if contentHeight < 3 {
		contentHeight = 3
	}

	if !m.ready {
		m.viewport = viewport.New(mainWidth, contentHeight)
		m.ready = true
	} else {
		m.viewport.Width = mainWidth
		m.viewport.Height = contentHeight
	}
	m.input.Width = mainWidth - 6
	m.searchInput.Width = sidebarWidth - 4

	m.refreshViewport()
	return m
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Cancel):
		if m.searching {
			m.searching = false
			m.searchResults = nil
			m.searchInput.SetValue("")
			m.searchInput.Blur()
			m.input.Focus()
		}
		m.errText = ""
		return m, nil

	case key.Matches(msg, m.keys.Search):
		m.searching = true
		m.input.Blur()
		m.searchInput.Focus()
		return m, nil

	case key.Matches(msg, m.keys.NewChat):
		m.engine.StartNewConversation()
		m.refreshViewport()
		return m, nil

	case key.Matches(msg, m.keys.Delete):
		if id := m.activeID(); !m.streaming && id != uuid.Nil {
			m.engine.DeleteConversation(id)
			m.refreshViewport()
		}
		return m, nil

	case key.Matches(msg, m.keys.PrevConv):
		m.stepConversation(-1)
		return m, nil

	case key.Matches(msg, m.keys.NextConv):
		m.stepConversation(1)
		return m, nil

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		if m.searching {
			m.searchResults = m.engine.SearchConversations(m.searchInput.Value())
			return m, nil
		}
		return m.submit()
	}

	// Everything else edits whichever input has focus.
	var cmd tea.Cmd
	if m.searching {
		m.searchInput, cmd = m.searchInput.Update(msg)
		m.searchResults = m.engine.SearchConversations(m.searchInput.Value())
	} else {
		m.input, cmd = m.input.Update(msg)
	}
	return m, cmd
}

// submit fires the current input as a streaming send.
func (m Model) submit() (tea.Model, tea.Cmd) {
	content := m.input.Value()
	if strings.TrimSpace(content) == "" {
		return m, nil
	}
	if m.streaming {
		m.errText = state.ErrSendInFlight.Error()
		return m, nil
	}

	m.input.SetValue("")
	m.errText = ""
	return m, startStreamCmd(m.engine, content)
}

func (m Model) handleStreamStarted(msg streamStartedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.errText = msg.err.Error()
		m.refreshViewport()
		return m, nil
	}
	if msg.ch == nil {
		return m, nil
	}

	m.streaming = true
	m.streamCh = msg.ch
	m.streamConvID = m.activeID()
	m.streamMsgID = msg.assistantID
	m.pendingReply = ""
	m.refreshViewport()
	return m, tea.Batch(pollStreamCmd(m.streamCh), m.spin.Tick)
}

func (m Model) handleStreamItem(msg streamItemMsg) (tea.Model, tea.Cmd) {
	res := msg.res
	if res.Err != nil {
		m.errText = res.Err.Error()
		m.resetStream()
		m.refreshViewport()
		return m, nil
	}

	m.pendingReply += res.Chunk.Delta
	if res.Chunk.Done {
		m.resetStream()
		m.refreshViewport()
		return m, nil
	}

	m.refreshViewport()
	return m, pollStreamCmd(m.streamCh)
}
