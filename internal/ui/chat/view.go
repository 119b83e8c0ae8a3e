// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/patina-tui/internal/model"
	"github.com/jeranaias/patina-tui/internal/util"
)

// View renders the whole frame: header, sidebar beside the transcript,
// input box, status bar.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.theme.Header.Width(m.width).Render("Patina")
	body := lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.renderSidebar(),
		m.renderMain(),
	)
	status := m.renderStatusBar()

	return lipgloss.JoinVertical(lipgloss.Left, header, body, status)
}

// =============================================================================
// SIDEBAR
// =============================================================================

func (m Model) renderSidebar() string {
	var b strings.Builder

	if m.searching {
		b.WriteString(m.searchInput.View())
	} else {
		b.WriteString(m.theme.SidebarTitle.Render("Conversations"))
	}
	b.WriteString("\n\n")

	summaries := m.sidebarSummaries()
	if len(summaries) == 0 {
		if m.searching {
			b.WriteString(m.theme.SidebarMeta.Render("No matches"))
		} else {
			b.WriteString(m.theme.SidebarMeta.Render("No conversations yet"))
		}
	}

	activeID := m.activeID()
	itemWidth := sidebarWidth - 4
	for _, sum := range summaries {
		title := sidebarTitle(sum.Title, itemWidth)
		line := title
		switch {
		case m.streaming && sum.ID == m.streamConvID:
			line = m.theme.SidebarItemStreaming.Render(title + " " + m.spin.View())
		case sum.ID == activeID:
			line = m.theme.SidebarItemSelected.Render(title)
		default:
			line = m.theme.SidebarItem.Render(title)
		}
		b.WriteString(line)
		b.WriteString("\n")
		b.WriteString(m.theme.SidebarMeta.Render(
			fmt.Sprintf("  %d msgs · %s", sum.MessageCount, sum.UpdatedAt.Local().Format("Jan 2 15:04"))))
		b.WriteString("\n")
	}

	height := m.viewport.Height + 3
	return m.theme.Sidebar.Width(sidebarWidth - 2).Height(height).Render(b.String())
}

// sidebarTitle fits a title to the sidebar column, accounting for wide
// runes.
func sidebarTitle(title string, width int) string {
	if runewidth.StringWidth(title) <= width {
		return title
	}
	return runewidth.Truncate(title, width, "...")
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

func (m Model) renderMain() string {
	input := m.theme.InputContainer.Width(m.viewport.Width - 2).Render(m.input.View())
	return lipgloss.JoinVertical(lipgloss.Left, m.viewport.View(), input)
}

// refreshViewport rebuilds the transcript from an engine snapshot plus
// any in-flight streamed text, then follows the tail.
func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m *Model) renderTranscript() string {
	conv := m.engine.ActiveConversation()
	if conv == nil {
		return m.theme.Hint.Render("Start typing to begin a new conversation.")
	}

	var b strings.Builder
	first := true
	for _, msg := range conv.Messages {
		// The engine persists the streamed reply before the terminal
		// item arrives; the pending block below covers that window.
		if m.streaming && msg.ID == m.streamMsgID {
			continue
		}
		if !first {
			b.WriteString("\n")
		}
		first = false
		b.WriteString(m.renderMessage(msg))
		b.WriteString("\n")
	}

	if m.streaming && conv.ID == m.streamConvID {
		b.WriteString("\n")
		b.WriteString(m.theme.AssistantLabel.Render(model.RoleAssistant.DisplayName()))
		b.WriteString(" ")
		b.WriteString(m.spin.View())
		b.WriteString("\n")
		if m.pendingReply != "" {
			b.WriteString(m.theme.MessageBody.Render(m.pendingReply))
			b.WriteString("\n")
		}
	}

	return b.String()
}

func (m *Model) renderMessage(msg model.Message) string {
	var label string
	body := msg.Content

	switch msg.Role {
	case model.RoleUser:
		label = m.theme.UserLabel.Render(msg.Role.DisplayName())
	case model.RoleAssistant:
		label = m.theme.AssistantLabel.Render(msg.Role.DisplayName())
		body = renderMarkdown(msg.Content)
	default:
		label = m.theme.SystemLabel.Render(msg.Role.DisplayName())
	}

	timestamp := m.theme.Timestamp.Render(msg.CreatedAt.Local().Format("15:04"))
	return label + " " + timestamp + "\n" + m.theme.MessageBody.Render(body)
}

// =============================================================================
// STATUS BAR
// =============================================================================

func (m Model) renderStatusBar() string {
	if m.errText != "" {
		return m.theme.ErrorBanner.Width(m.width).Render(util.TruncateRunes(m.errText, m.width-4))
	}
	if reason := m.statusReason(); reason != "" {
		return m.theme.ErrorBanner.Width(m.width).Render(util.TruncateRunes(reason, m.width-4))
	}

	var parts []string
	for _, binding := range m.keys.ShortHelp() {
		parts = append(parts, binding.Help().Key+" "+binding.Help().Desc)
	}
	return m.theme.StatusBar.Width(m.width).Render(strings.Join(parts, "  ·  "))
}
