// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/patina-tui/internal/llm"
	"github.com/jeranaias/patina-tui/internal/model"
	"github.com/jeranaias/patina-tui/internal/state"
	"github.com/jeranaias/patina-tui/internal/storage"
	"github.com/jeranaias/patina-tui/internal/ui/styles"
)

func testEngine(t *testing.T) *state.AppState {
	t.Helper()
	store, err := storage.NewTranscriptStore(t.TempDir())
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	driver := llm.NewDriver(
		llm.Config{Provider: llm.ProviderMock, Model: "mock"},
		&llm.MockProvider{ChunkDelay: -1},
	)
	engine, err := state.New(store, driver, nil)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	return engine
}

func testModel(t *testing.T) Model {
	t.Helper()
	m := New(testEngine(t), nil, styles.NewTheme())
	resized, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return resized.(Model)
}

func TestResizeMakesModelReady(t *testing.T) {
	m := testModel(t)
	if !m.ready {
		t.Fatal("model should be ready after a window size message")
	}
	if m.viewport.Width <= 0 || m.viewport.Height <= 0 {
		t.Errorf("viewport has no area: %dx%d", m.viewport.Width, m.viewport.Height)
	}
}

func TestViewShowsUnconfiguredReason(t *testing.T) {
	store, err := storage.NewTranscriptStore(t.TempDir())
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	engine, err := state.New(store, llm.NewUnconfigured("AI not configured—create patina.toml or set env vars."), nil)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	m := New(engine, nil, styles.NewTheme())
	resized, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	view := resized.(Model).View()
	if !strings.Contains(view, "AI not configured") {
		t.Error("status bar should surface the unconfigured reason")
	}
}

func TestStreamItemsAccumulateAndFinish(t *testing.T) {
	m := testModel(t)

	assistantID, ch, err := m.engine.SendUserMessageStream(context.Background(), "hello stream", "", nil)
	if err != nil {
		t.Fatalf("stream start: %v", err)
	}
	updated, _ := m.Update(streamStartedMsg{assistantID: assistantID, ch: ch})
	m = updated.(Model)
	if !m.streaming {
		t.Fatal("model should be streaming after streamStartedMsg")
	}

	for res := range ch {
		updated, _ = m.Update(streamItemMsg{res: res})
		m = updated.(Model)
		if res.Chunk.Done {
			break
		}
	}

	if m.streaming {
		t.Error("done chunk must end streaming state")
	}
	if m.pendingReply != "" {
		t.Error("pending reply must be cleared after the stream completes")
	}
}

func TestTranscriptShowsStreamedReplyOnce(t *testing.T) {
	m := testModel(t)

	assistantID, ch, err := m.engine.SendUserMessageStream(context.Background(), "show me once", "", nil)
	if err != nil {
		t.Fatalf("stream start: %v", err)
	}
	updated, _ := m.Update(streamStartedMsg{assistantID: assistantID, ch: ch})
	m = updated.(Model)

	// Feed every delta but hold back the terminal item. The engine
	// persists the reply before emitting it, so the conversation
	// already holds the assistant message while the model still shows
	// the pending block.
	for res := range ch {
		if res.Chunk.Done {
			break
		}
		updated, _ = m.Update(streamItemMsg{res: res})
		m = updated.(Model)
	}
	if got := m.engine.ActiveConversation().MessageCount(); got != 2 {
		t.Fatalf("reply should be persisted before the terminal item, have %d messages", got)
	}

	label := model.RoleAssistant.DisplayName()
	if got := strings.Count(m.renderTranscript(), label); got != 1 {
		t.Errorf("in-flight reply rendered %d times, want once", got)
	}
}

func TestStreamErrorSetsBanner(t *testing.T) {
	m := testModel(t)
	m.streaming = true

	updated, _ := m.Update(streamItemMsg{res: llm.StreamResult{Err: errFake}})
	m = updated.(Model)
	if m.streaming {
		t.Error("stream error must end streaming state")
	}
	if !strings.Contains(m.View(), "fake stream failure") {
		t.Error("stream error must reach the status banner")
	}
}

var errFake = &llm.ClientError{Type: llm.ErrTypeConnection, Message: "fake stream failure"}

func TestBlankSubmitDoesNothing(t *testing.T) {
	m := testModel(t)
	m.input.SetValue("   ")
	updated, cmd := m.submit()
	m = updated.(Model)
	if cmd != nil {
		t.Error("blank submit must not fire a send command")
	}
	if m.errText != "" {
		t.Errorf("blank submit must not set an error, got %q", m.errText)
	}
}

func TestSidebarTitleTruncation(t *testing.T) {
	if got := sidebarTitle("short", 20); got != "short" {
		t.Errorf("short titles pass through, got %q", got)
	}
	long := strings.Repeat("x", 40)
	got := sidebarTitle(long, 20)
	if len([]rune(got)) > 20 {
		t.Errorf("truncated title too wide: %q", got)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("expected ellipsis suffix, got %q", got)
	}
}

func TestShortHelpBindings(t *testing.T) {
	keys := DefaultKeyMap()
	if len(keys.ShortHelp()) == 0 {
		t.Error("short help must list bindings for the status bar")
	}
}
