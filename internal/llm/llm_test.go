// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/patina-tui/internal/model"
)

func fastMock() *MockProvider {
	return &MockProvider{ChunkDelay: -1}
}

func history(contents ...string) []model.Message {
	msgs := make([]model.Message, 0, len(contents))
	for i, c := range contents {
		role := model.RoleUser
		if i%2 == 1 {
			role = model.RoleAssistant
		}
		msgs = append(msgs, model.NewMessage(role, c))
	}
	return msgs
}

// drain collects a full stream, asserting the terminal discipline:
// zero or more non-done chunks, then exactly one done chunk or one
// error, and nothing after.
func drain(t *testing.T, ch <-chan StreamResult) (string, bool, error) {
	t.Helper()

	var sb strings.Builder
	var sawDone bool
	var sawErr error

	for res := range ch {
		require.False(t, sawDone, "item received after done chunk")
		require.NoError(t, sawErr, "item received after terminal error")
		if res.Err != nil {
			sawErr = res.Err
			continue
		}
		if res.Chunk.Done {
			require.Empty(t, res.Chunk.Delta, "done chunk must carry no payload")
			sawDone = true
			continue
		}
		sb.WriteString(res.Chunk.Delta)
	}
	return sb.String(), sawDone, sawErr
}

// =============================================================================
// DRIVER TESTS
// =============================================================================

func TestDriver_Status(t *testing.T) {
	ready := NewMock("mock")
	assert.True(t, ready.Status().Ready)

	unready := NewUnconfigured("AI not configured—create patina.toml or set env vars.")
	st := unready.Status()
	assert.False(t, st.Ready)
	assert.Contains(t, st.Reason, "not configured")
}

func TestDriver_UnconfiguredSendFails(t *testing.T) {
	driver := NewUnconfigured("missing OpenAI api key (OPENAI_API_KEY)")

	_, err := driver.Respond(context.Background(), history("hi"), "", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")

	_, err = driver.RespondStream(context.Background(), history("hi"), "", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
}

func TestDriver_ModelOverrideAndTemperature(t *testing.T) {
	driver := NewDriver(Config{Provider: ProviderMock, Model: "base-model"}, fastMock())
	temp := 0.6

	resp, err := driver.Respond(context.Background(), history("Hi there"), "override-model", &temp)
	require.NoError(t, err)
	assert.Contains(t, resp.Message.Content, "override-model")
	assert.Contains(t, resp.Message.Content, "0.6")
	assert.NotContains(t, resp.Message.Content, "base-model")
}

func TestDriver_DefaultModelUsedWithoutOverride(t *testing.T) {
	driver := NewDriver(Config{Provider: ProviderMock, Model: "base-model"}, fastMock())

	resp, err := driver.Respond(context.Background(), history("Hi"), "", nil)
	require.NoError(t, err)
	assert.Contains(t, resp.Message.Content, "base-model")
}

// =============================================================================
// MOCK PROVIDER TESTS
// =============================================================================

func TestMock_Deterministic(t *testing.T) {
	p := fastMock()
	cfg := Config{Provider: ProviderMock, Model: "mock"}
	h := history("same question")

	a, err := p.Chat(context.Background(), h, cfg)
	require.NoError(t, err)
	b, err := p.Chat(context.Background(), h, cfg)
	require.NoError(t, err)
	assert.Equal(t, a.Message.Content, b.Message.Content)
	require.NotNil(t, a.Usage)
	assert.Equal(t, 10, a.Usage.PromptTokens)
	assert.Equal(t, 25, a.Usage.CompletionTokens)
}

func TestMock_ReplyEmbedsLastUserPrompt(t *testing.T) {
	p := fastMock()
	h := history("first", "reply", "second question")

	resp, err := p.Chat(context.Background(), h, Config{Model: "mock"})
	require.NoError(t, err)
	assert.Contains(t, resp.Message.Content, "second question")
	assert.NotContains(t, resp.Message.Content, "first")
	assert.Equal(t, model.RoleAssistant, resp.Message.Role)
}

func TestMock_StreamingEquivalence(t *testing.T) {
	// P6: one-shot and accumulated streaming yield identical text.
	p := fastMock()
	cfg := Config{Provider: ProviderMock, Model: "mock"}
	temp := 0.6
	cfg.Temperature = &temp
	h := history("Hi there")

	oneShot, err := p.Chat(context.Background(), h, cfg)
	require.NoError(t, err)

	ch, err := p.ChatStream(context.Background(), h, cfg)
	require.NoError(t, err)
	accumulated, done, streamErr := drain(t, ch)

	require.NoError(t, streamErr)
	assert.True(t, done, "stream must end with a done chunk")
	assert.Equal(t, oneShot.Message.Content, accumulated)
}

func TestMock_StreamTerminalDiscipline(t *testing.T) {
	// P7 is asserted inside drain.
	p := fastMock()
	ch, err := p.ChatStream(context.Background(), history("check terminal state"), Config{Model: "mock"})
	require.NoError(t, err)

	text, done, streamErr := drain(t, ch)
	require.NoError(t, streamErr)
	assert.True(t, done)
	assert.NotEmpty(t, text)
}

func TestMock_StreamChunkSize(t *testing.T) {
	p := fastMock()
	ch, err := p.ChatStream(context.Background(), history("hello"), Config{Model: "mock"})
	require.NoError(t, err)

	for res := range ch {
		require.NoError(t, res.Err)
		if !res.Chunk.Done {
			assert.LessOrEqual(t, len([]rune(res.Chunk.Delta)), mockChunkRunes)
		}
	}
}

func TestMock_StreamEventuallyCompletes(t *testing.T) {
	p := &MockProvider{ChunkDelay: time.Millisecond}
	ch, err := p.ChatStream(context.Background(), history("hi"), Config{Model: "mock"})
	require.NoError(t, err)

	donech := make(chan struct{})
	go func() {
		drain(t, ch)
		close(donech)
	}()

	select {
	case <-donech:
	case <-time.After(10 * time.Second):
		t.Fatal("mock stream did not complete")
	}
}

// =============================================================================
// OPENAI PROVIDER TESTS
// =============================================================================

// testOpenAIProvider points the provider at a local test server.
func testOpenAIProvider(url string) *OpenAIProvider {
	p := NewOpenAIProvider("test-key")
	p.backend.url = url
	return p
}

func TestOpenAI_Chat(t *testing.T) {
	var gotAuth string
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"the reply"}}],"usage":{"prompt_tokens":7,"completion_tokens":3}}`))
	}))
	defer server.Close()

	p := testOpenAIProvider(server.URL)
	temp := 1.4
	resp, err := p.Chat(context.Background(), history("question"), Config{Model: "gpt-4o-mini", Temperature: &temp})
	require.NoError(t, err)

	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Contains(t, string(gotBody), `"model":"gpt-4o-mini"`)
	// Temperature forwarded as-is, even out of the provider's range.
	assert.Contains(t, string(gotBody), `"temperature":1.4`)
	assert.Equal(t, "the reply", resp.Message.Content)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 7, resp.Usage.PromptTokens)
	assert.Equal(t, 3, resp.Usage.CompletionTokens)
}

func TestOpenAI_ChatErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"Incorrect API key provided"}}`))
	}))
	defer server.Close()

	p := testOpenAIProvider(server.URL)
	_, err := p.Chat(context.Background(), history("question"), Config{Model: "gpt-4o-mini"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Incorrect API key")
}

func TestOpenAI_Stream(t *testing.T) {
	sse := strings.Join([]string{
		`data: {"choices":[{"delta":{"content":"Hel"}}]}`,
		``,
		`data: {"choices":[{"delta":{"content":"lo"}}]}`,
		``,
		`data: not-json-should-be-skipped`,
		``,
		`data: {"choices":[{"delta":{},"finish_reason":"stop"}]}`,
		``,
		`data: [DONE]`,
		``,
	}, "\n")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(sse))
	}))
	defer server.Close()

	p := testOpenAIProvider(server.URL)
	ch, err := p.ChatStream(context.Background(), history("question"), Config{Model: "gpt-4o-mini"})
	require.NoError(t, err)

	text, done, streamErr := drain(t, ch)
	require.NoError(t, streamErr)
	assert.True(t, done)
	assert.Equal(t, "Hello", text)
}

func TestOpenAI_StreamWithoutDoneMarker(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"partial\"}}]}\n"))
	}))
	defer server.Close()

	p := testOpenAIProvider(server.URL)
	ch, err := p.ChatStream(context.Background(), history("question"), Config{Model: "gpt-4o-mini"})
	require.NoError(t, err)

	text, done, streamErr := drain(t, ch)
	require.NoError(t, streamErr)
	assert.True(t, done, "EOF without [DONE] is an implicit done")
	assert.Equal(t, "partial", text)
}

func TestAzureBackend_Shape(t *testing.T) {
	p := NewAzureOpenAIProvider("azkey", "https://example.openai.azure.com/", "2024-02-01", "gpt4-deploy")

	assert.Equal(t, "Azure OpenAI", p.backend.label)
	assert.Equal(t,
		"https://example.openai.azure.com/openai/deployments/gpt4-deploy/chat/completions?api-version=2024-02-01",
		p.backend.url)
	assert.Equal(t, "api-key", p.backend.authHeader)
	assert.False(t, p.backend.bodyModel, "Azure routes by deployment, not body model")
}
