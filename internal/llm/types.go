// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"context"

	"github.com/jeranaias/patina-tui/internal/model"
)

// =============================================================================
// PROVIDER KINDS
// =============================================================================

// ProviderKind identifies a chat-completion backend.
type ProviderKind string

const (
	ProviderOpenAI      ProviderKind = "openai"
	ProviderAzureOpenAI ProviderKind = "azure_openai"
	ProviderMock        ProviderKind = "mock"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config is the effective per-request configuration. Temperature is
// forwarded to the provider exactly as supplied; out-of-range values
// are the caller's responsibility and provider-defined.
type Config struct {
	Provider    ProviderKind
	Model       string
	Temperature *float64
}

// =============================================================================
// RESPONSES
// =============================================================================

// Usage holds optional token counters reported by a provider.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// ChatResponse is one completed assistant reply.
type ChatResponse struct {
	Message model.Message
	Usage   *Usage
}

// =============================================================================
// STREAMING
// =============================================================================

// StreamChunk is one increment of an assistant reply. A chunk with
// Done=true carries no payload and terminates the stream; no further
// chunks follow it.
type StreamChunk struct {
	Delta string
	Done  bool
}

// StreamResult is one item on a streaming channel: a chunk or an
// error. An error is terminal; nothing follows it.
type StreamResult struct {
	Chunk StreamChunk
	Err   error
}

// =============================================================================
// STATUS
// =============================================================================

// Status reports whether the driver can serve requests.
type Status struct {
	Ready  bool
	Reason string // set when not ready; terminal until config changes
}

// StatusReady is the status of a usable driver.
func StatusReady() Status {
	return Status{Ready: true}
}

// StatusUnconfigured is the status of a driver missing configuration.
func StatusUnconfigured(reason string) Status {
	return Status{Ready: false, Reason: reason}
}

// =============================================================================
// PROVIDER CAPABILITY
// =============================================================================

// Provider is the capability a backend must offer: one-shot and
// streaming chat completion over a plain role+content history. Tool
// calls are not re-sent as structured context.
type Provider interface {
	// Chat sends the full history and returns one completed reply.
	Chat(ctx context.Context, history []model.Message, cfg Config) (*ChatResponse, error)

	// ChatStream sends the full history and returns a channel of
	// incremental results. The channel delivers zero or more non-done
	// chunks followed by exactly one terminal item (a done chunk or an
	// error), then closes. A close without a terminal item is an
	// implicit premature done.
	ChatStream(ctx context.Context, history []model.Message, cfg Config) (<-chan StreamResult, error)
}
