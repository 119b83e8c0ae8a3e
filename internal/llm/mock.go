// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/jeranaias/patina-tui/internal/model"
)

// =============================================================================
// MOCK PROVIDER
// =============================================================================

// MockProvider is a deterministic backend for tests and offline use.
// Given the same history and config it synthesizes the same reply,
// embedding the model name and temperature. Streaming emits the reply
// in fixed-size rune chunks with a small artificial delay: forward
// progress is guaranteed without any wall-clock assumptions beyond
// eventual completion.
type MockProvider struct {
	// ChunkDelay overrides the per-chunk delay. Zero means the
	// default; negative disables the delay entirely.
	ChunkDelay time.Duration
}

const mockChunkRunes = 5

func (p *MockProvider) delay() time.Duration {
	switch {
	case p.ChunkDelay < 0:
		return 0
	case p.ChunkDelay == 0:
		return 20 * time.Millisecond
	default:
		return p.ChunkDelay
	}
}

// reply synthesizes the deterministic response text.
func (p *MockProvider) reply(history []model.Message, cfg Config) string {
	prompt := "How can I help you today?"
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == model.RoleUser {
			prompt = history[i].Content
			break
		}
	}

	modelName := cfg.Model
	if modelName == "" {
		modelName = "default"
	}
	temp := "none"
	if cfg.Temperature != nil {
		temp = fmt.Sprintf("%g", *cfg.Temperature)
	}
	return fmt.Sprintf("[Mock] Model %q (temp %s): received %q.", modelName, temp, prompt)
}

// Chat implements Provider.
func (p *MockProvider) Chat(ctx context.Context, history []model.Message, cfg Config) (*ChatResponse, error) {
	if d := p.delay(); d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return &ChatResponse{
		Message: model.NewAssistantMessage(p.reply(history, cfg)),
		Usage: &Usage{
			PromptTokens:     len(history) * 10,
			CompletionTokens: 25,
		},
	}, nil
}

// ChatStream implements Provider.
func (p *MockProvider) ChatStream(ctx context.Context, history []model.Message, cfg Config) (<-chan StreamResult, error) {
	reply := []rune(p.reply(history, cfg))
	delay := p.delay()

	ch := make(chan StreamResult, 16)
	go func() {
		defer close(ch)
		for start := 0; start < len(reply); start += mockChunkRunes {
			if delay > 0 {
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					return
				}
			}
			end := start + mockChunkRunes
			if end > len(reply) {
				end = len(reply)
			}
			select {
			case ch <- StreamResult{Chunk: StreamChunk{Delta: string(reply[start:end])}}:
			case <-ctx.Done():
				return
			}
		}
		select {
		case ch <- StreamResult{Chunk: StreamChunk{Done: true}}:
		case <-ctx.Done():
		}
	}()

	return ch, nil
}
