// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/jeranaias/patina-tui/internal/model"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ClientError represents an error talking to a chat-completion API.
type ClientError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeConnection
	ErrTypeTimeout
	ErrTypeStatus
	ErrTypeInvalidResponse
)

// =============================================================================
// BACKEND VARIANTS
// =============================================================================

// backend captures the differences between plain OpenAI and the
// Azure-flavored deployment API: URL shape, auth header, and whether
// the model name travels in the request body.
type backend struct {
	label      string // "OpenAI" or "Azure OpenAI"
	url        string
	authHeader string // header name carrying the key
	bearer     bool   // true: Authorization: Bearer <key>
	apiKey     string
	bodyModel  bool // include "model" in the request body
}

func openAIBackend(apiKey string) backend {
	return backend{
		label:      "OpenAI",
		url:        "https://api.openai.com/v1/chat/completions",
		authHeader: "Authorization",
		bearer:     true,
		apiKey:     apiKey,
		bodyModel:  true,
	}
}

func azureBackend(apiKey, endpoint, apiVersion, deployment string) backend {
	base := strings.TrimRight(endpoint, "/")
	return backend{
		label:      "Azure OpenAI",
		url:        base + "/openai/deployments/" + deployment + "/chat/completions?api-version=" + apiVersion,
		authHeader: "api-key",
		apiKey:     apiKey,
		// Azure routes by deployment, not body model.
		bodyModel: false,
	}
}

// =============================================================================
// OPENAI PROVIDER
// =============================================================================

// OpenAIProvider implements Provider against an OpenAI-compatible chat
// completions endpoint (api.openai.com or an Azure deployment).
//
// Requests pass through a shared rate limiter so a misbehaving caller
// cannot hammer the API.
type OpenAIProvider struct {
	backend    backend
	httpClient *http.Client
	limiter    *rate.Limiter
}

// defaultLimiter allows short bursts while keeping sustained request
// rate to two per second.
func defaultLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Every(500*time.Millisecond), 2)
}

// NewOpenAIProvider creates a provider against api.openai.com.
func NewOpenAIProvider(apiKey string) *OpenAIProvider {
	return &OpenAIProvider{
		backend:    openAIBackend(apiKey),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		limiter:    defaultLimiter(),
	}
}

// NewAzureOpenAIProvider creates a provider against an Azure OpenAI
// deployment.
func NewAzureOpenAIProvider(apiKey, endpoint, apiVersion, deployment string) *OpenAIProvider {
	return &OpenAIProvider{
		backend:    azureBackend(apiKey, endpoint, apiVersion, deployment),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		limiter:    defaultLimiter(),
	}
}

// =============================================================================
// WIRE TYPES
// =============================================================================

type completionRequest struct {
	Model       string              `json:"model,omitempty"`
	Temperature *float64            `json:"temperature,omitempty"`
	Messages    []completionMessage `json:"messages"`
	Stream      bool                `json:"stream,omitempty"`
}

type completionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Role    string  `json:"role"`
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

type streamResponse struct {
	Choices []struct {
		Delta struct {
			Content *string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// mapHistory flattens domain messages to the wire shape. Tool calls are
// not re-sent as structured context, only their plain-text history.
func mapHistory(history []model.Message) []completionMessage {
	out := make([]completionMessage, 0, len(history))
	for _, msg := range history {
		out = append(out, completionMessage{
			Role:    msg.Role.String(),
			Content: msg.Content,
		})
	}
	return out
}

// =============================================================================
// ONE-SHOT COMPLETION
// =============================================================================

// Chat implements Provider.
func (p *OpenAIProvider) Chat(ctx context.Context, history []model.Message, cfg Config) (*ChatResponse, error) {
	resp, err := p.roundTrip(ctx, history, cfg, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: p.backend.label + " response decoding failed", Cause: err}
	}
	if len(payload.Choices) == 0 {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: p.backend.label + " response contained no choices"}
	}

	content := "[empty response]"
	if c := payload.Choices[0].Message.Content; c != nil {
		content = *c
	}

	out := &ChatResponse{Message: model.NewAssistantMessage(content)}
	if payload.Usage != nil {
		out.Usage = &Usage{
			PromptTokens:     payload.Usage.PromptTokens,
			CompletionTokens: payload.Usage.CompletionTokens,
		}
	}
	return out, nil
}

// =============================================================================
// STREAMING COMPLETION
// =============================================================================

// ChatStream implements Provider. The response body is an SSE stream:
// "data: {...}" lines with delta fragments, terminated by a
// finish_reason or the "[DONE]" sentinel.
func (p *OpenAIProvider) ChatStream(ctx context.Context, history []model.Message, cfg Config) (<-chan StreamResult, error) {
	resp, err := p.roundTrip(ctx, history, cfg, true)
	if err != nil {
		return nil, err
	}

	ch := make(chan StreamResult, 16)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		send := func(res StreamResult) bool {
			select {
			case ch <- res:
				return true
			case <-ctx.Done():
				return false
			}
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			payload, ok := strings.CutPrefix(line, "data: ")
			if !ok {
				continue
			}
			if payload == "[DONE]" {
				send(StreamResult{Chunk: StreamChunk{Done: true}})
				return
			}

			var chunk streamResponse
			if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
				// Malformed chunk lines are skipped, not fatal.
				continue
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			choice := chunk.Choices[0]
			if choice.Delta.Content != nil && *choice.Delta.Content != "" {
				if !send(StreamResult{Chunk: StreamChunk{Delta: *choice.Delta.Content}}) {
					return
				}
			}
			if choice.FinishReason != nil {
				send(StreamResult{Chunk: StreamChunk{Done: true}})
				return
			}
		}

		if err := scanner.Err(); err != nil {
			send(StreamResult{Err: &ClientError{Type: ErrTypeConnection, Message: p.backend.label + " stream error", Cause: err}})
			return
		}

		// Stream ended without the [DONE] marker.
		send(StreamResult{Chunk: StreamChunk{Done: true}})
	}()

	return ch, nil
}

// =============================================================================
// REQUEST PLUMBING
// =============================================================================

// roundTrip performs the rate-limited POST and returns a response with
// status 200; any other outcome is mapped to a ClientError.
func (p *OpenAIProvider) roundTrip(ctx context.Context, history []model.Message, cfg Config, stream bool) (*http.Response, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, &ClientError{Type: ErrTypeTimeout, Message: "request canceled while rate limited", Cause: err}
	}

	reqBody := completionRequest{
		Temperature: cfg.Temperature,
		Messages:    mapHistory(history),
		Stream:      stream,
	}
	if p.backend.bodyModel {
		reqBody.Model = cfg.Model
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to marshal request", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.backend.url, bytes.NewReader(body))
	if err != nil {
		return nil, &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if p.backend.bearer {
		req.Header.Set(p.backend.authHeader, "Bearer "+p.backend.apiKey)
	} else {
		req.Header.Set(p.backend.authHeader, p.backend.apiKey)
	}

	httpClient := p.httpClient
	if stream {
		// No client timeout on streaming; lifetime is governed by ctx.
		httpClient = &http.Client{Transport: p.httpClient.Transport}
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, &ClientError{Type: ErrTypeTimeout, Message: p.backend.label + " request timed out", Cause: err}
		}
		return nil, &ClientError{Type: ErrTypeConnection, Message: p.backend.label + " request failed", Cause: err}
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		var apiErr apiError
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error.Message != "" {
			return nil, &ClientError{Type: ErrTypeStatus, Message: p.backend.label + ": " + apiErr.Error.Message}
		}
		return nil, &ClientError{Type: ErrTypeStatus, Message: p.backend.label + " returned " + resp.Status}
	}

	return resp, nil
}
