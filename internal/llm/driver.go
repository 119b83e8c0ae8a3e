// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"context"
	"errors"

	"github.com/jeranaias/patina-tui/internal/model"
)

// =============================================================================
// DRIVER
// =============================================================================

// Driver hides provider differences behind two operations and reports
// whether the system is usable. A Driver is immutable after
// construction; configuration changes produce a new Driver.
type Driver struct {
	config   Config
	provider Provider
	status   Status
}

// NewDriver creates a ready driver over the given provider.
func NewDriver(cfg Config, provider Provider) *Driver {
	return &Driver{config: cfg, provider: provider, status: StatusReady()}
}

// NewUnconfigured creates a driver that rejects all sends with the
// given reason. The condition is terminal until configuration changes
// externally and a new driver is built.
func NewUnconfigured(reason string) *Driver {
	return &Driver{status: StatusUnconfigured(reason)}
}

// NewMock creates a ready driver over the deterministic mock provider.
func NewMock(modelName string) *Driver {
	if modelName == "" {
		modelName = "mock"
	}
	return NewDriver(
		Config{Provider: ProviderMock, Model: modelName},
		&MockProvider{},
	)
}

// Status reports readiness. Cheap, synchronous, side-effect-free;
// callers should check it before offering sends.
func (d *Driver) Status() Status {
	return d.status
}

// Kind returns the configured provider kind, or empty when
// unconfigured.
func (d *Driver) Kind() ProviderKind {
	return d.config.Provider
}

// effectiveConfig applies the caller's model override and temperature
// on top of the driver configuration.
func (d *Driver) effectiveConfig(modelOverride string, temperature *float64) Config {
	cfg := d.config
	if modelOverride != "" {
		cfg.Model = modelOverride
	}
	cfg.Temperature = temperature
	return cfg
}

// unusableErr converts a not-ready status into an operation error.
func (d *Driver) unusableErr() error {
	if d.status.Reason != "" {
		return errors.New(d.status.Reason)
	}
	return errors.New("AI driver not initialized")
}

// Respond sends the full ordered history as a one-shot completion.
func (d *Driver) Respond(ctx context.Context, history []model.Message, modelOverride string, temperature *float64) (*ChatResponse, error) {
	if d.provider == nil {
		return nil, d.unusableErr()
	}
	return d.provider.Chat(ctx, history, d.effectiveConfig(modelOverride, temperature))
}

// RespondStream sends the history as a streaming completion. The
// returned channel follows the Provider.ChatStream terminal contract.
func (d *Driver) RespondStream(ctx context.Context, history []model.Message, modelOverride string, temperature *float64) (<-chan StreamResult, error) {
	if d.provider == nil {
		return nil, d.unusableErr()
	}
	return d.provider.ChatStream(ctx, history, d.effectiveConfig(modelOverride, temperature))
}
