// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package llm abstracts chat-completion backends behind one driver.
//
// A Provider turns an ordered message history into either a single
// completed reply or an incremental chunk stream. The Driver wraps a
// provider with effective-config handling (model override, caller
// temperature) and a readiness status: an unconfigured driver reports
// why, and any attempted send surfaces that reason as an ordinary
// error. Backends: OpenAI, Azure OpenAI, and a deterministic mock.
package llm
