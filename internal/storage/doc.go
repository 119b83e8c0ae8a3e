// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides durable conversation transcripts for patina.
//
// Each conversation is stored as an append-only JSON-lines log
// (conversations/<uuid>.jsonl, one message per line) plus a small
// metadata file (conversations/<uuid>.meta.json) holding the mutable
// title. The log is never rewritten; titles change via an atomic
// metadata rewrite. A truncated trailing log line is treated as "not
// yet written" so a crash mid-append never poisons a transcript.
package storage
