// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config resolves AI provider settings from the environment, a
// .env file, and patina.toml, in that order of precedence. Missing or
// invalid configuration is not fatal: it yields an unconfigured driver
// carrying a user-facing reason, and the app runs read-only until the
// configuration is fixed. A watcher re-resolves settings when
// patina.toml changes so the driver can be rebuilt without a restart.
package config
