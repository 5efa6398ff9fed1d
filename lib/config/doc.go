// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the mini-app server configuration from one YAML
// file.
//
// The file is named by the MINIAPP_CONFIG environment variable ([Load])
// or a --config flag ([LoadFile]). There is no discovery and no
// fallback search path.
//
// A file may carry local, staging, and production sections that
// override base values when [Config].Environment matches. Production
// without its own section forces launch-parameter expiration on.
//
// After overrides, ${VAR} and ${VAR:-default} are expanded in the
// server address and in every launch_params string field, so tenant
// secrets can stay in the process environment:
//
//	launch_params:
//	  credentials: "${VK_APP_CREDENTIALS}"
//
// A loaded Config is treated as immutable: binaries build it once and
// pass it down. [Config.Redacted] returns a copy safe to log.
package config
