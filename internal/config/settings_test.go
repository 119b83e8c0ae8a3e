// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"testing"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/patina-tui/internal/llm"
)

func envFrom(m map[string]string) func(string) string {
	return func(key string) string { return m[key] }
}

func TestResolveOpenAIFromEnv(t *testing.T) {
	settings, err := resolve(envFrom(map[string]string{
		"LLM_PROVIDER":   "openai",
		"OPENAI_API_KEY": "test-key",
		"OPENAI_MODEL":   "gpt-4o-mini",
	}), nil, nil)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if settings.Provider != llm.ProviderOpenAI {
		t.Errorf("expected openai provider, got %q", settings.Provider)
	}
	if settings.OpenAI == nil || settings.OpenAI.APIKey != "test-key" {
		t.Errorf("unexpected OpenAI settings: %+v", settings.OpenAI)
	}
	if settings.Model != "gpt-4o-mini" {
		t.Errorf("expected model gpt-4o-mini, got %q", settings.Model)
	}
}

func TestResolveUsesDotenvWhenEnvMissing(t *testing.T) {
	dotenv := map[string]string{
		"LLM_PROVIDER":   "openai",
		"OPENAI_API_KEY": "dotenv-key",
	}
	settings, err := resolve(envFrom(nil), dotenv, nil)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if settings.OpenAI.APIKey != "dotenv-key" {
		t.Errorf("expected dotenv key, got %q", settings.OpenAI.APIKey)
	}
	if settings.Model != DefaultOpenAIModel {
		t.Errorf("expected default model, got %q", settings.Model)
	}
}

func TestEnvOverridesDotenv(t *testing.T) {
	env := map[string]string{"OPENAI_API_KEY": "env-key", "LLM_PROVIDER": "openai"}
	dotenv := map[string]string{"OPENAI_API_KEY": "dotenv-key"}
	settings, err := resolve(envFrom(env), dotenv, nil)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if settings.OpenAI.APIKey != "env-key" {
		t.Errorf("environment must win over .env, got %q", settings.OpenAI.APIKey)
	}
}

func TestResolveFallsBackToFile(t *testing.T) {
	ai := &aiSection{
		Provider: "azure_openai",
		AzureOpenAI: &azureSection{
			APIKey:     "file-key",
			Endpoint:   "https://example.azure.com",
			APIVersion: "2024-12-01-preview",
			Deployment: "gpt-4o",
		},
	}
	settings, err := resolve(envFrom(nil), nil, ai)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if settings.Provider != llm.ProviderAzureOpenAI {
		t.Errorf("expected azure provider, got %q", settings.Provider)
	}
	azure := settings.Azure
	if azure.APIKey != "file-key" || azure.Endpoint != "https://example.azure.com" ||
		azure.APIVersion != "2024-12-01-preview" || azure.Deployment != "gpt-4o" {
		t.Errorf("unexpected azure settings: %+v", azure)
	}
	if settings.Model != "gpt-4o" {
		t.Errorf("azure model is the deployment name, got %q", settings.Model)
	}
}

func TestResolveMissingProvider(t *testing.T) {
	_, err := resolve(envFrom(nil), nil, nil)
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *ConfigError, got %v", err)
	}
	if cfgErr.Detail != "" {
		t.Errorf("missing config carries no detail, got %q", cfgErr.Detail)
	}
	if got := cfgErr.UserMessage(); got != "AI not configured—create patina.toml or set env vars." {
		t.Errorf("unexpected user message: %q", got)
	}
}

func TestResolveMissingOpenAIKey(t *testing.T) {
	_, err := resolve(envFrom(map[string]string{"LLM_PROVIDER": "openai"}), nil, nil)
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *ConfigError, got %v", err)
	}
	if cfgErr.Detail != "missing OpenAI api key (OPENAI_API_KEY)" {
		t.Errorf("unexpected detail: %q", cfgErr.Detail)
	}
}

func TestResolveMissingAzureFields(t *testing.T) {
	cases := []struct {
		name   string
		env    map[string]string
		detail string
	}{
		{
			name:   "missing key",
			env:    map[string]string{"LLM_PROVIDER": "azure_openai"},
			detail: "missing Azure OpenAI api key (AZURE_OPENAI_API_KEY)",
		},
		{
			name: "missing endpoint",
			env: map[string]string{
				"LLM_PROVIDER":         "azure_openai",
				"AZURE_OPENAI_API_KEY": "k",
			},
			detail: "missing Azure endpoint (AZURE_OPENAI_ENDPOINT)",
		},
		{
			name: "missing api version",
			env: map[string]string{
				"LLM_PROVIDER":          "azure_openai",
				"AZURE_OPENAI_API_KEY":  "k",
				"AZURE_OPENAI_ENDPOINT": "https://e",
			},
			detail: "missing Azure api version (AZURE_OPENAI_API_VERSION)",
		},
		{
			name: "missing deployment",
			env: map[string]string{
				"LLM_PROVIDER":             "azure_openai",
				"AZURE_OPENAI_API_KEY":     "k",
				"AZURE_OPENAI_ENDPOINT":    "https://e",
				"AZURE_OPENAI_API_VERSION": "v",
			},
			detail: "missing Azure deployment name (AZURE_OPENAI_DEPLOYMENT_NAME)",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := resolve(envFrom(tc.env), nil, nil)
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected *ConfigError, got %v", err)
			}
			if cfgErr.Detail != tc.detail {
				t.Errorf("expected %q, got %q", tc.detail, cfgErr.Detail)
			}
		})
	}
}

func TestResolveUnknownProvider(t *testing.T) {
	_, err := resolve(envFrom(map[string]string{"LLM_PROVIDER": "frontier"}), nil, nil)
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *ConfigError, got %v", err)
	}
	if cfgErr.Detail != "unrecognized provider 'frontier'" {
		t.Errorf("unexpected detail: %q", cfgErr.Detail)
	}
}

func TestResolveMock(t *testing.T) {
	settings, err := resolve(envFrom(map[string]string{"LLM_PROVIDER": "mock"}), nil, nil)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if settings.Provider != llm.ProviderMock || settings.Model != "mock" {
		t.Errorf("unexpected mock settings: %+v", settings)
	}
}

func TestBlankValuesIgnored(t *testing.T) {
	env := map[string]string{"LLM_PROVIDER": "openai", "OPENAI_API_KEY": "   "}
	dotenv := map[string]string{"OPENAI_API_KEY": "real-key"}
	settings, err := resolve(envFrom(env), dotenv, nil)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if settings.OpenAI.APIKey != "real-key" {
		t.Errorf("whitespace-only env value must not mask .env, got %q", settings.OpenAI.APIKey)
	}
}

func TestBuildDriver(t *testing.T) {
	driver := BuildDriver(nil, &ConfigError{})
	if driver.Status().Ready {
		t.Error("config error must produce an unconfigured driver")
	}
	if driver.Status().Reason != "AI not configured—create patina.toml or set env vars." {
		t.Errorf("unexpected reason: %q", driver.Status().Reason)
	}

	driver = BuildDriver(&Settings{Provider: llm.ProviderMock, Model: "mock"}, nil)
	if !driver.Status().Ready {
		t.Error("mock settings must produce a ready driver")
	}
	if driver.Kind() != llm.ProviderMock {
		t.Errorf("expected mock driver, got %q", driver.Kind())
	}

	driver = BuildDriver(&Settings{
		Provider: llm.ProviderOpenAI,
		Model:    DefaultOpenAIModel,
		OpenAI:   &OpenAISettings{APIKey: "k", Model: DefaultOpenAIModel},
	}, nil)
	if !driver.Status().Ready || driver.Kind() != llm.ProviderOpenAI {
		t.Errorf("unexpected openai driver state: %+v", driver.Status())
	}
}

func TestFileConfigDecodes(t *testing.T) {
	// The resolver accepts the [ai] tree as written in patina.toml.
	var cfg fileConfig
	src := `
[ai]
provider = "openai"

[ai.openai]
api_key = "toml-key"
model = "gpt-4o"

[storage]
data_dir = "/tmp/patina"
`
	if _, err := toml.Decode(src, &cfg); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	settings, err := resolve(envFrom(nil), nil, cfg.AI)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if settings.OpenAI.APIKey != "toml-key" || settings.Model != "gpt-4o" {
		t.Errorf("unexpected settings from file: %+v", settings)
	}
	if cfg.Storage == nil || cfg.Storage.DataDir != "/tmp/patina" {
		t.Errorf("unexpected storage section: %+v", cfg.Storage)
	}
}
