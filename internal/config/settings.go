// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/jeranaias/patina-tui/internal/llm"
)

// DefaultOpenAIModel is used when no model is configured for OpenAI.
const DefaultOpenAIModel = "gpt-4o-mini"

// =============================================================================
// ERRORS
// =============================================================================

// ConfigError describes why AI settings could not be resolved. An empty
// Detail means no configuration was found at all.
type ConfigError struct {
	Detail string
}

func (e *ConfigError) Error() string {
	if e.Detail == "" {
		return "AI not configured—create patina.toml or set env vars."
	}
	return "AI configuration invalid: " + e.Detail
}

// UserMessage returns the string shown in the UI status line.
func (e *ConfigError) UserMessage() string {
	if e.Detail == "" {
		return "AI not configured—create patina.toml or set env vars."
	}
	return fmt.Sprintf("AI not configured—%s. Update patina.toml or set the corresponding environment variables.", e.Detail)
}

// =============================================================================
// SETTINGS
// =============================================================================

// OpenAISettings holds resolved OpenAI credentials.
type OpenAISettings struct {
	APIKey string
	Model  string
}

// AzureSettings holds resolved Azure OpenAI credentials.
type AzureSettings struct {
	APIKey     string
	Endpoint   string
	APIVersion string
	Deployment string
}

// Settings is the fully resolved AI runtime configuration.
type Settings struct {
	Provider llm.ProviderKind
	Model    string
	OpenAI   *OpenAISettings
	Azure    *AzureSettings
}

// =============================================================================
// FILE SCHEMA (patina.toml)
// =============================================================================

type fileConfig struct {
	AI      *aiSection      `toml:"ai"`
	Storage *storageSection `toml:"storage"`
}

type aiSection struct {
	Provider    string         `toml:"provider"`
	OpenAI      *openAISection `toml:"openai"`
	AzureOpenAI *azureSection  `toml:"azure_openai"`
}

type openAISection struct {
	APIKey string `toml:"api_key"`
	Model  string `toml:"model"`
}

type azureSection struct {
	APIKey     string `toml:"api_key"`
	Endpoint   string `toml:"endpoint"`
	APIVersion string `toml:"api_version"`
	Deployment string `toml:"deployment_name"`
}

type storageSection struct {
	DataDir string `toml:"data_dir"`
}

// =============================================================================
// PATHS
// =============================================================================

// configCandidates lists the locations checked for patina.toml, in
// order of preference.
func configCandidates() []string {
	var paths []string
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "patina", "patina.toml"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".patina", "patina.toml"))
	}
	return paths
}

// ConfigPath returns the patina.toml in use, or the preferred location
// for one when none exists yet.
func ConfigPath() string {
	candidates := configCandidates()
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	if len(candidates) > 0 {
		return candidates[0]
	}
	return "patina.toml"
}

// DataDir returns the directory holding transcripts and the search
// index: PATINA_DATA_DIR, then [storage].data_dir, then ~/.patina.
func DataDir() (string, error) {
	if dir := strings.TrimSpace(os.Getenv("PATINA_DATA_DIR")); dir != "" {
		return dir, nil
	}
	if file := loadConfigFile(); file != nil && file.Storage != nil && file.Storage.DataDir != "" {
		return file.Storage.DataDir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".patina"), nil
}

// =============================================================================
// RESOLUTION
// =============================================================================

// Load resolves settings with precedence environment > .env > patina.toml.
// The returned error, when non-nil, is a *ConfigError.
func Load() (*Settings, error) {
	dotenv := loadDotenv()
	var ai *aiSection
	if file := loadConfigFile(); file != nil {
		ai = file.AI
	}
	return resolve(os.Getenv, dotenv, ai)
}

// resolve is the pure resolution core, separated from process state so
// tests can drive it directly.
func resolve(env func(string) string, dotenv map[string]string, ai *aiSection) (*Settings, error) {
	read := func(key string) string {
		if v := strings.TrimSpace(env(key)); v != "" {
			return v
		}
		if v := strings.TrimSpace(dotenv[key]); v != "" {
			return v
		}
		return ""
	}

	provider := read("LLM_PROVIDER")
	if provider == "" && ai != nil {
		provider = strings.TrimSpace(ai.Provider)
	}
	if provider == "" {
		return nil, &ConfigError{}
	}

	switch strings.ToLower(provider) {
	case string(llm.ProviderOpenAI):
		return resolveOpenAI(read, ai)
	case string(llm.ProviderAzureOpenAI):
		return resolveAzure(read, ai)
	case string(llm.ProviderMock):
		model := read("OPENAI_MODEL")
		if model == "" {
			model = "mock"
		}
		return &Settings{Provider: llm.ProviderMock, Model: model}, nil
	default:
		return nil, &ConfigError{Detail: fmt.Sprintf("unrecognized provider '%s'", provider)}
	}
}

func resolveOpenAI(read func(string) string, ai *aiSection) (*Settings, error) {
	var section *openAISection
	if ai != nil {
		section = ai.OpenAI
	}

	apiKey := read("OPENAI_API_KEY")
	if apiKey == "" && section != nil {
		apiKey = strings.TrimSpace(section.APIKey)
	}
	if apiKey == "" {
		return nil, &ConfigError{Detail: "missing OpenAI api key (OPENAI_API_KEY)"}
	}

	model := read("OPENAI_MODEL")
	if model == "" && section != nil {
		model = strings.TrimSpace(section.Model)
	}
	if model == "" {
		model = DefaultOpenAIModel
	}

	return &Settings{
		Provider: llm.ProviderOpenAI,
		Model:    model,
		OpenAI:   &OpenAISettings{APIKey: apiKey, Model: model},
	}, nil
}

func resolveAzure(read func(string) string, ai *aiSection) (*Settings, error) {
	var section *azureSection
	if ai != nil {
		section = ai.AzureOpenAI
	}
	fromFile := func(get func(*azureSection) string) string {
		if section == nil {
			return ""
		}
		return strings.TrimSpace(get(section))
	}
	pick := func(key string, get func(*azureSection) string) string {
		if v := read(key); v != "" {
			return v
		}
		return fromFile(get)
	}

	apiKey := pick("AZURE_OPENAI_API_KEY", func(s *azureSection) string { return s.APIKey })
	if apiKey == "" {
		return nil, &ConfigError{Detail: "missing Azure OpenAI api key (AZURE_OPENAI_API_KEY)"}
	}
	endpoint := pick("AZURE_OPENAI_ENDPOINT", func(s *azureSection) string { return s.Endpoint })
	if endpoint == "" {
		return nil, &ConfigError{Detail: "missing Azure endpoint (AZURE_OPENAI_ENDPOINT)"}
	}
	apiVersion := pick("AZURE_OPENAI_API_VERSION", func(s *azureSection) string { return s.APIVersion })
	if apiVersion == "" {
		return nil, &ConfigError{Detail: "missing Azure api version (AZURE_OPENAI_API_VERSION)"}
	}
	deployment := pick("AZURE_OPENAI_DEPLOYMENT_NAME", func(s *azureSection) string { return s.Deployment })
	if deployment == "" {
		return nil, &ConfigError{Detail: "missing Azure deployment name (AZURE_OPENAI_DEPLOYMENT_NAME)"}
	}

	return &Settings{
		Provider: llm.ProviderAzureOpenAI,
		Model:    deployment,
		Azure: &AzureSettings{
			APIKey:     apiKey,
			Endpoint:   endpoint,
			APIVersion: apiVersion,
			Deployment: deployment,
		},
	}, nil
}

// =============================================================================
// SOURCES
// =============================================================================

// loadDotenv reads .env from the working directory into a map without
// mutating the process environment, keeping the precedence order
// explicit. A missing or unparsable file yields an empty map.
func loadDotenv() map[string]string {
	values, err := godotenv.Read(".env")
	if err != nil {
		return map[string]string{}
	}
	return values
}

// loadConfigFile parses the first patina.toml found, or nil.
func loadConfigFile() *fileConfig {
	for _, path := range configCandidates() {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		var cfg fileConfig
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			continue
		}
		return &cfg
	}
	return nil
}

// =============================================================================
// DRIVER CONSTRUCTION
// =============================================================================

// BuildDriver turns a Load result into a driver. Resolution failures
// become an unconfigured driver whose reason is the user message.
func BuildDriver(settings *Settings, err error) *llm.Driver {
	if err != nil {
		if cfgErr, ok := err.(*ConfigError); ok {
			return llm.NewUnconfigured(cfgErr.UserMessage())
		}
		return llm.NewUnconfigured(err.Error())
	}

	switch settings.Provider {
	case llm.ProviderOpenAI:
		return llm.NewDriver(
			llm.Config{Provider: llm.ProviderOpenAI, Model: settings.Model},
			llm.NewOpenAIProvider(settings.OpenAI.APIKey),
		)
	case llm.ProviderAzureOpenAI:
		azure := settings.Azure
		return llm.NewDriver(
			llm.Config{Provider: llm.ProviderAzureOpenAI, Model: settings.Model},
			llm.NewAzureOpenAIProvider(azure.APIKey, azure.Endpoint, azure.APIVersion, azure.Deployment),
		)
	case llm.ProviderMock:
		return llm.NewMock(settings.Model)
	default:
		return llm.NewUnconfigured((&ConfigError{Detail: fmt.Sprintf("unrecognized provider '%s'", settings.Provider)}).UserMessage())
	}
}
