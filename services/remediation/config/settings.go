// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads remediation service settings from the
// environment.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Settings is the full configuration surface of the service. Values
// come from environment variables; everything has a default except the
// Vorpal path, which has no sensible one.
type Settings struct {
	Port string

	LLMBackendType string
	OllamaBaseURL  string
	OllamaModel    string
	LlamaCppURL    string
	LLMTimeout     time.Duration
	Temperature    float32

	VorpalPath  string
	ScanTimeout time.Duration

	MaxRetries       int
	AllowedLanguages []string

	OTLPEndpoint string
}

// defaultLanguages matches the upstream scanner's rule coverage.
var defaultLanguages = []string{"python", "javascript", "java", "go", "csharp", "c#"}

// Load reads settings from the environment, applying defaults and
// logging every fallback so a misconfigured deployment is visible in
// the startup log rather than silently half-working.
func Load() Settings {
	s := Settings{
		Port:           getEnv("REMEDIATION_PORT", "8000"),
		LLMBackendType: getEnv("LLM_BACKEND_TYPE", "ollama"),
		OllamaBaseURL:  getEnv("OLLAMA_BASE_URL", "http://127.0.0.1:11434"),
		OllamaModel:    getEnv("OLLAMA_MODEL", "llama3.2"),
		LlamaCppURL:    os.Getenv("LLM_SERVICE_URL_BASE"),
		LLMTimeout:     getEnvSeconds("OLLAMA_TIMEOUT_SECONDS", 60),
		Temperature:    getEnvFloat32("GENERATION_TEMPERATURE", 0.1),
		VorpalPath:     os.Getenv("VORPAL_PATH"),
		ScanTimeout:    getEnvSeconds("SCAN_TIMEOUT_SECONDS", 30),
		MaxRetries:     getEnvInt("MAX_RETRIES", 5),
		OTLPEndpoint:   os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if langs := os.Getenv("ALLOWED_LANGUAGES"); langs != "" {
		for _, lang := range strings.Split(langs, ",") {
			if lang = strings.TrimSpace(lang); lang != "" {
				s.AllowedLanguages = append(s.AllowedLanguages, lang)
			}
		}
	}
	if len(s.AllowedLanguages) == 0 {
		s.AllowedLanguages = defaultLanguages
	}

	if s.MaxRetries < 1 {
		slog.Warn("MAX_RETRIES must be positive, using default", "value", s.MaxRetries, "default", 5)
		s.MaxRetries = 5
	}
	if s.VorpalPath == "" {
		slog.Warn("VORPAL_PATH not set; scans will fail until configured")
	}

	return s
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		slog.Warn("Invalid integer in environment, using default", "key", key, "value", value, "default", fallback)
		return fallback
	}
	return parsed
}

func getEnvSeconds(key string, fallback int) time.Duration {
	return time.Duration(getEnvInt(key, fallback)) * time.Second
}

func getEnvFloat32(key string, fallback float32) float32 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 32)
	if err != nil {
		slog.Warn("Invalid float in environment, using default", "key", key, "value", value, "default", fallback)
		return fallback
	}
	return float32(parsed)
}
