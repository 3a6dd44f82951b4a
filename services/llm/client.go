// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm provides clients for the code generation backends.
package llm

import (
	"context"
	"strings"
)

// GenerationParams are the sampling knobs forwarded to the backend.
// Nil fields fall back to per-backend defaults.
type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopK        *int     `json:"top_k"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// LLMClient defines the standard interface for any LLM backend.
type LLMClient interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)
}

// CleanCodeResponse strips markdown fences and prose preamble lines
// from a model completion so only the code snippet remains.
//
// Models routinely wrap snippets in ``` fences or lead with "Here is
// the fixed code:" despite being told not to. The scanner needs bare
// source, so fence markers are dropped, fenced content is kept, and
// outside fences any line that reads like commentary is skipped. If
// stripping removes everything, the trimmed original is returned so a
// legitimate completion is never turned into an empty one.
func CleanCodeResponse(response string) string {
	prosePrefixes := []string{"Here", "This", "The", "Note:", "Remember:", "Example:"}

	var cleaned []string
	inFence := false
	for _, line := range strings.Split(response, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
			continue
		}
		if inFence {
			cleaned = append(cleaned, line)
			continue
		}
		prose := false
		for _, prefix := range prosePrefixes {
			if strings.HasPrefix(strings.TrimSpace(line), prefix) {
				prose = true
				break
			}
		}
		if !prose {
			cleaned = append(cleaned, line)
		}
	}

	result := strings.TrimSpace(strings.Join(cleaned, "\n"))
	if result == "" {
		return strings.TrimSpace(response)
	}
	return result
}
