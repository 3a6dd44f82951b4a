// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"fmt"
	"strings"
)

// Finding is a single vulnerability report emitted by the scanner for a
// piece of submitted code. The fields mirror the Vorpal CLI result
// schema; everything except Rule, Description and Line is best-effort
// because the scanner emits several slightly different shapes.
type Finding struct {
	RuleID            int    `json:"ruleId"`
	Language          string `json:"language"`
	Rule              string `json:"rule"`
	Severity          string `json:"severity"`
	File              string `json:"file"`
	Line              int    `json:"line"`
	Content           string `json:"content"`
	RemediationAdvice string `json:"remediationAdvice"`
	Description       string `json:"description"`
}

// Summary renders a finding as a single human-readable line. This is
// the text the generation prompt and the 422 response carry, so it must
// stay stable: "rule (line N: content) description: d".
func (f Finding) Summary() string {
	return fmt.Sprintf("%s (line %d: %s) description: %s", f.Rule, f.Line, f.Content, f.Description)
}

// SummarizeFindings joins the per-finding summaries with "; " in
// scanner order.
func SummarizeFindings(findings []Finding) string {
	if len(findings) == 0 {
		return "No vulnerabilities found"
	}
	parts := make([]string, 0, len(findings))
	for _, f := range findings {
		parts = append(parts, f.Summary())
	}
	return strings.Join(parts, "; ")
}

// languageExtensions maps a language tag to the file extension the
// scanner uses for language-specific rule selection.
var languageExtensions = map[string]string{
	"python":     "py",
	"javascript": "js",
	"java":       "java",
	"go":         "go",
	"csharp":     "cs",
	"c#":         "cs",
}

// FileExtensionFor returns the scanner file extension for a language,
// falling back to "txt" for anything unknown.
func FileExtensionFor(language string) string {
	if ext, ok := languageExtensions[strings.ToLower(language)]; ok {
		return ext
	}
	return "txt"
}

// SyntheticFilename builds the filename handed to the scanner. It only
// exists so the scanner picks the right rule set; nothing is ever
// written under that name permanently.
func SyntheticFilename(language string) string {
	return "remediation." + FileExtensionFor(language)
}
