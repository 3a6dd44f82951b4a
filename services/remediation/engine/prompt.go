// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"strings"

	"github.com/AleutianAI/AleutianRemedy/services/remediation/datatypes"
)

// systemInstruction frames every prompt. The model must answer with a
// bare code snippet so the scanner can consume the output directly.
const systemInstruction = `You are a security remediation expert. Your task is to provide ONLY secure code snippets that fix the specified vulnerability.

Rules:
1. Respond with ONLY the code snippet - no explanations, no markdown formatting
2. The code must be syntactically correct and secure
3. Use the exact programming language specified in the request
4. Focus specifically on fixing the vulnerability described

The code should demonstrate the secure way to implement the functionality.`

// Attempt is one completed generation+scan round trip. It is created
// by the loop, never mutated afterwards, and appended to the history.
type Attempt struct {
	Index         int
	Prompt        string
	GeneratedCode string
	Findings      []datatypes.Finding
}

// History is the ordered, append-only record of prior attempts within
// one request. It is owned by the single loop run that built it and is
// discarded when the request completes.
type History []Attempt

// PromptBuilder turns a request and the accumulated history into the
// next generation prompt. Pure and deterministic: no I/O, no clock, no
// attempt counters leaking into the text.
type PromptBuilder struct{}

// Build renders the prompt for the next attempt.
//
// The first attempt (empty history) gets the system instruction plus
// the serialized request fields. Later attempts additionally replay
// every prior attempt's code and findings in chronological order, so
// the model always sees the full accumulated context rather than just
// the latest feedback. Dropping any prior finding here is a
// correctness bug, not an optimization.
func (PromptBuilder) Build(req datatypes.RemediationRequest, history History) string {
	var b strings.Builder
	b.WriteString(systemInstruction)
	b.WriteString("\n\nLanguage: ")
	b.WriteString(req.Language)
	b.WriteString("\nRule: ")
	b.WriteString(req.RuleName)
	b.WriteString("\nDescription: ")
	b.WriteString(req.Description)
	b.WriteString("\nRemediation Advice: ")
	b.WriteString(req.RemediationAdvice)
	b.WriteString("\n\nProvide a secure code snippet that fixes this vulnerability.\n")

	for _, attempt := range history {
		b.WriteString("\nA previous attempt produced this code:\n")
		b.WriteString(attempt.GeneratedCode)
		b.WriteString("\n\nThe security scanner found these vulnerabilities in that code: ")
		b.WriteString(datatypes.SummarizeFindings(attempt.Findings))
		b.WriteString("\nFix these specific security issues and provide a corrected version.\n")
	}

	if len(history) > 0 {
		b.WriteString("\nBased on all the security analysis feedback above, provide an improved and more secure version. Do not reintroduce any of the listed issues.\n")
	}

	return b.String()
}
