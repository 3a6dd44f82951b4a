// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// Tests for the remediation validation loop.

package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/AleutianAI/AleutianRemedy/services/llm"
	"github.com/AleutianAI/AleutianRemedy/services/remediation/datatypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Fakes
// =============================================================================

// fakeGenerator implements llm.LLMClient with scripted responses.
// Responses are consumed in order; the last one repeats.
type fakeGenerator struct {
	responses []string
	err       error
	calls     int
	prompts   []string
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string, params llm.GenerationParams) (string, error) {
	f.calls++
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	if len(f.responses) == 0 {
		return "fixed code", nil
	}
	idx := f.calls - 1
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	return f.responses[idx], nil
}

// fakeScanner implements Scanner with scripted per-attempt findings.
type fakeScanner struct {
	findings [][]datatypes.Finding
	err      error
	calls    int
}

func (f *fakeScanner) Scan(ctx context.Context, code, language, filename string) ([]datatypes.Finding, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	idx := f.calls - 1
	if idx >= len(f.findings) {
		return nil, nil
	}
	return f.findings[idx], nil
}

func newTestLoop(t *testing.T, gen *fakeGenerator, scan *fakeScanner, maxRetries int) *Loop {
	t.Helper()
	loop, err := NewLoop(gen, scan, Options{
		MaxRetries:       maxRetries,
		AllowedLanguages: []string{"python", "javascript", "go"},
	})
	require.NoError(t, err)
	return loop
}

func finding(rule, description string) datatypes.Finding {
	return datatypes.Finding{Rule: rule, Description: description, Line: 1}
}

// =============================================================================
// NewLoop Tests
// =============================================================================

func TestNewLoop_RejectsBadOptions(t *testing.T) {
	gen := &fakeGenerator{}
	scan := &fakeScanner{}

	_, err := NewLoop(nil, scan, Options{MaxRetries: 5, AllowedLanguages: []string{"go"}})
	assert.Error(t, err)

	_, err = NewLoop(gen, nil, Options{MaxRetries: 5, AllowedLanguages: []string{"go"}})
	assert.Error(t, err)

	_, err = NewLoop(gen, scan, Options{MaxRetries: 0, AllowedLanguages: []string{"go"}})
	assert.Error(t, err)

	_, err = NewLoop(gen, scan, Options{MaxRetries: 5})
	assert.Error(t, err)
}

// =============================================================================
// Loop.Run Tests
// =============================================================================

func TestRun_UnsupportedLanguage_NoPortCalls(t *testing.T) {
	gen := &fakeGenerator{}
	scan := &fakeScanner{}
	loop := newTestLoop(t, gen, scan, 5)

	_, err := loop.Run(context.Background(), datatypes.RemediationRequest{
		Language: "cobol", RuleName: "r", Description: "d", RemediationAdvice: "a",
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedLanguage)
	assert.Equal(t, 0, gen.calls, "no generation call may happen for an unsupported language")
	assert.Equal(t, 0, scan.calls, "no scan call may happen for an unsupported language")
}

func TestRun_LanguageMatchingIsCaseInsensitive(t *testing.T) {
	gen := &fakeGenerator{}
	scan := &fakeScanner{}
	loop := newTestLoop(t, gen, scan, 5)

	result, err := loop.Run(context.Background(), datatypes.RemediationRequest{
		Language: "Python", RuleName: "r", Description: "d", RemediationAdvice: "a",
	})

	require.NoError(t, err)
	assert.Equal(t, "fixed code", result.Code)
}

func TestRun_CleanFirstScan_SingleRoundTrip(t *testing.T) {
	gen := &fakeGenerator{responses: []string{"safe snippet"}}
	scan := &fakeScanner{}
	loop := newTestLoop(t, gen, scan, 5)

	result, err := loop.Run(context.Background(), datatypes.RemediationRequest{
		Language: "go", RuleName: "r", Description: "d", RemediationAdvice: "a",
	})

	require.NoError(t, err)
	assert.Equal(t, "safe snippet", result.Code)
	assert.Equal(t, 1, result.AttemptsUsed)
	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, 1, scan.calls)
}

func TestRun_RetryThenSuccess(t *testing.T) {
	gen := &fakeGenerator{responses: []string{"vulnerable code", "safe code"}}
	scan := &fakeScanner{findings: [][]datatypes.Finding{
		{finding("SQLi", "SQLi: f-string interpolation")},
		nil,
	}}
	loop := newTestLoop(t, gen, scan, 2)

	result, err := loop.Run(context.Background(), datatypes.RemediationRequest{
		Language: "python", RuleName: "SQL Injection", Description: "d", RemediationAdvice: "a",
	})

	require.NoError(t, err)
	assert.Equal(t, "safe code", result.Code)
	assert.Equal(t, 2, result.AttemptsUsed)
	assert.Equal(t, 2, gen.calls)
	assert.Equal(t, 2, scan.calls)
	assert.Contains(t, gen.prompts[1], "SQLi: f-string interpolation",
		"retry prompt must carry the previous attempt's findings")
}

func TestRun_AllAttemptsVulnerable_Rejected(t *testing.T) {
	lastFindings := []datatypes.Finding{finding("XSS", "last attempt issue")}
	gen := &fakeGenerator{responses: []string{"bad code"}}
	scan := &fakeScanner{findings: [][]datatypes.Finding{
		{finding("XSS", "first attempt issue")},
		{finding("XSS", "second attempt issue")},
		lastFindings,
	}}
	loop := newTestLoop(t, gen, scan, 3)

	_, err := loop.Run(context.Background(), datatypes.RemediationRequest{
		Language: "javascript", RuleName: "XSS", Description: "d", RemediationAdvice: "a",
	})

	require.Error(t, err)
	var rejected *RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, 3, rejected.AttemptsUsed)
	assert.Equal(t, lastFindings, rejected.Findings, "rejection carries the final attempt's findings")
	assert.Equal(t, 3, gen.calls)
	assert.Equal(t, 3, scan.calls)
}

func TestRun_SingleRetry_RejectedWithoutSecondAttempt(t *testing.T) {
	gen := &fakeGenerator{responses: []string{"bad code"}}
	scan := &fakeScanner{findings: [][]datatypes.Finding{
		{finding("XSS", "XSS: unescaped output")},
	}}
	loop := newTestLoop(t, gen, scan, 1)

	_, err := loop.Run(context.Background(), datatypes.RemediationRequest{
		Language: "javascript", RuleName: "XSS", Description: "d", RemediationAdvice: "a",
	})

	var rejected *RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, 1, rejected.AttemptsUsed)
	require.Len(t, rejected.Findings, 1)
	assert.Equal(t, "XSS: unescaped output", rejected.Findings[0].Description)
	assert.Equal(t, 1, gen.calls, "no second attempt may occur with maxRetries=1")
	assert.Equal(t, 1, scan.calls)
}

func TestRun_MonotonicContextGrowth(t *testing.T) {
	gen := &fakeGenerator{responses: []string{"bad code"}}
	scan := &fakeScanner{findings: [][]datatypes.Finding{
		{finding("A", "issue alpha")},
		{finding("B", "issue beta")},
		{finding("C", "issue gamma")},
	}}
	loop := newTestLoop(t, gen, scan, 3)

	_, err := loop.Run(context.Background(), datatypes.RemediationRequest{
		Language: "go", RuleName: "r", Description: "d", RemediationAdvice: "a",
	})
	require.Error(t, err)
	require.Len(t, gen.prompts, 3)

	// Prompt i must contain every finding from attempts 0..i-1, in order.
	assert.NotContains(t, gen.prompts[0], "issue alpha")

	assert.Contains(t, gen.prompts[1], "issue alpha")
	assert.NotContains(t, gen.prompts[1], "issue beta")

	assert.Contains(t, gen.prompts[2], "issue alpha")
	assert.Contains(t, gen.prompts[2], "issue beta")
	alphaIdx := strings.Index(gen.prompts[2], "issue alpha")
	betaIdx := strings.Index(gen.prompts[2], "issue beta")
	assert.Less(t, alphaIdx, betaIdx, "findings must appear in chronological order")
}

func TestRun_GenerationFailure_TerminatesImmediately(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("connection refused")}
	scan := &fakeScanner{}
	loop := newTestLoop(t, gen, scan, 5)

	_, err := loop.Run(context.Background(), datatypes.RemediationRequest{
		Language: "go", RuleName: "r", Description: "d", RemediationAdvice: "a",
	})

	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, 1, gen.calls, "backend failures are never retried")
	assert.Equal(t, 0, scan.calls, "nothing to scan after a generation failure")
}

func TestRun_BlankGeneration_IsGenerationFailure(t *testing.T) {
	gen := &fakeGenerator{responses: []string{"   \n\t  "}}
	scan := &fakeScanner{}
	loop := newTestLoop(t, gen, scan, 5)

	_, err := loop.Run(context.Background(), datatypes.RemediationRequest{
		Language: "go", RuleName: "r", Description: "d", RemediationAdvice: "a",
	})

	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, 0, scan.calls, "a blank completion is never submitted to the scanner")
}

func TestRun_ScanFailure_TerminatesImmediately(t *testing.T) {
	gen := &fakeGenerator{responses: []string{"some code"}}
	scan := &fakeScanner{err: errors.New("scanner crashed")}
	loop := newTestLoop(t, gen, scan, 5)

	_, err := loop.Run(context.Background(), datatypes.RemediationRequest{
		Language: "go", RuleName: "r", Description: "d", RemediationAdvice: "a",
	})

	var scanErr *ScanError
	require.ErrorAs(t, err, &scanErr)
	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, 1, scan.calls, "scanner failures are never retried")
}

func TestRun_GenerationCallsEqualScanCalls(t *testing.T) {
	for _, maxRetries := range []int{1, 2, 5} {
		gen := &fakeGenerator{responses: []string{"bad code"}}
		scan := &fakeScanner{findings: [][]datatypes.Finding{
			{finding("A", "a")}, {finding("B", "b")}, {finding("C", "c")},
			{finding("D", "d")}, {finding("E", "e")},
		}}
		loop := newTestLoop(t, gen, scan, maxRetries)

		_, _ = loop.Run(context.Background(), datatypes.RemediationRequest{
			Language: "go", RuleName: "r", Description: "d", RemediationAdvice: "a",
		})

		assert.Equal(t, gen.calls, scan.calls, "maxRetries=%d", maxRetries)
		assert.LessOrEqual(t, gen.calls, maxRetries, "maxRetries=%d", maxRetries)
	}
}
