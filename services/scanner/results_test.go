// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// Tests for Vorpal results parsing.

package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResults_Empty(t *testing.T) {
	findings, err := ParseResults(nil)
	require.NoError(t, err)
	assert.Empty(t, findings)

	findings, err = ParseResults([]byte("  \n "))
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestParseResults_ResultsEnvelope(t *testing.T) {
	data := []byte(`{"results": [
		{"ruleId": 42, "language": "python", "ruleName": "SQL Injection",
		 "severity": "high", "fileName": "remediation.py", "line": 3,
		 "problematic_line": "cursor.execute(f\"...\")",
		 "remediationAdvice": "parameterize", "description": "f-string interpolation"}
	]}`)

	findings, err := ParseResults(data)
	require.NoError(t, err)
	require.Len(t, findings, 1)

	f := findings[0]
	assert.Equal(t, 42, f.RuleID)
	assert.Equal(t, "python", f.Language)
	assert.Equal(t, "SQL Injection", f.Rule)
	assert.Equal(t, "high", f.Severity)
	assert.Equal(t, "remediation.py", f.File)
	assert.Equal(t, 3, f.Line)
	assert.Equal(t, `cursor.execute(f"...")`, f.Content)
	assert.Equal(t, "parameterize", f.RemediationAdvice)
	assert.Equal(t, "f-string interpolation", f.Description)
}

func TestParseResults_VulnerabilitiesEnvelope(t *testing.T) {
	data := []byte(`{"vulnerabilities": [
		{"rule_id": 1, "rule": "XSS", "line_number": 10, "desc": "unescaped output"}
	]}`)

	findings, err := ParseResults(data)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "XSS", findings[0].Rule)
	assert.Equal(t, 10, findings[0].Line)
	assert.Equal(t, "unescaped output", findings[0].Description)
}

func TestParseResults_BareArray(t *testing.T) {
	data := []byte(`[
		{"rule": "A", "description": "first"},
		{"rule": "B", "description": "second"}
	]`)

	findings, err := ParseResults(data)
	require.NoError(t, err)
	require.Len(t, findings, 2)
	assert.Equal(t, "first", findings[0].Description, "scanner order is preserved")
	assert.Equal(t, "second", findings[1].Description)
}

func TestParseResults_SingleObject(t *testing.T) {
	data := []byte(`{"rule": "Hardcoded Secret", "line": 1, "description": "api key in source"}`)

	findings, err := ParseResults(data)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "Hardcoded Secret", findings[0].Rule)
}

func TestParseResults_InvalidJSON(t *testing.T) {
	_, err := ParseResults([]byte("{not json"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrParseResults)
}

func TestParseResults_EmptyResultsList(t *testing.T) {
	findings, err := ParseResults([]byte(`{"results": []}`))
	require.NoError(t, err)
	assert.Empty(t, findings)
}
