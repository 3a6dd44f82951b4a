// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scanner

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/AleutianAI/AleutianRemedy/services/remediation/datatypes"
)

// ParseResults decodes a Vorpal results file into findings.
//
// Vorpal versions differ in both envelope and field naming: findings
// may sit under "results", under "vulnerabilities", be a bare array,
// or a single object; field names flip between snake_case and
// camelCase. This parser accepts all observed shapes. Empty input
// means a clean scan.
func ParseResults(data []byte) ([]datatypes.Finding, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseResults, err)
	}

	var entries []interface{}
	switch v := raw.(type) {
	case map[string]interface{}:
		if results, ok := v["results"].([]interface{}); ok {
			entries = results
		} else if vulns, ok := v["vulnerabilities"].([]interface{}); ok {
			entries = vulns
		} else {
			entries = []interface{}{v}
		}
	case []interface{}:
		entries = v
	default:
		return nil, nil
	}

	findings := make([]datatypes.Finding, 0, len(entries))
	for _, entry := range entries {
		m, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		findings = append(findings, datatypes.Finding{
			RuleID:            intField(m, "rule_id", "ruleId"),
			Language:          stringField(m, "language"),
			Rule:              stringField(m, "rule_name", "ruleName", "rule"),
			Severity:          stringField(m, "severity"),
			File:              stringField(m, "file", "fileName", "filename"),
			Line:              intField(m, "line", "lineNumber", "line_number"),
			Content:           stringField(m, "content", "problematic_line", "code"),
			RemediationAdvice: stringField(m, "remediationAdvice", "remediation_advice", "advice"),
			Description:       stringField(m, "description", "desc"),
		})
	}
	return findings, nil
}

// stringField returns the first present string value among the keys.
func stringField(m map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if s, ok := m[key].(string); ok {
			return s
		}
	}
	return ""
}

// intField returns the first present numeric value among the keys.
// JSON numbers decode as float64.
func intField(m map[string]interface{}, keys ...string) int {
	for _, key := range keys {
		if f, ok := m[key].(float64); ok {
			return int(f)
		}
	}
	return 0
}
