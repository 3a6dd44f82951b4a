// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes provides request and response structures for the
// remediation service.
package datatypes

import (
	"github.com/go-playground/validator/v10"
)

const (
	// MaxFieldBytes is the maximum size of a single request field.
	// Vulnerability descriptions and advice come from scanner reports;
	// anything larger than this is not a legitimate report.
	MaxFieldBytes = 32 * 1024 // 32KB
)

// remediationValidate is the validator instance for remediation datatypes.
var remediationValidate *validator.Validate

func init() {
	remediationValidate = validator.New()
	_ = remediationValidate.RegisterValidation("maxbytes", validateMaxBytes)
}

// validateMaxBytes checks byte length (not rune count) so oversized
// payloads cannot exhaust memory regardless of encoding.
func validateMaxBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxFieldBytes
}

// RemediationRequest is the body of POST /api/remediation.
//
// # Fields
//
//   - Language: Required. Programming language of the vulnerable code.
//     Must be one of the configured allowed languages (checked by the
//     engine, not here, so the allowed set stays a deployment concern).
//   - RuleName: Required. Name of the violated security rule.
//   - Description: Required. What the vulnerability is.
//   - RemediationAdvice: Required. Scanner-provided guidance on the fix.
//
// The field names match the upstream scanner's report schema, which is
// why the JSON keys are camelCase rather than snake_case.
type RemediationRequest struct {
	Language          string `json:"language" validate:"required,maxbytes"`
	RuleName          string `json:"ruleName" validate:"required,maxbytes"`
	Description       string `json:"description" validate:"required,maxbytes"`
	RemediationAdvice string `json:"remediationAdvice" validate:"required,maxbytes"`
}

// Validate checks required fields and size limits.
func (r *RemediationRequest) Validate() error {
	return remediationValidate.Struct(r)
}

// RemediationResponse is returned when the loop produced code the
// scanner accepted as clean.
type RemediationResponse struct {
	RemediatedCode string `json:"remediated_code"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Detail   string    `json:"detail"`
	Findings []Finding `json:"findings,omitempty"`
}
