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
	"errors"
	"fmt"

	"github.com/AleutianAI/AleutianRemedy/services/remediation/datatypes"
)

// ErrUnsupportedLanguage is returned before any attempt runs when the
// requested language is not in the allowed set. Callers can fix the
// request; nothing downstream was touched.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// GenerationError is an infrastructure-class failure of the generation
// backend: unreachable, timed out, or returned an empty completion.
// The loop never retries it; retrying blindly would mask an outage.
type GenerationError struct {
	Cause error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation backend failure: %v", e.Cause)
}

func (e *GenerationError) Unwrap() error {
	return e.Cause
}

// ScanError is an infrastructure-class failure of the scanner:
// binary missing, crashed, timed out, or emitted unparseable results.
// Distinct from "findings present", which is a content decision.
type ScanError struct {
	Cause error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("scanner failure: %v", e.Cause)
}

func (e *ScanError) Unwrap() error {
	return e.Cause
}

// RejectedError is the content-class terminal outcome: every attempt
// produced code the scanner flagged. It carries the final attempt's
// findings so the caller can see why the code was rejected.
type RejectedError struct {
	Findings     []datatypes.Finding
	AttemptsUsed int
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("unable to generate secure code after %d attempts. Last vulnerabilities: %s",
		e.AttemptsUsed, datatypes.SummarizeFindings(e.Findings))
}
