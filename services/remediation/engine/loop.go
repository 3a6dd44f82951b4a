// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package engine implements the remediation validation loop: the
// bounded-retry state machine that prompts a generation backend, scans
// the result, and folds scanner findings back into the next attempt.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/AleutianAI/AleutianRemedy/services/llm"
	"github.com/AleutianAI/AleutianRemedy/services/remediation/datatypes"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("aleutian.remedy.engine")

// Scanner is the capability the loop needs from a vulnerability
// scanner: submit code, get back an ordered list of findings. An empty
// list means the code is accepted as clean. Errors are infrastructure
// failures, never content decisions.
type Scanner interface {
	Scan(ctx context.Context, code, language, filename string) ([]datatypes.Finding, error)
}

// Options configures a Loop.
type Options struct {
	// MaxRetries bounds the number of generation+scan round trips.
	MaxRetries int
	// AllowedLanguages is the non-empty set of languages the service
	// will remediate. Matching is case-insensitive.
	AllowedLanguages []string
	// Params are the generation parameters used for every attempt.
	// Temperature should be low; conservative, reproducible fixes beat
	// creative ones here.
	Params llm.GenerationParams
}

// Result is the terminal success value of a loop run.
type Result struct {
	Code         string
	AttemptsUsed int
}

// Loop drives the remediation state machine. One Loop is shared across
// requests; all per-request state lives in Run's locals, so concurrent
// Run calls need no coordination.
type Loop struct {
	llmClient  llm.LLMClient
	scanner    Scanner
	prompts    PromptBuilder
	maxRetries int
	allowed    map[string]struct{}
	params     llm.GenerationParams
}

// NewLoop validates the options and builds a Loop.
func NewLoop(llmClient llm.LLMClient, scanner Scanner, opts Options) (*Loop, error) {
	if llmClient == nil {
		return nil, errors.New("llm client must not be nil")
	}
	if scanner == nil {
		return nil, errors.New("scanner must not be nil")
	}
	if opts.MaxRetries < 1 {
		return nil, fmt.Errorf("max retries must be positive, got %d", opts.MaxRetries)
	}
	if len(opts.AllowedLanguages) == 0 {
		return nil, errors.New("allowed languages must not be empty")
	}
	allowed := make(map[string]struct{}, len(opts.AllowedLanguages))
	for _, lang := range opts.AllowedLanguages {
		allowed[strings.ToLower(lang)] = struct{}{}
	}
	return &Loop{
		llmClient:  llmClient,
		scanner:    scanner,
		maxRetries: opts.MaxRetries,
		allowed:    allowed,
		params:     opts.Params,
	}, nil
}

// Supports reports whether the loop will accept the given language.
func (l *Loop) Supports(language string) bool {
	_, ok := l.allowed[strings.ToLower(language)]
	return ok
}

// Run executes the remediation loop for one request.
//
// Per attempt i in [0, maxRetries): build the prompt from the request
// and every prior attempt, generate, scan. No findings terminates with
// a Result. Findings append an immutable Attempt to the history and
// trigger a retry while attempts remain; otherwise Run returns a
// *RejectedError carrying the final findings. Backend and scanner
// failures (including empty completions) terminate immediately — they
// are outages, not content rejections, and are never retried here.
//
// Generation calls always equal scan calls, and both never exceed
// maxRetries.
func (l *Loop) Run(ctx context.Context, req datatypes.RemediationRequest) (*Result, error) {
	ctx, span := tracer.Start(ctx, "Loop.Run")
	defer span.End()
	span.SetAttributes(
		attribute.String("remediation.language", req.Language),
		attribute.String("remediation.rule", req.RuleName),
	)

	if !l.Supports(req.Language) {
		err := fmt.Errorf("%w: %s", ErrUnsupportedLanguage, req.Language)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	filename := datatypes.SyntheticFilename(req.Language)
	history := make(History, 0, l.maxRetries)

	for attempt := 0; attempt < l.maxRetries; attempt++ {
		slog.Debug("Remediation attempt",
			"attempt", attempt+1,
			"max_retries", l.maxRetries,
			"history_len", len(history))

		prompt := l.prompts.Build(req, history)

		code, err := l.llmClient.Generate(ctx, prompt, l.params)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, &GenerationError{Cause: err}
		}
		if strings.TrimSpace(code) == "" {
			// A blank completion cannot be scanned and retrying a
			// persistently empty backend makes no progress. Treated as
			// a backend defect, not a security rejection.
			err := errors.New("empty response from generation backend")
			span.SetStatus(codes.Error, err.Error())
			return nil, &GenerationError{Cause: err}
		}

		findings, err := l.scanner.Scan(ctx, code, req.Language, filename)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, &ScanError{Cause: err}
		}

		if len(findings) == 0 {
			span.SetAttributes(attribute.Int("remediation.attempts_used", attempt+1))
			slog.Info("Generated secure code", "attempts_used", attempt+1)
			return &Result{Code: code, AttemptsUsed: attempt + 1}, nil
		}

		history = append(history, Attempt{
			Index:         attempt,
			Prompt:        prompt,
			GeneratedCode: code,
			Findings:      findings,
		})
		slog.Warn("Attempt produced vulnerable code",
			"attempt", attempt+1,
			"findings", len(findings),
			"summary", datatypes.SummarizeFindings(findings))
	}

	last := history[len(history)-1]
	span.SetAttributes(attribute.Int("remediation.attempts_used", l.maxRetries))
	span.SetStatus(codes.Error, "retries exhausted")
	return nil, &RejectedError{Findings: last.Findings, AttemptsUsed: l.maxRetries}
}
