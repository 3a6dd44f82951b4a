// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package scanner wraps the Vorpal CLI security scanner.
package scanner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianRemedy/services/remediation/datatypes"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("aleutian.remedy.scanner")

// Sentinel errors for scanner failures. All of them are
// infrastructure-class: "findings present" is never an error here.
var (
	ErrScannerNotFound = errors.New("scanner binary not found")
	ErrScannerTimeout  = errors.New("scanner timed out")
	ErrScannerFailed   = errors.New("scanner process failed")
	ErrParseResults    = errors.New("failed to parse scan results")
)

// VorpalScanner runs the Vorpal CLI against generated code snippets.
//
// Each scan writes the code to a temp file, invokes
// `vorpal -s <file> -r <results.json>` and parses the results file.
// An absent or empty results file means no findings. Safe for
// concurrent use; every scan owns its own temp paths.
type VorpalScanner struct {
	binaryPath string
	timeout    time.Duration
}

// NewVorpalScanner builds a scanner around the given binary path.
func NewVorpalScanner(binaryPath string, timeout time.Duration) (*VorpalScanner, error) {
	if binaryPath == "" {
		return nil, fmt.Errorf("%w: no binary path configured", ErrScannerNotFound)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if _, err := exec.LookPath(binaryPath); err != nil {
		slog.Warn("Vorpal binary not found at startup; scans will fail until it appears",
			"path", binaryPath, "error", err)
	}
	return &VorpalScanner{binaryPath: binaryPath, timeout: timeout}, nil
}

// Scan submits code to Vorpal and returns its findings in scanner
// order. The filename is synthetic; its extension steers
// language-specific rule selection and nothing is ever persisted under
// that name.
func (v *VorpalScanner) Scan(ctx context.Context, code, language, filename string) ([]datatypes.Finding, error) {
	ctx, span := tracer.Start(ctx, "VorpalScanner.Scan")
	defer span.End()
	span.SetAttributes(attribute.String("scan.language", language))

	requestID := uuid.New().String()
	slog.Debug("Starting scan", "request_id", requestID, "language", language, "filename", filename)

	ext := strings.TrimPrefix(filepath.Ext(filename), ".")
	if ext == "" {
		ext = datatypes.FileExtensionFor(language)
	}
	tmpFile, err := os.CreateTemp("", "vorpal-*."+ext)
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath)

	if _, err := tmpFile.WriteString(code); err != nil {
		tmpFile.Close()
		return nil, fmt.Errorf("writing temp file: %w", err)
	}
	tmpFile.Close()

	resultDir, err := os.MkdirTemp("", "vorpal-results-")
	if err != nil {
		return nil, fmt.Errorf("creating results dir: %w", err)
	}
	defer os.RemoveAll(resultDir)
	resultFile := filepath.Join(resultDir, "scan_results.json")

	if err := v.execute(ctx, tmpPath, resultFile); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	data, err := os.ReadFile(resultFile)
	if err != nil {
		if os.IsNotExist(err) {
			// Vorpal writes no results file when the code is clean.
			slog.Info("Scan completed", "request_id", requestID, "findings", 0)
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrParseResults, err)
	}

	findings, err := ParseResults(data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("scan.findings", len(findings)))
	slog.Info("Scan completed", "request_id", requestID, "findings", len(findings))
	return findings, nil
}

// execute runs the Vorpal subprocess with the configured timeout.
func (v *VorpalScanner) execute(ctx context.Context, codePath, resultPath string) error {
	cmdCtx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, v.binaryPath, "-s", codePath, "-r", resultPath)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	slog.Debug("Running Vorpal", "command", v.binaryPath, "source", codePath)
	err := cmd.Run()

	if cmdCtx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("%w after %s", ErrScannerTimeout, v.timeout)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		var execErr *exec.Error
		var pathErr *fs.PathError
		if errors.As(err, &execErr) || errors.As(err, &pathErr) {
			return fmt.Errorf("%w: %v", ErrScannerNotFound, err)
		}
		return fmt.Errorf("%w: %v: %s", ErrScannerFailed, err, stderr.String())
	}
	return nil
}

// Healthy reports whether the Vorpal binary runs at all. Vorpal's
// version command exits with code 1 on success, so that is the healthy
// signal. Logged once at startup; service liveness ignores it.
func (v *VorpalScanner) Healthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, v.binaryPath, "-v")
	err := cmd.Run()
	if err == nil {
		return false
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode() == 1
	}
	slog.Warn("Vorpal health check failed", "error", err)
	return false
}
