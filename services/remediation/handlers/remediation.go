// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/AleutianAI/AleutianRemedy/services/remediation/datatypes"
	"github.com/AleutianAI/AleutianRemedy/services/remediation/engine"
	"github.com/AleutianAI/AleutianRemedy/services/remediation/observability"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var remediationTracer = otel.Tracer("aleutian.remedy.handlers")

// HandleRemediation serves POST /api/remediation.
//
// Status mapping keeps the three failure families distinct so callers
// can tell "fix your request" (400) from "try again later" (500) from
// "the generator could not produce secure code" (422, with the final
// findings attached).
func HandleRemediation(loop *engine.Loop, metrics *observability.RemediationMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := remediationTracer.Start(c.Request.Context(), "HandleRemediation")
		defer span.End()
		start := time.Now()

		var req datatypes.RemediationRequest
		if err := c.BindJSON(&req); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("Failed to parse the remediation request", "error", err)
			metrics.ObserveRequest("invalid_request", 0, time.Since(start).Seconds())
			c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{Detail: "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			span.SetStatus(codes.Error, err.Error())
			metrics.ObserveRequest("invalid_request", 0, time.Since(start).Seconds())
			c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{Detail: "invalid request: " + err.Error()})
			return
		}

		slog.Info("Processing remediation request", "language", req.Language, "rule", req.RuleName)

		result, err := loop.Run(ctx, req)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			respondLoopError(c, req, err, metrics, time.Since(start))
			return
		}

		metrics.ObserveRequest("success", result.AttemptsUsed, time.Since(start).Seconds())
		c.JSON(http.StatusOK, datatypes.RemediationResponse{RemediatedCode: result.Code})
	}
}

// respondLoopError maps the engine error taxonomy to HTTP statuses.
func respondLoopError(c *gin.Context, req datatypes.RemediationRequest, err error,
	metrics *observability.RemediationMetrics, elapsed time.Duration) {

	var rejected *engine.RejectedError
	var genErr *engine.GenerationError
	var scanErr *engine.ScanError

	switch {
	case errors.Is(err, engine.ErrUnsupportedLanguage):
		metrics.ObserveRequest("unsupported_language", 0, elapsed.Seconds())
		c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{Detail: err.Error()})

	case errors.As(err, &rejected):
		slog.Warn("Remediation rejected",
			"language", req.Language,
			"rule", req.RuleName,
			"attempts", rejected.AttemptsUsed,
			"findings", len(rejected.Findings))
		metrics.ObserveRequest("rejected", rejected.AttemptsUsed, elapsed.Seconds())
		metrics.ObserveFindings(req.Language, len(rejected.Findings))
		c.JSON(http.StatusUnprocessableEntity, datatypes.ErrorResponse{
			Detail:   err.Error(),
			Findings: rejected.Findings,
		})

	case errors.As(err, &genErr):
		slog.Error("Generation backend failed", "error", err)
		metrics.ObserveRequest("generation_failure", 0, elapsed.Seconds())
		c.JSON(http.StatusInternalServerError, datatypes.ErrorResponse{Detail: err.Error()})

	case errors.As(err, &scanErr):
		slog.Error("Scanner failed", "error", err)
		metrics.ObserveRequest("scan_failure", 0, elapsed.Seconds())
		c.JSON(http.StatusInternalServerError, datatypes.ErrorResponse{Detail: err.Error()})

	default:
		slog.Error("Remediation failed", "error", err)
		metrics.ObserveRequest("generation_failure", 0, elapsed.Seconds())
		c.JSON(http.StatusInternalServerError, datatypes.ErrorResponse{Detail: err.Error()})
	}
}
