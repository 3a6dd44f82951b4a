// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/AleutianAI/AleutianRemedy/services/llm"
	"github.com/AleutianAI/AleutianRemedy/services/remediation/config"
	"github.com/AleutianAI/AleutianRemedy/services/remediation/engine"
	"github.com/AleutianAI/AleutianRemedy/services/remediation/observability"
	"github.com/AleutianAI/AleutianRemedy/services/remediation/routes"
	"github.com/AleutianAI/AleutianRemedy/services/scanner"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	// --- OpenTelemetry imports ---
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func initTracer(otelEndpoint string) (func(context.Context), error) {
	ctx := context.Background()

	if otelEndpoint == "" {
		otelEndpoint = "aleutian-otel-collector:4317"
	}
	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("remediation-service")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	settings := config.Load()

	// --- Init the tracer ---
	cleanup, err := initTracer(settings.OTLPEndpoint)
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	log.Println("Configuring the LLM Client")
	var llmClient llm.LLMClient
	switch settings.LLMBackendType {
	case "local":
		llmClient, err = llm.NewLocalLlamaCppClient(settings.LlamaCppURL, settings.LLMTimeout)
		slog.Info("Using Local Llama.cpp LLM backend")
	case "ollama":
		llmClient, err = llm.NewOllamaClient(settings.OllamaBaseURL, settings.OllamaModel, settings.LLMTimeout)
		slog.Info("Using Ollama LLM backend")
	default:
		slog.Warn("LLM_BACKEND_TYPE not set or invalid, defaulting to ollama",
			"value", settings.LLMBackendType)
		llmClient, err = llm.NewOllamaClient(settings.OllamaBaseURL, settings.OllamaModel, settings.LLMTimeout)
	}
	if err != nil {
		log.Fatalf("Failed to initialize LLM client: %v", err)
	}

	vorpal, err := scanner.NewVorpalScanner(settings.VorpalPath, settings.ScanTimeout)
	if err != nil {
		log.Fatalf("Failed to initialize Vorpal scanner: %v", err)
	}

	// Dependency health is informational only; liveness never depends
	// on it.
	logDependencyHealth(llmClient, vorpal)

	temperature := settings.Temperature
	maxTokens := 1000
	loop, err := engine.NewLoop(llmClient, vorpal, engine.Options{
		MaxRetries:       settings.MaxRetries,
		AllowedLanguages: settings.AllowedLanguages,
		Params: llm.GenerationParams{
			Temperature: &temperature,
			MaxTokens:   &maxTokens,
		},
	})
	if err != nil {
		log.Fatalf("Failed to initialize remediation loop: %v", err)
	}

	metrics := observability.NewRemediationMetrics(prometheus.DefaultRegisterer)

	router := gin.Default()
	router.Use(otelgin.Middleware("remediation-service"))

	routes.SetupRoutes(router, loop, metrics)

	log.Println("Starting the remediation server on port ", settings.Port)
	if err := router.Run(":" + settings.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

type healthChecker interface {
	Healthy(ctx context.Context) bool
}

func logDependencyHealth(deps ...interface{}) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	for _, dep := range deps {
		checker, ok := dep.(healthChecker)
		if !ok {
			continue
		}
		if checker.Healthy(ctx) {
			slog.Info("Dependency healthy", "dependency", depName(dep))
		} else {
			slog.Warn("Dependency unhealthy at startup", "dependency", depName(dep))
		}
	}
}

func depName(dep interface{}) string {
	switch dep.(type) {
	case *llm.OllamaClient:
		return "ollama"
	case *llm.LocalLlamaCppClient:
		return "llama.cpp"
	case *scanner.VorpalScanner:
		return "vorpal"
	default:
		return "unknown"
	}
}
