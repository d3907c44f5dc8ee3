// Command ruleflowd demonstrates the engine end to end: it wires an
// in-memory rule/pipeline/stream-assignment source, a Processor, and the
// metrics and trace exporters, then processes a handful of sample
// messages. A real host would swap the in-memory sources for its own
// source-of-truth client and feed Process from its message pipeline
// instead of the sample batch below.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flowforge/ruleflow/config"
	"github.com/flowforge/ruleflow/enginemetrics"
	"github.com/flowforge/ruleflow/enginetrace"
	"github.com/flowforge/ruleflow/eventbus"
	"github.com/flowforge/ruleflow/message"
	"github.com/flowforge/ruleflow/processor"
	"github.com/flowforge/ruleflow/sourcing"
	"github.com/flowforge/ruleflow/sourcing/parser"
)

func main() {
	var (
		configPath   = flag.String("config", "", "path to an EngineConfig YAML file (optional)")
		metricsAddr  = flag.String("metrics-addr", ":9090", "address to serve Prometheus /metrics on")
		traceEndpoint = flag.String("trace-endpoint", "", "OTLP/HTTP trace collector endpoint (optional)")
	)
	flag.Parse()

	if err := run(*configPath, *metricsAddr, *traceEndpoint); err != nil {
		fmt.Fprintln(os.Stderr, "ruleflowd:", err)
		os.Exit(1)
	}
}

func run(configPath, metricsAddr, traceEndpoint string) error {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	exporter := enginemetrics.NewExporter(metricsAddr)
	go func() {
		if err := exporter.Start(); err != nil {
			logger.Error("metrics exporter stopped", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = exporter.Shutdown(shutdownCtx)
	}()

	if traceEndpoint != "" {
		tp, err := enginetrace.NewTracerProvider(ctx, traceEndpoint, "ruleflowd")
		if err != nil {
			return fmt.Errorf("starting tracer provider: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = tp.Shutdown(shutdownCtx)
		}()
	}

	bus := eventbus.New()
	deps := processor.Dependencies{
		RuleSources:      sampleRuleSources(),
		PipelineSources:  samplePipelineSources(),
		AssignmentSource: sampleAssignments(),
		Parser:           parser.New(),
		EventBus:         bus,
	}

	proc, err := processor.New(processor.DefaultDescriptor, deps, cfg)
	if err != nil {
		return fmt.Errorf("constructing processor: %w", err)
	}

	batch := sampleMessages()
	out, err := proc.Process(ctx, batch)
	if err != nil {
		return fmt.Errorf("processing sample batch: %w", err)
	}
	for _, msg := range out {
		logger.Info("processed message", "message_id", msg.ID, "fields", msg.Fields)
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.GracefulShutdownTimeout)
	defer cancel()
	return proc.Shutdown(shutdownCtx)
}

func loadConfig(path string) (*config.EngineConfig, error) {
	if path == "" {
		return config.DefaultEngineConfig(), nil
	}
	return config.Load(path)
}

// sampleRuleSources, samplePipelineSources, sampleAssignments, and
// sampleMessages stand in for a host's real source-of-truth client and
// message stream; see sourcing.RuleSourceService et al. for the contracts
// a production host implements instead.

type staticDocs struct{ docs []sourcing.SourceDocument }

func (s staticDocs) LoadAll() ([]sourcing.SourceDocument, error) { return s.docs, nil }

type staticAssignments struct{ assignments []sourcing.StreamAssignment }

func (s staticAssignments) LoadAll() ([]sourcing.StreamAssignment, error) { return s.assignments, nil }

func sampleRuleSources() sourcing.RuleSourceService {
	return staticDocs{docs: []sourcing.SourceDocument{
		{ID: "tag-high-severity", Source: `
			rule "tag_high_severity" {
				when to_long(severity) >= 7
				then set_field("severity_level", "high");
			}`},
	}}
}

func samplePipelineSources() sourcing.PipelineSourceService {
	return staticDocs{docs: []sourcing.SourceDocument{
		{ID: "default-pipeline", Source: `
			pipeline "default" {
				stage 10 match any rule "tag_high_severity";
			}`},
	}}
}

func sampleAssignments() sourcing.PipelineStreamAssignmentService {
	return staticAssignments{assignments: []sourcing.StreamAssignment{
		{StreamID: "default", PipelineIDs: []string{"default"}},
	}}
}

func sampleMessages() []*message.Message {
	msg := message.New()
	msg.SetField("severity", message.Long(9))
	return []*message.Message{msg}
}
