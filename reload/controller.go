package reload

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/flowforge/ruleflow/config"
	"github.com/flowforge/ruleflow/engineerrors"
	"github.com/flowforge/ruleflow/enginemetrics"
	"github.com/flowforge/ruleflow/enginetrace"
	"github.com/flowforge/ruleflow/eventbus"
	"github.com/flowforge/ruleflow/message"
	"github.com/flowforge/ruleflow/sourcing"
	"github.com/flowforge/ruleflow/store"
)

// Controller rebuilds and publishes the ProgramSnapshot in response to
// change events, per spec.md §4.7. It implements eventbus.Subscriber.
type Controller struct {
	ruleSources      sourcing.RuleSourceService
	pipelineSources  sourcing.PipelineSourceService
	assignmentSource sourcing.PipelineStreamAssignmentService
	parser           sourcing.Parser
	store            *store.Store

	logger *slog.Logger
	tracer trace.Tracer

	debounce *debouncer

	mu           sync.Mutex
	prevVersion  string
	lastSnapshot *message.ProgramSnapshot
}

var _ eventbus.Subscriber = (*Controller)(nil)

// New creates a Controller. The returned Controller does not reload until
// Start subscribes it to an event bus or ReloadNow is called directly.
func New(
	ruleSources sourcing.RuleSourceService,
	pipelineSources sourcing.PipelineSourceService,
	assignmentSource sourcing.PipelineStreamAssignmentService,
	parser sourcing.Parser,
	st *store.Store,
	cfg *config.EngineConfig,
	logger *slog.Logger,
) (*Controller, error) {
	validated, err := config.Validated(cfg)
	if err != nil {
		return nil, fmt.Errorf("reload: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		ruleSources:      ruleSources,
		pipelineSources:  pipelineSources,
		assignmentSource: assignmentSource,
		parser:           parser,
		store:            st,
		logger:           logger,
		tracer:           enginetrace.Tracer(nil),
	}
	c.debounce = newDebouncer(validated.ReloadDebounceInterval, c.reload)
	return c, nil
}

// Start subscribes the Controller to bus's three change-event kinds.
func (c *Controller) Start(bus *eventbus.Bus) {
	bus.Subscribe(c)
}

// OnRulesChanged implements eventbus.Subscriber.
func (c *Controller) OnRulesChanged(e eventbus.RulesChangedEvent) {
	c.logger.Info("rules changed, scheduling reload", "updated", e.Updated, "deleted", e.Deleted)
	c.debounce.Request(context.Background())
}

// OnPipelinesChanged implements eventbus.Subscriber.
func (c *Controller) OnPipelinesChanged(e eventbus.PipelinesChangedEvent) {
	c.logger.Info("pipelines changed, scheduling reload", "updated", e.Updated, "deleted", e.Deleted)
	c.debounce.Request(context.Background())
}

// OnStreamAssignmentChanged implements eventbus.Subscriber.
func (c *Controller) OnStreamAssignmentChanged(e eventbus.PipelineStreamAssignmentChangedEvent) {
	c.logger.Info("stream assignment changed, scheduling reload", "stream_id", e.StreamID, "pipeline_ids", e.PipelineIDs)
	c.debounce.Request(context.Background())
}

// ReloadNow runs the reload procedure synchronously, bypassing the
// debouncer. Intended for startup (load the initial snapshot before
// accepting traffic) and tests.
func (c *Controller) ReloadNow(ctx context.Context) error {
	return c.reloadWithError(ctx)
}

// reload is the debouncer's trigger callback; reload failures stay
// internal (logged, previous snapshot retained) per spec.md §7's
// ConfigurationError handling, since the debouncer has no caller to
// report to asynchronously.
func (c *Controller) reload(ctx context.Context) {
	if err := c.reloadWithError(ctx); err != nil {
		c.logger.Error("reload failed, retaining previous snapshot", "error", err)
	}
}

func (c *Controller) reloadWithError(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, span := c.tracer.Start(ctx, "reload.Controller.reload")
	defer span.End()

	start := time.Now()

	rulesByName, err := c.loadAndLinkRules()
	if err != nil {
		enginemetrics.ReloadsTotal.WithLabelValues("error").Inc()
		return engineerrors.New("reload", "load_rules", err)
	}

	pipelinesByID, err := c.loadAndLinkPipelines(rulesByName)
	if err != nil {
		enginemetrics.ReloadsTotal.WithLabelValues("error").Inc()
		return engineerrors.New("reload", "load_pipelines", err)
	}

	streamAssignments, err := c.loadStreamAssignments(pipelinesByID)
	if err != nil {
		enginemetrics.ReloadsTotal.WithLabelValues("error").Inc()
		return engineerrors.New("reload", "load_assignments", err)
	}

	snap := &message.ProgramSnapshot{
		PipelinesByID:     pipelinesByID,
		StreamAssignments: streamAssignments,
	}
	snap.ComputeContentHash()
	snap.Version = message.NextVersion(c.prevVersion)
	c.prevVersion = snap.Version
	c.lastSnapshot = snap

	c.store.Publish(snap)

	enginemetrics.ReloadsTotal.WithLabelValues("success").Inc()
	enginemetrics.ReloadDuration.Observe(time.Since(start).Seconds())
	c.logger.Info("reload published new snapshot", "version", snap.Version, "content_hash", snap.ContentHash,
		"pipeline_count", len(pipelinesByID), "stream_count", len(streamAssignments))
	return nil
}

// loadAndLinkRules implements spec.md §4.7 step 1: load and parse every
// rule source, substituting an alwaysFalse sentinel on parse failure.
func (c *Controller) loadAndLinkRules() (map[string]*message.Rule, error) {
	docs, err := c.ruleSources.LoadAll()
	if err != nil {
		return nil, fmt.Errorf("loading rule sources: %w", err)
	}

	byName := make(map[string]*message.Rule, len(docs))
	for _, doc := range docs {
		rule, err := c.parser.ParseRule(doc.ID, doc.Source)
		if err != nil {
			c.logger.Warn("rule parse failed, substituting alwaysFalse sentinel", "source_id", doc.ID, "error", err)
			rule = message.AlwaysFalse(doc.ID, err.Error())
		}
		byName[rule.Name] = rule
	}
	return byName, nil
}

// loadAndLinkPipelines implements spec.md §4.7 steps 2-3: load and parse
// every pipeline source (substituting an empty sentinel on parse failure),
// then resolve each stage's rule references against rulesByName.
func (c *Controller) loadAndLinkPipelines(rulesByName map[string]*message.Rule) (map[string]*message.Pipeline, error) {
	docs, err := c.pipelineSources.LoadAll()
	if err != nil {
		return nil, fmt.Errorf("loading pipeline sources: %w", err)
	}

	byID := make(map[string]*message.Pipeline, len(docs))
	for _, doc := range docs {
		pipeline, err := c.parser.ParsePipeline(doc.ID, doc.Source)
		if err != nil {
			c.logger.Warn("pipeline parse failed, substituting empty sentinel", "source_id", doc.ID, "error", err)
			pipeline = message.Empty(doc.ID, err.Error())
		}
		c.linkStageRules(pipeline, rulesByName)
		byID[pipeline.ID] = pipeline
	}
	return byID, nil
}

func (c *Controller) linkStageRules(pipeline *message.Pipeline, rulesByName map[string]*message.Rule) {
	for _, stage := range pipeline.Stages {
		stage.Rules = make([]*message.Rule, 0, len(stage.RuleReferences))
		for _, ref := range stage.RuleReferences {
			rule, ok := rulesByName[ref]
			if !ok {
				c.logger.Warn("unresolved rule reference, substituting alwaysFalse sentinel",
					"pipeline_id", pipeline.ID, "rule_reference", ref)
				rule = message.AlwaysFalse(ref, "Unresolved rule "+ref)
			}
			stage.Rules = append(stage.Rules, rule)
		}
	}
}

// loadStreamAssignments implements spec.md §4.7 step 4: build the
// streamId→[]Pipeline multimap, dropping entries whose pipeline id is
// absent from the just-built pipeline set.
func (c *Controller) loadStreamAssignments(pipelinesByID map[string]*message.Pipeline) (map[string][]*message.Pipeline, error) {
	assignments, err := c.assignmentSource.LoadAll()
	if err != nil {
		return nil, fmt.Errorf("loading stream assignments: %w", err)
	}

	byStream := make(map[string][]*message.Pipeline, len(assignments))
	for _, a := range assignments {
		var pipelines []*message.Pipeline
		for _, id := range a.PipelineIDs {
			p, ok := pipelinesByID[id]
			if !ok {
				c.logger.Warn("stream assignment references unknown pipeline, dropping", "stream_id", a.StreamID, "pipeline_id", id)
				continue
			}
			pipelines = append(pipelines, p)
		}
		byStream[a.StreamID] = pipelines
	}
	return byStream, nil
}
