// Package processor is the host-facing entry point (spec.md §6): a
// Descriptor for registration plus a Process(ctx, messages) batch
// transform, wiring the Store, Interpreter, and Reload controller into one
// object a host constructs once and reuses for the life of the process.
package processor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/flowforge/ruleflow/config"
	"github.com/flowforge/ruleflow/enginelog"
	"github.com/flowforge/ruleflow/eventbus"
	"github.com/flowforge/ruleflow/functions"
	"github.com/flowforge/ruleflow/interpreter"
	"github.com/flowforge/ruleflow/message"
	"github.com/flowforge/ruleflow/reload"
	"github.com/flowforge/ruleflow/sourcing"
	"github.com/flowforge/ruleflow/store"
)

// Descriptor identifies this processor to the host's registration surface
// (spec.md §6: "Descriptor — static name and identifier for registration").
type Descriptor struct {
	Name string
	ID   string
}

// DefaultDescriptor is the Descriptor used when a host does not supply one.
var DefaultDescriptor = Descriptor{Name: "rule-pipeline-interpreter", ID: "ruleflow"}

// Dependencies are the external collaborators a host provides (spec.md §6,
// "consumed"). Journal and EventBus may be nil: a processor with no
// journal never commits drop offsets, and one with no bus never reloads
// beyond the initial load.
type Dependencies struct {
	RuleSources      sourcing.RuleSourceService
	PipelineSources  sourcing.PipelineSourceService
	AssignmentSource sourcing.PipelineStreamAssignmentService
	Parser           sourcing.Parser
	Journal          sourcing.Journal
	EventBus         *eventbus.Bus
}

// Processor wires Store, Interpreter, and Reload controller together.
type Processor struct {
	Descriptor Descriptor

	store       *store.Store
	interpreter *interpreter.Interpreter
	reload      *reload.Controller
	moduleLog   *enginelog.ModuleConfig
}

// New constructs a Processor, performs the initial synchronous reload (so
// the first Process call never runs against an empty program when sources
// already have content), and subscribes to deps.EventBus if provided.
func New(desc Descriptor, deps Dependencies, cfg *config.EngineConfig) (*Processor, error) {
	validated, err := config.Validated(cfg)
	if err != nil {
		return nil, fmt.Errorf("processor: %w", err)
	}

	moduleLog := enginelog.NewModuleConfig(slog.LevelInfo)
	st := store.New()
	registry := functions.NewDefaultRegistry()

	reloadCtrl, err := reload.New(
		deps.RuleSources, deps.PipelineSources, deps.AssignmentSource, deps.Parser,
		st, validated, enginelog.New(moduleLog, "reload"),
	)
	if err != nil {
		return nil, fmt.Errorf("processor: %w", err)
	}

	interp, err := interpreter.New(st, registry, deps.Journal, validated, enginelog.New(moduleLog, "interpreter"), nil)
	if err != nil {
		return nil, fmt.Errorf("processor: %w", err)
	}

	if err := reloadCtrl.ReloadNow(context.Background()); err != nil {
		return nil, fmt.Errorf("processor: initial reload: %w", err)
	}

	if deps.EventBus != nil {
		reloadCtrl.Start(deps.EventBus)
	}

	return &Processor{
		Descriptor:  desc,
		store:       st,
		interpreter: interp,
		reload:      reloadCtrl,
		moduleLog:   moduleLog,
	}, nil
}

// Process runs every message in the batch to a fixed point (spec.md §4.5)
// against the current program snapshot.
func (p *Processor) Process(ctx context.Context, messages []*message.Message) ([]*message.Message, error) {
	return p.interpreter.Process(ctx, messages)
}

// ModuleLog exposes the processor's hierarchical logging configuration so a
// host can tune per-package verbosity at runtime (e.g. "reload.debounce").
func (p *Processor) ModuleLog() *enginelog.ModuleConfig { return p.moduleLog }

// Shutdown gracefully drains in-flight Process calls.
func (p *Processor) Shutdown(ctx context.Context) error {
	return p.interpreter.Shutdown(ctx)
}
