// Package interpreter implements the per-message scheduling loop (C6,
// spec.md §4.5): pipeline selection, stage-sliced execution, the
// blacklist that prevents re-processing cycles, and the fixed-point
// re-queue of messages that acquire new streams mid-pass.
package interpreter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/flowforge/ruleflow/ast"
	"github.com/flowforge/ruleflow/config"
	"github.com/flowforge/ruleflow/enginemetrics"
	"github.com/flowforge/ruleflow/enginetrace"
	"github.com/flowforge/ruleflow/evalctx"
	"github.com/flowforge/ruleflow/message"
	"github.com/flowforge/ruleflow/sourcing"
	"github.com/flowforge/ruleflow/stageiter"
	"github.com/flowforge/ruleflow/store"

	"go.opentelemetry.io/otel/trace"
)

// ErrShuttingDown is returned by Process once Shutdown has been called.
var ErrShuttingDown = errors.New("interpreter is shutting down")

// Interpreter runs the spec.md §4.5 scheduling loop against the current
// Store snapshot. One Interpreter is constructed per host process and
// reused across every Process call.
type Interpreter struct {
	store    *store.Store
	registry ast.FunctionRegistry
	journal  sourcing.Journal
	config   *config.EngineConfig
	logger   *slog.Logger
	tracer   trace.Tracer

	sem        *semaphore.Weighted
	wg         sync.WaitGroup
	shutdownMu sync.RWMutex
	shutdown   chan struct{}
	isShutdown bool
}

// New creates an Interpreter. journal may be nil if the host does not need
// drop-offset commits (tests, or hosts without a journal).
func New(st *store.Store, registry ast.FunctionRegistry, journal sourcing.Journal, cfg *config.EngineConfig, logger *slog.Logger, tracer trace.Tracer) (*Interpreter, error) {
	validated, err := config.Validated(cfg)
	if err != nil {
		return nil, fmt.Errorf("interpreter: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if tracer == nil {
		tracer = enginetrace.Tracer(nil)
	}
	return &Interpreter{
		store:    st,
		registry: registry,
		journal:  journal,
		config:   validated,
		logger:   logger,
		tracer:   tracer,
		sem:      semaphore.NewWeighted(int64(validated.MaxConcurrentBatches)),
		shutdown: make(chan struct{}),
	}, nil
}

// blacklistKey is a (messageId, streamId) pair already processed within one
// Process call (spec.md §4.5).
type blacklistKey struct {
	messageID string
	streamID  string
}

// Process runs every message in the batch to a fixed point against the
// current Store snapshot and returns the fully processed set. Messages
// dropped via filterOut are left out of the result; every other input
// message yields some output, possibly unmodified.
func (in *Interpreter) Process(ctx context.Context, messages []*message.Message) ([]*message.Message, error) {
	if in.isShuttingDown() {
		return nil, ErrShuttingDown
	}
	if err := in.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("interpreter: failed to acquire execution slot: %w", err)
	}
	defer in.sem.Release(1)

	in.wg.Add(1)
	defer in.wg.Done()

	ctx, span := in.tracer.Start(ctx, "interpreter.Process")
	defer span.End()

	snapshot := in.store.Snapshot()

	toProcess := make([]*message.Message, len(messages))
	copy(toProcess, messages)

	var fullyProcessed []*message.Message
	blacklist := make(map[blacklistKey]struct{})

	for len(toProcess) > 0 {
		var next []*message.Message

		for _, msg := range toProcess {
			pipelines, usedDefault := in.selectPipelines(snapshot, msg, blacklist)
			before := msg.CloneStreams()

			created := in.runStageSlices(ctx, msg, pipelines)
			next = append(next, created...)

			addedStreams := in.updateBlacklist(msg, before, blacklist, usedDefault)

			if msg.FilterOut {
				enginemetrics.FilteredOutMessages.Inc()
				if in.journal != nil {
					in.journal.MarkOffsetCommitted(msg.ID)
				}
				continue
			}

			if addedStreams {
				next = append(next, msg)
			} else {
				fullyProcessed = append(fullyProcessed, msg)
			}
		}

		toProcess = next
	}

	return fullyProcessed, nil
}

// selectPipelines implements spec.md §4.5 step 1: pipeline selection.
// usedDefault reports whether the message had no streams and the reserved
// default stream id was used for selection — it drives the default-stream
// blacklist bookkeeping in updateBlacklist, since "default" is never a
// literal entry in msg.Streams.
func (in *Interpreter) selectPipelines(snapshot *message.ProgramSnapshot, msg *message.Message, blacklist map[blacklistKey]struct{}) (pipelines []*message.Pipeline, usedDefault bool) {
	defaultStream := in.config.DefaultStreamID

	if len(msg.Streams) == 0 {
		if _, blocked := blacklist[blacklistKey{msg.ID, defaultStream}]; blocked {
			return nil, false
		}
		return snapshot.PipelinesForStream(defaultStream), true
	}

	seen := make(map[string]struct{})
	for streamID := range msg.Streams {
		if _, blocked := blacklist[blacklistKey{msg.ID, streamID}]; blocked {
			continue
		}
		for _, p := range snapshot.PipelinesForStream(streamID) {
			if _, ok := seen[p.ID]; ok {
				continue
			}
			seen[p.ID] = struct{}{}
			pipelines = append(pipelines, p)
		}
	}
	return pipelines, false
}

// runStageSlices implements spec.md §4.5 step 2: stage-sliced execution.
// Returns the messages created via create_message during this pass, which
// the caller enters into the *next* pass (SPEC_FULL.md §11.1).
func (in *Interpreter) runStageSlices(ctx context.Context, msg *message.Message, pipelines []*message.Pipeline) []*message.Message {
	if len(pipelines) == 0 {
		return nil
	}

	var created []*message.Message
	// halted holds pipelines whose most recent stage missed its match
	// quorum; they contribute nothing to later slices.
	halted := make(map[string]struct{}, len(pipelines))

	for _, slice := range stageiter.All(pipelines) {
		enginemetrics.StageSlicesTotal.Inc()

		for _, pair := range slice {
			if _, stopped := halted[pair.Pipeline.ID]; stopped {
				continue
			}

			evalCtx := evalctx.New(msg, in.registry)
			matched := in.evaluatePredicates(ctx, pair, evalCtx)
			in.runActions(ctx, pair, matched, evalCtx)

			var quorum bool
			if pair.Stage.MatchAll {
				quorum = len(matched) == len(pair.Stage.Rules)
			} else {
				quorum = len(matched) > 0
			}
			if !quorum {
				halted[pair.Pipeline.ID] = struct{}{}
			}

			created = append(created, evalCtx.CreatedMessages()...)
			evalCtx.ClearCreatedMessages()
		}
	}
	return created
}

// evaluatePredicates runs the rule-selection phase: evaluate every rule's
// `when`, returning the subset that matched. Evaluation failures demote the
// rule to non-match (spec.md §4.1, §7).
func (in *Interpreter) evaluatePredicates(ctx context.Context, pair stageiter.Pair, evalCtx *evalctx.Context) []*message.Rule {
	var matched []*message.Rule
	for _, rule := range pair.Stage.Rules {
		v, err := rule.When.Evaluate(evalCtx)
		if err != nil {
			enginemetrics.EvaluationErrorsTotal.WithLabelValues("predicate").Inc()
			in.logger.WarnContext(ctx, "rule predicate evaluation failed",
				"rule", rule.Name, "pipeline", pair.Pipeline.ID, "message_id", evalCtx.Message().ID, "error", err)
			continue
		}
		if v.Truthy() {
			matched = append(matched, rule)
		}
	}
	return matched
}

// runActions runs the action phase: each matched rule's `then` statements
// in declaration order. A statement failure aborts that rule's remaining
// statements only (spec.md §4.1, §7).
func (in *Interpreter) runActions(ctx context.Context, pair stageiter.Pair, matched []*message.Rule, evalCtx *evalctx.Context) {
	for _, rule := range matched {
		for _, stmt := range rule.Then {
			if err := stmt.Execute(evalCtx); err != nil {
				enginemetrics.EvaluationErrorsTotal.WithLabelValues("action").Inc()
				in.logger.WarnContext(ctx, "rule action evaluation failed",
					"rule", rule.Name, "pipeline", pair.Pipeline.ID, "message_id", evalCtx.Message().ID, "error", err)
				break
			}
		}
	}
}

// updateBlacklist implements spec.md §4.5 step 3. Streams present both
// before and after are blacklisted; a stream removed during processing is
// not blacklisted and may be re-added later (SPEC_FULL.md §11.2). The
// reserved default stream, when used for selection, is always blacklisted
// afterward — it is never a literal member of msg.Streams, so the
// before/after comparison can't observe it directly. Reports whether any
// genuinely new stream was added.
func (in *Interpreter) updateBlacklist(msg *message.Message, before map[string]struct{}, blacklist map[blacklistKey]struct{}, usedDefault bool) bool {
	addedStreams := false
	for streamID := range msg.Streams {
		if _, wasPresent := before[streamID]; wasPresent {
			blacklist[blacklistKey{msg.ID, streamID}] = struct{}{}
		} else {
			addedStreams = true
		}
	}
	if usedDefault {
		blacklist[blacklistKey{msg.ID, in.config.DefaultStreamID}] = struct{}{}
	}
	return addedStreams
}

func (in *Interpreter) isShuttingDown() bool {
	in.shutdownMu.RLock()
	defer in.shutdownMu.RUnlock()
	return in.isShutdown
}

// Shutdown gracefully drains in-flight Process calls, waiting up to
// config.GracefulShutdownTimeout before giving up.
func (in *Interpreter) Shutdown(ctx context.Context) error {
	in.shutdownMu.Lock()
	if in.isShutdown {
		in.shutdownMu.Unlock()
		return nil
	}
	in.isShutdown = true
	close(in.shutdown)
	in.shutdownMu.Unlock()

	done := make(chan struct{})
	go func() {
		in.wg.Wait()
		close(done)
	}()

	shutdownCtx, cancel := context.WithTimeout(ctx, in.config.GracefulShutdownTimeout)
	defer cancel()

	select {
	case <-done:
		return nil
	case <-shutdownCtx.Done():
		return fmt.Errorf("interpreter: shutdown timeout after %s", in.config.GracefulShutdownTimeout)
	}
}
