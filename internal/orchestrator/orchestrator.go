// Package orchestrator drives the pipeline as a pass registry with
// explicit stage dependencies (spec §4.12): discovery -> parse -> extract
// -> normalize -> score -> pack -> gate, where the five detectors share
// read-only access to the AST cache and fan out over files/entities with
// a bounded worker pool, and normalization/scoring are synchronous
// barriers. Grounded on the teacher's internal/indexing/pipeline.go
// stage/worker-pool/progress-event pattern; the worker pool itself uses
// golang.org/x/sync/errgroup in place of the teacher's hand-rolled
// goroutine+WaitGroup bookkeeping.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sibyllinesoft/valknut/internal/config"
	"github.com/sibyllinesoft/valknut/internal/finding"
	"github.com/sibyllinesoft/valknut/internal/verrors"
)

// Event is a progress notification emitted on the orchestrator's channel
// as each stage starts/finishes, for a CLI progress bar or log line.
type Event struct {
	Stage     string
	Message   string
	Timestamp time.Time
}

// Pass is one named stage in the registry. InputKinds/OutputKinds are
// informational (used for dependency validation and logging); Run does
// the actual work, receiving a cancellable child of the run's
// total-timeout context and fanning out over items with up to maxWorkers
// goroutines.
type Pass struct {
	Name        string
	InputKinds  []string
	OutputKinds []string
	Enabled     bool
	Run         func(ctx context.Context) error
}

// Orchestrator runs a sequence of Passes as synchronous stage barriers:
// every pass must finish (or the registry skip it if disabled) before the
// next starts, matching the pipeline's one-way data flow.
type Orchestrator struct {
	cfg     *config.Config
	passes  []Pass
	Events  chan Event
	Findings []*finding.Finding
}

// New creates an Orchestrator for cfg. Events is a small buffered channel;
// callers that don't want progress events can simply never receive on it
// (sends are non-blocking past the buffer via a select/default guard).
func New(cfg *config.Config) *Orchestrator {
	return &Orchestrator{cfg: cfg, Events: make(chan Event, 64)}
}

// Register appends a pass to the registry. Passes run in registration
// order; callers are responsible for registering them in a valid
// dependency order (discovery before parse before extract, etc).
func (o *Orchestrator) Register(p Pass) {
	o.passes = append(o.passes, p)
}

func (o *Orchestrator) emit(stage, message string) {
	select {
	case o.Events <- Event{Stage: stage, Message: message, Timestamp: time.Now()}:
	default:
	}
}

// Run executes every registered, enabled pass in order under a total-run
// timeout derived from cfg.Performance.TotalTimeoutSeconds. A stage
// timeout (cfg.Performance.FileTimeoutSeconds applied per-file inside a
// pass, or the pass's own internal budget) is the pass's responsibility
// to enforce via the context it receives; Run only enforces the
// outermost total-timeout cancellation tree.
func (o *Orchestrator) Run(ctx context.Context) error {
	total := time.Duration(o.cfg.Performance.TotalTimeoutSeconds) * time.Second
	rootCtx, cancel := context.WithTimeout(ctx, total)
	defer cancel()

	for _, p := range o.passes {
		if !p.Enabled {
			o.emit(p.Name, "skipped (disabled)")
			continue
		}
		stageCtx, stageCancel := context.WithCancel(rootCtx)
		o.emit(p.Name, "starting")
		err := p.Run(stageCtx)
		stageCancel()
		if err != nil {
			if rootCtx.Err() != nil {
				return verrors.NewTimeout(p.Name, "")
			}
			return fmt.Errorf("stage %s: %w", p.Name, err)
		}
		o.emit(p.Name, "complete")
	}
	close(o.Events)
	return nil
}

// FanOut runs fn once per item under a bounded errgroup worker pool sized
// by cfg.Performance.MaxThreads, applying cfg.Performance.FileTimeoutSeconds
// to each individual item so one slow file cannot stall the whole stage.
// A per-item timeout is recorded as a non-fatal Timeout finding rather than
// aborting the group, matching the spec's "Timeout finding on per-file
// timeout, fatal only on stage timeout" rule.
func FanOut[T any](ctx context.Context, cfg *config.Config, items []T, fn func(ctx context.Context, item T) error) ([]*finding.Finding, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxInt(1, cfg.Performance.MaxThreads))

	timeouts := make(chan *finding.Finding, len(items))
	perFile := time.Duration(cfg.Performance.FileTimeoutSeconds) * time.Second

	for _, item := range items {
		item := item
		g.Go(func() error {
			itemCtx, cancel := context.WithTimeout(gctx, perFile)
			defer cancel()
			err := fn(itemCtx, item)
			if err != nil {
				if itemCtx.Err() == context.DeadlineExceeded {
					f := finding.New(finding.KindTimeout, 0)
					f.WithReason(fmt.Sprintf("item exceeded per-file timeout of %s", perFile))
					timeouts <- f
					return nil // per-file timeout is non-fatal
				}
				return err
			}
			return nil
		})
	}

	err := g.Wait()
	close(timeouts)
	var findings []*finding.Finding
	for f := range timeouts {
		findings = append(findings, f)
	}
	return findings, err
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
