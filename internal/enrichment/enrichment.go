// Package enrichment implements the progressive enrichment orchestrator
// (§4.H): a priority-ordered registry of independent processors, run in
// concurrency-capped batches with per-processor timeouts, whose results are
// always written back even on failure. Grounded on
// functions/enricher/orchestrator.go's sequential provider loop, generalised
// from a single ordered pass into concurrent priority batches since §4.H
// requires both (ordering at batch boundaries, concurrency within a batch).
package enrichment

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ufobeep/beepnet/internal/taskrunner"
)

// Context is the read-only input every processor receives (§4.H).
type Context struct {
	SightingID  string
	Latitude    float64
	Longitude   float64
	AltitudeM   *float64
	Timestamp   time.Time
	AzimuthDeg  *float64
	PitchDeg    *float64
	RollDeg     *float64
	Category    string
	Title       string
	Description string
}

// Result is a processor's outcome (§4.H). Data is written to
// enrichment_data[Name] unconditionally, even when Success is false, so
// callers can distinguish "not run" (absent key) from "ran and failed".
type Result struct {
	Success          bool
	Data             map[string]any
	Error            string
	ProcessingTimeMS float64
	Confidence       float64
	Metadata         map[string]string
}

// Processor is the §4.H processor contract.
type Processor interface {
	Name() string
	Priority() int
	TimeoutSeconds() int
	IsAvailable(ctx context.Context) bool
	Process(ctx context.Context, ectx Context) Result
}

// Registry holds processors ordered by ascending priority.
type Registry struct {
	processors []Processor
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a processor. Order is resolved lazily at Run time so
// registration order doesn't matter.
func (r *Registry) Register(p Processor) {
	r.processors = append(r.processors, p)
}

// Orchestrator runs a registry's processors per the §4.H orchestration rules.
type Orchestrator struct {
	registry    *Registry
	concurrency int
	logger      *slog.Logger
}

// New builds an Orchestrator. concurrency <= 0 defaults to 3 (§6's
// enrichment_concurrency default).
func New(registry *Registry, concurrency int, logger *slog.Logger) *Orchestrator {
	if concurrency <= 0 {
		concurrency = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{registry: registry, concurrency: concurrency, logger: logger.With("component", "enrichment")}
}

// Run executes every registered processor and returns enrichment_data: a map
// from processor name to its Result, written for every processor that
// ran — whether it succeeded, failed, or timed out (§4.H rule 5). Processors
// whose IsAvailable is false are recorded immediately without occupying a
// batch slot (§4.H rule 2).
func (o *Orchestrator) Run(ctx context.Context, ectx Context) map[string]Result {
	ordered := make([]Processor, len(o.registry.processors))
	copy(ordered, o.registry.processors)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Priority() < ordered[j].Priority() })

	out := make(map[string]Result, len(ordered))
	var runnable []Processor
	for _, p := range ordered {
		if !p.IsAvailable(ctx) {
			out[p.Name()] = Result{Success: false, Error: "unavailable"}
			continue
		}
		runnable = append(runnable, p)
	}

	var mu sync.Mutex
	setResult := func(name string, r Result) {
		mu.Lock()
		out[name] = r
		mu.Unlock()
	}

	pool := taskrunner.New(o.concurrency)
	tasks := make([]taskrunner.Task, len(runnable))
	for i, p := range runnable {
		p := p
		tasks[i] = taskrunner.WithTimeout(
			func(parent context.Context) (context.Context, context.CancelFunc) {
				return context.WithTimeout(parent, time.Duration(p.TimeoutSeconds())*time.Second)
			},
			func(taskCtx context.Context) error {
				start := time.Now()
				res := p.Process(taskCtx, ectx)
				res.ProcessingTimeMS = float64(time.Since(start).Microseconds()) / 1000.0
				setResult(p.Name(), res)
				return nil
			},
			func() {
				o.logger.Warn("processor timed out", "processor", p.Name())
				setResult(p.Name(), Result{Success: false, Error: "timeout"})
			},
			func(err error) {
				o.logger.Warn("processor errored", "processor", p.Name(), "error", err)
			},
		)
	}
	// RunBatched preserves the priority ordering established above at batch
	// boundaries, matching §4.H rule 3's "batches of at most M concurrent".
	pool.RunBatched(ctx, tasks)

	return out
}
