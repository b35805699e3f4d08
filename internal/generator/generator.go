// Package generator drives module engines over a population of entities.
package generator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lifegraph/lifegraph/internal/config"
	"github.com/lifegraph/lifegraph/internal/engine"
	"github.com/lifegraph/lifegraph/internal/entity"
	"github.com/lifegraph/lifegraph/internal/export"
	"github.com/lifegraph/lifegraph/internal/loader"
	"github.com/lifegraph/lifegraph/internal/metrics"
	"github.com/lifegraph/lifegraph/internal/rng"
	"github.com/lifegraph/lifegraph/internal/store"
)

// submoduleDir marks module sources only reachable through Call Submodule.
const submoduleDir = "submodules"

// Options wires a generation run together. Store, Exporter, and Metrics
// are optional sinks; a nil Log discards engine debug output.
type Options struct {
	Config    config.Config
	Library   *loader.Library
	Overrides []loader.Override
	Store     *store.Store
	Exporter  *export.Exporter
	Metrics   *metrics.Metrics
	Log       *slog.Logger
}

// Generator runs every top-level module against every generated entity.
type Generator struct {
	cfg     config.Config
	log     *slog.Logger
	store   *store.Store
	export  *export.Exporter
	metrics *metrics.Metrics

	// engines holds one prototype engine per module. Workers never touch
	// the prototypes; each worker clones its own set.
	engines  map[string]*engine.Engine
	topLevel []string
}

// Summary reports what one run produced.
type Summary struct {
	Entities  int
	Deceased  int
	Completed map[string]int // module -> entities that reached a terminal state
}

// New builds prototype engines for every module in the library, with
// overrides applied. Modules under a "submodules" directory are excluded
// from the top-level set but stay callable through Call Submodule.
func New(opts Options) (*Generator, error) {
	if opts.Library == nil || opts.Library.Len() == 0 {
		return nil, fmt.Errorf("generator: no modules loaded")
	}
	log := opts.Log
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	g := &Generator{
		cfg:     opts.Config,
		log:     log,
		store:   opts.Store,
		export:  opts.Exporter,
		metrics: opts.Metrics,
		engines: make(map[string]*engine.Engine),
	}

	for _, name := range opts.Library.Names() {
		supplier, _ := opts.Library.Get(name)
		def, err := supplier.Copy()
		if err != nil {
			return nil, fmt.Errorf("generator: %w", err)
		}
		def = loader.ApplyOverrides(def, opts.Overrides)

		eng, err := engine.New(def)
		if err != nil {
			return nil, fmt.Errorf("generator: module %q: %w", name, err)
		}
		if violations := eng.Validate(); len(violations) > 0 {
			return nil, fmt.Errorf("generator: module %q: %s", name, strings.Join(violations, "; "))
		}
		g.engines[name] = eng
		if !isSubmodulePath(supplier.Path) {
			g.topLevel = append(g.topLevel, name)
		}
	}
	sort.Strings(g.topLevel)
	if len(g.topLevel) == 0 {
		return nil, fmt.Errorf("generator: every module is a submodule; nothing to run")
	}
	return g, nil
}

func isSubmodulePath(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == submoduleDir {
			return true
		}
	}
	return false
}

// Run generates the configured population. Entities are sampled up front
// from the run seed, so worker scheduling cannot change who gets
// generated; each worker simulates with its own engine clones.
func (g *Generator) Run(ctx context.Context) (Summary, error) {
	start, err := g.cfg.StartTime()
	if err != nil {
		return Summary{}, err
	}
	end, err := g.cfg.EndTime()
	if err != nil {
		return Summary{}, err
	}

	factory := entity.NewFactory(rng.New(g.cfg.Seed), end, g.cfg.MinAge, g.cfg.MaxAge)
	entities := make([]*entity.Entity, g.cfg.Population)
	for i := range entities {
		entities[i] = factory.New()
	}

	jobs := make(chan *entity.Entity, len(entities))
	for _, ent := range entities {
		jobs <- ent
	}
	close(jobs)

	results := make(chan workerResult, len(entities)+g.cfg.Workers)
	var wg sync.WaitGroup
	for w := 0; w < g.cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.runWorker(ctx, jobs, results, start, end)
		}()
	}
	wg.Wait()
	close(results)

	summary := Summary{Completed: make(map[string]int)}
	var firstErr error
	for res := range results {
		if res.err != nil {
			if firstErr == nil {
				firstErr = res.err
			}
			continue
		}
		summary.Entities++
		if res.deceased {
			summary.Deceased++
		}
		for _, name := range res.completed {
			summary.Completed[name]++
		}
	}
	if firstErr != nil {
		return summary, firstErr
	}
	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

type workerResult struct {
	err       error
	deceased  bool
	completed []string
}

// runWorker simulates entities drawn from jobs with this worker's own
// engine clones. A failure for one entity is reported and the worker
// moves on; other entities are unaffected.
func (g *Generator) runWorker(ctx context.Context, jobs <-chan *entity.Entity, results chan<- workerResult, start, end int64) {
	engines, err := g.cloneEngines()
	if err != nil {
		results <- workerResult{err: err}
		return
	}

	for ent := range jobs {
		if ctx.Err() != nil {
			return
		}
		res := g.generate(ctx, engines, ent, start, end)
		if res.err != nil {
			g.log.Error("entity generation failed", "entity", ent.ID, "error", res.err)
		}
		results <- res
	}
}

// cloneEngines gives a worker an isolated copy of every prototype engine,
// wired to resolve submodule calls against its own set.
func (g *Generator) cloneEngines() (map[string]*engine.Engine, error) {
	clones := make(map[string]*engine.Engine, len(g.engines))
	for name, proto := range g.engines {
		clone, err := proto.Clone()
		if err != nil {
			return nil, fmt.Errorf("clone module %q: %w", name, err)
		}
		clone.SetLogger(g.log)
		clones[name] = clone
	}
	resolver := func(name string) (*engine.Engine, error) {
		sub, ok := clones[name]
		if !ok {
			return nil, fmt.Errorf("unknown submodule %q", name)
		}
		return sub, nil
	}
	for _, clone := range clones {
		clone.SetSubmoduleResolver(resolver)
	}
	return clones, nil
}

// generate walks one entity through simulated time. Every top-level module
// is activated at each step; a dead entity stops early.
func (g *Generator) generate(ctx context.Context, engines map[string]*engine.Engine, ent *entity.Entity, start, end int64) workerResult {
	began := time.Now()
	step := g.cfg.TimeStepMillis()

	from := start
	if ent.Birth > from {
		from = ent.Birth
	}

	for at := from; at <= end; at += step {
		if ctx.Err() != nil {
			return workerResult{err: ctx.Err()}
		}
		if !ent.Alive(at) {
			break
		}
		for _, name := range g.topLevel {
			if err := engines[name].Process(ent, at); err != nil {
				return workerResult{err: fmt.Errorf("entity %s, module %s: %w", ent.ID, name, err)}
			}
		}
	}

	res := workerResult{deceased: !ent.Alive(end)}
	for _, name := range g.topLevel {
		eng := engines[name]
		if eng.Finished(ent) {
			res.completed = append(res.completed, name)
		}
		if g.metrics != nil {
			g.metrics.StateActivations.WithLabelValues(name).Add(float64(eng.Activations(ent)))
			if eng.Finished(ent) {
				g.metrics.ModuleCompletions.WithLabelValues(name).Inc()
			}
		}
	}

	if g.store != nil {
		if err := g.store.WriteEntity(ctx, ent); err != nil {
			return workerResult{err: err}
		}
	}
	if g.export != nil {
		if err := g.export.Export(ent); err != nil {
			return workerResult{err: err}
		}
	}
	if g.metrics != nil {
		g.metrics.EntitiesGenerated.Inc()
		g.metrics.GenerationSeconds.Observe(time.Since(began).Seconds())
	}
	return res
}
