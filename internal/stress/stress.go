// Package stress runs the optimization pipeline over many independently
// generated worlds in parallel.
package stress

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"fortio.org/safecast"
	"golang.org/x/sync/errgroup"

	"weft/internal/domtree"
	"weft/internal/gen"
	"weft/internal/ir"
	"weft/internal/observ"
	"weft/internal/opt"
	"weft/internal/pass"
	"weft/internal/scope"
	"weft/internal/trace"
)

// Options configure a stress run.
type Options struct {
	Universes     int
	Blocks        int
	Ops           int
	Seed          uint64
	Jobs          int // 0 means GOMAXPROCS
	Passes        []string
	MaxIterations int
	Cleanup       bool
	// Registry resolves pass names; nil uses the passes of package opt.
	Registry *pass.Registry
	// Done, if set, counts finished universes while the run is in flight.
	Done *atomic.Int64
	// Progress, if set, receives stage changes of every universe.
	Progress ProgressSink
}

// Universe is the outcome of one world.
type Universe struct {
	Index           int            `json:"index" msgpack:"index"`
	Seed            uint64         `json:"seed" msgpack:"seed"`
	DefsBefore      int            `json:"defs_before" msgpack:"defs_before"`
	DefsAfter       int            `json:"defs_after" msgpack:"defs_after"`
	Forwarders      int            `json:"forwarders" msgpack:"forwarders"`
	Iterations      int            `json:"iterations" msgpack:"iterations"`
	Replacements    int            `json:"replacements" msgpack:"replacements"`
	PerPass         map[string]int `json:"per_pass,omitempty" msgpack:"per_pass,omitempty"`
	UnreachableLams int            `json:"unreachable_lams" msgpack:"unreachable_lams"`
	DeadDefs        int            `json:"dead_defs" msgpack:"dead_defs"`
	DomDepth        int            `json:"dom_depth" msgpack:"dom_depth"`
	Timings         observ.Report  `json:"timings" msgpack:"timings"`
}

// Report collects all universes of a run, ordered by index.
type Report struct {
	Universes  []Universe    `json:"universes" msgpack:"universes"`
	Passes     []string      `json:"passes" msgpack:"passes"`
	Duration   time.Duration `json:"duration" msgpack:"duration"`
	Iterations int           `json:"iterations" msgpack:"iterations"`
	Removed    int           `json:"removed" msgpack:"removed"`
}

// DefaultRegistry returns a registry holding the passes of package opt.
func DefaultRegistry() *pass.Registry {
	r := pass.NewRegistry()
	opt.Register(r)
	return r
}

func (o Options) validate() error {
	var errs []error
	if o.Universes < 1 {
		errs = append(errs, fmt.Errorf("stress: universes must be positive, got %d", o.Universes))
	}
	if o.Blocks < 1 {
		errs = append(errs, fmt.Errorf("stress: blocks must be positive, got %d", o.Blocks))
	}
	if o.Ops < 0 {
		errs = append(errs, fmt.Errorf("stress: ops must not be negative, got %d", o.Ops))
	}
	if o.Jobs < 0 {
		errs = append(errs, fmt.Errorf("stress: jobs must not be negative, got %d", o.Jobs))
	}
	return errors.Join(errs...)
}

// Run generates and optimizes opts.Universes worlds. The first failing
// universe cancels the rest.
func Run(ctx context.Context, opts Options) (*Report, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if opts.Registry == nil {
		opts.Registry = DefaultRegistry()
	}
	jobs := opts.Jobs
	if jobs == 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	tr := trace.FromContext(ctx)
	span := trace.Begin(tr, trace.ScopeDriver, "stress", trace.CurrentSpan(ctx).SpanID)
	ctx = trace.WithSpan(ctx, span)
	start := time.Now()

	report := &Report{
		Universes: make([]Universe, opts.Universes),
		Passes:    opts.Passes,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, opts.Universes))
	for i := range opts.Universes {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			began := time.Now()
			u, err := runUniverse(gctx, opts, i)
			if err != nil {
				opts.emit(Event{Universe: i, Seed: seedOf(opts, i), Stage: StageFailed, Err: err, Elapsed: time.Since(began)})
				return err
			}
			opts.emit(Event{Universe: i, Seed: u.Seed, Stage: StageDone, Elapsed: time.Since(began)})
			report.Universes[i] = u
			if opts.Done != nil {
				opts.Done.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.End(err.Error())
		return nil, err
	}

	report.Duration = time.Since(start)
	for _, u := range report.Universes {
		report.Iterations += u.Iterations
		report.Removed += u.DefsBefore - u.DefsAfter
	}
	span.WithExtra("universes", strconv.Itoa(opts.Universes)).End("ok")
	return report, nil
}

// seedOf returns the seed of universe index; indices are never negative.
func seedOf(opts Options, index int) uint64 {
	return opts.Seed + safecast.MustConv[uint64](index)
}

// runUniverse builds and optimizes one world. Panics from the core are
// turned into errors naming the seed, so a failure can be replayed.
func runUniverse(ctx context.Context, opts Options, index int) (u Universe, err error) {
	seed := seedOf(opts, index)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("stress: universe %d (seed %d) panicked: %v", index, seed, r)
		}
	}()

	tr := trace.FromContext(ctx)
	span := trace.Begin(tr, trace.ScopePass, "universe "+strconv.Itoa(index), trace.CurrentSpan(ctx).SpanID)
	defer span.End("")
	ctx = trace.WithSpan(ctx, span)

	reg := ir.NewRegistry()
	core, err := opt.RegisterCore(reg)
	if err != nil {
		return Universe{}, err
	}
	w := ir.New(reg)
	opts.emit(Event{Universe: index, Seed: seed, Stage: StageGenerate})
	prog, err := gen.Generate(w, gen.Config{Blocks: opts.Blocks, Ops: opts.Ops, Seed: seed, Core: &core})
	if err != nil {
		return Universe{}, err
	}
	u = Universe{Index: index, Seed: seed, DefsBefore: w.NumDefs(), Forwarders: prog.Forwarders}

	opts.emit(Event{Universe: index, Seed: seed, Stage: StageOptimize})
	passes, err := opts.Registry.Build(w, opts.Passes)
	if err != nil {
		return Universe{}, err
	}
	m := pass.NewManager(w, passes...)
	m.MaxIterations = opts.MaxIterations
	m.Timer = observ.NewTimer()

	var stats pass.Stats
	if opts.Cleanup {
		var cs ir.CleanupStats
		stats, cs, err = m.RunWorld(ctx)
		u.UnreachableLams, u.DeadDefs = cs.UnreachableLams, cs.DeadDefs
	} else {
		stats, err = m.Run(ctx, scope.New(w, w.Externals()...))
	}
	if err != nil {
		return Universe{}, fmt.Errorf("stress: universe %d (seed %d): %w", index, seed, err)
	}
	u.Iterations, u.Replacements, u.PerPass = stats.Iterations, stats.Replacements, stats.PerPass

	opts.emit(Event{Universe: index, Seed: seed, Stage: StageVerify})
	if err := ir.Verify(w, false); err != nil {
		return Universe{}, fmt.Errorf("stress: universe %d (seed %d): %w", index, seed, err)
	}

	entry := prog.Entry
	for _, e := range stats.Entries {
		if e.Name() == prog.Entry.Name() {
			entry = e
		}
	}
	u.DomDepth = domtree.Build(scope.New(w, entry)).MaxDepth()
	u.DefsAfter = w.NumDefs()
	u.Timings = m.Timer.Report()
	return u, nil
}
