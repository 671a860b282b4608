package rendergraph

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-camtex/common"
)

// Backend turns compiled passes into GPU work.
type Backend interface {
	// BeginFrame prepares the graph-owned textures for one frame.
	BeginFrame(ctx context.Context, frame uint64, transients []Resource) error

	// Submit encodes one pass. Passes are submitted in declaration order.
	Submit(ctx context.Context, pass CompiledPass, draws []DrawCommand) error

	// EndFrame flushes the frame's work.
	EndFrame(ctx context.Context) error
}

// executor is the implementation of the Executor interface.
type executor struct {
	mu *sync.Mutex

	workers   int
	queueSize int
	idle      time.Duration

	pool worker.DynamicWorkerPool
}

// Executor compiles and runs frame graphs against a Backend.
type Executor interface {
	// Execute compiles g, records every surviving pass and submits the recorded commands to
	// backend. Passes of the same dependency level are recorded concurrently on the worker
	// pool; submission always follows declaration order.
	//
	// Parameters:
	//   - ctx: cancels execution between levels
	//   - g: the graph to run
	//   - backend: the backend receiving the passes
	//
	// Returns:
	//   - *CompiledGraph: the compiled graph that was executed
	//   - error: the first recording or backend error
	Execute(ctx context.Context, g *Graph, backend Backend) (*CompiledGraph, error)
}

var _ Executor = &executor{}

// NewExecutor creates an Executor. The worker pool defaults to one worker per CPU.
//
// Parameters:
//   - options: functional options to configure the executor
//
// Returns:
//   - Executor: the new executor
func NewExecutor(options ...ExecutorBuilderOption) Executor {
	e := &executor{
		mu:        &sync.Mutex{},
		workers:   runtime.NumCPU(),
		queueSize: 64,
		idle:      1 * time.Second,
	}
	for _, option := range options {
		option(e)
	}
	if e.workers > 1 {
		e.pool = worker.NewDynamicWorkerPool(e.workers, e.queueSize, e.idle)
	}
	return e
}

func (e *executor) Execute(ctx context.Context, g *Graph, backend Backend) (*CompiledGraph, error) {
	// One frame at a time per executor; the backend is not re-entrant.
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled := g.Compile()
	for _, name := range compiled.Culled {
		common.Logger().Debug("rendergraph: pass culled", "pass", name, "frame", g.frame)
	}

	lists := make([]*CommandList, len(compiled.Passes))
	pos := make(map[int]int, len(compiled.Passes))
	for i, p := range compiled.Passes {
		pos[p.Index] = i
	}

	for _, level := range compiled.Levels() {
		if err := ctx.Err(); err != nil {
			return compiled, err
		}
		e.recordLevel(g.frame, level, lists, pos)
	}

	for i, p := range compiled.Passes {
		if err := lists[i].Err(); err != nil {
			return compiled, fmt.Errorf("pass %q: %w", p.Name, err)
		}
	}

	if err := backend.BeginFrame(ctx, g.frame, compiled.Transients); err != nil {
		return compiled, fmt.Errorf("begin frame %d: %w", g.frame, err)
	}
	for i, p := range compiled.Passes {
		if err := backend.Submit(ctx, p, lists[i].Draws()); err != nil {
			_ = backend.EndFrame(ctx)
			return compiled, fmt.Errorf("submit pass %q: %w", p.Name, err)
		}
	}
	if err := backend.EndFrame(ctx); err != nil {
		return compiled, fmt.Errorf("end frame %d: %w", g.frame, err)
	}
	return compiled, nil
}

// recordLevel runs the render functions of one dependency level. A level with a single pass,
// or an executor without a pool, records inline.
func (e *executor) recordLevel(frame uint64, level []CompiledPass, lists []*CommandList, pos map[int]int) {
	record := func(p CompiledPass) {
		cmd := newCommandList(p.Name, p.reads, len(p.Colors))
		p.record(&RasterContext{Cmd: cmd, Frame: frame})
		lists[pos[p.Index]] = cmd
	}

	if e.pool == nil || len(level) == 1 {
		for _, p := range level {
			record(p)
		}
		return
	}

	// A WaitGroup gives the per-level barrier; the pool itself stays warm across frames.
	var wg sync.WaitGroup
	for _, p := range level {
		wg.Add(1)
		pCap := p
		e.pool.SubmitTask(worker.Task{
			ID: pCap.Index,
			Do: func() (any, error) {
				defer wg.Done()
				record(pCap)
				return nil, nil
			},
		})
	}
	wg.Wait()
}
