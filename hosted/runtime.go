package hosted

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"wavescope/config"
	"wavescope/core"
)

var (
	ErrNotRunning     = errors.New("runtime is not running")
	ErrAlreadyStarted = errors.New("runtime already started")
)

// conversionQueue bounds completions waiting for the acquisition goroutine
const conversionQueue = 64

// Runtime runs the engine in real time. The tick goroutine owns the
// dispatcher and the acquisition goroutine owns the rings; conversion
// completions and snapshot requests reach the acquisition goroutine as
// messages, so no engine state is shared between them.
type Runtime struct {
	engine *core.Engine
	bench  *Bench
	period time.Duration

	conversions chan struct{}
	snapshots   chan snapshotRequest
	started     atomic.Bool
	running     atomic.Bool
	done        chan struct{}

	latency time.Duration
	start   time.Time
	onMiss  core.DeadlineHook
}

type snapshotRequest struct {
	id    core.ChannelID
	dst   []core.Sample
	reply chan snapshotReply
}

type snapshotReply struct {
	values []core.Sample
	index  int
	err    error
}

// NewRuntime builds an engine for cfg. onMiss, when set, is called from the
// tick goroutine for every overrun tick.
func NewRuntime(cfg *config.Config, opts Options, onMiss core.DeadlineHook) (*Runtime, error) {
	ec, err := engineConfig(cfg)
	if err != nil {
		return nil, err
	}

	latency := cfg.ConversionLatency()
	if opts.Latency > 0 {
		latency = opts.Latency
	}

	r := &Runtime{
		bench:       newBench(cfg, opts),
		period:      ec.TickPeriod,
		conversions: make(chan struct{}, conversionQueue),
		snapshots:   make(chan snapshotRequest),
		done:        make(chan struct{}),
		latency:     latency,
		onMiss:      onMiss,
	}

	platform := r.bench.platform(core.TriggerFunc(r.startConversion), r.monotonic, onMiss)
	r.engine, err = core.NewEngine(ec, platform)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Runtime) monotonic() time.Duration {
	return time.Since(r.start)
}

// startConversion hands a completion to the acquisition goroutine without
// blocking the tick. A full queue drops the completion and tells the engine,
// so it is counted as dropped rather than making later completions late.
func (r *Runtime) startConversion() {
	select {
	case r.conversions <- struct{}{}:
	default:
		r.engine.ConversionDropped()
	}
}

// Run starts the engine and blocks until ctx is done or a goroutine fails.
// A Runtime runs once; later calls return ErrAlreadyStarted.
func (r *Runtime) Run(ctx context.Context) error {
	if !r.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	r.start = time.Now()
	if err := r.engine.Start(); err != nil {
		return err
	}
	r.running.Store(true)
	defer func() {
		r.running.Store(false)
		close(r.done)
	}()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return r.tickLoop(ctx) })
	g.Go(func() error { return r.acquisitionLoop(ctx) })

	err := g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

func (r *Runtime) tickLoop(ctx context.Context) error {
	ticker := time.NewTicker(r.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.engine.Tick()
		}
	}
}

func (r *Runtime) acquisitionLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.conversions:
			if r.latency > 0 {
				time.Sleep(r.latency)
			}
			r.engine.ConversionComplete()
		case req := <-r.snapshots:
			values, index, err := r.engine.Snapshot(req.id, req.dst)
			req.reply <- snapshotReply{values: values, index: index, err: err}
		}
	}
}

// SnapshotContext asks the acquisition goroutine for a chronological copy
// of ring id
func (r *Runtime) SnapshotContext(ctx context.Context, id core.ChannelID, dst []core.Sample) ([]core.Sample, int, error) {
	if !r.running.Load() {
		return dst, 0, ErrNotRunning
	}
	req := snapshotRequest{id: id, dst: dst, reply: make(chan snapshotReply, 1)}
	select {
	case r.snapshots <- req:
	case <-r.done:
		return dst, 0, ErrNotRunning
	case <-ctx.Done():
		return dst, 0, ctx.Err()
	}
	select {
	case rep := <-req.reply:
		return rep.values, rep.index, rep.err
	case <-ctx.Done():
		return dst, 0, ctx.Err()
	}
}

// Snapshot is SnapshotContext bounded by one second
func (r *Runtime) Snapshot(id core.ChannelID, dst []core.Sample) ([]core.Sample, int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return r.SnapshotContext(ctx, id, dst)
}

// Stats reads the engine counters
func (r *Runtime) Stats() core.Stats {
	return r.engine.Stats()
}

// Config returns the engine configuration
func (r *Runtime) Config() core.EngineConfig {
	return r.engine.Config()
}

// Dropped returns how many conversions were discarded because the
// acquisition goroutine fell behind
func (r *Runtime) Dropped() uint32 {
	return r.engine.Stats().DroppedConversions
}

// Running reports whether Run is active
func (r *Runtime) Running() bool {
	return r.running.Load()
}

// Bench returns the emulated peripherals
func (r *Runtime) Bench() *Bench {
	return r.bench
}
