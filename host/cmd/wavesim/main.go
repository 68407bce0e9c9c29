package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"wavescope/config"
	"wavescope/core"
	"wavescope/host/scope"
	"wavescope/hosted"
)

var (
	configPath = flag.String("config", "", "Configuration file (.json or .lua); built-in bench setup when empty")
	mode       = flag.String("mode", "virtual", "virtual (simulated time) or realtime")
	duration   = flag.Duration("duration", 0, "Run length (0 uses the configured duration)")
	audio      = flag.Bool("audio", false, "Play the configured audio channel (realtime only)")
	verbose    = flag.Bool("verbose", false, "Report liveness toggles and deadline misses")
	csvChannel = flag.Int("csv", -1, "Write this acquisition channel as CSV instead of the summary")
)

func main() {
	flag.Parse()

	cfg := config.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadFile(*configPath); err != nil {
			fatal(err)
		}
	}

	d := *duration
	if d == 0 {
		d = cfg.Duration()
	}

	var opts hosted.Options
	if *verbose {
		core.SetDebugWriter(func(s string) { fmt.Fprintln(os.Stderr, s) })
		core.SetDebugEnabled(true)
		core.InitAsyncDebug()
		opts.Report = core.DebugAsync
	}

	var err error
	switch *mode {
	case "virtual":
		if *audio {
			fmt.Fprintln(os.Stderr, "Warning: -audio needs -mode realtime, ignoring")
		}
		err = runVirtual(cfg, opts, d)
	case "realtime":
		err = runRealtime(cfg, opts, d)
	default:
		err = fmt.Errorf("unknown mode %q", *mode)
	}
	if err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func runVirtual(cfg *config.Config, opts hosted.Options, d time.Duration) error {
	sim, err := hosted.NewSimulator(cfg, opts)
	if err != nil {
		return err
	}
	stats := sim.Run(d)
	core.DebugPrintln(fmt.Sprintf("Simulated %v", sim.Now()))
	sim.Engine().DumpTiming(core.DebugPrintln)
	return report(sim, stats)
}

func runRealtime(cfg *config.Config, opts hosted.Options, d time.Duration) error {
	if *audio {
		rate := int(time.Second / (time.Duration(cfg.TickPeriodUS) * time.Microsecond))
		out, err := hosted.NewAudioSink(core.ChannelID(cfg.Hosted.AudioChannel), core.Sample(outMax(cfg)), rate)
		if err != nil {
			return fmt.Errorf("audio: %w", err)
		}
		defer out.Close()
		out.Start()
		opts.Output = out
	}

	var onMiss core.DeadlineHook
	if *verbose {
		// runs on the tick goroutine, so it must not block
		onMiss = func(tick uint64, took time.Duration) {
			core.DebugAsync(fmt.Sprintf("[MISS] tick %d took %v", tick, took))
		}
	}

	rt, err := hosted.NewRuntime(cfg, opts, onMiss)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	// the last snapshot has to be taken while the runtime still owns the rings
	g, gctx := errgroup.WithContext(ctx)
	snap := &snapshotTarget{runtime: rt, values: make(map[core.ChannelID][]core.Sample)}
	g.Go(func() error { return rt.Run(gctx) })
	g.Go(func() error { return snap.poll(gctx) })
	if err := g.Wait(); err != nil {
		return err
	}
	if rt.Dropped() > 0 {
		core.DebugPrintln(fmt.Sprintf("%d conversions dropped", rt.Dropped()))
	}
	return report(snap, rt.Stats())
}

// snapshotTarget keeps the latest ring copies of a running Runtime so they
// can be reported after it stops
type snapshotTarget struct {
	runtime *hosted.Runtime
	values  map[core.ChannelID][]core.Sample
	index   map[core.ChannelID]int
}

func (s *snapshotTarget) poll(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	s.index = make(map[core.ChannelID]int)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		for _, a := range s.runtime.Config().Acquisition {
			values, index, err := s.runtime.SnapshotContext(ctx, a.ID, s.values[a.ID])
			if err != nil {
				// not started yet, or already stopped
				break
			}
			s.values[a.ID] = values
			s.index[a.ID] = index
		}
	}
}

func (s *snapshotTarget) Stats() core.Stats { return s.runtime.Stats() }

func (s *snapshotTarget) Config() core.EngineConfig { return s.runtime.Config() }

func (s *snapshotTarget) Snapshot(id core.ChannelID, dst []core.Sample) ([]core.Sample, int, error) {
	values, ok := s.values[id]
	if !ok {
		return dst, 0, fmt.Errorf("%w %d", core.ErrUnknownChannel, id)
	}
	return append(dst[:0], values...), s.index[id], nil
}

func outMax(cfg *config.Config) uint16 {
	for _, ch := range cfg.Channels {
		if ch.ID == cfg.Hosted.AudioChannel {
			return ch.OutMax
		}
	}
	return 4095
}

func report(target core.ScopeTarget, stats core.Stats) error {
	ec := target.Config()

	if *csvChannel >= 0 {
		values, index, err := target.Snapshot(core.ChannelID(*csvChannel), nil)
		if err != nil {
			return err
		}
		d := scope.Dump{Channel: uint8(*csvChannel), Index: uint32(index), Values: make([]uint16, len(values))}
		for i, v := range values {
			d.Values[i] = uint16(v)
		}
		return scope.WriteCSV(os.Stdout, d, ec.TickPeriod)
	}

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		// piped output gets one machine-readable line per counter
		fmt.Printf("ticks=%d deadline_misses=%d modulation_applied=%d conversions=%d/%d late=%d dropped=%d read_errors=%d sink_errors=%d pwm_errors=%d\n",
			stats.Ticks, stats.DeadlineMisses, stats.ModulationApplied, stats.Conversions, stats.ConversionsStart,
			stats.LateConversions, stats.DroppedConversions, stats.ReadErrors, stats.SinkErrors, stats.PWMErrors)
	} else {
		printStats(stats)
	}

	for _, a := range ec.Acquisition {
		values, index, err := target.Snapshot(a.ID, nil)
		if err != nil {
			continue
		}
		lo, hi, mean := summarize(values)
		fmt.Printf("acquisition %d: %d samples index=%d min=%d max=%d mean=%.1f\n",
			a.ID, len(values), index, lo, hi, mean)
	}
	return nil
}

func printStats(s core.Stats) {
	fmt.Printf("ticks:              %d\n", s.Ticks)
	fmt.Printf("deadline misses:    %d\n", s.DeadlineMisses)
	fmt.Printf("modulation applied: %d\n", s.ModulationApplied)
	fmt.Printf("conversions:        %d/%d started\n", s.Conversions, s.ConversionsStart)
	fmt.Printf("late conversions:   %d\n", s.LateConversions)
	fmt.Printf("dropped:            %d\n", s.DroppedConversions)
	fmt.Printf("read errors:        %d\n", s.ReadErrors)
	fmt.Printf("sink errors:        %d\n", s.SinkErrors)
	fmt.Printf("pwm errors:         %d\n", s.PWMErrors)
}

func summarize(values []core.Sample) (lo, hi core.Sample, mean float64) {
	if len(values) == 0 {
		return 0, 0, 0
	}
	lo, hi = values[0], values[0]
	sum := 0.0
	for _, v := range values {
		lo = min(lo, v)
		hi = max(hi, v)
		sum += float64(v)
	}
	return lo, hi, sum / float64(len(values))
}
