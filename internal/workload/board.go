// Package workload boots a simulated board running the tasks of a config:
// one processor per cpu, a static round-robin scheduler for ordinary tasks
// and a time-triggered one for periodic tasks.
package workload

import (
	"context"
	"fmt"

	"ttsched"
	"ttsched/internal/config"
	"ttsched/internal/machine"
	"ttsched/internal/trace"
)

// Board is everything a run needs, wired up but not started.
type Board struct {
	cfg      config.Config
	World    *machine.World
	Static   *ttsched.StaticScheduler
	TT       *ttsched.TTScheduler
	Pool     *ttsched.ThreadPool
	Procs    []*ttsched.Processor
	Recorder *trace.Recorder
	Tids     map[string]ttsched.Tid
	log      *ttsched.Logger
}

// NewBoard builds the board and admits every task of cfg. It fails when a
// periodic reservation is rejected.
func NewBoard(cfg config.Config, log *ttsched.Logger) (*Board, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	b := &Board{
		cfg:   cfg,
		World: machine.NewWorld(cfg.CPUs, cfg.RunTicks),
		Tids:  make(map[string]ttsched.Tid, len(cfg.Tasks)),
		log:   log,
	}
	b.Static = ttsched.NewStaticScheduler(cfg.StaticBudget,
		ttsched.WithLogger(log),
		ttsched.WithTimeSlice(cfg.DefaultSlice))
	b.TT = ttsched.NewTTScheduler(cfg.TicksPerMsec, ttsched.WithLogger(log))
	b.Pool = ttsched.NewThreadPool(b.Static, b.TT, ttsched.WithLogger(log))
	b.Recorder = trace.NewRecorder(func(cpu int) uint64 {
		return b.World.CPU(cpu).Now()
	})
	b.Procs = make([]*ttsched.Processor, cfg.CPUs)
	for i := range b.Procs {
		b.Procs[i] = ttsched.NewProcessor()
	}

	for _, t := range cfg.Tasks {
		if _, dup := b.Tids[t.Name]; dup {
			b.World.Halt()
			return nil, fmt.Errorf("duplicate task name %q", t.Name)
		}
		tid, err := b.spawn(t)
		if err != nil {
			// let the threads spawned so far exit
			b.World.Halt()
			return nil, fmt.Errorf("task %v: %w", t, err)
		}
		b.Tids[t.Name] = tid
		b.log.Debug().Str("task", t.Name).Int("tid", int(tid)).Log("spawned")
	}
	return b, nil
}

func (b *Board) spawn(t config.TaskSpec) (ttsched.Tid, error) {
	switch t.Kind {
	case config.KIND_PERIODIC:
		c := b.World.Spawn(b.periodicBody(t))
		return b.Pool.AddPeriodic(c, ttsched.Tms(t.Cycle), ttsched.Tms(t.Offset), ttsched.Tms(t.MaxTime))
	default:
		c := b.World.Spawn(b.ordinaryBody(t))
		return b.Pool.Add(c), nil
	}
}

// proc is the processor c runs on; threads never migrate
func (b *Board) proc(c *machine.Coroutine) *ttsched.Processor {
	return b.Procs[c.Machine().CPU()]
}

func (b *Board) ordinaryBody(t config.TaskSpec) func(c *machine.Coroutine) {
	return func(c *machine.Coroutine) {
		for done := uint64(1); done <= t.Work; done++ {
			c.Step()
			if t.YieldEvery > 0 && done%t.YieldEvery == 0 && done < t.Work {
				b.proc(c).YieldNow()
			}
		}
		p := b.proc(c)
		b.log.Debug().Str("task", t.Name).Int("tid", int(p.Tid())).Log("task done")
		b.Pool.Exit(p.Tid())
		// never switched back to
		p.YieldNow()
	}
}

func (b *Board) periodicBody(t config.TaskSpec) func(c *machine.Coroutine) {
	return func(c *machine.Coroutine) {
		for {
			c.Work(t.WorkPerJob)
			b.proc(c).YieldNow()
		}
	}
}

// Boot starts every cpu's dispatch loop.
func (b *Board) Boot() {
	for i, m := range b.World.Machines() {
		p := b.Procs[i]
		m.OnTimer(p.Tick)
		m.Boot(func(loop *machine.Coroutine) {
			p.Init(m.CPU(), loop, b.Pool, m,
				ttsched.WithLogger(b.log),
				ttsched.WithObserver(b.Recorder))
			p.Run()
		})
	}
}

// Run boots the board, waits for it to halt and summarizes the trace. With
// a trace_db configured the events are also stored there.
func (b *Board) Run(ctx context.Context) (trace.Summary, error) {
	if b.cfg.RunTicks == 0 {
		return trace.Summary{}, fmt.Errorf("run_ticks must be positive for a bounded run")
	}
	b.log.Info().
		Int("cpus", b.World.NumCPUs()).
		Uint64("ticks", b.cfg.RunTicks).
		Int("threads", b.Pool.Len()).
		Log("boot")
	b.Boot()
	b.World.Wait()
	b.log.Info().Int("events", b.Recorder.Len()).Uint64("time_ms", uint64(b.TT.Time())).Log("halted")

	if b.cfg.TraceDB != "" {
		sink, err := trace.NewSQLiteSink(ctx, b.cfg.TraceDB, b.log)
		if err != nil {
			return trace.Summary{}, err
		}
		defer sink.Close()
		if err := b.Recorder.Flush(ctx, sink); err != nil {
			return trace.Summary{}, err
		}
	}
	return trace.Summarize(b.Recorder.Events(), b.cfg.RunTicks), nil
}
