package ttsched

import (
	"fmt"
	"sync/atomic"

	"github.com/markphelps/optional"
)

// checks that no two flows of control mutate a Processor at once
const processorAsserts = true

// Context is an execution context control can be handed to.
type Context interface {
	// SwitchTo transfers control to target and suspends the caller until
	// some context switches back to it.
	SwitchTo(target Context)
}

// Interrupts are the cpu-local interrupt masking primitives.
type Interrupts interface {
	// DisableAndStore masks interrupts, returning the previous mask.
	DisableAndStore() IntMask
	// Restore reinstates a mask returned by DisableAndStore.
	Restore(mask IntMask)
	// EnableAndWait unmasks interrupts and waits for the next one.
	EnableAndWait()
}

// Pool hands out runnable threads to processors and takes them back.
type Pool interface {
	// Run selects the next thread for the given cpu.
	Run(cpu int) (Tid, Context, bool)
	// Stop retires a thread that was switched away from.
	Stop(tid Tid, ctx Context)
	// Tick meters one timer tick on cpu and reports whether the running
	// thread (empty when idle) must be preempted.
	Tick(cpu int, tid optional.Int) bool
}

// Observer is told about processor dispatch decisions.
type Observer interface {
	Dispatch(cpu int, tid Tid)
	Stop(cpu int, tid Tid)
	Preempt(cpu int, tid Tid)
	Idle(cpu int)
}

type runningThread struct {
	tid     Tid
	context Context
}

type processorInner struct {
	id          int
	thread      *runningThread // nil when idle
	loopContext Context
	manager     Pool
	intr        Interrupts
	observer    Observer
	log         *Logger
}

// Processor is the per-cpu thread executor. There is exactly one per cpu; its
// state is only touched by that cpu, with interrupts masked around every
// mutation, so it needs no lock.
//
// Init must be called once before anything else; Run then loops forever.
type Processor struct {
	inner *processorInner
	busy  atomic.Bool
}

func NewProcessor() *Processor {
	return &Processor{}
}

// Init sets up the processor for cpu id, with loop as the context of the
// dispatch loop itself.
func (p *Processor) Init(id int, loop Context, pool Pool, intr Interrupts, opts ...Option) {
	if p.inner != nil {
		panic(fmt.Sprintf("processor %d: initialized twice", id))
	}
	o := resolveOptions(opts)
	p.inner = &processorInner{
		id:          id,
		loopContext: loop,
		manager:     pool,
		intr:        intr,
		observer:    o.observer,
		log:         o.log,
	}
}

func (p *Processor) getInner() *processorInner {
	if p.inner == nil {
		panic("processor is not initialized")
	}
	return p.inner
}

func (p *Processor) enter() {
	if processorAsserts && !p.busy.CompareAndSwap(false, true) {
		panic(fmt.Sprintf("processor %d: state mutated concurrently", p.inner.id))
	}
}

func (p *Processor) exit() {
	if processorAsserts {
		p.busy.Store(false)
	}
}

// current reads the running thread under the mutation check
func (p *Processor) current() *runningThread {
	p.enter()
	defer p.exit()
	return p.inner.thread
}

// Run begins running threads after cpu setup. It never returns: it asks the
// pool for a thread, switches into it, and when control comes back hands the
// thread back to the pool. With nothing to run it waits for an interrupt.
func (p *Processor) Run() {
	in := p.getInner()
	in.intr.DisableAndStore()
	for {
		if tid, ctx, ok := in.manager.Run(in.id); ok {
			p.enter()
			in.thread = &runningThread{tid: tid, context: ctx}
			p.exit()

			in.log.Debug().Int("cpu", in.id).Int("tid", int(tid)).Log("begin running thread")
			if in.observer != nil {
				in.observer.Dispatch(in.id, tid)
			}
			in.loopContext.SwitchTo(ctx)

			p.enter()
			t := in.thread
			in.thread = nil
			p.exit()

			in.log.Debug().Int("cpu", in.id).Int("tid", int(t.tid)).Log("stop running thread")
			if in.observer != nil {
				in.observer.Stop(in.id, t.tid)
			}
			in.manager.Stop(t.tid, t.context)
		} else {
			in.log.Trace().Int("cpu", in.id).Log("idle")
			if in.observer != nil {
				in.observer.Idle(in.id)
			}
			// wait for a timer interrupt
			in.intr.EnableAndWait()
			in.intr.DisableAndStore()
		}
	}
}

// YieldNow switches from the running thread back to the dispatch loop, and
// returns when the thread is next dispatched. Interrupts may be enabled.
func (p *Processor) YieldNow() {
	in := p.getInner()
	t := p.current()
	if t == nil {
		panic(fmt.Sprintf("processor %d: yield while idle", in.id))
	}
	ctx := t.context
	flags := in.intr.DisableAndStore()
	ctx.SwitchTo(in.loopContext)
	in.intr.Restore(flags)
}

// Tick is called by the timer interrupt handler, with interrupts disabled.
// It forces the running thread off the cpu when the pool asks for it.
func (p *Processor) Tick() {
	in := p.getInner()
	var tid optional.Int
	if t := p.current(); t != nil {
		tid = someTid(t.tid)
	}
	needReschedule := in.manager.Tick(in.id, tid)
	// when idle the loop re-polls the pool once the interrupt returns
	cur, running := tidOf(tid)
	if needReschedule && running {
		in.log.Debug().Int("cpu", in.id).Int("tid", int(cur)).Log("need schedule")
		if in.observer != nil {
			in.observer.Preempt(in.id, cur)
		}
		p.YieldNow()
	}
}

// ID is the cpu this processor drives.
func (p *Processor) ID() int {
	return p.getInner().id
}

// Tid of the running thread. Panics when idle.
func (p *Processor) Tid() Tid {
	in := p.getInner()
	t := p.current()
	if t == nil {
		panic(fmt.Sprintf("processor %d: no running thread", in.id))
	}
	return t.tid
}

// TidOption is the running thread, if any. Never panics.
func (p *Processor) TidOption() optional.Int {
	if p.inner == nil || p.inner.thread == nil {
		return optional.Int{}
	}
	return someTid(p.inner.thread.tid)
}

// Context of the running thread. Panics when idle.
func (p *Processor) Context() Context {
	in := p.getInner()
	t := p.current()
	if t == nil {
		panic(fmt.Sprintf("processor %d: no running thread", in.id))
	}
	return t.context
}

// Manager is the pool this processor takes threads from.
func (p *Processor) Manager() Pool {
	return p.getInner().manager
}
