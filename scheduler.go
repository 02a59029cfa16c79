package ttsched

import (
	"github.com/joeycumines/logiface"
	"github.com/markphelps/optional"
)

// Scheduler is an ordinary scheduling policy: it queues runnable tasks and
// meters the running one on every timer tick.
//
// Implementations are shared by all CPUs and must guard their whole state
// with a single lock. No method may block or be re-entered while that lock
// is held.
type Scheduler interface {
	// Push admits (or re-admits) a runnable task.
	Push(tid Tid)
	// Pop removes and returns the next task to run on the given cpu, or an
	// empty optional when nothing is runnable.
	Pop(cpu int) optional.Int
	// Tick accounts one tick to the running task and reports whether it must
	// be preempted now. The task must not be queued.
	Tick(current Tid) bool
	// SetPriority is accepted by every policy, but may be a no-op.
	SetPriority(tid Tid, priority uint8)
}

// PeriodicScheduler is a time-triggered policy that owns reserved,
// periodic execution windows.
type PeriodicScheduler interface {
	// Admit registers a reservation, reporting false if it cannot fit.
	Admit(tid Tid, cycle, offset, maxTime Tms) bool
	// AdmitErr is Admit, with the rejection reason.
	AdmitErr(tid Tid, cycle, offset, maxTime Tms) error
	// Pop returns the task whose window opens at the current instant.
	Pop() optional.Int
	// Tick advances the hardware tick counter, reporting whether a periodic
	// task became due and must preempt whatever is running.
	Tick() bool
	// Working reports whether a reservation currently owns its window.
	Working() bool
	// Current is the task owning the open window, if any.
	Current() optional.Int
	// Stop relinquishes the rest of the open window.
	Stop()
}

type Logger = logiface.Logger[logiface.Event]

type options struct {
	log      *Logger
	observer Observer
	slice    uint
}

// Option configures schedulers, thread pools and processors.
type Option func(*options)

// WithLogger sets the structured logger; nil is valid and silent.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// WithObserver installs an Observer for processor dispatch events.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		o.observer = obs
	}
}

// WithTimeSlice sets the slice the static scheduler grants on Push.
func WithTimeSlice(ticks uint) Option {
	return func(o *options) {
		o.slice = ticks
	}
}

func resolveOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

var (
	_ Scheduler         = (*StaticScheduler)(nil)
	_ PeriodicScheduler = (*TTScheduler)(nil)
)
