package ttsched

import (
	"fmt"
	"sync"

	"github.com/markphelps/optional"
)

const (
	TIMEKEEPER_CPU = 0 // the only cpu that advances the time-triggered clock and runs periodic threads
)

// ThreadPool owns the thread table and combines an ordinary policy with an
// optional time-triggered one. A periodic activation that is due always wins
// over ordinary threads.
//
// Threads are bound to the cpu that first dispatches them and never migrate.
// Periodic threads only run on TIMEKEEPER_CPU.
type ThreadPool struct {
	mu      sync.Mutex
	threads []*thread // indexed by tid, nil slots are free
	sched   Scheduler
	tt      PeriodicScheduler
	log     *Logger
}

func NewThreadPool(sched Scheduler, tt PeriodicScheduler, opts ...Option) *ThreadPool {
	if sched == nil {
		panic("thread pool: nil scheduler")
	}
	o := resolveOptions(opts)
	return &ThreadPool{
		threads: make([]*thread, 0),
		sched:   sched,
		tt:      tt,
		log:     o.log,
	}
}

func (tp *ThreadPool) String() string {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	str := "threads: \n"
	for _, t := range tp.threads {
		if t != nil {
			str += "   " + t.String() + "\n"
		}
	}
	return str
}

func (tp *ThreadPool) get(tid Tid) *thread {
	if tid < 0 || int(tid) >= len(tp.threads) {
		return nil
	}
	return tp.threads[tid]
}

// alloc returns the lowest free tid
func (tp *ThreadPool) alloc() Tid {
	for i, t := range tp.threads {
		if t == nil {
			return Tid(i)
		}
	}
	tp.threads = append(tp.threads, nil)
	return Tid(len(tp.threads) - 1)
}

// Add registers an ordinary thread and makes it runnable.
func (tp *ThreadPool) Add(ctx Context) Tid {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	tid := tp.alloc()
	tp.threads[tid] = newThread(tid, ctx, false)
	tp.sched.Push(tid)
	tp.log.Debug().Int("tid", int(tid)).Log("add thread")
	return tid
}

// AddPeriodic registers a periodic thread with its reservation. When the
// reservation is rejected the thread is not added and the admission error is
// returned. The tid of a periodic thread is never reused.
func (tp *ThreadPool) AddPeriodic(ctx Context, cycle, offset, maxTime Tms) (Tid, error) {
	if tp.tt == nil {
		return 0, fmt.Errorf("thread pool: no time-triggered scheduler")
	}
	tp.mu.Lock()
	defer tp.mu.Unlock()
	tid := tp.alloc()
	if err := tp.tt.AdmitErr(tid, cycle, offset, maxTime); err != nil {
		return 0, fmt.Errorf("admit periodic thread %d: %w", tid, err)
	}
	tp.threads[tid] = newThread(tid, ctx, true)
	tp.log.Debug().Int("tid", int(tid)).Log("add periodic thread")
	return tid, nil
}

func (tp *ThreadPool) dispatch(t *thread, cpu int) (Tid, Context, bool) {
	ctx := t.context
	t.context = nil
	t.status = THREAD_RUNNING
	if t.cpu == NO_CPU {
		t.cpu = cpu
	}
	return t.tid, ctx, true
}

// Run selects the next thread for cpu: a due periodic thread first, then the
// ordinary policy.
func (tp *ThreadPool) Run(cpu int) (Tid, Context, bool) {
	tp.mu.Lock()
	defer tp.mu.Unlock()

	if cpu == TIMEKEEPER_CPU && tp.tt != nil {
		if tid, ok := tidOf(tp.tt.Pop()); ok {
			if t := tp.get(tid); t != nil && t.periodic && t.runnableOn(cpu) {
				return tp.dispatch(t, cpu)
			}
			tp.log.Warning().Int("tid", int(tid)).Log("periodic thread not runnable, window dropped")
			tp.tt.Stop()
		}
	}

	// threads bound to other cpus go back once we are done
	var deferred []Tid
	defer func() {
		for _, tid := range deferred {
			tp.sched.Push(tid)
		}
	}()
	for {
		tid, ok := tidOf(tp.sched.Pop(cpu))
		if !ok {
			return 0, nil, false
		}
		t := tp.get(tid)
		if t == nil || t.periodic || t.status != THREAD_READY {
			// stale entry, Stop re-queues running threads
			continue
		}
		if !t.runnableOn(cpu) {
			deferred = append(deferred, tid)
			continue
		}
		return tp.dispatch(t, cpu)
	}
}

// Stop takes back a thread that a processor switched away from.
func (tp *ThreadPool) Stop(tid Tid, ctx Context) {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	t := tp.get(tid)
	if t == nil {
		panic(fmt.Sprintf("thread pool: stop of unknown thread %d", tid))
	}
	t.context = ctx

	switch t.status {
	case THREAD_RUNNING:
		t.status = THREAD_READY
		if t.periodic {
			tp.relinquish(tid)
		} else {
			tp.sched.Push(tid)
		}
	case THREAD_EXITED:
		tp.log.Debug().Int("tid", int(tid)).Log("retire thread")
		if t.periodic {
			tp.relinquish(tid)
			t.context = nil
		} else {
			tp.threads[tid] = nil
		}
	default:
		panic(fmt.Sprintf("thread pool: stop of %v", t))
	}
}

// relinquish gives up the rest of tid's window, if it holds one
func (tp *ThreadPool) relinquish(tid Tid) {
	if tp.tt == nil {
		return
	}
	if cur, ok := tidOf(tp.tt.Current()); ok && cur == tid {
		tp.tt.Stop()
	}
}

// Tick meters a timer tick on cpu. Preemption is needed when a periodic
// activation is due, when the running periodic thread's window is used up,
// or when the ordinary policy says the running thread's slice is used up.
func (tp *ThreadPool) Tick(cpu int, tid optional.Int) bool {
	due := false
	if cpu == TIMEKEEPER_CPU && tp.tt != nil {
		due = tp.tt.Tick()
	}
	cur, ok := tidOf(tid)
	if !ok {
		return due
	}
	if due {
		return true
	}

	tp.mu.Lock()
	t := tp.get(cur)
	periodic := t != nil && t.periodic
	tp.mu.Unlock()

	if periodic {
		return !tp.tt.Working()
	}
	return tp.sched.Tick(cur)
}

// Exit marks the running thread tid as finished; it is retired when its
// processor stops it.
func (tp *ThreadPool) Exit(tid Tid) {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	t := tp.get(tid)
	if t == nil {
		panic(fmt.Sprintf("thread pool: exit of unknown thread %d", tid))
	}
	t.status = THREAD_EXITED
}

func (tp *ThreadPool) SetPriority(tid Tid, priority uint8) {
	tp.sched.SetPriority(tid, priority)
}

// Status reports the status of tid, false if there is no such thread.
func (tp *ThreadPool) Status(tid Tid) (ThreadStatus, bool) {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	t := tp.get(tid)
	if t == nil {
		return 0, false
	}
	return t.status, true
}

// Len is the number of live thread slots.
func (tp *ThreadPool) Len() int {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	n := 0
	for _, t := range tp.threads {
		if t != nil {
			n += 1
		}
	}
	return n
}

var _ Pool = (*ThreadPool)(nil)
