package ttsched

import (
	"strconv"
)

type ThreadStatus int

const (
	THREAD_READY   ThreadStatus = iota // runnable, context parked in the pool
	THREAD_RUNNING                     // on a cpu
	THREAD_EXITED                      // finished, waiting to be retired
)

func (s ThreadStatus) String() string {
	switch s {
	case THREAD_READY:
		return "ready"
	case THREAD_RUNNING:
		return "running"
	case THREAD_EXITED:
		return "exited"
	default:
		return "unknown(" + strconv.Itoa(int(s)) + ")"
	}
}

const NO_CPU = -1

// pool-side view of a thread
type thread struct {
	tid      Tid
	status   ThreadStatus
	context  Context // nil while running
	periodic bool
	cpu      int // cpu the thread is bound to, NO_CPU before its first dispatch
}

func newThread(tid Tid, ctx Context, periodic bool) *thread {
	return &thread{
		tid:      tid,
		status:   THREAD_READY,
		context:  ctx,
		periodic: periodic,
		cpu:      NO_CPU,
	}
}

func (t *thread) String() string {
	str := strconv.Itoa(int(t.tid)) + ": " + t.status.String()
	if t.periodic {
		str += ", periodic"
	}
	if t.cpu != NO_CPU {
		str += ", cpu " + strconv.Itoa(t.cpu)
	}
	return str
}

// runnable on cpu: ready, and either unbound or bound to cpu
func (t *thread) runnableOn(cpu int) bool {
	return t.status == THREAD_READY && t.context != nil && (t.cpu == NO_CPU || t.cpu == cpu)
}
