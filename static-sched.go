package ttsched

import (
	"fmt"
	"sync"

	"github.com/markphelps/optional"
)

const (
	DEFAULT_TIME_SLICE = 10 // ticks a task gets on each (re-)admission
)

type ssProcInfo struct {
	pushed    bool // pushed at least once
	present   bool // queued in either the pending or the active list
	restSlice uint // ticks left before forced preemption
}

// StaticScheduler is a time-sliced round-robin policy.
//
// Tasks wait in a pending list (most recently pushed at the front). When the
// active list runs dry, the pending list is drained from the back into the
// active list until the drained slices add up to more than the budget, and
// tasks are then dispatched front to back. The dispatch order of a round
// depends only on push history.
type StaticScheduler struct {
	mu      sync.Mutex
	budget  uint
	slice   uint
	pending *tidQueue
	active  *tidQueue
	infos   []ssProcInfo
	log     *Logger
}

func NewStaticScheduler(budget uint, opts ...Option) *StaticScheduler {
	o := resolveOptions(opts)
	slice := o.slice
	if slice == 0 {
		slice = DEFAULT_TIME_SLICE
	}
	return &StaticScheduler{
		budget:  budget,
		slice:   slice,
		pending: newTidQueue(),
		active:  newTidQueue(),
		infos:   make([]ssProcInfo, 0),
		log:     o.log,
	}
}

func (ss *StaticScheduler) String() string {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return fmt.Sprintf("static scheduler: budget %v, slice %v, pending %v, active %v", ss.budget, ss.slice, ss.pending, ss.active)
}

// Push admits tid with the configured slice, DEFAULT_TIME_SLICE unless set
// with WithTimeSlice.
func (ss *StaticScheduler) Push(tid Tid) {
	ss.PushSlice(tid, ss.slice)
}

// PushSlice admits tid with the given slice. A task that is already queued is
// moved to the front of the pending list with the new slice.
func (ss *StaticScheduler) PushSlice(tid Tid, slice uint) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.push(tid, slice)
}

func (ss *StaticScheduler) Pop(cpu int) optional.Int {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.pop()
}

func (ss *StaticScheduler) Tick(current Tid) bool {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.tick(current)
}

// SetPriority has no effect on this policy.
func (ss *StaticScheduler) SetPriority(tid Tid, priority uint8) {}

// Len is the number of queued tasks.
func (ss *StaticScheduler) Len() int {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.pending.qlen() + ss.active.qlen()
}

// Slice returns the remaining slice of tid.
func (ss *StaticScheduler) Slice(tid Tid) uint {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if tid < 0 || int(tid) >= len(ss.infos) {
		return 0
	}
	return ss.infos[tid].restSlice
}

func (ss *StaticScheduler) expand(tid Tid) {
	if tid < 0 {
		panic(fmt.Sprintf("static scheduler: negative tid %d", tid))
	}
	for len(ss.infos) <= int(tid) {
		ss.infos = append(ss.infos, ssProcInfo{})
	}
}

func (ss *StaticScheduler) push(tid Tid, slice uint) {
	ss.expand(tid)
	info := &ss.infos[tid]
	if info.present {
		if !ss.pending.remove(tid) {
			ss.active.remove(tid)
		}
	}
	info.pushed = true
	info.present = true
	info.restSlice = slice
	ss.pending.pushFront(tid)
	ss.log.Trace().Int("tid", int(tid)).Uint64("slice", uint64(slice)).Log("push")
}

// regenerate refills the active list from the back of the pending list
func (ss *StaticScheduler) regenerate() {
	counter := uint(0)
	for counter <= ss.budget && ss.pending.qlen() > 0 {
		tid, _ := ss.pending.popBack()
		counter += ss.infos[tid].restSlice
		ss.active.enq(tid)
	}
	ss.log.Debug().
		Str("active", ss.active.String()).
		Uint64("slices", uint64(counter)).
		Uint64("budget", uint64(ss.budget)).
		Log("new task list")
}

func (ss *StaticScheduler) pop() optional.Int {
	if ss.active.qlen() == 0 {
		ss.regenerate()
	}
	tid, ok := ss.active.deq()
	if !ok {
		return optional.Int{}
	}
	ss.infos[tid].present = false
	return someTid(tid)
}

func (ss *StaticScheduler) tick(current Tid) bool {
	if current < 0 || int(current) >= len(ss.infos) || !ss.infos[current].pushed {
		panic(fmt.Sprintf("static scheduler: tick on unknown task %d", current))
	}
	info := &ss.infos[current]
	if info.present {
		panic(fmt.Sprintf("static scheduler: tick on queued task %d", current))
	}

	if info.restSlice > 0 {
		info.restSlice -= 1
	}
	if info.restSlice > 0 {
		return false
	}
	// slice used up, back of the line with a fresh one
	ss.push(current, ss.slice)
	return true
}
