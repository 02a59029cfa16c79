package ttsched

import (
	"container/heap"
	"errors"
	"fmt"
	"sync"

	"github.com/markphelps/optional"
)

var (
	ErrZeroCycle          = errors.New("reservation cycle is zero")
	ErrWindowExceedsCycle = errors.New("reservation window does not fit in its cycle")
	ErrConflict           = errors.New("reservation conflicts with an admitted reservation")
)

// Reservation is a periodic claim on the processor: Tid may run for up to
// MaxTime ms starting Offset ms into every Cycle ms period.
type Reservation struct {
	Tid     Tid
	Cycle   Tms
	Offset  Tms
	MaxTime Tms
}

func (r Reservation) String() string {
	return fmt.Sprintf("{tid %d cycle %v offset %v max %v}", r.Tid, r.Cycle, r.Offset, r.MaxTime)
}

func within(x, lo, hi Tms) bool {
	return lo <= x && x <= hi
}

// conflicts reports whether o collides with r. The window of the shorter
// cycle is replicated across one period of the longer one, and a collision is
// either endpoint of a replica landing inside the longer-cycle window.
// A long window strictly inside a replica is not detected.
func (r Reservation) conflicts(o Reservation) bool {
	small, large := o, r
	if r.Cycle < o.Cycle {
		small, large = r, o
	}
	lo, hi := small.Offset, small.Offset+small.MaxTime
	begin, end := large.Offset, large.Offset+large.MaxTime
	for k := Tms(0); k < large.Cycle; k += small.Cycle {
		if within(lo+k, begin, end) || within(hi+k, begin, end) {
			return true
		}
	}
	return false
}

// nextActivation is the first instant after now whose phase in cycle is offset
func nextActivation(now, cycle, offset Tms) Tms {
	at := now - now%cycle + offset
	if at <= now {
		at += cycle
	}
	return at
}

// TTScheduler is a time-triggered (TDMA style) policy. Reservations are only
// admitted when their windows never overlap, and each is dispatched exactly at
// its activation instant on a logical millisecond clock driven by hardware
// ticks.
type TTScheduler struct {
	mu           sync.Mutex
	infos        []Reservation
	timeTable    timeTable
	time         Tms
	ticksPerMsec uint
	tickCounter  uint
	current      Tid
	timeSlice    Tms // 0 when no window is open
	log          *Logger
}

func NewTTScheduler(ticksPerMsec uint, opts ...Option) *TTScheduler {
	if ticksPerMsec == 0 {
		panic("tt scheduler: ticks per msec must be positive")
	}
	o := resolveOptions(opts)
	return &TTScheduler{
		infos:        make([]Reservation, 0),
		timeTable:    make(timeTable, 0),
		ticksPerMsec: ticksPerMsec,
		log:          o.log,
	}
}

func (tt *TTScheduler) String() string {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	return fmt.Sprintf("tt scheduler: time %v, time slice %v, table %v", tt.time, tt.timeSlice, tt.timeTable)
}

func (tt *TTScheduler) Admit(tid Tid, cycle, offset, maxTime Tms) bool {
	return tt.AdmitErr(tid, cycle, offset, maxTime) == nil
}

func (tt *TTScheduler) AdmitErr(tid Tid, cycle, offset, maxTime Tms) error {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	err := tt.admit(Reservation{Tid: tid, Cycle: cycle, Offset: offset, MaxTime: maxTime})
	if err != nil {
		tt.log.Info().
			Int("tid", int(tid)).
			Uint64("cycle", uint64(cycle)).
			Uint64("offset", uint64(offset)).
			Uint64("max_time", uint64(maxTime)).
			Err(err).
			Log("reservation rejected")
	}
	return err
}

func (tt *TTScheduler) Pop() optional.Int {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	return tt.pop()
}

func (tt *TTScheduler) Tick() bool {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	return tt.tick()
}

func (tt *TTScheduler) Working() bool {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	return tt.timeSlice > 0
}

func (tt *TTScheduler) Current() optional.Int {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	if tt.timeSlice == 0 {
		return optional.Int{}
	}
	return someTid(tt.current)
}

func (tt *TTScheduler) Stop() {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	tt.timeSlice = 0
}

// Time is the logical clock in milliseconds.
func (tt *TTScheduler) Time() Tms {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	return tt.time
}

// TimeSlice is what is left of the open window.
func (tt *TTScheduler) TimeSlice() Tms {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	return tt.timeSlice
}

// NextActivation is the earliest pending activation instant.
func (tt *TTScheduler) NextActivation() (Tms, bool) {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	a, ok := tt.timeTable.peek()
	return a.at, ok
}

// Reservations returns a copy of the admitted reservations.
func (tt *TTScheduler) Reservations() []Reservation {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	return append([]Reservation(nil), tt.infos...)
}

func (tt *TTScheduler) admit(r Reservation) error {
	if r.Cycle == 0 {
		return ErrZeroCycle
	}
	if r.Offset > r.Cycle || r.MaxTime > r.Cycle-r.Offset {
		return fmt.Errorf("%w: offset %v + max time %v > cycle %v", ErrWindowExceedsCycle, r.Offset, r.MaxTime, r.Cycle)
	}
	for _, info := range tt.infos {
		if info.conflicts(r) {
			return fmt.Errorf("%w: %v", ErrConflict, info)
		}
	}

	at := nextActivation(tt.time, r.Cycle, r.Offset)
	index := len(tt.infos)
	tt.infos = append(tt.infos, r)
	heap.Push(&tt.timeTable, activation{at: at, index: index})

	tt.log.Info().
		Int("tid", int(r.Tid)).
		Uint64("cycle", uint64(r.Cycle)).
		Uint64("offset", uint64(r.Offset)).
		Uint64("max_time", uint64(r.MaxTime)).
		Uint64("now", uint64(tt.time)).
		Uint64("next", uint64(at)).
		Log("reservation admitted")
	return nil
}

func (tt *TTScheduler) pop() optional.Int {
	next, ok := tt.timeTable.peek()
	if !ok || next.at != tt.time {
		return optional.Int{}
	}
	a := heap.Pop(&tt.timeTable).(activation)
	if a.at != tt.time {
		panic(fmt.Sprintf("tt scheduler: popped activation %v at time %v", a, tt.time))
	}
	info := tt.infos[a.index]
	tt.current = info.Tid
	tt.timeSlice = info.MaxTime
	heap.Push(&tt.timeTable, activation{at: a.at + info.Cycle, index: a.index})

	tt.log.Debug().
		Int("tid", int(info.Tid)).
		Uint64("time", uint64(tt.time)).
		Uint64("time_slice", uint64(tt.timeSlice)).
		Log("activation")
	return someTid(info.Tid)
}

func (tt *TTScheduler) tick() bool {
	tt.tickCounter += 1
	if tt.tickCounter < tt.ticksPerMsec {
		return false
	}
	tt.tickCounter = 0
	tt.time += 1
	tt.skipMissed()

	if tt.timeSlice > 0 {
		// a window is open, burn its budget
		tt.timeSlice -= 1
		return false
	}
	next, ok := tt.timeTable.peek()
	return ok && next.at == tt.time
}

// skipMissed rolls activations that are already in the past to their next
// period; a missed window is not run late
func (tt *TTScheduler) skipMissed() {
	for {
		next, ok := tt.timeTable.peek()
		if !ok || next.at >= tt.time {
			return
		}
		info := tt.infos[next.index]
		periods := (tt.time - next.at + info.Cycle - 1) / info.Cycle
		at := next.at + periods*info.Cycle
		tt.timeTable[0].at = at
		heap.Fix(&tt.timeTable, 0)

		tt.log.Warning().
			Int("tid", int(info.Tid)).
			Uint64("missed", uint64(next.at)).
			Uint64("next", uint64(at)).
			Log("activation missed")
	}
}
