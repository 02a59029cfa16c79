// Package trace records what every processor dispatched and when, and
// summarizes it per thread.
package trace

import (
	"context"
	"fmt"
	"sync"

	"ttsched"
)

type Kind uint8

const (
	KIND_DISPATCH Kind = iota
	KIND_STOP
	KIND_PREEMPT
	KIND_IDLE
)

func (k Kind) String() string {
	switch k {
	case KIND_DISPATCH:
		return "dispatch"
	case KIND_STOP:
		return "stop"
	case KIND_PREEMPT:
		return "preempt"
	case KIND_IDLE:
		return "idle"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

func parseKind(s string) (Kind, error) {
	for k := KIND_DISPATCH; k <= KIND_IDLE; k++ {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown event kind %q", s)
}

// NO_TID marks events that concern no thread.
const NO_TID = -1

// Event is one processor decision, stamped with the hardware tick of the cpu
// it happened on.
type Event struct {
	Tick uint64
	CPU  int
	Kind Kind
	Tid  int
}

func (e Event) String() string {
	return fmt.Sprintf("%d cpu %d %v %d", e.Tick, e.CPU, e.Kind, e.Tid)
}

// Sink persists recorded events.
type Sink interface {
	Write(ctx context.Context, events []Event) error
	Close() error
}

// Recorder is a ttsched.Observer that keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	clock  func(cpu int) uint64
	events []Event
}

// NewRecorder stamps events with clock, the hardware tick count of a cpu.
func NewRecorder(clock func(cpu int) uint64) *Recorder {
	return &Recorder{
		clock: clock,
	}
}

func (r *Recorder) record(cpu int, kind Kind, tid int) {
	e := Event{Tick: r.clock(cpu), CPU: cpu, Kind: kind, Tid: tid}
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *Recorder) Dispatch(cpu int, tid ttsched.Tid) {
	r.record(cpu, KIND_DISPATCH, int(tid))
}

func (r *Recorder) Stop(cpu int, tid ttsched.Tid) {
	r.record(cpu, KIND_STOP, int(tid))
}

func (r *Recorder) Preempt(cpu int, tid ttsched.Tid) {
	r.record(cpu, KIND_PREEMPT, int(tid))
}

func (r *Recorder) Idle(cpu int) {
	r.record(cpu, KIND_IDLE, NO_TID)
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// Flush writes everything recorded so far to sink.
func (r *Recorder) Flush(ctx context.Context, sink Sink) error {
	events := r.Events()
	if len(events) == 0 {
		return nil
	}
	if err := sink.Write(ctx, events); err != nil {
		return fmt.Errorf("flush %d events: %w", len(events), err)
	}
	return nil
}

var _ ttsched.Observer = (*Recorder)(nil)
