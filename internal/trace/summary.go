package trace

import (
	"fmt"
	"strings"

	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ThreadStats is what one thread got out of the run.
type ThreadStats struct {
	Tid         int     `json:"tid"`
	Dispatches  int     `json:"dispatches"`
	Preemptions int     `json:"preemptions"`
	RunTicks    uint64  `json:"run_ticks"`
	Share       float64 `json:"share"`         // of all busy ticks
	MeanPeriod  float64 `json:"mean_period"`   // ticks between dispatches
	PeriodSDev  float64 `json:"period_stddev"` // jitter of the above
}

type CPUStats struct {
	CPU         int     `json:"cpu"`
	BusyTicks   uint64  `json:"busy_ticks"`
	IdleEvents  int     `json:"idle_events"`
	Utilization float64 `json:"utilization"`
}

type Summary struct {
	Ticks   uint64        `json:"ticks"` // per cpu
	Events  int           `json:"events"`
	Threads []ThreadStats `json:"threads"`
	CPUs    []CPUStats    `json:"cpus"`
}

// Summarize folds an event log into per-thread and per-cpu statistics.
// ticks is how long each cpu ran; a thread still running at the end is
// charged up to it.
func Summarize(events []Event, ticks uint64) Summary {
	type running struct {
		tid   int
		since uint64
	}
	threads := map[int]*ThreadStats{}
	dispatchedAt := map[int][]float64{}
	cpus := map[int]*CPUStats{}
	onCPU := map[int]*running{}

	thread := func(tid int) *ThreadStats {
		ts, ok := threads[tid]
		if !ok {
			ts = &ThreadStats{Tid: tid}
			threads[tid] = ts
		}
		return ts
	}
	cpu := func(id int) *CPUStats {
		cs, ok := cpus[id]
		if !ok {
			cs = &CPUStats{CPU: id}
			cpus[id] = cs
		}
		return cs
	}
	charge := func(id int, r *running, now uint64) {
		if now < r.since {
			return
		}
		thread(r.tid).RunTicks += now - r.since
		cpu(id).BusyTicks += now - r.since
	}

	for _, e := range events {
		cs := cpu(e.CPU)
		switch e.Kind {
		case KIND_DISPATCH:
			ts := thread(e.Tid)
			ts.Dispatches += 1
			dispatchedAt[e.Tid] = append(dispatchedAt[e.Tid], float64(e.Tick))
			onCPU[e.CPU] = &running{tid: e.Tid, since: e.Tick}
		case KIND_STOP:
			if r := onCPU[e.CPU]; r != nil && r.tid == e.Tid {
				charge(e.CPU, r, e.Tick)
				delete(onCPU, e.CPU)
			}
		case KIND_PREEMPT:
			thread(e.Tid).Preemptions += 1
		case KIND_IDLE:
			cs.IdleEvents += 1
		}
	}
	for id, r := range onCPU {
		charge(id, r, ticks)
	}

	s := Summary{Ticks: ticks, Events: len(events)}

	busy := make([]float64, 0, len(threads))
	for _, ts := range threads {
		busy = append(busy, float64(ts.RunTicks))
	}
	total := floats.Sum(busy)
	for tid, ts := range threads {
		if total > 0 {
			ts.Share = float64(ts.RunTicks) / total
		}
		if at := dispatchedAt[tid]; len(at) > 1 {
			periods := make([]float64, len(at)-1)
			floats.SubTo(periods, at[1:], at[:len(at)-1])
			ts.MeanPeriod, ts.PeriodSDev = stat.MeanStdDev(periods, nil)
			if len(periods) == 1 {
				// a single sample has no spread
				ts.PeriodSDev = 0
			}
		}
		s.Threads = append(s.Threads, *ts)
	}
	slices.SortFunc(s.Threads, func(a, b ThreadStats) int {
		return a.Tid - b.Tid
	})

	for _, cs := range cpus {
		if ticks > 0 {
			cs.Utilization = float64(cs.BusyTicks) / float64(ticks)
		}
		s.CPUs = append(s.CPUs, *cs)
	}
	slices.SortFunc(s.CPUs, func(a, b CPUStats) int {
		return a.CPU - b.CPU
	})
	return s
}

func (s Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d ticks per cpu, %d events\n", s.Ticks, s.Events)
	for _, cs := range s.CPUs {
		fmt.Fprintf(&b, "cpu %d: busy %d, idle %d times, utilization %.2f\n",
			cs.CPU, cs.BusyTicks, cs.IdleEvents, cs.Utilization)
	}
	for _, ts := range s.Threads {
		fmt.Fprintf(&b, "tid %d: dispatched %d, preempted %d, ran %d (%.2f), period %.2f +- %.2f\n",
			ts.Tid, ts.Dispatches, ts.Preemptions, ts.RunTicks, ts.Share, ts.MeanPeriod, ts.PeriodSDev)
	}
	return b.String()
}
