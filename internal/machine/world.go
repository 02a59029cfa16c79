package machine

import (
	"sync"
	"sync/atomic"
)

// World is a simulated board: a set of cpus sharing a halt line. Each cpu
// stops after limit hardware ticks of its own (0 runs forever), and the
// world halts once all of them have.
type World struct {
	machines []*Machine
	limit    uint64
	finished atomic.Int32
	halted   chan struct{}
	haltOnce sync.Once
	wg       sync.WaitGroup
}

func NewWorld(numCPUs int, limit uint64) *World {
	if numCPUs <= 0 {
		panic("machine: need at least one cpu")
	}
	w := &World{
		machines: make([]*Machine, 0, numCPUs),
		limit:    limit,
		halted:   make(chan struct{}),
	}
	for i := 0; i < numCPUs; i++ {
		w.machines = append(w.machines, newMachine(i, w))
	}
	return w
}

func (w *World) String() string {
	str := "machines: \n"
	for _, m := range w.machines {
		str += "   " + m.String() + "\n"
	}
	return str
}

func (w *World) NumCPUs() int {
	return len(w.machines)
}

func (w *World) CPU(i int) *Machine {
	return w.machines[i]
}

func (w *World) Machines() []*Machine {
	return w.machines
}

func (w *World) Limit() uint64 {
	return w.limit
}

// Spawn creates a parked context that runs body the first time it is
// switched to, with interrupts enabled. body must never return: a finished
// thread hands the cpu back for good instead.
func (w *World) Spawn(body func(c *Coroutine)) *Coroutine {
	c := newCoroutine(w)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		c.park()
		// thread entry, like returning from the first trap
		c.m.enabled = true
		body(c)
		panic("machine: thread body returned")
	}()
	return c
}

func (w *World) finish() {
	if int(w.finished.Add(1)) == len(w.machines) {
		w.Halt()
	}
}

// Halt stops the world; every parked context exits.
func (w *World) Halt() {
	w.haltOnce.Do(func() {
		close(w.halted)
	})
}

func (w *World) Halted() <-chan struct{} {
	return w.halted
}

// Wait blocks until the world has halted and every context has exited.
func (w *World) Wait() {
	<-w.halted
	w.wg.Wait()
}
