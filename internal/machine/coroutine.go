package machine

import (
	"fmt"
	"runtime"

	"ttsched"
)

// Coroutine is an execution context backed by a goroutine. Only the context
// that currently owns a cpu is running; every other one is parked.
type Coroutine struct {
	world *World
	wake  chan *Machine // the cpu it is resumed on
	m     *Machine
}

func newCoroutine(w *World) *Coroutine {
	return &Coroutine{
		world: w,
		wake:  make(chan *Machine, 1),
	}
}

// SwitchTo resumes target on the caller's cpu and parks the caller until
// something switches back to it.
func (c *Coroutine) SwitchTo(target ttsched.Context) {
	t, ok := target.(*Coroutine)
	if !ok {
		panic(fmt.Sprintf("machine: cannot switch to %T", target))
	}
	if c.m == nil {
		panic("machine: switch from a context that is not running")
	}
	t.wake <- c.m
	c.park()
}

func (c *Coroutine) park() {
	select {
	case m := <-c.wake:
		c.m = m
	case <-c.world.halted:
		runtime.Goexit()
	}
}

// Machine is the cpu the context is running on, nil before it first runs.
func (c *Coroutine) Machine() *Machine {
	return c.m
}

// Step burns one hardware tick on the cpu running the context.
func (c *Coroutine) Step() {
	c.m.Step()
}

// Work burns n hardware ticks.
func (c *Coroutine) Work(n uint64) {
	for i := uint64(0); i < n; i++ {
		c.m.Step()
	}
}

var _ ttsched.Context = (*Coroutine)(nil)
