// Package machine simulates the hardware under a ttsched kernel: per-cpu
// interrupt controllers driven by a hardware tick counter, and execution
// contexts that hand control to each other like a register save/restore
// context switch.
//
// Everything is deterministic on a single cpu: exactly one goroutine per cpu
// is runnable at any time, and the timer interrupt handler runs inline on the
// goroutine of the interrupted context.
package machine

import (
	"fmt"
	"runtime"

	"ttsched"
)

// Machine is one simulated cpu.
type Machine struct {
	cpu     int
	world   *World
	enabled bool   // interrupt enable bit
	pending bool   // timer fired while masked
	ticks   uint64 // hardware ticks elapsed on this cpu
	handler func()
}

func newMachine(cpu int, w *World) *Machine {
	return &Machine{
		cpu:   cpu,
		world: w,
	}
}

func (m *Machine) String() string {
	return fmt.Sprintf("cpu: %d, ticks: %d, interrupts: %v", m.cpu, m.ticks, m.mask())
}

func (m *Machine) CPU() int {
	return m.cpu
}

// Now is the number of hardware ticks elapsed on this cpu.
func (m *Machine) Now() uint64 {
	return m.ticks
}

// OnTimer installs the timer interrupt handler.
func (m *Machine) OnTimer(h func()) {
	m.handler = h
}

func (m *Machine) mask() ttsched.IntMask {
	if m.enabled {
		return ttsched.INT_ENABLED
	}
	return ttsched.INT_DISABLED
}

func (m *Machine) DisableAndStore() ttsched.IntMask {
	old := m.mask()
	m.enabled = false
	return old
}

func (m *Machine) Restore(mask ttsched.IntMask) {
	m.enabled = mask == ttsched.INT_ENABLED
	if m.enabled && m.pending {
		m.interrupt()
	}
}

// EnableAndWait unmasks interrupts and sleeps until the next timer
// interrupt has been handled. Interrupts stay enabled on return.
func (m *Machine) EnableAndWait() {
	m.checkHalt()
	m.enabled = true
	if !m.pending {
		m.advance()
	}
	m.interrupt()
}

// Step burns one hardware tick of work in the running context. The timer
// interrupt is taken right away when enabled, and held pending otherwise.
func (m *Machine) Step() {
	m.checkHalt()
	m.advance()
	if m.enabled {
		m.interrupt()
	}
}

func (m *Machine) advance() {
	m.ticks += 1
	m.pending = true
	if m.world.limit > 0 && m.ticks >= m.world.limit {
		// this cpu is done; its contexts stay parked until the world halts
		m.world.finish()
		runtime.Goexit()
	}
}

// interrupt runs the timer handler the way a trap does: masked on entry,
// unmasked again on return. The handler may switch contexts; the trap
// returns on whatever cpu the interrupted context is resumed on.
func (m *Machine) interrupt() {
	m.pending = false
	m.enabled = false
	if m.handler != nil {
		m.handler()
	}
	m.enabled = true
}

func (m *Machine) checkHalt() {
	select {
	case <-m.world.halted:
		runtime.Goexit()
	default:
	}
}

// Boot starts the cpu: run is called on a fresh goroutine with the context
// of that goroutine, which becomes the cpu's dispatch loop.
func (m *Machine) Boot(run func(loop *Coroutine)) {
	loop := newCoroutine(m.world)
	loop.m = m
	m.world.wg.Add(1)
	go func() {
		defer m.world.wg.Done()
		run(loop)
	}()
}

var _ ttsched.Interrupts = (*Machine)(nil)
