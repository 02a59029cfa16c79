package ttsched

import (
	"fmt"

	"github.com/markphelps/optional"
	"golang.org/x/exp/constraints"
)

// dense task identifier, used directly as an index into per-task tables
type Tid int

// logical milliseconds
type Tms uint64

func (t Tms) String() string {
	return fmt.Sprintf("%dms", uint64(t))
}

// interrupt mask as returned by the interrupt controller
type IntMask uint8

const (
	INT_DISABLED IntMask = 0
	INT_ENABLED  IntMask = 1
)

func (m IntMask) String() string {
	if m == INT_ENABLED {
		return "enabled"
	}
	return "disabled"
}

func someTid(tid Tid) optional.Int {
	return optional.NewInt(int(tid))
}

// tidOf unpacks an optional tid
func tidOf(o optional.Int) (Tid, bool) {
	v, err := o.Get()
	if err != nil {
		return 0, false
	}
	return Tid(v), true
}

type Number interface {
	constraints.Integer | constraints.Float
}

func avg[T Number](list []T) float64 {
	if len(list) == 0 {
		return 0
	}

	var sum T
	for _, val := range list {
		sum += val
	}
	return float64(sum) / float64(len(list))
}

func gcd[T constraints.Integer](a, b T) T {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func lcm[T constraints.Integer](a, b T) T {
	if a == 0 || b == 0 {
		return 0
	}
	return a / gcd(a, b) * b
}

// Hyperperiod returns the least common multiple of the reservation cycles,
// the span after which the whole time-triggered schedule repeats.
func Hyperperiod(rs []Reservation) Tms {
	if len(rs) == 0 {
		return 0
	}
	h := rs[0].Cycle
	for _, r := range rs[1:] {
		h = lcm(h, r.Cycle)
	}
	return h
}

// MeanCycle is the average reservation period, reported by the admission check.
func MeanCycle(rs []Reservation) float64 {
	cycles := make([]Tms, 0, len(rs))
	for _, r := range rs {
		cycles = append(cycles, r.Cycle)
	}
	return avg(cycles)
}
