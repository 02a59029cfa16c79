package ttsched

import "fmt"

// next activation of reservation infos[index]
type activation struct {
	at    Tms
	index int
}

func (a activation) String() string {
	return fmt.Sprintf("%v@%v", a.index, a.at)
}

// min-heap of activations, for container/heap
type timeTable []activation

func (h timeTable) Len() int { return len(h) }
func (h timeTable) Less(i, j int) bool {
	if h[i].at != h[j].at {
		return h[i].at < h[j].at
	}
	return h[i].index < h[j].index
}
func (h timeTable) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *timeTable) Push(x any)   { *h = append(*h, x.(activation)) }

func (h *timeTable) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[0 : n-1]
	return x
}

// peek returns the earliest activation
func (h timeTable) peek() (activation, bool) {
	if len(h) == 0 {
		return activation{}, false
	}
	return h[0], true
}
