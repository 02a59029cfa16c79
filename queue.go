package ttsched

import (
	"strconv"
	"strings"
)

// ordered list of task ids, the front is index 0
type tidQueue struct {
	q []Tid
}

func newTidQueue() *tidQueue {
	return &tidQueue{q: make([]Tid, 0)}
}

func (q *tidQueue) String() string {
	strs := make([]string, 0, len(q.q))
	for _, tid := range q.q {
		strs = append(strs, strconv.Itoa(int(tid)))
	}
	return "[" + strings.Join(strs, " ") + "]"
}

// enq appends at the back
func (q *tidQueue) enq(tid Tid) {
	q.q = append(q.q, tid)
}

// pushFront inserts at the front
func (q *tidQueue) pushFront(tid Tid) {
	q.q = append(q.q, 0)
	copy(q.q[1:], q.q)
	q.q[0] = tid
}

// deq removes from the front
func (q *tidQueue) deq() (Tid, bool) {
	if len(q.q) == 0 {
		return 0, false
	}
	tid := q.q[0]
	q.q = q.q[1:]
	return tid, true
}

// popBack removes from the back
func (q *tidQueue) popBack() (Tid, bool) {
	if len(q.q) == 0 {
		return 0, false
	}
	tid := q.q[len(q.q)-1]
	q.q = q.q[:len(q.q)-1]
	return tid, true
}

// remove drops the first occurrence of tid, reporting whether it was found
func (q *tidQueue) remove(tid Tid) bool {
	for i, t := range q.q {
		if t == tid {
			q.q = append(q.q[:i], q.q[i+1:]...)
			return true
		}
	}
	return false
}

func (q *tidQueue) qlen() int {
	return len(q.q)
}

func (q *tidQueue) getQ() []Tid {
	return q.q
}
