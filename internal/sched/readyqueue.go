// internal/sched/readyqueue.go

package sched

import (
	"github.com/emirpasic/gods/trees/redblacktree"

	"pollsched/internal/job"
)

// readyQueue holds the live jobs of one run in selection order.
type readyQueue struct {
	rbt *redblacktree.Tree // ordered by priority key, release time, release order
}

func newReadyQueue() *readyQueue {
	return &readyQueue{rbt: redblacktree.NewWith(cmp)}
}

func (q *readyQueue) push(j *job.Job) {
	q.rbt.Put(keyOf(j), j)
}

// first returns the job with the smallest priority key, the earliest
// release among equal keys, and the earliest released job after that.
func (q *readyQueue) first() *job.Job {
	node := q.rbt.Left()
	if node == nil {
		return nil
	}
	return node.Value.(*job.Job)
}

// firstPeriodic returns the first periodic job in selection order.
func (q *readyQueue) firstPeriodic() *job.Job {
	it := q.rbt.Iterator()
	for it.Next() {
		if j := it.Value().(*job.Job); j.Periodic() {
			return j
		}
	}
	return nil
}

// prune drops every finished job and returns how many were removed.
func (q *readyQueue) prune() int {
	var done []nodeKey
	it := q.rbt.Iterator()
	for it.Next() {
		if it.Value().(*job.Job).Done() {
			done = append(done, it.Key().(nodeKey))
		}
	}
	for _, k := range done {
		q.rbt.Remove(k)
	}
	return len(done)
}

func (q *readyQueue) len() int {
	return q.rbt.Size()
}

// nodeKey is used as a key in the red-black tree.
type nodeKey struct {
	priority int
	release  int
	seq      uint64
}

func keyOf(j *job.Job) nodeKey {
	return nodeKey{priority: j.PriorityKey, release: j.Release, seq: j.Seq}
}

// nodeKey implements the Comparable interface for red-black tree ordering.
func cmp(a, b any) int {
	ka, kb := a.(nodeKey), b.(nodeKey)
	switch {
	case ka.priority < kb.priority:
		return -1
	case ka.priority > kb.priority:
		return 1
	case ka.release < kb.release:
		return -1
	case ka.release > kb.release:
		return 1
	case ka.seq < kb.seq:
		return -1
	case ka.seq > kb.seq:
		return 1
	default:
		return 0
	}
}
