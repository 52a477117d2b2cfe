// Package tasks implements the Scaler Core's task scheduler of spec
// §4.9: a single-threaded queue keyed by due time, re-inserting each
// task at now + its configured delay after it runs. Grounded on
// job-manager's periodic-reconcile cadence and on robfig/cron/v3 for
// the cron-expression cadence variant some tasks want (e.g. LdapSync
// on a nightly schedule) alongside the plain fixed-delay ones.
package tasks

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/thorium-sh/thorium/pkg/log"
)

// Kind enumerates the task table of spec §4.9.
type Kind string

const (
	ZombieJobs       Kind = "ZombieJobs"
	LdapSync         Kind = "LdapSync"
	CacheReload      Kind = "CacheReload"
	Resources        Kind = "Resources"
	UpdateRuntimes   Kind = "UpdateRuntimes"
	Cleanup          Kind = "Cleanup"
	DecreaseFairShare Kind = "DecreaseFairShare"
)

// Action is the work a task performs when its due time arrives.
type Action func(ctx context.Context) error

// entry is one item of the due-time min-heap.
type entry struct {
	due    time.Time
	kind   Kind
	action Action
	delay  time.Duration
	index  int
}

type dueHeap []*entry

func (h dueHeap) Len() int            { return len(h) }
func (h dueHeap) Less(i, j int) bool  { return h[i].due.Before(h[j].due) }
func (h dueHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *dueHeap) Push(x interface{}) { e := x.(*entry); e.index = len(*h); *h = append(*h, e) }
func (h *dueHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// Scheduler runs the single-threaded due-time queue: tasks execute one
// at a time on Run's goroutine. The queue is guarded by a mutex, so
// Schedule may be called from other goroutines while Run is running.
type Scheduler struct {
	mu   sync.Mutex
	heap dueHeap
	wake chan struct{}
	cron *cron.Cron
}

func New() *Scheduler {
	return &Scheduler{wake: make(chan struct{}, 1), cron: cron.New()}
}

// Schedule registers a task with a fixed re-insertion delay (spec §4.9
// "a task that completes is re-inserted at now + delay(task)").
func (s *Scheduler) Schedule(kind Kind, delay time.Duration, action Action) {
	s.mu.Lock()
	heap.Push(&s.heap, &entry{due: time.Now().UTC().Add(delay), kind: kind, action: action, delay: delay})
	s.mu.Unlock()
	s.nudge()
}

// ScheduleCron registers a task on a cron expression instead of a
// fixed delay, for cadences like "LdapSync nightly at 02:00".
func (s *Scheduler) ScheduleCron(kind Kind, expr string, action Action) error {
	_, err := s.cron.AddFunc(expr, func() {
		logTask(kind, action)
	})
	return err
}

func logTask(kind Kind, action Action) {
	l := log.Component("scaler-tasks")
	if err := action(context.Background()); err != nil {
		l.Error(err, "task failed", "task", string(kind))
	}
}

func (s *Scheduler) nudge() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Run drives the heap until ctx is cancelled, executing each task as
// its due time arrives and re-inserting it at now + delay.
func (s *Scheduler) Run(ctx context.Context) {
	s.cron.Start()
	defer s.cron.Stop()
	l := log.Component("scaler-tasks")
	for {
		s.mu.Lock()
		var wait time.Duration
		if len(s.heap) == 0 {
			wait = time.Hour
		} else {
			wait = time.Until(s.heap[0].due)
		}
		s.mu.Unlock()
		if wait < 0 {
			wait = 0
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-s.wake:
			timer.Stop()
		case <-timer.C:
		}

		s.mu.Lock()
		var due []*entry
		now := time.Now().UTC()
		for len(s.heap) > 0 && !s.heap[0].due.After(now) {
			due = append(due, heap.Pop(&s.heap).(*entry))
		}
		s.mu.Unlock()

		for _, e := range due {
			if err := e.action(ctx); err != nil {
				l.Error(err, "task failed", "task", string(e.kind))
			}
			s.mu.Lock()
			heap.Push(&s.heap, &entry{due: time.Now().UTC().Add(e.delay), kind: e.kind, action: e.action, delay: e.delay})
			s.mu.Unlock()
		}
	}
}
