package delivery

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// queueKey is the idempotence key for pending tasks.
type queueKey struct {
	inboxURL   string
	activityID string
}

// queue holds pending tasks in memory. Enqueue is the only synchronous
// touchpoint from the activity-processing side and never blocks on
// network I/O; workers claim eligible tasks and release or retire them
// when the attempt finishes.
type queue struct {
	mu      sync.Mutex
	tasks   map[string]*Task    // by task ID
	pending map[queueKey]string // idempotence key -> task ID
	claimed map[string]bool     // task IDs with an attempt in flight
}

func newQueue() *queue {
	return &queue{
		tasks:   make(map[string]*Task),
		pending: make(map[queueKey]string),
		claimed: make(map[string]bool),
	}
}

// add inserts a task unless an equivalent pending task exists, in which
// case the existing task's ID is returned.
func (q *queue) add(task *Task) (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	key := queueKey{inboxURL: task.InboxURL, activityID: task.ActivityID}
	if existing, found := q.pending[key]; found {
		return existing, false
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	q.tasks[task.ID] = task
	q.pending[key] = task.ID
	return task.ID, true
}

// claimEligible returns up to limit tasks whose NextAttemptAt has
// passed and that have no attempt in flight, marking them claimed. The
// claim is what enforces at most one concurrent delivery per
// (inbox, activity) pair.
func (q *queue) claimEligible(now time.Time, limit int) []*Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	var eligible []*Task
	for id, task := range q.tasks {
		if len(eligible) >= limit {
			break
		}
		if q.claimed[id] {
			continue
		}
		if task.NextAttemptAt.After(now) {
			continue
		}
		q.claimed[id] = true
		eligible = append(eligible, task)
	}
	return eligible
}

// release returns a claimed task to the queue after a failed attempt,
// with its retry bookkeeping already updated.
func (q *queue) release(taskID string) {
	q.mu.Lock()
	delete(q.claimed, taskID)
	q.mu.Unlock()
}

// retire removes a task entirely: delivered, dead-lettered, or
// cancelled.
func (q *queue) retire(taskID string) *Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, found := q.tasks[taskID]
	if !found {
		return nil
	}
	delete(q.tasks, taskID)
	delete(q.claimed, taskID)
	delete(q.pending, queueKey{inboxURL: task.InboxURL, activityID: task.ActivityID})
	return task
}

// size reports how many tasks are pending.
func (q *queue) size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}
