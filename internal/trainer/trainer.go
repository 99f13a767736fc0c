// Package trainer is the human-in-the-loop correction path: fields
// the matcher could not confidently resolve are queued during a
// learning-mode fill, reviewed by the operator, and committed as
// custom mappings the matcher consumes on the next pass.
package trainer

import (
	"sync"

	"formflow/backend/internal/matcher"
	"formflow/backend/internal/models"
)

// Queue holds the session-scoped skipped fields. A field identifier
// is queued at most once per session.
type Queue struct {
	mu    sync.Mutex
	items []models.SkippedField
	seen  map[string]bool
}

func NewQueue() *Queue {
	return &Queue{seen: make(map[string]bool)}
}

// Add queues a skipped field unless its identifier is already queued.
func (q *Queue) Add(f models.SkippedField) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if f.FieldID == "" || q.seen[f.FieldID] {
		return false
	}
	q.seen[f.FieldID] = true
	q.items = append(q.items, f)
	return true
}

// Items returns a copy of the queued fields in arrival order.
func (q *Queue) Items() []models.SkippedField {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]models.SkippedField(nil), q.items...)
}

// Remove drops a resolved field from the queue.
func (q *Queue) Remove(fieldID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.seen, fieldID)
	for i, it := range q.items {
		if it.FieldID == fieldID {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return
		}
	}
}

// Clear empties the queue; called when a new fill pass begins.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = nil
	q.seen = make(map[string]bool)
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Trainer presents skipped fields and writes confirmed corrections
// into the custom mappings.
type Trainer struct {
	queue    *Queue
	mappings matcher.Mappings
	// fill forces one form-fill pass so training can be invoked
	// without a fresh fill having run.
	fill    func() (int, error)
	persist func(matcher.Mappings) error
}

func New(queue *Queue, mappings matcher.Mappings, fill func() (int, error), persist func(matcher.Mappings) error) *Trainer {
	return &Trainer{queue: queue, mappings: mappings, fill: fill, persist: persist}
}

// Run returns the fields awaiting review, running a fill pass first
// when nothing is queued yet.
func (t *Trainer) Run() ([]models.SkippedField, error) {
	if t.queue.Len() == 0 && t.fill != nil {
		if _, err := t.fill(); err != nil {
			return nil, err
		}
	}
	return t.queue.Items(), nil
}

// Commit writes a correction: key is a profile key, the ignore
// sentinel, or empty to delete the mapping. Rescoping between global
// and site-specific removes the stale entry in the other scope. The
// resolved field leaves the session queue even when persistence
// fails; the in-memory mapping is already correct and the failure is
// surfaced to the caller.
func (t *Trainer) Commit(fieldID, context, key string, global bool) error {
	t.mappings.Set(context, fieldID, key, global)
	t.queue.Remove(fieldID)
	if t.persist != nil {
		return t.persist(t.mappings)
	}
	return nil
}
