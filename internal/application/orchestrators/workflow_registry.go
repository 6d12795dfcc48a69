package orchestrators

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// WorkflowRegistry holds open workflows in memory and evicts idle ones.
type WorkflowRegistry struct {
	mu        sync.RWMutex
	workflows map[string]*Workflow
	ttl       time.Duration
	now       func() time.Time
}

// NewWorkflowRegistry creates an empty registry.
// PRE: ttl > 0
func NewWorkflowRegistry(ttl time.Duration) *WorkflowRegistry {
	return &WorkflowRegistry{
		workflows: make(map[string]*Workflow),
		ttl:       ttl,
		now:       time.Now,
	}
}

// Put registers a workflow under its ID.
func (r *WorkflowRegistry) Put(w *Workflow) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workflows[w.ID] = w
}

// Get returns the workflow if it exists, belongs to owner and has not expired.
// POST: A workflow of another owner is reported as absent
func (r *WorkflowRegistry) Get(id, owner string) (*Workflow, bool) {
	r.mu.RLock()
	w, ok := r.workflows[id]
	r.mu.RUnlock()
	if !ok || w.Owner != owner {
		return nil, false
	}
	if r.now().Sub(w.LastTouched()) > r.ttl {
		r.mu.Lock()
		delete(r.workflows, id)
		r.mu.Unlock()
		return nil, false
	}
	return w, true
}

// Len returns the number of registered workflows.
func (r *WorkflowRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.workflows)
}

// Sweep removes expired workflows and returns how many were removed.
func (r *WorkflowRegistry) Sweep() int {
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, w := range r.workflows {
		if now.Sub(w.LastTouched()) > r.ttl {
			delete(r.workflows, id)
			removed++
		}
	}
	return removed
}

// StartSweeper sweeps the registry every interval until ctx is done.
func (r *WorkflowRegistry) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := r.Sweep(); n > 0 {
					slog.Info("workflow_registry_swept", "removed", n, "remaining", r.Len())
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}
