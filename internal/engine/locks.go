package engine

import "sync"

// projectLocks serializes read-check-write sequences per project. Transitions
// and edge mutations both read project-wide state (the edge set, comment
// trail) before writing, so two concurrent callers must not interleave.
type projectLocks struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

func newProjectLocks() *projectLocks {
	return &projectLocks{m: map[string]*sync.Mutex{}}
}

func (l *projectLocks) lock(projectID string) func() {
	l.mu.Lock()
	pm, ok := l.m[projectID]
	if !ok {
		pm = &sync.Mutex{}
		l.m[projectID] = pm
	}
	l.mu.Unlock()
	pm.Lock()
	return pm.Unlock
}
