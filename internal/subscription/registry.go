// Package subscription tracks which connections want change notifications
// for which tree paths, and fans out a change to the right set of
// subscribers while excluding whichever connection caused the change.
package subscription

import (
	"sync"

	"github.com/emberplus/emberd/internal/ember"
)

// Subscriber is anything that can receive a tree change notification.
// Connections implement this directly; tests use a recording fake.
type Subscriber interface {
	ID() string
	QueueMessage(root *ember.Root)
	// Alive reports whether the subscriber is still usable. A dead
	// subscriber is pruned the next time its path is iterated.
	Alive() bool
}

// Registry maps tree paths to the set of subscribers watching them.
type Registry struct {
	mu   sync.RWMutex
	byPath map[string]map[string]Subscriber
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{byPath: make(map[string]map[string]Subscriber)}
}

// Subscribe registers sub as watching path. Subscribing twice to the
// same path is a no-op (the subscriber set is keyed by ID).
func (r *Registry) Subscribe(path string, sub Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := r.byPath[path]
	if set == nil {
		set = make(map[string]Subscriber)
		r.byPath[path] = set
	}
	set[sub.ID()] = sub
}

// Unsubscribe removes sub from path's subscriber set.
func (r *Registry) Unsubscribe(path string, sub Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := r.byPath[path]
	if set == nil {
		return
	}
	delete(set, sub.ID())
	if len(set) == 0 {
		delete(r.byPath, path)
	}
}

// UnsubscribeAll removes sub from every path it watches. Called when a
// connection disconnects.
func (r *Registry) UnsubscribeAll(sub Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for path, set := range r.byPath {
		delete(set, sub.ID())
		if len(set) == 0 {
			delete(r.byPath, path)
		}
	}
}

// Count returns the number of subscribers registered for path. Dead
// subscribers are counted until Notify prunes them.
func (r *Registry) Count(path string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byPath[path])
}

// PathCount returns the number of distinct paths with at least one
// subscriber.
func (r *Registry) PathCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byPath)
}

// Notify delivers root to every subscriber of path except origin (which
// may be nil when the change has no originating connection, e.g. a
// config reload). Subscribers found dead during iteration are pruned.
func (r *Registry) Notify(path string, root *ember.Root, origin Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := r.byPath[path]
	if set == nil {
		return
	}

	var originID string
	if origin != nil {
		originID = origin.ID()
	}

	for id, sub := range set {
		if id == originID {
			continue
		}
		if !sub.Alive() {
			delete(set, id)
			continue
		}
		sub.QueueMessage(root)
	}
	if len(set) == 0 {
		delete(r.byPath, path)
	}
}
