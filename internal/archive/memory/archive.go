// Package memory implements an in-process archiver for tests.
package memory

import (
	"context"
	"sync"
)

// Archiver keeps uploaded objects in a map keyed by path.
type Archiver struct {
	mu      sync.Mutex
	objects map[string][]byte
}

// New creates an empty Archiver.
func New() *Archiver {
	return &Archiver{objects: make(map[string][]byte)}
}

// PutObject implements jobs.Archiver.
func (a *Archiver) PutObject(_ context.Context, path, _ string, data []byte) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.objects[path] = append([]byte(nil), data...)
	return "mem://" + path, nil
}

// Object returns a stored object and whether it exists.
func (a *Archiver) Object(path string) ([]byte, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	data, ok := a.objects[path]
	return data, ok
}

// Len reports how many objects are stored.
func (a *Archiver) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.objects)
}
