package utils

import (
	"sync"
	"time"
)

// Latest holds the most recently written value of T. Writers never block on
// readers for longer than a copy, and readers always see a whole value.
type Latest[T any] struct {
	mu        sync.RWMutex
	value     T
	set       bool
	updatedAt time.Time
}

// Store replaces the held value.
func (l *Latest[T]) Store(v T) {
	l.mu.Lock()
	l.value = v
	l.set = true
	l.updatedAt = time.Now()
	l.mu.Unlock()
}

// Load returns the held value and whether anything was ever stored.
func (l *Latest[T]) Load() (T, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.value, l.set
}

// UpdatedAt returns when the value was last stored, zero if never.
func (l *Latest[T]) UpdatedAt() time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.updatedAt
}

// Clear forgets the held value.
func (l *Latest[T]) Clear() {
	l.mu.Lock()
	var zero T
	l.value = zero
	l.set = false
	l.updatedAt = time.Time{}
	l.mu.Unlock()
}
