package main

import (
	"sync"
	"time"
)

// Entry records one change of a counter.
type Entry struct {
	Counter string
	Value   int
	At      time.Time
}

// Store is an in-memory set of named counters with a change log.
type Store struct {
	mu       sync.RWMutex
	counters map[string]int
	log      []Entry
}

// NewStore creates a new store with sample data.
func NewStore() *Store {
	return &Store{counters: map[string]int{"clicks": 0}}
}

// Increment adds delta to a counter and returns the new value.
func (s *Store) Increment(name string, delta int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counters[name] += delta
	v := s.counters[name]
	s.log = append(s.log, Entry{Counter: name, Value: v, At: time.Now()})
	return v
}

// Get returns the value of a counter.
func (s *Store) Get(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counters[name]
}

// Recent returns the last n log entries, newest first.
func (s *Store) Recent(n int) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, 0, n)
	for i := len(s.log) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.log[i])
	}
	return out
}
