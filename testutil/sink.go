package testutil

import (
	"strings"
	"sync"

	"github.com/soulteary/action-guard/sink"
)

// Entry is one recorded log message
type Entry struct {
	Level    sink.Level
	Category string
	Message  string
}

// Sink records every message written to it
type Sink struct {
	mu      sync.Mutex
	entries []Entry
}

// NewSink creates an empty recording sink
func NewSink() *Sink {
	return &Sink{}
}

// Write implements sink.Sink
func (s *Sink) Write(level sink.Level, category, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, Entry{Level: level, Category: category, Message: message})
}

// Entries returns a copy of the recorded messages
func (s *Sink) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Entry(nil), s.entries...)
}

// Find returns the first entry whose message contains substr
func (s *Sink) Find(substr string) (Entry, bool) {
	for _, e := range s.Entries() {
		if strings.Contains(e.Message, substr) {
			return e, true
		}
	}
	return Entry{}, false
}

// Reset drops all recorded messages
func (s *Sink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
}
