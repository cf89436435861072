// Package ledger keeps the in-memory attendance of one capture session.
package ledger

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kozaktomas/face-attendance/internal/facematch"
)

// ErrInvalidState is returned when a transition is not allowed from the current state.
var ErrInvalidState = errors.New("invalid ledger state")

// State is the session lifecycle
type State int

const (
	NotStarted State = iota
	Running
	Stopped
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not started"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// StatusPresent is the status recorded for every sighted student.
const StatusPresent = "Present"

// Entry is the first and last sighting of a student.
type Entry struct {
	Name   string
	Login  time.Time
	Logout time.Time
	Status string
}

// Ledger records sightings for a fixed roster.
type Ledger struct {
	mu      sync.Mutex
	state   State
	roster  []string
	lookup  map[string]string // folded name -> roster name
	entries map[string]*Entry
	order   []string
}

// New creates a ledger for the given roster.
func New(roster []string) *Ledger {
	l := &Ledger{
		roster:  append([]string(nil), roster...),
		lookup:  make(map[string]string, len(roster)),
		entries: make(map[string]*Entry),
	}
	for _, name := range roster {
		key := facematch.FoldName(name)
		if _, ok := l.lookup[key]; !ok {
			l.lookup[key] = name
		}
	}
	return l
}

// State returns the current state.
func (l *Ledger) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Start moves NotStarted to Running.
func (l *Ledger) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != NotStarted {
		return fmt.Errorf("%w: cannot start while %s", ErrInvalidState, l.state)
	}
	l.state = Running
	return nil
}

// RecordSighting notes that name was seen at ts. The first sighting sets both
// login and logout, later ones only move logout forward. Sightings outside the
// Running state or of names not on the roster are ignored and return false.
func (l *Ledger) RecordSighting(name string, ts time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != Running {
		return false
	}
	rosterName, ok := l.lookup[facematch.FoldName(name)]
	if !ok {
		return false
	}

	if e, ok := l.entries[rosterName]; ok {
		if ts.After(e.Logout) {
			e.Logout = ts
		}
		return true
	}

	l.entries[rosterName] = &Entry{Name: rosterName, Login: ts, Logout: ts, Status: StatusPresent}
	l.order = append(l.order, rosterName)
	return true
}

// Stop moves Running to Stopped and returns the recorded entries.
func (l *Ledger) Stop() ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != Running {
		return nil, fmt.Errorf("%w: cannot stop while %s", ErrInvalidState, l.state)
	}
	l.state = Stopped
	return l.entriesLocked(), nil
}

// Entries returns the recorded entries in first-sighting order.
func (l *Ledger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.entriesLocked()
}

func (l *Ledger) entriesLocked() []Entry {
	out := make([]Entry, 0, len(l.order))
	for _, name := range l.order {
		out = append(out, *l.entries[name])
	}
	return out
}

// Finalize partitions the roster into present and absent students, both in
// roster order. Every roster name lands in exactly one of them.
func (l *Ledger) Finalize() (present, absent []string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	present, absent = []string{}, []string{}
	for _, name := range l.roster {
		if _, ok := l.entries[l.lookup[facematch.FoldName(name)]]; ok {
			present = append(present, name)
		} else {
			absent = append(absent, name)
		}
	}
	return present, absent
}
