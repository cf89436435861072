package ledger

import (
	"errors"
	"slices"
	"testing"
	"time"
)

func at(hms string) time.Time {
	t, err := time.Parse("2006-01-02 15:04:05", "2024-03-01 "+hms)
	if err != nil {
		panic(err)
	}
	return t
}

func TestLedger_StateMachine(t *testing.T) {
	l := New([]string{"Alice"})

	if l.State() != NotStarted {
		t.Fatalf("expected NotStarted, got %s", l.State())
	}
	if _, err := l.Stop(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("expected ErrInvalidState stopping before start, got %v", err)
	}

	if err := l.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := l.Start(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("expected ErrInvalidState on double start, got %v", err)
	}

	if _, err := l.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if l.State() != Stopped {
		t.Errorf("expected Stopped, got %s", l.State())
	}
	if err := l.Start(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("expected Stopped to be terminal, got %v", err)
	}
}

func TestLedger_RecordOnlyWhileRunning(t *testing.T) {
	l := New([]string{"Alice"})

	if l.RecordSighting("Alice", at("09:00:00")) {
		t.Error("sighting before start should be ignored")
	}

	_ = l.Start()
	if !l.RecordSighting("Alice", at("09:00:01")) {
		t.Error("sighting while running should be recorded")
	}
	_, _ = l.Stop()

	if l.RecordSighting("Alice", at("09:05:00")) {
		t.Error("sighting after stop should be ignored")
	}
	if got := l.Entries()[0].Logout; !got.Equal(at("09:00:01")) {
		t.Errorf("logout moved after stop: %s", got)
	}
}

func TestLedger_IgnoresUnknownNames(t *testing.T) {
	l := New([]string{"Alice"})
	_ = l.Start()

	if l.RecordSighting("Mallory", at("09:00:00")) {
		t.Error("expected unknown name to be ignored")
	}
	if len(l.Entries()) != 0 {
		t.Errorf("expected no entries, got %v", l.Entries())
	}
}

func TestLedger_Scenario(t *testing.T) {
	l := New([]string{"Alice", "Bob", "Carol"})
	_ = l.Start()

	l.RecordSighting("Alice", at("09:00:05"))
	l.RecordSighting("Bob", at("09:02:00"))
	l.RecordSighting("Alice", at("09:10:00"))

	entries, err := l.Stop()
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	alice, bob := entries[0], entries[1]
	if alice.Name != "Alice" || !alice.Login.Equal(at("09:00:05")) || !alice.Logout.Equal(at("09:10:00")) {
		t.Errorf("unexpected Alice entry %+v", alice)
	}
	if bob.Name != "Bob" || !bob.Login.Equal(at("09:02:00")) || !bob.Logout.Equal(at("09:02:00")) {
		t.Errorf("unexpected Bob entry %+v", bob)
	}
	if alice.Status != StatusPresent {
		t.Errorf("expected status %s, got %s", StatusPresent, alice.Status)
	}

	present, absent := l.Finalize()
	if !slices.Equal(present, []string{"Alice", "Bob"}) {
		t.Errorf("present = %v", present)
	}
	if !slices.Equal(absent, []string{"Carol"}) {
		t.Errorf("absent = %v", absent)
	}
}

func TestLedger_SightingIdempotence(t *testing.T) {
	l := New([]string{"Alice"})
	_ = l.Start()

	ts := at("09:00:00")
	for range 5 {
		l.RecordSighting("Alice", ts)
	}

	entries := l.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	if !entries[0].Login.Equal(ts) || !entries[0].Logout.Equal(ts) {
		t.Errorf("unexpected entry %+v", entries[0])
	}
}

func TestLedger_LoginNeverChangesAndLogoutNeverGoesBack(t *testing.T) {
	l := New([]string{"Alice"})
	_ = l.Start()

	l.RecordSighting("Alice", at("09:05:00"))
	l.RecordSighting("Alice", at("09:01:00"))

	e := l.Entries()[0]
	if !e.Login.Equal(at("09:05:00")) {
		t.Errorf("login changed to %s", e.Login)
	}
	if e.Logout.Before(e.Login) {
		t.Errorf("logout %s before login %s", e.Logout, e.Login)
	}
}

func TestLedger_CaseInsensitiveSighting(t *testing.T) {
	l := New([]string{"Alice"})
	_ = l.Start()

	l.RecordSighting("alice", at("09:00:00"))

	if got := l.Entries()[0].Name; got != "Alice" {
		t.Errorf("expected roster spelling, got %s", got)
	}
}

func TestLedger_FinalizePartitionsRoster(t *testing.T) {
	rosters := [][]string{
		{},
		{"Alice"},
		{"Alice", "Bob", "Carol", "Dave"},
	}

	for _, roster := range rosters {
		l := New(roster)
		_ = l.Start()
		for i, name := range roster {
			if i%2 == 0 {
				l.RecordSighting(name, at("09:00:00"))
			}
		}

		present, absent := l.Finalize()
		if len(present)+len(absent) != len(roster) {
			t.Errorf("roster %v: present %v + absent %v do not cover roster", roster, present, absent)
		}
		for _, name := range present {
			if slices.Contains(absent, name) {
				t.Errorf("roster %v: %s is both present and absent", roster, name)
			}
		}
	}
}
