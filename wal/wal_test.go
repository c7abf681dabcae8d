package wal

import (
	"encoding/json"
	"testing"
)

func TestAppendAssignsMonotonicLSNs(t *testing.T) {
	l := NewLog()

	for i := 1; i <= 5; i++ {
		e := l.Append(EntryInsert, uint64(i))
		if e.LSN != uint64(i) {
			t.Errorf("entry %d got LSN %d", i, e.LSN)
		}
	}
	if l.NextLSN != 6 {
		t.Errorf("NextLSN = %d, want 6", l.NextLSN)
	}
}

func TestLSNSurvivesRoundTrip(t *testing.T) {
	l := NewLog()
	l.Append(EntryInsert, 2)
	l.Append(EntryDelete, 3)

	data, err := json.Marshal(l)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var restored Log
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	e := restored.Append(EntryUpdate, 2)
	if e.LSN != 3 {
		t.Errorf("LSN after round trip = %d, want 3", e.LSN)
	}
	if restored.Len() != 3 {
		t.Errorf("entries after round trip = %d, want 3", restored.Len())
	}
}

func TestTail(t *testing.T) {
	l := NewLog()
	for i := 0; i < 10; i++ {
		l.Append(EntryInsert, uint64(i))
	}

	tail := l.Tail(3)
	if len(tail) != 3 || tail[0].LSN != 8 || tail[2].LSN != 10 {
		t.Errorf("Tail(3) = %+v, want LSNs 8..10", tail)
	}
	if got := l.Tail(0); len(got) != 10 {
		t.Errorf("Tail(0) should return all entries, got %d", len(got))
	}
}
