package pulllog

import (
	"fmt"
	"testing"
)

func TestTranscript_ReplacesUnitSlotInPlace(t *testing.T) {
	tr := NewTranscript(0)

	tr.Append("", "latest: Pulling from library/alpine")
	tr.Append("abc123", "abc123: Pulling fs layer")
	tr.Append("def456", "def456: Waiting")
	tr.Append("abc123", "abc123: Downloading")
	tr.Append("abc123", "abc123: Pull complete")

	want := "latest: Pulling from library/alpine\nabc123: Pull complete\ndef456: Waiting"
	if tr.String() != want {
		t.Errorf("String() =\n%s\nwant\n%s", tr.String(), want)
	}
	if pos, ok := tr.Position("abc123"); !ok || pos != 1 {
		t.Errorf("Position(abc123) = %d, %v; want 1, true", pos, ok)
	}
}

func TestTranscript_DropsBareProgress(t *testing.T) {
	tr := NewTranscript(10)

	if tr.Append("", "Downloading  3MB/9MB") {
		t.Error("bare progress line accepted")
	}
	if !tr.Append("", "Digest: sha256:beef") {
		t.Error("uncategorized line rejected")
	}
	if !tr.Append("", "Digest: sha256:beef") {
		t.Error("uncategorized duplicate rejected")
	}
	if tr.Len() != 2 {
		t.Errorf("Len = %d, want 2 (uncategorized lines are not deduplicated)", tr.Len())
	}
}

func TestTranscript_EvictionReindexes(t *testing.T) {
	const capacity = 200
	tr := NewTranscript(capacity)

	tr.Append("aaaaaa", "aaaaaa: Waiting")
	for i := range 150 {
		tr.Append("", fmt.Sprintf("noise %d", i))
	}
	tr.Append("bbbbbb", "bbbbbb: Downloading")
	for i := range 100 {
		tr.Append("", fmt.Sprintf("more %d", i))
	}

	if tr.Len() != capacity {
		t.Fatalf("Len = %d, want %d", tr.Len(), capacity)
	}
	if _, ok := tr.Position("aaaaaa"); ok {
		t.Error("evicted unit still indexed")
	}

	pos, ok := tr.Position("bbbbbb")
	if !ok {
		t.Fatal("surviving unit lost from index")
	}
	if got := tr.Lines()[pos]; got != "bbbbbb: Downloading" {
		t.Errorf("index points at %q", got)
	}

	// Updating after eviction replaces the correct slot.
	tr.Append("bbbbbb", "bbbbbb: Pull complete")
	if got := tr.Lines()[pos]; got != "bbbbbb: Pull complete" {
		t.Errorf("slot after update = %q", got)
	}
	if tr.Len() != capacity {
		t.Errorf("Len after in-place update = %d, want %d", tr.Len(), capacity)
	}

	// An evicted unit comes back as a fresh line at the end.
	tr.Append("aaaaaa", "aaaaaa: Pull complete")
	if pos, ok := tr.Position("aaaaaa"); !ok || pos != capacity-1 {
		t.Errorf("Position(aaaaaa) = %d, %v; want %d, true", pos, ok, capacity-1)
	}
}

func TestTranscript_NeverExceedsCap(t *testing.T) {
	tr := NewTranscript(5)
	for i := range 50 {
		tr.Append(fmt.Sprintf("%06x", i), fmt.Sprintf("%06x: Waiting", i))
		if tr.Len() > 5 {
			t.Fatalf("Len = %d after %d appends", tr.Len(), i+1)
		}
	}
	for i, line := range tr.Lines() {
		unit := ExtractUnitID(line)
		if pos, ok := tr.Position(unit); !ok || pos != i {
			t.Errorf("Position(%s) = %d, %v; want %d", unit, pos, ok, i)
		}
	}
}

func TestTranscript_TailContainsReset(t *testing.T) {
	tr := NewTranscript(10)
	tr.Append("", "one")
	tr.Append("", "two")
	tr.Append("", "three")

	if got := tr.Tail(2); got != "two\nthree" {
		t.Errorf("Tail(2) = %q", got)
	}
	if got := tr.Tail(10); got != "one\ntwo\nthree" {
		t.Errorf("Tail(10) = %q", got)
	}
	if !tr.Contains("thr") {
		t.Error("Contains(thr) = false")
	}

	tr.Reset()
	if tr.Len() != 0 || tr.String() != "" || tr.Tail(1) != "" {
		t.Error("Reset left content behind")
	}
}
