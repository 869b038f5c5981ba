package pulllog

import "testing"

func TestExtractUnitID(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{"a1b2c3d4e5f6: Pull complete", "a1b2c3d4e5f6"},
		{"abc123: Downloading", "abc123"},
		{"abc12: too short", ""},
		{"ABC123: uppercase is not a layer id", ""},
		{"Status: Downloaded newer image", ""},
		{"latest: Pulling from library/alpine", ""},
		{"abc123 Downloading", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := ExtractUnitID(tt.line); got != tt.want {
			t.Errorf("ExtractUnitID(%q) = %q, want %q", tt.line, got, tt.want)
		}
	}
}

func TestIdentifier_InheritsLastUnit(t *testing.T) {
	id := NewIdentifier()

	if _, ok := id.Identify("Downloading  1MB/2MB"); ok {
		t.Fatal("bare progress line before any unit should be dropped")
	}

	l, ok := id.Identify("abc123: Pulling fs layer")
	if !ok || l.UnitID != "abc123" || l.Continuation {
		t.Fatalf("Identify explicit = %+v, %v", l, ok)
	}

	l, ok = id.Identify("Downloading  1MB/2MB")
	if !ok {
		t.Fatal("continuation line dropped")
	}
	if l.UnitID != "abc123" || !l.Continuation {
		t.Errorf("continuation = %+v, want unit abc123 continuation", l)
	}
	if l.Text != "abc123: Downloading  1MB/2MB" {
		t.Errorf("Text = %q, want prefixed text", l.Text)
	}

	// A new explicit id always becomes the most recent one.
	if _, ok := id.Identify("def456: Waiting"); !ok {
		t.Fatal("explicit line dropped")
	}
	if id.Last() != "def456" {
		t.Errorf("Last = %q, want def456", id.Last())
	}

	l, ok = id.Identify("Status: Downloaded newer image for x:latest")
	if !ok || l.UnitID != "" || l.Continuation {
		t.Errorf("uncategorized line = %+v, %v", l, ok)
	}
	if id.Last() != "def456" {
		t.Errorf("uncategorized line changed Last to %q", id.Last())
	}

	id.Reset()
	if _, ok := id.Identify("Extracting"); ok {
		t.Error("progress line after Reset should be dropped")
	}
}
