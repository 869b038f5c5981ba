package pulllog

import (
	"reflect"
	"testing"
)

const samplePullOutput = "latest: Pulling from rjaat/aibox-prod\n" +
	"\x1b]0;docker pull\x07a1b2c3d4e5f6: Pulling fs layer\r\n" +
	"\x1b[1A\x1b[2Ka1b2c3d4e5f6: Downloading  12.5MB/80MB\r" +
	"a1b2c3d4e5f6: Downloading  40MB/80MB\r" +
	"\x1b[32ma1b2c3d4e5f6: Pull complete\x1b[0m\n" +
	"\n" +
	"Digest: sha256:0123abcd\n" +
	"Status: Downloaded newer image for rjaat/aibox-prod:latest\n" +
	"Script done, killing shell\n" +
	"docker.io/rjaat/aibox-prod:latest"

func collect(n *Normalizer, chunks ...[]byte) []string {
	var lines []string
	for _, c := range chunks {
		lines = append(lines, n.Push(c)...)
	}
	return append(lines, n.Flush()...)
}

func TestNormalizer_WholeStream(t *testing.T) {
	got := collect(NewNormalizer(), []byte(samplePullOutput))
	want := []string{
		"latest: Pulling from rjaat/aibox-prod",
		"a1b2c3d4e5f6: Pulling fs layer",
		"a1b2c3d4e5f6: Downloading  12.5MB/80MB",
		"a1b2c3d4e5f6: Downloading  40MB/80MB",
		"a1b2c3d4e5f6: Pull complete",
		"Digest: sha256:0123abcd",
		"Status: Downloaded newer image for rjaat/aibox-prod:latest",
		"docker.io/rjaat/aibox-prod:latest",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("lines mismatch\ngot:  %q\nwant: %q", got, want)
	}
}

func TestNormalizer_SplitInvariance(t *testing.T) {
	data := []byte(samplePullOutput)
	want := collect(NewNormalizer(), data)

	// Every two-way split.
	for i := 0; i <= len(data); i++ {
		got := collect(NewNormalizer(), data[:i], data[i:])
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("split at %d changed output\ngot:  %q\nwant: %q", i, got, want)
		}
	}

	// Byte at a time.
	n := NewNormalizer()
	var got []string
	for i := range data {
		got = append(got, n.Push(data[i:i+1])...)
	}
	got = append(got, n.Flush()...)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("byte-wise output differs\ngot:  %q\nwant: %q", got, want)
	}
}

func TestNormalizer_HoldsRemainder(t *testing.T) {
	n := NewNormalizer()

	if lines := n.Push([]byte("abc123: Down")); lines != nil {
		t.Fatalf("Push returned %q for unterminated chunk", lines)
	}
	if n.Pending() != "abc123: Down" {
		t.Errorf("Pending = %q, want %q", n.Pending(), "abc123: Down")
	}

	lines := n.Push([]byte("loading\nabc123: Ext"))
	if !reflect.DeepEqual(lines, []string{"abc123: Downloading"}) {
		t.Errorf("lines = %q, want [abc123: Downloading]", lines)
	}
	if n.Pending() != "abc123: Ext" {
		t.Errorf("Pending = %q, want %q", n.Pending(), "abc123: Ext")
	}

	n.Reset()
	if n.Pending() != "" {
		t.Errorf("Pending after Reset = %q, want empty", n.Pending())
	}
	if lines := n.Flush(); lines != nil {
		t.Errorf("Flush after Reset = %q, want nil", lines)
	}
}

func TestNormalizeLine(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain", "  hello  ", "hello"},
		{"csi color", "\x1b[1;31mred\x1b[0m", "red"},
		{"csi cursor", "\x1b[2K\x1b[1Aabc123: Waiting", "abc123: Waiting"},
		{"osc title", "\x1b]0;window title\x07Status: ok", "Status: ok"},
		{"blank", "   \t ", ""},
		{"only escapes", "\x1b[2K", ""},
		{"killing shell", "Session terminated, killing shell...", ""},
		{"killed", "...killed.", ""},
		{"noise is case-insensitive", "KILLING SHELL", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeLine(tt.raw); got != tt.want {
				t.Errorf("NormalizeLine(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}
