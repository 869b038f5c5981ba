package reader

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pithecene-io/dockpull/iox"
	"github.com/pithecene-io/dockpull/ipc"
	"github.com/pithecene-io/dockpull/pulllog"
	"github.com/pithecene-io/dockpull/types"
)

// Mirror rebuilds the observable state of a pull from its events.
// Line events are folded into a transcript with the same slot semantics
// the pull used, so the mirrored transcript equals the original.
type Mirror struct {
	transcript *pulllog.Transcript
	summary    ReplaySummary
	lastSeq    int64
}

// NewMirror creates a mirror whose transcript holds at most maxLines lines.
func NewMirror(maxLines int) *Mirror {
	return &Mirror{transcript: pulllog.NewTranscript(maxLines)}
}

// Apply folds one event into the mirror.
func (m *Mirror) Apply(ev types.PullEvent) {
	s := &m.summary
	s.Events++
	if s.PullID == "" {
		s.PullID = ev.PullID
	}
	if m.lastSeq != 0 && ev.Seq != m.lastSeq+1 {
		s.SeqGaps++
	}
	m.lastSeq = ev.Seq
	s.Generations = max(s.Generations, ev.Generation)

	switch ev.Type {
	case types.EventTypeLine:
		m.transcript.Append(ev.UnitID, ev.Line)
	case types.EventTypeProgress:
		s.Ratio = ev.Ratio
	case types.EventTypeStatus:
		s.Status = ev.Status
	case types.EventTypeFinished:
		s.Finished = true
		s.OK = ev.OK
		s.Message = ev.Message
	}
}

// Transcript returns the mirrored transcript text.
func (m *Mirror) Transcript() string {
	return m.transcript.String()
}

// Summary returns the mirrored state.
func (m *Mirror) Summary() ReplaySummary {
	s := m.summary
	s.Transcript = m.transcript.Lines()
	return s
}

// ReadEvents decodes length-prefixed event frames until EOF. A truncated
// final frame stops decoding and returns the events read so far together
// with the frame error.
func ReadEvents(r io.Reader) ([]types.PullEvent, error) {
	dec := ipc.NewFrameDecoder(r)
	var events []types.PullEvent
	for {
		ev, err := dec.ReadEvent()
		if errors.Is(err, io.EOF) {
			return events, nil
		}
		if err != nil {
			return events, err
		}
		events = append(events, *ev)
	}
}

// Replay reads a frame file and returns the rebuilt summary.
// A truncated file yields a partial summary marked Truncated; other decode
// errors are returned.
func Replay(path string, maxLines int) (*ReplaySummary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open frames: %w", err)
	}
	defer iox.DiscardClose(f)

	events, err := ReadEvents(f)
	truncated := false
	if err != nil {
		var fe *ipc.FrameError
		if !errors.As(err, &fe) || fe.Kind != ipc.FrameErrorPartial {
			return nil, fmt.Errorf("decode frames %s: %w", path, err)
		}
		truncated = true
	}

	m := NewMirror(maxLines)
	for _, ev := range events {
		m.Apply(ev)
	}
	s := m.Summary()
	s.Truncated = truncated
	return &s, nil
}
