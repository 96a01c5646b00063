package session

import (
	"strings"
	"sync"
	"time"

	"github.com/foxseedlab/livescribe/internal/speaker"
	"github.com/foxseedlab/livescribe/internal/transcriber"
)

type TranscriptMessage struct {
	Speaker   string    `json:"speaker"`
	SpeakerID string    `json:"speaker_id"`
	Text      string    `json:"text"`
	StartTime float64   `json:"start_time"`
	EndTime   float64   `json:"end_time"`
	Color     string    `json:"color"`
	Timestamp time.Time `json:"-"`
}

// State is the conversation log and speaker tracker of one connection. It
// outlives configuration changes: every Session derived from the same
// connection points at the same State.
type State struct {
	mu       sync.Mutex
	messages []TranscriptMessage
	tracker  *speaker.Tracker
}

func NewState() *State {
	return &State{tracker: speaker.NewTracker()}
}

func (st *State) Messages() []TranscriptMessage {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make([]TranscriptMessage, len(st.messages))
	copy(out, st.messages)
	return out
}

func (st *State) Speakers() []speaker.Identity {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.tracker.Identities()
}

func (st *State) Clear() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.messages = nil
	st.tracker.Reset()
}

// commit resolves the chunk's local labels to identities and appends one
// message per segment with text. vecs[i] is the embedding for ranges[i].
// It returns the appended batch and the number of identities minted.
func (st *State) commit(segments []transcriber.Segment, ranges []speaker.Range, vecs [][]float64, threshold, chunkStart float64, now time.Time) ([]TranscriptMessage, int) {
	st.mu.Lock()
	defer st.mu.Unlock()

	before := st.tracker.Len()
	byLabel := make(map[string]speaker.Identity, len(ranges))
	for i, r := range ranges {
		byLabel[r.Label] = st.tracker.Resolve(vecs[i], threshold)
	}

	batch := make([]TranscriptMessage, 0, len(segments))
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		id := byLabel[speaker.LabelOf(seg)]
		msg := TranscriptMessage{
			Speaker:   id.Name(),
			SpeakerID: id.ID,
			Text:      text,
			StartTime: chunkStart + seg.Start,
			EndTime:   chunkStart + seg.End,
			Color:     id.Color(),
			Timestamp: now,
		}
		st.messages = append(st.messages, msg)
		batch = append(batch, msg)
	}
	return batch, st.tracker.Len() - before
}
