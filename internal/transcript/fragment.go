package transcript

import (
	"sort"
	"time"
)

// Fragment is one piece of transcribed text for a bounded time window.
// The remote recognizer may reissue text for the same window; corrections
// arrive as new fragments, never as in-place edits.
type Fragment struct {
	Sequence   int
	WindowID   int
	Text       string
	IsFinal    bool
	ReceivedAt time.Time
}

// SelectConsolidationInput applies the supersession rule: per window the
// later-arriving fragment wins, and once a final fragment exists for a
// window its provisional fragments are excluded. The survivors are sorted
// by sequence number regardless of arrival order.
func SelectConsolidationInput(fragments []Fragment) []Fragment {
	winner := make(map[int]Fragment, len(fragments))
	for _, f := range fragments {
		prev, ok := winner[f.WindowID]
		if !ok {
			winner[f.WindowID] = f
			continue
		}
		if prev.IsFinal && !f.IsFinal {
			continue
		}
		winner[f.WindowID] = f
	}
	out := make([]Fragment, 0, len(winner))
	for _, f := range winner {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out
}
