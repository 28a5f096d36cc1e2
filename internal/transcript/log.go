package transcript

import "sync"

// Log is the append-only fragment sequence owned by one transcription
// session. Only the session's receive loop writes to it; sequence numbers
// are assigned here in receive order.
type Log struct {
	mu        sync.Mutex
	nextSeq   int
	fragments []Fragment
}

func NewLog() *Log {
	return &Log{}
}

// Append records a fragment and assigns it the next sequence number.
func (l *Log) Append(f Fragment) Fragment {
	l.mu.Lock()
	defer l.mu.Unlock()
	f.Sequence = l.nextSeq
	l.nextSeq++
	l.fragments = append(l.fragments, f)
	return f
}

// All returns a copy of every fragment received so far, for audit.
func (l *Log) All() []Fragment {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Fragment, len(l.fragments))
	copy(out, l.fragments)
	return out
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.fragments)
}
