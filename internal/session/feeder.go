package session

import "sync"

// Chunk is one audio segment from the caller. Data is opaque to the
// pipeline; Last marks end-of-stream.
type Chunk struct {
	Sequence int64
	Data     []byte
	Last     bool
}

// feeder enforces the caller's ordering contract. Chunks are not
// buffered or reordered here; the upstream audio source already produces
// ordered segments. No fragment state lives in this layer.
type feeder struct {
	mu       sync.Mutex
	accepted bool
	lastSeq  int64
}

// accept validates the sequence number. A rejected chunk does not move
// the last-accepted counter.
func (f *feeder) accept(seq int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.accepted && seq <= f.lastSeq {
		return ErrOutOfOrderChunk
	}
	f.accepted = true
	f.lastSeq = seq
	return nil
}
