package ticket

import "sync/atomic"

// Sequence issues strictly increasing ticket numbers for the lifetime of the
// process. Numbers are never reused; a number taken for a creation attempt
// that later fails is permanently skipped. Numbering restarts at 1 after a
// process restart.
type Sequence struct {
	n atomic.Int64
}

// NewSequence returns a sequence whose first Next call yields 1.
func NewSequence() *Sequence {
	return &Sequence{}
}

// Next reserves and returns the next ticket number.
func (s *Sequence) Next() int {
	return int(s.n.Add(1))
}

// Current returns the most recently issued number, 0 if none.
func (s *Sequence) Current() int {
	return int(s.n.Load())
}
