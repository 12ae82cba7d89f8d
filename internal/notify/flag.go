package notify

import "sync/atomic"

// Flag is the process-wide email switch, consulted at every dispatch
// decision.
type Flag interface {
	EmailEnabled() bool
}

// AtomicFlag is a Flag that can be flipped at runtime.
type AtomicFlag struct {
	v atomic.Bool
}

func NewAtomicFlag(enabled bool) *AtomicFlag {
	f := &AtomicFlag{}
	f.v.Store(enabled)
	return f
}

func (f *AtomicFlag) EmailEnabled() bool { return f.v.Load() }

// Set changes the flag and reports the previous value.
func (f *AtomicFlag) Set(enabled bool) bool { return f.v.Swap(enabled) }
