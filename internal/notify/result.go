package notify

// Status is the outcome of an email dispatch.
type Status int

const (
	// StatusSkipped means nothing was attempted and nothing was recorded.
	StatusSkipped Status = iota
	StatusDelivered
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusDelivered:
		return "delivered"
	case StatusFailed:
		return "failed"
	default:
		return "skipped"
	}
}

// Result describes what happened to one dispatch. Reason explains skipped
// and failed outcomes.
type Result struct {
	Status Status
	Reason string
}

func (r Result) Delivered() bool { return r.Status == StatusDelivered }

// Attempted reports whether the transport was tried, successfully or not.
func (r Result) Attempted() bool { return r.Status != StatusSkipped }

func skipped(reason string) Result { return Result{Status: StatusSkipped, Reason: reason} }

func delivered() Result { return Result{Status: StatusDelivered} }

func failed(reason string) Result { return Result{Status: StatusFailed, Reason: reason} }
