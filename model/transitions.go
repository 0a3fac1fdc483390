package model

// transitions lists every edge of the fax job lifecycle.
var transitions = map[Status][]Status{
	StatusScheduled: {StatusQueued, StatusCancelled},
	StatusQueued:    {StatusSending, StatusCancelled},
	StatusSending:   {StatusDelivered, StatusFailed, StatusBusy, StatusNoAnswer},
	StatusFailed:    {StatusRetrying, StatusPermanentFailure},
	StatusBusy:      {StatusRetrying, StatusPermanentFailure},
	StatusNoAnswer:  {StatusRetrying, StatusPermanentFailure},
	StatusRetrying:  {StatusQueued},
}

// CanTransition reports whether moving from one status to another is a legal edge.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are accepted from s.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusDelivered, StatusCancelled, StatusPermanentFailure:
		return true
	}
	return false
}

// IsFailure reports whether s is one of the retryable failure outcomes.
func (s Status) IsFailure() bool {
	switch s {
	case StatusFailed, StatusBusy, StatusNoAnswer:
		return true
	}
	return false
}

// IsCancellable reports whether a job in s has not been handed to the transport yet.
func (s Status) IsCancellable() bool {
	return s == StatusScheduled || s == StatusQueued
}

// CountsAsFailure is used by history statistics, where an exhausted job is a failed attempt too.
func (s Status) CountsAsFailure() bool {
	return s.IsFailure() || s == StatusPermanentFailure
}
