package cache

import "catalog/internal/apiclient"

// Status is the lifecycle position of one cache entry.
type Status int

const (
	StatusAbsent Status = iota
	StatusLoading
	StatusFresh
	StatusErrored
	StatusInvalidated
)

func (s Status) String() string {
	switch s {
	case StatusAbsent:
		return "absent"
	case StatusLoading:
		return "loading"
	case StatusFresh:
		return "fresh"
	case StatusErrored:
		return "errored"
	case StatusInvalidated:
		return "invalidated"
	default:
		return "unknown"
	}
}

// transitions is the complete set of allowed status changes.
// loading -> invalidated happens when a mutation lands while a fetch is in
// flight; the fetch result is then discarded.
var transitions = map[Status][]Status{
	StatusAbsent:      {StatusLoading},
	StatusLoading:     {StatusFresh, StatusErrored, StatusInvalidated},
	StatusFresh:       {StatusLoading, StatusInvalidated},
	StatusErrored:     {StatusLoading, StatusInvalidated},
	StatusInvalidated: {StatusLoading},
}

// CanTransition reports whether an entry may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// State is an immutable view of one cache entry, handed to readers and listeners.
// Data keeps the last successfully loaded (or locally edited) value while the
// entry is loading, errored or invalidated; HasData tells whether there is one.
type State[T any] struct {
	Status  Status
	Data    T
	HasData bool
	Err     *apiclient.Error
}

// NeedsFetch reports whether the entry must be loaded before it can be trusted.
func (s State[T]) NeedsFetch() bool {
	return s.Status == StatusAbsent || s.Status == StatusInvalidated || s.Status == StatusErrored
}
