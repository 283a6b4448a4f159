package placement

import "fmt"

// Status is the state of the endpoint placement machine.
type Status string

const (
	StatusIdle        Status = "idle"
	StatusAwaitingEnd Status = "awaiting_end"
	StatusComplete    Status = "complete"
)

// validTransitions defines the placement state machine. Complete moves to
// AwaitingEnd when a click re-seeds a fresh start endpoint.
var validTransitions = map[Status][]Status{
	StatusIdle:        {StatusAwaitingEnd},
	StatusAwaitingEnd: {StatusComplete, StatusIdle},
	StatusComplete:    {StatusAwaitingEnd, StatusIdle},
}

// IsValid returns true if the status is a recognized placement status.
func (s Status) IsValid() bool {
	_, exists := validTransitions[s]
	return exists
}

// CanTransitionTo returns true if a transition from this status to the target is allowed.
func (s Status) CanTransitionTo(target Status) bool {
	for _, t := range validTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// LiveEndpoints is the number of endpoints implied by the status.
func (s Status) LiveEndpoints() int {
	switch s {
	case StatusAwaitingEnd:
		return 1
	case StatusComplete:
		return 2
	default:
		return 0
	}
}

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// ParseStatus converts a string to a Status, returning an error if invalid.
func ParseStatus(s string) (Status, error) {
	status := Status(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid placement status: %s", s)
	}
	return status, nil
}
