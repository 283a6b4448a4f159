package view

// OutcomeStatus is the caller-visible result of the latest route attempt.
type OutcomeStatus string

const (
	OutcomeIdle    OutcomeStatus = "idle"
	OutcomePending OutcomeStatus = "pending"
	OutcomeRouted  OutcomeStatus = "routed"
	OutcomeNoRoute OutcomeStatus = "no_route"
	OutcomeFailed  OutcomeStatus = "failed"
)

// validOutcomeTransitions defines how a route attempt may progress. Every
// status can return to idle on reset, and a new request may start from any
// status.
var validOutcomeTransitions = map[OutcomeStatus][]OutcomeStatus{
	OutcomeIdle:    {OutcomePending},
	OutcomePending: {OutcomePending, OutcomeRouted, OutcomeNoRoute, OutcomeFailed, OutcomeIdle},
	OutcomeRouted:  {OutcomePending, OutcomeIdle},
	OutcomeNoRoute: {OutcomePending, OutcomeIdle},
	OutcomeFailed:  {OutcomePending, OutcomeIdle},
}

// IsValid returns true if the status is a recognized outcome status.
func (s OutcomeStatus) IsValid() bool {
	_, exists := validOutcomeTransitions[s]
	return exists
}

// CanTransitionTo returns true if a transition from this status to the target is allowed.
func (s OutcomeStatus) CanTransitionTo(target OutcomeStatus) bool {
	if target == OutcomeIdle && s.IsValid() {
		return true
	}
	for _, t := range validOutcomeTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// String returns the string representation of the status.
func (s OutcomeStatus) String() string {
	return string(s)
}

// Outcome summarizes the latest route attempt of a view.
type Outcome struct {
	Status            OutcomeStatus `json:"status"`
	Message           string        `json:"message,omitempty"`
	ErrorKind         string        `json:"error_kind,omitempty"`
	CalculationTimeMs float64       `json:"calculation_time_ms,omitempty"`
	TimingSource      string        `json:"timing_source,omitempty"`
	DistanceKm        float64       `json:"distance_km,omitempty"`
	Vertices          int           `json:"vertices,omitempty"`
}
