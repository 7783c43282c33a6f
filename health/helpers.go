package health

import "time"

func newStatus(component, state, message string) Status {
	return Status{
		Component: component,
		Healthy:   state == StateHealthy,
		Status:    state,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewHealthy creates a new healthy status
func NewHealthy(component, message string) Status {
	return newStatus(component, StateHealthy, message)
}

// NewUnhealthy creates a new unhealthy status
func NewUnhealthy(component, message string) Status {
	return newStatus(component, StateUnhealthy, message)
}

// NewDegraded creates a new degraded status
func NewDegraded(component, message string) Status {
	return newStatus(component, StateDegraded, message)
}

// Aggregate folds sub-statuses: any unhealthy makes the result unhealthy,
// otherwise any degraded makes it degraded.
func Aggregate(component string, subStatuses []Status) Status {
	if len(subStatuses) == 0 {
		return NewHealthy(component, "No sub-components to aggregate")
	}

	hasUnhealthy, hasDegraded := false, false
	for _, sub := range subStatuses {
		switch {
		case sub.IsUnhealthy():
			hasUnhealthy = true
		case sub.IsDegraded():
			hasDegraded = true
		}
	}

	var status Status
	switch {
	case hasUnhealthy:
		status = NewUnhealthy(component, "One or more sub-components are unhealthy")
	case hasDegraded:
		status = NewDegraded(component, "One or more sub-components are degraded")
	default:
		status = NewHealthy(component, "All sub-components are healthy")
	}

	status.SubStatuses = make([]Status, len(subStatuses))
	copy(status.SubStatuses, subStatuses)
	return status
}
