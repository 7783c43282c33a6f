package health

import (
	"regexp"
	"strings"
	"time"
)

// Status values
const (
	StateHealthy   = "healthy"
	StateDegraded  = "degraded"
	StateUnhealthy = "unhealthy"
)

var (
	urlRegex         = regexp.MustCompile(`(?:https?|nats|wss?)://[^\s]+`)
	unixPathRegex    = regexp.MustCompile(`/[a-zA-Z0-9/_.-]+`)
	windowsPathRegex = regexp.MustCompile(`[A-Z]:\\[^:\s]+`)
	ipAddrRegex      = regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`)
	portRegex        = regexp.MustCompile(`:\d{2,5}\b`)
	credentialRegex  = regexp.MustCompile(`(?i)(password|token|key|secret|credential)[^a-zA-Z]*[:=][^,\s}]+`)
)

// Status is the health of one component, optionally with children.
type Status struct {
	Component   string         `json:"component"`
	Healthy     bool           `json:"healthy"`
	Status      string         `json:"status"`
	Message     string         `json:"message"`
	Timestamp   time.Time      `json:"timestamp"`
	Details     map[string]any `json:"details,omitempty"`
	SubStatuses []Status       `json:"sub_statuses,omitempty"`
}

// IsHealthy returns true if the status is healthy
func (s Status) IsHealthy() bool {
	return s.Status == StateHealthy
}

// IsDegraded returns true if the status is degraded
func (s Status) IsDegraded() bool {
	return s.Status == StateDegraded
}

// IsUnhealthy returns true if the status is unhealthy
func (s Status) IsUnhealthy() bool {
	return s.Status == StateUnhealthy
}

// WithDetail returns a copy with key set in Details.
func (s Status) WithDetail(key string, value any) Status {
	details := make(map[string]any, len(s.Details)+1)
	for k, v := range s.Details {
		details[k] = v
	}
	details[key] = value
	s.Details = details
	return s
}

// WithSubStatus adds a sub-status and returns a copy
func (s Status) WithSubStatus(sub Status) Status {
	subs := make([]Status, len(s.SubStatuses), len(s.SubStatuses)+1)
	copy(subs, s.SubStatuses)
	s.SubStatuses = append(subs, sub)
	return s
}

func sanitizeErrorMessage(msg string) string {
	if msg == "" {
		return ""
	}

	// URLs before paths, they contain paths
	out := urlRegex.ReplaceAllString(msg, "[URL]")
	out = unixPathRegex.ReplaceAllString(out, "[PATH]")
	out = windowsPathRegex.ReplaceAllString(out, "[PATH]")
	out = ipAddrRegex.ReplaceAllString(out, "[IP]")
	out = portRegex.ReplaceAllString(out, "[PORT]")

	lower := strings.ToLower(out)
	for _, word := range []string{"password", "token", "key", "secret", "credential"} {
		if strings.Contains(lower, word) {
			out = credentialRegex.ReplaceAllString(out, "[REDACTED]")
			break
		}
	}
	return out
}

// FromError builds an unhealthy status whose message is the sanitised error.
func FromError(component string, err error) Status {
	if err == nil {
		return NewHealthy(component, "ok")
	}
	return NewUnhealthy(component, sanitizeErrorMessage(err.Error()))
}
