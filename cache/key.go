package cache

import "strings"

// DefaultNamespace is the physical key prefix used when none is configured.
const DefaultNamespace = "schoolcache"

const (
	delimiter     = ":"
	schoolSegment = ":school:"
	userSegment   = ":user:"
)

// Scope narrows a logical key to a tenant and/or user. Zero fields are omitted
// from the physical key.
type Scope struct {
	UserID   string `json:"user_id,omitempty"`
	SchoolID string `json:"school_id,omitempty"`
}

// ForUser returns a user-only scope.
func ForUser(userID string) Scope {
	return Scope{UserID: userID}
}

// KeyBuilder composes physical keys of the form
//
//	<namespace>:<logicalKey>[:school:<schoolId>][:user:<userId>]
//
// The layout is relied on by user and pattern clears.
type KeyBuilder struct {
	namespace string
}

// NewKeyBuilder returns a builder for namespace; empty means DefaultNamespace.
func NewKeyBuilder(namespace string) KeyBuilder {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return KeyBuilder{namespace: namespace}
}

// Namespace returns the configured prefix.
func (b KeyBuilder) Namespace() string {
	return b.namespace
}

// Key builds the physical key.
func (b KeyBuilder) Key(logical string, scope Scope) string {
	var sb strings.Builder
	sb.Grow(len(b.namespace) + len(logical) + len(scope.SchoolID) + len(scope.UserID) + 16)
	sb.WriteString(b.namespace)
	sb.WriteString(delimiter)
	sb.WriteString(logical)
	if scope.SchoolID != "" {
		sb.WriteString(schoolSegment)
		sb.WriteString(scope.SchoolID)
	}
	if scope.UserID != "" {
		sb.WriteString(userSegment)
		sb.WriteString(scope.UserID)
	}
	return sb.String()
}

// Owns reports whether physical is under this builder's namespace.
func (b KeyBuilder) Owns(physical string) bool {
	return strings.HasPrefix(physical, b.namespace+delimiter)
}

// HasUser reports whether physical carries exactly userID's user segment.
// "t1" does not match a key scoped to "t10".
func HasUser(physical, userID string) bool {
	if userID == "" {
		return false
	}
	seg := userSegment + userID
	return strings.HasSuffix(physical, seg) || strings.Contains(physical, seg+delimiter)
}

// Parse splits a physical key back into logical key and scope. ok is false
// for keys outside the namespace.
func (b KeyBuilder) Parse(physical string) (logical string, scope Scope, ok bool) {
	if !b.Owns(physical) {
		return "", Scope{}, false
	}
	rest := physical[len(b.namespace)+len(delimiter):]

	if i := strings.LastIndex(rest, userSegment); i >= 0 && !strings.Contains(rest[i+len(userSegment):], delimiter) {
		scope.UserID = rest[i+len(userSegment):]
		rest = rest[:i]
	}
	if i := strings.LastIndex(rest, schoolSegment); i >= 0 && !strings.Contains(rest[i+len(schoolSegment):], delimiter) {
		scope.SchoolID = rest[i+len(schoolSegment):]
		rest = rest[:i]
	}
	return rest, scope, true
}
