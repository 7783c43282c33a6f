package invalidation

import "github.com/c360/schoolcache/cache"

// Entity is a kind of domain record whose writes invalidate cache entries.
type Entity string

// Entities
const (
	EntityClass      Entity = "class"
	EntityAssignment Entity = "assignment"
	EntityLessonPlan Entity = "lesson_plan"
	EntityAttendance Entity = "attendance"
	EntityGrade      Entity = "grade"
	EntityStudent    Entity = "student"
	EntityTimetable  Entity = "timetable"
)

// Action is the kind of write.
type Action string

// Actions
const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Event describes a successful write.
type Event struct {
	Entity   Entity
	Action   Action
	EntityID string

	// Scope is the acting user and school. Targeted keys are removed under
	// it and per-user clears use its UserID.
	Scope cache.Scope

	// Related carries parent ids, e.g. the class an assignment belongs to.
	Related map[Entity]string

	// Keys are extra logical keys the caller knows are stale.
	Keys []string
}

// RelatedID returns the id of a related entity, or "".
func (e Event) RelatedID(entity Entity) string {
	return e.Related[entity]
}
