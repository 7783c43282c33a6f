package invalidation

// Rule says what a write to one entity kind invalidates.
type Rule struct {
	// Keys returns logical keys to remove under the event scope.
	Keys func(Event) []string

	// Prefixes are cleared within the event's school, across all users.
	Prefixes []string

	// ClearUser drops everything scoped to the acting user. Used where list
	// keys depend on filters that cannot be enumerated. Without a user and
	// without Prefixes, the event's whole school is cleared instead.
	ClearUser bool
}

// DefaultRules returns a rule for every entity kind.
func DefaultRules() map[Entity]Rule {
	return map[Entity]Rule{
		EntityClass: {
			Keys: func(e Event) []string {
				return nonEmpty(KeyTeacherClasses, KeyDashboard,
					keyIf(e.EntityID, ClassKey), keyIf(e.EntityID, ClassStudentsKey), keyIf(e.EntityID, TimetableKey))
			},
		},
		EntityAssignment: {
			Keys: func(e Event) []string {
				return nonEmpty(KeyDashboard, keyIf(e.EntityID, AssignmentKey))
			},
			Prefixes:  []string{PrefixAssignments},
			ClearUser: true,
		},
		EntityLessonPlan: {
			Keys: func(e Event) []string {
				return nonEmpty(keyIf(e.EntityID, LessonPlanKey))
			},
			Prefixes:  []string{PrefixLessonPlans},
			ClearUser: true,
		},
		EntityAttendance: {
			Keys: func(e Event) []string {
				return nonEmpty(KeyDashboard, keyIf(e.RelatedID(EntityClass), ClassKey))
			},
			Prefixes: []string{PrefixAttendance},
		},
		EntityGrade: {
			Keys: func(e Event) []string {
				return nonEmpty(KeyDashboard,
					keyIf(e.RelatedID(EntityClass), GradesKey), keyIf(e.RelatedID(EntityStudent), StudentGradesKey))
			},
			Prefixes:  []string{PrefixGrades},
			ClearUser: true,
		},
		EntityStudent: {
			Keys: func(e Event) []string {
				return nonEmpty(keyIf(e.EntityID, StudentKey), keyIf(e.EntityID, StudentGradesKey),
					keyIf(e.RelatedID(EntityClass), ClassStudentsKey))
			},
			Prefixes: []string{PrefixClass},
		},
		EntityTimetable: {
			Keys: func(e Event) []string {
				return nonEmpty(KeyTeacherClasses, keyIf(e.RelatedID(EntityClass), TimetableKey))
			},
			Prefixes: []string{PrefixTimetable},
		},
	}
}

func keyIf(id string, key func(string) string) string {
	if id == "" {
		return ""
	}
	return key(id)
}

func nonEmpty(keys ...string) []string {
	out := keys[:0]
	for _, k := range keys {
		if k != "" {
			out = append(out, k)
		}
	}
	return out
}
