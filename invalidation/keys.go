package invalidation

// Logical cache keys shared by readers and invalidation rules.
const (
	KeyTeacherClasses = "teacher_classes"
	KeyDashboard      = "dashboard"
	KeySchoolProfile  = "school_profile"
)

// Logical key prefixes for list views.
const (
	PrefixClass       = "class:"
	PrefixAssignments = "assignments:"
	PrefixLessonPlans = "lesson_plans:"
	PrefixAttendance  = "attendance:"
	PrefixGrades      = "grades:"
	PrefixTimetable   = "timetable:"
)

// Single-record keys.
func ClassKey(id string) string          { return PrefixClass + id }
func ClassStudentsKey(id string) string  { return PrefixClass + id + ":students" }
func AssignmentKey(id string) string     { return "assignment:" + id }
func LessonPlanKey(id string) string     { return "lesson_plan:" + id }
func StudentKey(id string) string        { return "student:" + id }
func TimetableKey(classID string) string { return PrefixTimetable + classID }

// AssignmentListKey is parameterised by filters, so it cannot be enumerated
// for invalidation.
func AssignmentListKey(classID, subject, status string) string {
	return PrefixAssignments + classID + ":" + subject + ":" + status
}

// LessonPlanListKey covers plans for a class between two dates.
func LessonPlanListKey(classID, from, to string) string {
	return PrefixLessonPlans + classID + ":" + from + ":" + to
}

// AttendanceKey is the roll for one class on one day.
func AttendanceKey(classID, date string) string {
	return PrefixAttendance + classID + ":" + date
}

// GradesKey lists grades for a class.
func GradesKey(classID string) string {
	return PrefixGrades + classID
}

// StudentGradesKey lists grades for a student.
func StudentGradesKey(studentID string) string {
	return PrefixGrades + "student:" + studentID
}
