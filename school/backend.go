package school

import "context"

// Backend is the remote data store. Implementations talk to the network and
// may fail at any time.
type Backend interface {
	ListTeacherClasses(ctx context.Context, teacherID string) ([]Class, error)
	GetClass(ctx context.Context, id string) (Class, error)
	ListClassStudents(ctx context.Context, classID string) ([]Student, error)

	ListAssignments(ctx context.Context, filter AssignmentFilter) ([]Assignment, error)
	SaveAssignment(ctx context.Context, a Assignment) (Assignment, error)
	DeleteAssignment(ctx context.Context, id string) error

	ListLessonPlans(ctx context.Context, classID, from, to string) ([]LessonPlan, error)
	SaveLessonPlan(ctx context.Context, p LessonPlan) (LessonPlan, error)

	GetAttendance(ctx context.Context, classID, date string) ([]AttendanceRecord, error)
	SaveAttendance(ctx context.Context, records []AttendanceRecord) ([]AttendanceRecord, error)

	ListGrades(ctx context.Context, classID string) ([]Grade, error)
	SaveGrade(ctx context.Context, g Grade) (Grade, error)

	GetStudent(ctx context.Context, id string) (Student, error)
	SaveStudent(ctx context.Context, s Student) (Student, error)

	GetTimetable(ctx context.Context, classID string) ([]TimetableEntry, error)
	SaveTimetableEntry(ctx context.Context, e TimetableEntry) (TimetableEntry, error)
}
