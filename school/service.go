package school

import (
	"context"
	"slices"

	"github.com/google/uuid"

	"github.com/c360/schoolcache/cache"
	"github.com/c360/schoolcache/fetcher"
	"github.com/c360/schoolcache/invalidation"
)

// Service is the cached data-access layer over a Backend.
type Service struct {
	fetch   *fetcher.Fetcher
	inv     *invalidation.Invalidator
	backend Backend
	presets cache.Presets
}

// Option configures a Service.
type Option func(*Service)

// WithPresets overrides the cache policies reads use.
func WithPresets(p cache.Presets) Option {
	return func(s *Service) {
		if p != nil {
			s.presets = p
		}
	}
}

// NewService wires a Service.
func NewService(f *fetcher.Fetcher, inv *invalidation.Invalidator, backend Backend, opts ...Option) *Service {
	s := &Service{
		fetch:   f,
		inv:     inv,
		backend: backend,
		presets: cache.DefaultPresets(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ReadOption adjusts a single read.
type ReadOption func(*fetcher.Request)

// ForceRefresh skips the cache lookup; the fresh result still gets cached.
func ForceRefresh() ReadOption {
	return func(r *fetcher.Request) {
		r.ForceRefresh = true
	}
}

func read[T any](ctx context.Context, s *Service, key, preset string, scope cache.Scope,
	opts []ReadOption, remote func(context.Context) (T, error),
) fetcher.Result[T] {
	req := fetcher.Request{Key: key, Scope: scope, Config: s.presets.Get(preset)}
	for _, opt := range opts {
		opt(&req)
	}
	return fetcher.Fetch(ctx, s.fetch, req, remote)
}

// TeacherClasses lists the classes the acting user teaches.
func (s *Service) TeacherClasses(ctx context.Context, scope cache.Scope, opts ...ReadOption) fetcher.Result[[]Class] {
	return read(ctx, s, invalidation.KeyTeacherClasses, cache.PresetStandard, scope, opts,
		func(ctx context.Context) ([]Class, error) { return s.backend.ListTeacherClasses(ctx, scope.UserID) })
}

// Class returns one class.
func (s *Service) Class(ctx context.Context, scope cache.Scope, id string, opts ...ReadOption) fetcher.Result[Class] {
	return read(ctx, s, invalidation.ClassKey(id), cache.PresetReference, scope, opts,
		func(ctx context.Context) (Class, error) { return s.backend.GetClass(ctx, id) })
}

// ClassStudents lists a class roster.
func (s *Service) ClassStudents(ctx context.Context, scope cache.Scope, classID string, opts ...ReadOption) fetcher.Result[[]Student] {
	return read(ctx, s, invalidation.ClassStudentsKey(classID), cache.PresetStandard, scope, opts,
		func(ctx context.Context) ([]Student, error) { return s.backend.ListClassStudents(ctx, classID) })
}

// Assignments lists assignments matching filter.
func (s *Service) Assignments(ctx context.Context, scope cache.Scope, filter AssignmentFilter, opts ...ReadOption) fetcher.Result[[]Assignment] {
	key := invalidation.AssignmentListKey(filter.ClassID, filter.Subject, filter.Status)
	return read(ctx, s, key, cache.PresetStandard, scope, opts,
		func(ctx context.Context) ([]Assignment, error) { return s.backend.ListAssignments(ctx, filter) })
}

// LessonPlans lists a class's plans between two dates.
func (s *Service) LessonPlans(ctx context.Context, scope cache.Scope, classID, from, to string, opts ...ReadOption) fetcher.Result[[]LessonPlan] {
	return read(ctx, s, invalidation.LessonPlanListKey(classID, from, to), cache.PresetStandard, scope, opts,
		func(ctx context.Context) ([]LessonPlan, error) { return s.backend.ListLessonPlans(ctx, classID, from, to) })
}

// Attendance returns the roll for a class on date.
func (s *Service) Attendance(ctx context.Context, scope cache.Scope, classID, date string, opts ...ReadOption) fetcher.Result[[]AttendanceRecord] {
	return read(ctx, s, invalidation.AttendanceKey(classID, date), cache.PresetRealtime, scope, opts,
		func(ctx context.Context) ([]AttendanceRecord, error) { return s.backend.GetAttendance(ctx, classID, date) })
}

// Grades lists grades for a class.
func (s *Service) Grades(ctx context.Context, scope cache.Scope, classID string, opts ...ReadOption) fetcher.Result[[]Grade] {
	return read(ctx, s, invalidation.GradesKey(classID), cache.PresetDashboard, scope, opts,
		func(ctx context.Context) ([]Grade, error) { return s.backend.ListGrades(ctx, classID) })
}

// Student returns one student record.
func (s *Service) Student(ctx context.Context, scope cache.Scope, id string, opts ...ReadOption) fetcher.Result[Student] {
	return read(ctx, s, invalidation.StudentKey(id), cache.PresetReference, scope, opts,
		func(ctx context.Context) (Student, error) { return s.backend.GetStudent(ctx, id) })
}

// Timetable lists a class's weekly slots.
func (s *Service) Timetable(ctx context.Context, scope cache.Scope, classID string, opts ...ReadOption) fetcher.Result[[]TimetableEntry] {
	return read(ctx, s, invalidation.TimetableKey(classID), cache.PresetReference, scope, opts,
		func(ctx context.Context) ([]TimetableEntry, error) { return s.backend.GetTimetable(ctx, classID) })
}

// assignID gives new records a client-side id and reports the write kind.
func assignID(id *string) invalidation.Action {
	if *id == "" {
		*id = uuid.NewString()
		return invalidation.ActionCreate
	}
	return invalidation.ActionUpdate
}

// SaveAssignment creates or updates an assignment.
func (s *Service) SaveAssignment(ctx context.Context, scope cache.Scope, a Assignment) (Assignment, error) {
	action := assignID(&a.ID)
	return invalidation.Write(ctx, s.inv, invalidation.Event{
		Entity: invalidation.EntityAssignment, Action: action, EntityID: a.ID, Scope: scope,
		Related: map[invalidation.Entity]string{invalidation.EntityClass: a.ClassID},
	}, func(ctx context.Context) (Assignment, error) { return s.backend.SaveAssignment(ctx, a) })
}

// DeleteAssignment deletes an assignment.
func (s *Service) DeleteAssignment(ctx context.Context, scope cache.Scope, id string) error {
	_, err := invalidation.Write(ctx, s.inv, invalidation.Event{
		Entity: invalidation.EntityAssignment, Action: invalidation.ActionDelete, EntityID: id, Scope: scope,
	}, func(ctx context.Context) (struct{}, error) { return struct{}{}, s.backend.DeleteAssignment(ctx, id) })
	return err
}

// SaveLessonPlan creates or updates a lesson plan.
func (s *Service) SaveLessonPlan(ctx context.Context, scope cache.Scope, p LessonPlan) (LessonPlan, error) {
	action := assignID(&p.ID)
	return invalidation.Write(ctx, s.inv, invalidation.Event{
		Entity: invalidation.EntityLessonPlan, Action: action, EntityID: p.ID, Scope: scope,
		Related: map[invalidation.Entity]string{invalidation.EntityClass: p.ClassID},
	}, func(ctx context.Context) (LessonPlan, error) { return s.backend.SaveLessonPlan(ctx, p) })
}

// SaveAttendance records a class roll. Records share classID.
func (s *Service) SaveAttendance(ctx context.Context, scope cache.Scope, classID string, records []AttendanceRecord) ([]AttendanceRecord, error) {
	records = slices.Clone(records)
	action := invalidation.ActionUpdate
	for i := range records {
		if assignID(&records[i].ID) == invalidation.ActionCreate {
			action = invalidation.ActionCreate
		}
		records[i].ClassID = classID
	}
	return invalidation.Write(ctx, s.inv, invalidation.Event{
		Entity: invalidation.EntityAttendance, Action: action, Scope: scope,
		Related: map[invalidation.Entity]string{invalidation.EntityClass: classID},
	}, func(ctx context.Context) ([]AttendanceRecord, error) { return s.backend.SaveAttendance(ctx, records) })
}

// SaveGrade creates or updates a grade.
func (s *Service) SaveGrade(ctx context.Context, scope cache.Scope, g Grade) (Grade, error) {
	action := assignID(&g.ID)
	return invalidation.Write(ctx, s.inv, invalidation.Event{
		Entity: invalidation.EntityGrade, Action: action, EntityID: g.ID, Scope: scope,
		Related: map[invalidation.Entity]string{
			invalidation.EntityClass:   g.ClassID,
			invalidation.EntityStudent: g.StudentID,
		},
	}, func(ctx context.Context) (Grade, error) { return s.backend.SaveGrade(ctx, g) })
}

// SaveStudent creates or updates a student record.
func (s *Service) SaveStudent(ctx context.Context, scope cache.Scope, st Student) (Student, error) {
	action := assignID(&st.ID)
	return invalidation.Write(ctx, s.inv, invalidation.Event{
		Entity: invalidation.EntityStudent, Action: action, EntityID: st.ID, Scope: scope,
	}, func(ctx context.Context) (Student, error) { return s.backend.SaveStudent(ctx, st) })
}

// SaveTimetableEntry creates or updates a timetable slot.
func (s *Service) SaveTimetableEntry(ctx context.Context, scope cache.Scope, e TimetableEntry) (TimetableEntry, error) {
	action := assignID(&e.ID)
	return invalidation.Write(ctx, s.inv, invalidation.Event{
		Entity: invalidation.EntityTimetable, Action: action, EntityID: e.ID, Scope: scope,
		Related: map[invalidation.Entity]string{invalidation.EntityClass: e.ClassID},
	}, func(ctx context.Context) (TimetableEntry, error) { return s.backend.SaveTimetableEntry(ctx, e) })
}
