package school

import (
	"context"
	stderrors "errors"
	"sync"
)

var errOffline = stderrors.New("network unavailable")

// fakeBackend is an in-memory Backend that counts calls.
type fakeBackend struct {
	mu      sync.Mutex
	calls   map[string]int
	offline bool

	classes     []Class
	students    map[string]Student
	assignments map[string]Assignment
	plans       map[string]LessonPlan
	attendance  map[string]AttendanceRecord
	grades      map[string]Grade
	timetable   map[string]TimetableEntry
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		calls:       make(map[string]int),
		students:    make(map[string]Student),
		assignments: make(map[string]Assignment),
		plans:       make(map[string]LessonPlan),
		attendance:  make(map[string]AttendanceRecord),
		grades:      make(map[string]Grade),
		timetable:   make(map[string]TimetableEntry),
	}
}

func (b *fakeBackend) enter(op string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls[op]++
	if b.offline {
		return errOffline
	}
	return nil
}

func (b *fakeBackend) count(op string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[op]
}

func (b *fakeBackend) setOffline(v bool) {
	b.mu.Lock()
	b.offline = v
	b.mu.Unlock()
}

func (b *fakeBackend) ListTeacherClasses(_ context.Context, teacherID string) ([]Class, error) {
	if err := b.enter("ListTeacherClasses"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Class
	for _, c := range b.classes {
		if c.TeacherID == teacherID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (b *fakeBackend) GetClass(_ context.Context, id string) (Class, error) {
	if err := b.enter("GetClass"); err != nil {
		return Class{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range b.classes {
		if c.ID == id {
			return c, nil
		}
	}
	return Class{}, stderrors.New("class not found")
}

func (b *fakeBackend) ListClassStudents(_ context.Context, classID string) ([]Student, error) {
	if err := b.enter("ListClassStudents"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Student
	for _, s := range b.students {
		for _, id := range s.ClassIDs {
			if id == classID {
				out = append(out, s)
			}
		}
	}
	return out, nil
}

func (b *fakeBackend) ListAssignments(_ context.Context, f AssignmentFilter) ([]Assignment, error) {
	if err := b.enter("ListAssignments"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Assignment
	for _, a := range b.assignments {
		if (f.ClassID == "" || a.ClassID == f.ClassID) &&
			(f.Subject == "" || a.Subject == f.Subject) &&
			(f.Status == "" || a.Status == f.Status) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (b *fakeBackend) SaveAssignment(_ context.Context, a Assignment) (Assignment, error) {
	if err := b.enter("SaveAssignment"); err != nil {
		return Assignment{}, err
	}
	b.mu.Lock()
	b.assignments[a.ID] = a
	b.mu.Unlock()
	return a, nil
}

func (b *fakeBackend) DeleteAssignment(_ context.Context, id string) error {
	if err := b.enter("DeleteAssignment"); err != nil {
		return err
	}
	b.mu.Lock()
	delete(b.assignments, id)
	b.mu.Unlock()
	return nil
}

func (b *fakeBackend) ListLessonPlans(_ context.Context, classID, from, to string) ([]LessonPlan, error) {
	if err := b.enter("ListLessonPlans"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []LessonPlan
	for _, p := range b.plans {
		if p.ClassID == classID && p.Date >= from && p.Date <= to {
			out = append(out, p)
		}
	}
	return out, nil
}

func (b *fakeBackend) SaveLessonPlan(_ context.Context, p LessonPlan) (LessonPlan, error) {
	if err := b.enter("SaveLessonPlan"); err != nil {
		return LessonPlan{}, err
	}
	b.mu.Lock()
	b.plans[p.ID] = p
	b.mu.Unlock()
	return p, nil
}

func (b *fakeBackend) GetAttendance(_ context.Context, classID, date string) ([]AttendanceRecord, error) {
	if err := b.enter("GetAttendance"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []AttendanceRecord
	for _, r := range b.attendance {
		if r.ClassID == classID && r.Date == date {
			out = append(out, r)
		}
	}
	return out, nil
}

func (b *fakeBackend) SaveAttendance(_ context.Context, records []AttendanceRecord) ([]AttendanceRecord, error) {
	if err := b.enter("SaveAttendance"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	for _, r := range records {
		b.attendance[r.ID] = r
	}
	b.mu.Unlock()
	return records, nil
}

func (b *fakeBackend) ListGrades(_ context.Context, classID string) ([]Grade, error) {
	if err := b.enter("ListGrades"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Grade
	for _, g := range b.grades {
		if g.ClassID == classID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (b *fakeBackend) SaveGrade(_ context.Context, g Grade) (Grade, error) {
	if err := b.enter("SaveGrade"); err != nil {
		return Grade{}, err
	}
	b.mu.Lock()
	b.grades[g.ID] = g
	b.mu.Unlock()
	return g, nil
}

func (b *fakeBackend) GetStudent(_ context.Context, id string) (Student, error) {
	if err := b.enter("GetStudent"); err != nil {
		return Student{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.students[id]
	if !ok {
		return Student{}, stderrors.New("student not found")
	}
	return s, nil
}

func (b *fakeBackend) SaveStudent(_ context.Context, s Student) (Student, error) {
	if err := b.enter("SaveStudent"); err != nil {
		return Student{}, err
	}
	b.mu.Lock()
	b.students[s.ID] = s
	b.mu.Unlock()
	return s, nil
}

func (b *fakeBackend) GetTimetable(_ context.Context, classID string) ([]TimetableEntry, error) {
	if err := b.enter("GetTimetable"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []TimetableEntry
	for _, e := range b.timetable {
		if e.ClassID == classID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (b *fakeBackend) SaveTimetableEntry(_ context.Context, e TimetableEntry) (TimetableEntry, error) {
	if err := b.enter("SaveTimetableEntry"); err != nil {
		return TimetableEntry{}, err
	}
	b.mu.Lock()
	b.timetable[e.ID] = e
	b.mu.Unlock()
	return e, nil
}
