package school

import "time"

// Class is a teaching group.
type Class struct {
	ID         string `json:"id"`
	SchoolID   string `json:"school_id"`
	TeacherID  string `json:"teacher_id"`
	Name       string `json:"name"`
	Subject    string `json:"subject"`
	GradeLevel string `json:"grade_level,omitempty"`
}

// Assignment is work set for a class.
type Assignment struct {
	ID      string    `json:"id"`
	ClassID string    `json:"class_id"`
	Subject string    `json:"subject"`
	Title   string    `json:"title"`
	Status  string    `json:"status"`
	DueDate time.Time `json:"due_date"`
}

// AssignmentFilter selects assignments. Empty fields match anything.
type AssignmentFilter struct {
	ClassID string `json:"class_id,omitempty"`
	Subject string `json:"subject,omitempty"`
	Status  string `json:"status,omitempty"`
}

// LessonPlan is a planned lesson. Date is YYYY-MM-DD.
type LessonPlan struct {
	ID      string `json:"id"`
	ClassID string `json:"class_id"`
	Title   string `json:"title"`
	Date    string `json:"date"`
	Content string `json:"content,omitempty"`
}

// AttendanceRecord is one student's attendance for one day.
type AttendanceRecord struct {
	ID        string `json:"id"`
	ClassID   string `json:"class_id"`
	StudentID string `json:"student_id"`
	Date      string `json:"date"`
	Status    string `json:"status"`
}

// Grade is a score for one student on one assignment.
type Grade struct {
	ID           string  `json:"id"`
	ClassID      string  `json:"class_id"`
	StudentID    string  `json:"student_id"`
	AssignmentID string  `json:"assignment_id"`
	Score        float64 `json:"score"`
}

// Student is a student record.
type Student struct {
	ID       string   `json:"id"`
	SchoolID string   `json:"school_id"`
	Name     string   `json:"name"`
	ClassIDs []string `json:"class_ids,omitempty"`
}

// TimetableEntry is one recurring slot. Weekday follows time.Weekday.
type TimetableEntry struct {
	ID      string       `json:"id"`
	ClassID string       `json:"class_id"`
	Weekday time.Weekday `json:"weekday"`
	Start   string       `json:"start"`
	End     string       `json:"end"`
	Room    string       `json:"room,omitempty"`
}
