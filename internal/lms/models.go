package lms

import "time"

type Role string

const (
	RoleStudent    Role = "student"
	RoleInstructor Role = "instructor"
	RoleAdmin      Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleInstructor, RoleAdmin:
		return true
	}
	return false
}

type User struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	FullName  string    `json:"full_name"`
	CreatedAt time.Time `json:"created_at"`
}

type Course struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	InstructorID string    `json:"instructor_id"`
	CreatedAt    time.Time `json:"created_at"`
}

type Module struct {
	ID         string    `json:"id"`
	CourseID   string    `json:"course_id"`
	Title      string    `json:"title"`
	OrderIndex int       `json:"order_index"`
	CreatedAt  time.Time `json:"created_at"`
}

// Number is the one-based position shown to learners ("Module 3").
func (m Module) Number() int { return m.OrderIndex + 1 }

type MCQQuestion struct {
	ID            string    `json:"id"`
	ModuleID      string    `json:"module_id"`
	Question      string    `json:"question"`
	Options       []string  `json:"options"`
	CorrectAnswer int       `json:"correct_answer"`
	Explanation   string    `json:"explanation"`
	CreatedAt     time.Time `json:"created_at"`
}

type TestCase struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
}

type CodingExercise struct {
	ID          string     `json:"id"`
	ModuleID    string     `json:"module_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	InitialCode string     `json:"initial_code"`
	TestCases   []TestCase `json:"test_cases"`
	Language    string     `json:"language"`
	CreatedAt   time.Time  `json:"created_at"`
}

type MCQScore struct {
	QuestionID string  `json:"question_id"`
	Score      float64 `json:"score"`
	Attempts   int     `json:"attempts"`
}

type CodingSubmission struct {
	ExerciseID     string    `json:"exercise_id"`
	Code           string    `json:"code"`
	Passed         bool      `json:"passed"`
	SubmissionTime time.Time `json:"submission_time"`
}

// UserProgress is read by the portal but never written by it.
type UserProgress struct {
	ID                string             `json:"id"`
	UserID            string             `json:"user_id"`
	ModuleID          string             `json:"module_id"`
	MCQScores         []MCQScore         `json:"mcq_scores"`
	CodingSubmissions []CodingSubmission `json:"coding_submissions"`
	Completed         bool               `json:"completed"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}
