package quiz

import "github.com/mind-engage/engineering-lms/internal/lms"

// SubmitMessage is the only outcome of a code submission; code is never run.
const SubmitMessage = "Code submitted successfully! In a production environment, this would be evaluated against test cases."

type Buffer struct {
	ExerciseID string `json:"exercise_id"`
	Language   string `json:"language"`
	Code       string `json:"code"`
}

type Submission struct {
	ExerciseID string `json:"exercise_id"`
	Message    string `json:"message"`
}

// ModuleState is everything one agent has done on one module page.
type ModuleState struct {
	Board Board             `json:"board"`
	Code  map[string]string `json:"code"`
}

func NewModuleState() *ModuleState {
	return &ModuleState{Board: Board{Answers: map[string]Answer{}}, Code: map[string]string{}}
}

// BufferFor returns the edited code for ex, or its initial code when untouched.
func (s *ModuleState) BufferFor(ex lms.CodingExercise) Buffer {
	code, ok := s.Code[ex.ID]
	if !ok {
		code = ex.InitialCode
	}
	return Buffer{ExerciseID: ex.ID, Language: ex.Language, Code: code}
}

func (s *ModuleState) Edit(exerciseID, code string) {
	if s.Code == nil {
		s.Code = map[string]string{}
	}
	s.Code[exerciseID] = code
}

// Submit acknowledges the buffer without validating, running or storing it.
func Submit(b Buffer) Submission {
	return Submission{ExerciseID: b.ExerciseID, Message: SubmitMessage}
}
