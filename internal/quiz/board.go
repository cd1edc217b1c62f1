// Package quiz holds the interaction state of a module page: multiple-choice
// answers and coding exercise buffers. Nothing here is written back to the backend.
package quiz

import "github.com/mind-engage/engineering-lms/internal/lms"

type Status string

const (
	Unanswered Status = "unanswered"
	Correct    Status = "correct"
	Incorrect  Status = "incorrect"
)

const (
	feedbackCorrect   = "Correct!"
	feedbackIncorrect = "Incorrect. Try again!"
)

// Answer is the displayed state of one question. Explanation is set only when Incorrect.
type Answer struct {
	QuestionID  string `json:"question_id"`
	Status      Status `json:"status"`
	Selected    *int   `json:"selected,omitempty"`
	Feedback    string `json:"feedback,omitempty"`
	Explanation string `json:"explanation,omitempty"`
}

// Evaluate compares choice with the stored correct index. An out-of-range
// correct_answer simply never matches.
func Evaluate(q lms.MCQQuestion, choice int) Answer {
	sel := choice
	a := Answer{QuestionID: q.ID, Selected: &sel}
	if choice == q.CorrectAnswer {
		a.Status = Correct
		a.Feedback = feedbackCorrect
		return a
	}
	a.Status = Incorrect
	a.Feedback = feedbackIncorrect
	a.Explanation = q.Explanation
	return a
}

// Board maps question id to its latest answer. A later selection overwrites.
type Board struct {
	Answers map[string]Answer `json:"answers"`
}

func NewBoard() *Board { return &Board{Answers: map[string]Answer{}} }

func (b *Board) Select(q lms.MCQQuestion, choice int) Answer {
	a := Evaluate(q, choice)
	if b.Answers == nil {
		b.Answers = map[string]Answer{}
	}
	b.Answers[q.ID] = a
	return a
}

func (b *Board) Get(questionID string) Answer {
	if a, ok := b.Answers[questionID]; ok {
		return a
	}
	return Answer{QuestionID: questionID, Status: Unanswered}
}
