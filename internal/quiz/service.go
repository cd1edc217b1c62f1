package quiz

import (
	"context"
	"errors"
	"fmt"

	"github.com/mind-engage/engineering-lms/internal/backend"
	"github.com/mind-engage/engineering-lms/internal/lms"
)

var ErrInvalidChoice = errors.New("quiz: choice out of range")

// Service applies page interactions for one module and keeps the result in a StateStore.
type Service struct {
	store StateStore
}

func NewService(store StateStore) *Service {
	if store == nil {
		store = NewMemory(0)
	}
	return &Service{store: store}
}

func (s *Service) State(ctx context.Context, k Key) (*ModuleState, error) {
	return s.store.Load(ctx, k)
}

// Begin starts a module page over: every question unanswered, every buffer back
// to its initial code. Later interactions on the page accumulate under k.
func (s *Service) Begin(ctx context.Context, k Key) (*ModuleState, error) {
	if err := s.store.Reset(ctx, k); err != nil {
		return nil, err
	}
	return NewModuleState(), nil
}

// Answer evaluates choice for a question of k.ModuleID and records it.
func (s *Service) Answer(ctx context.Context, c backend.Client, k Key, questionID string, choice int) (Answer, error) {
	q, err := backend.SelectOne[lms.MCQQuestion](ctx, c,
		backend.From(backend.TableMCQQuestions).Eq("id", questionID).Eq("module_id", k.ModuleID))
	if err != nil {
		return Answer{}, err
	}
	if choice < 0 || choice >= len(q.Options) {
		return Answer{}, fmt.Errorf("%w: %d of %d", ErrInvalidChoice, choice, len(q.Options))
	}
	a := Evaluate(q, choice)
	if err := s.store.PutAnswer(ctx, k, a); err != nil {
		return Answer{}, err
	}
	return a, nil
}

// Edit replaces the buffer of an exercise of k.ModuleID.
func (s *Service) Edit(ctx context.Context, c backend.Client, k Key, exerciseID, code string) (Buffer, error) {
	ex, err := s.exercise(ctx, c, k, exerciseID)
	if err != nil {
		return Buffer{}, err
	}
	if err := s.store.PutCode(ctx, k, ex.ID, code); err != nil {
		return Buffer{}, err
	}
	return Buffer{ExerciseID: ex.ID, Language: ex.Language, Code: code}, nil
}

// Submit acknowledges the current buffer of an exercise.
func (s *Service) Submit(ctx context.Context, c backend.Client, k Key, exerciseID string) (Submission, error) {
	ex, err := s.exercise(ctx, c, k, exerciseID)
	if err != nil {
		return Submission{}, err
	}
	st, err := s.store.Load(ctx, k)
	if err != nil {
		return Submission{}, err
	}
	return Submit(st.BufferFor(ex)), nil
}

func (s *Service) exercise(ctx context.Context, c backend.Client, k Key, exerciseID string) (lms.CodingExercise, error) {
	return backend.SelectOne[lms.CodingExercise](ctx, c,
		backend.From(backend.TableCodingExercises).Eq("id", exerciseID).Eq("module_id", k.ModuleID))
}
